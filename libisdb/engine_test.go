package libisdb

import (
	"bytes"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/tonalfitness/libisdb/crc"
	"github.com/tonalfitness/libisdb/filter"
	"github.com/tonalfitness/libisdb/ts"
)

func buildSection(tableID uint8, tableIDExt uint16, payload []byte) []byte {
	body := make([]byte, 0, 16+len(payload))
	body = append(body, byte(tableIDExt>>8), byte(tableIDExt))
	body = append(body, 0xC1, 0x00, 0x00)
	body = append(body, payload...)

	sectionLength := len(body) + 4
	header := []byte{tableID, 0x80 | byte(sectionLength>>8&0x0F), byte(sectionLength)}

	full := append(header, body...)
	sum := crc.Checksum(full)
	return append(full, byte(sum>>24), byte(sum>>16), byte(sum>>8), byte(sum))
}

func packetWithPayload(t *testing.T, pid uint16, pusi bool, cc uint8, payload []byte) *ts.Packet {
	t.Helper()
	raw := make([]byte, ts.PacketSize)
	raw[0] = ts.SyncByte
	b1 := byte(pid >> 8 & 0x1F)
	if pusi {
		b1 |= 0x40
	}
	raw[1] = b1
	raw[2] = byte(pid)
	raw[3] = 0x10 | (cc & 0xF)
	copy(raw[4:], payload)
	for i := 4 + len(payload); i < ts.PacketSize; i++ {
		raw[i] = 0xFF
	}
	p, _, err := ts.ParsePacket(raw)
	if err != nil {
		t.Fatalf("ParsePacket: %v", err)
	}
	return p
}

func rawPacket(t *testing.T, pid uint16, pusi bool, cc uint8, payload []byte) []byte {
	t.Helper()
	return packetWithPayload(t, pid, pusi, cc, payload).Raw
}

func patPacketRaw(t *testing.T, tsid uint16, programs ...[2]uint16) []byte {
	t.Helper()
	var payload []byte
	for _, prog := range programs {
		payload = append(payload, byte(prog[0]>>8), byte(prog[0]), 0xE0|byte(prog[1]>>8), byte(prog[1]))
	}
	section := buildSection(0x00, tsid, payload)
	return rawPacket(t, filter.PIDPAT, true, 0, append([]byte{0x00}, section...))
}

func pmtPacketRaw(t *testing.T, pmtPID, serviceID, pcrPID uint16) []byte {
	t.Helper()
	payload := []byte{0xE0 | byte(pcrPID>>8), byte(pcrPID), 0xF0, 0x00}
	payload = append(payload, 0x1B, 0xE0|byte(pcrPID>>8), byte(pcrPID), 0xF0, 0x00)
	section := buildSection(0x02, serviceID, payload)
	return rawPacket(t, pmtPID, true, 0, append([]byte{0x00}, section...))
}

func TestEnginePushPacketFeedsAnalyzer(t *testing.T) {
	is := is.New(t)

	eng := NewEngine(DefaultConfig())
	eng.Start()
	defer eng.Stop()

	patPkt, _, err := ts.ParsePacket(patPacketRaw(t, 1, [2]uint16{100, 0x0100}))
	is.NoErr(err)
	eng.PushPacket(patPkt)

	pmtPkt, _, err := ts.ParsePacket(pmtPacketRaw(t, 0x0100, 100, 0x0200))
	is.NoErr(err)
	eng.PushPacket(pmtPkt)

	waitUntil(t, func() bool {
		svc, ok := eng.Analyzer().Service(100)
		return ok && svc.PMTAcquired
	})

	svc, ok := eng.Analyzer().Service(100)
	is.True(ok)
	is.Equal(svc.PCRPID, uint16(0x0200))
}

func TestEnginePacketsChannelDeliversSurvivors(t *testing.T) {
	is := is.New(t)

	eng := NewEngine(DefaultConfig())
	eng.Start()
	defer eng.Stop()

	patPkt, _, err := ts.ParsePacket(patPacketRaw(t, 1, [2]uint16{100, 0x0100}))
	is.NoErr(err)
	eng.PushPacket(patPkt)

	select {
	case p := <-eng.Packets():
		is.Equal(p.PID, filter.PIDPAT)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for output packet")
	}
}

func TestEngineSelectServiceDropsOtherServiceES(t *testing.T) {
	is := is.New(t)

	eng := NewEngine(DefaultConfig())
	eng.SelectService(100, filter.StreamAll, false)
	eng.Start()
	defer eng.Stop()

	eng.PushPacket(mustParse(t, patPacketRaw(t, 1, [2]uint16{100, 0x0100}, [2]uint16{200, 0x0200})))
	eng.PushPacket(mustParse(t, pmtPacketRaw(t, 0x0100, 100, 0x0300)))
	// The non-target service's own PMT packet is filtered too (its PID
	// is never added to targetPIDs), but Selector still observes it
	// internally to learn service 200's PMT PID/ES list.
	eng.PushPacket(mustParse(t, pmtPacketRaw(t, 0x0200, 200, 0x0400)))

	drain(eng, 2)

	eng.PushPacket(mustParse(t, rawPacket(t, 0x0400, false, 0, []byte{0xAA})))
	select {
	case <-eng.Packets():
		t.Fatal("non-target service ES should have been dropped")
	case <-time.After(200 * time.Millisecond):
	}

	eng.PushPacket(mustParse(t, rawPacket(t, 0x0300, false, 0, []byte{0xBB})))
	select {
	case p := <-eng.Packets():
		is.Equal(p.PID, uint16(0x0300))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for target service ES")
	}
}

func TestEngineFeedRecoversAndPushesAllPackets(t *testing.T) {
	is := is.New(t)

	eng := NewEngine(DefaultConfig())
	eng.Start()
	defer eng.Stop()

	var buf bytes.Buffer
	buf.Write(patPacketRaw(t, 1, [2]uint16{100, 0x0100}))
	buf.Write(pmtPacketRaw(t, 0x0100, 100, 0x0200))

	err := eng.Feed(&buf)
	is.NoErr(err)

	waitUntil(t, func() bool {
		return eng.Analyzer().HasPAT()
	})
}

func mustParse(t *testing.T, raw []byte) *ts.Packet {
	t.Helper()
	p, _, err := ts.ParsePacket(raw)
	if err != nil {
		t.Fatalf("ParsePacket: %v", err)
	}
	return p
}

func drain(eng *Engine, n int) {
	for i := 0; i < n; i++ {
		select {
		case <-eng.Packets():
		case <-time.After(2 * time.Second):
			return
		}
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
