package oneseg

import (
	"testing"

	"github.com/matryer/is"

	"github.com/tonalfitness/libisdb/crc"
	"github.com/tonalfitness/libisdb/tables"
	"github.com/tonalfitness/libisdb/ts"
)

func buildSection(tableID uint8, tableIDExt uint16, payload []byte) []byte {
	sectionLength := 5 + len(payload) + 4
	b := []byte{
		tableID,
		0xF0 | byte(sectionLength>>8), byte(sectionLength),
		byte(tableIDExt >> 8), byte(tableIDExt),
		0xC1, 0x00, 0x00,
	}
	b = append(b, payload...)
	checksum := crc.Checksum(b)
	b = append(b, byte(checksum>>24), byte(checksum>>16), byte(checksum>>8), byte(checksum))
	return b
}

func wrapInPacket(pid uint16, section []byte, cc uint8) *ts.Packet {
	raw := make([]byte, ts.PacketSize)
	raw[0] = ts.SyncByte
	raw[1] = 0x40 | byte(pid>>8)
	raw[2] = byte(pid)
	raw[3] = 0x10 | (cc & 0x0F)
	raw[4] = 0x00 // pointer_field
	copy(raw[5:], section)
	for i := 5 + len(section); i < len(raw); i++ {
		raw[i] = 0xFF
	}
	p, _, err := ts.ParsePacket(raw)
	if err != nil {
		panic(err)
	}
	return p
}

func buildPMTPacket(pid uint16, programNumber uint16, cc uint8) *ts.Packet {
	payload := []byte{0xE0, 0x10, 0xF0, 0x00} // PCR_PID=0x0010, program_info_length=0
	section := buildSection(tables.TableIDPMT, programNumber, payload)
	return wrapInPacket(pid, section, cc)
}

func TestGeneratorSynthesizesPATAfterThreshold(t *testing.T) {
	is := is.New(t)

	g := NewGenerator()
	g.SetTransportStreamID(0x1234)

	var triggered bool
	for i := 0; i < patGenPMTCount; i++ {
		triggered = g.StorePacket(buildPMTPacket(PMTPIDFirst, 0x0001, uint8(i)))
	}
	is.True(triggered)

	pkt, ok := g.GeneratePATPacket()
	is.True(ok)
	is.Equal(pkt.PID, uint16(0))
	is.True(pkt.PayloadUnitStartIndicator)
}

func TestGeneratorDoesNotTriggerWhenPATSeen(t *testing.T) {
	is := is.New(t)

	g := NewGenerator()
	g.SetTransportStreamID(0x1234)

	raw := make([]byte, ts.PacketSize)
	raw[0] = ts.SyncByte
	raw[1], raw[2], raw[3] = 0x00, 0x00, 0x10
	for i := 4; i < len(raw); i++ {
		raw[i] = 0xFF
	}
	patPacket, _, err := ts.ParsePacket(raw)
	is.NoErr(err)
	g.StorePacket(patPacket)

	var triggered bool
	for i := 0; i < patGenPMTCount; i++ {
		triggered = g.StorePacket(buildPMTPacket(PMTPIDFirst, 0x0001, uint8(i)))
	}
	is.True(!triggered)
}

func patVersion(pkt *ts.Packet) uint8 {
	return (pkt.Raw[10] >> 1) & 0x1F
}

func TestGeneratorBumpsVersionWhenTargetPMTChanges(t *testing.T) {
	is := is.New(t)

	g := NewGenerator()
	g.SetTransportStreamID(0x1234)

	for i := 0; i < patGenPMTCount; i++ {
		g.StorePacket(buildPMTPacket(PMTPIDFirst, 0x0001, uint8(i)))
	}
	pkt1, ok := g.GeneratePATPacket()
	is.True(ok)
	v1 := patVersion(pkt1)

	// A new program_number on the same PMT PID is a target PID set
	// change: the synthesized PAT's version must advance.
	g.StorePacket(buildPMTPacket(PMTPIDFirst, 0x0002, patGenPMTCount))
	pkt2, ok := g.GeneratePATPacket()
	is.True(ok)
	v2 := patVersion(pkt2)

	is.Equal(v2, (v1+1)&0x1F)
}

func TestGeneratorWaitsForTransportStreamID(t *testing.T) {
	is := is.New(t)

	g := NewGenerator()

	var triggered bool
	for i := 0; i < patGenPMTCount; i++ {
		triggered = g.StorePacket(buildPMTPacket(PMTPIDFirst, 0x0001, uint8(i)))
	}
	is.True(!triggered)

	_, ok := g.GeneratePATPacket()
	is.True(!ok)
}
