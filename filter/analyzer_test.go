package filter

import (
	"testing"

	"github.com/matryer/is"

	"github.com/tonalfitness/libisdb/crc"
	"github.com/tonalfitness/libisdb/ts"
)

// buildSection mirrors psi's own test helper: a minimal syntax-extended
// section with a valid CRC, given a table id and payload.
func buildSection(tableID uint8, tableIDExt uint16, version uint8, payload []byte) []byte {
	body := make([]byte, 0, 16+len(payload))
	body = append(body, byte(tableIDExt>>8), byte(tableIDExt))
	body = append(body, 0xC1|(version&0x1F)<<1) // reserved|version|current_next=1
	body = append(body, 0x00)                   // section_number
	body = append(body, 0x00)                   // last_section_number
	body = append(body, payload...)

	sectionLength := len(body) + 4
	header := []byte{
		tableID,
		0x80 | byte(sectionLength>>8&0x0F),
		byte(sectionLength),
	}

	full := append(header, body...)
	sum := crc.Checksum(full)
	full = append(full, byte(sum>>24), byte(sum>>16), byte(sum>>8), byte(sum))
	return full
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

func patPacket(t *testing.T, tsid uint16, version uint8, programs ...[2]uint16) *ts.Packet {
	t.Helper()
	var payload []byte
	for _, prog := range programs {
		payload = append(payload, byte(prog[0]>>8), byte(prog[0]), 0xE0|byte(prog[1]>>8), byte(prog[1]))
	}
	section := buildSection(0x00, tsid, version, payload)
	return packetWithPayload(t, PIDPAT, true, 0, append([]byte{0x00}, section...))
}

func pmtPacket(t *testing.T, pmtPID, serviceID, pcrPID uint16, version uint8, streams [][3]interface{}) *ts.Packet {
	t.Helper()
	payload := []byte{0xE0 | byte(pcrPID>>8), byte(pcrPID), 0xF0, 0x00}
	for _, st := range streams {
		streamType := st[0].(uint8)
		pid := st[1].(uint16)
		tag, hasTag := st[2].(uint8)
		var desc []byte
		if hasTag {
			desc = []byte{0x52, 0x01, tag}
		}
		payload = append(payload, streamType, 0xE0|byte(pid>>8), byte(pid), 0xF0|byte(len(desc)>>8), byte(len(desc)))
		payload = append(payload, desc...)
	}
	section := buildSection(0x02, serviceID, version, payload)
	return packetWithPayload(t, pmtPID, true, 0, append([]byte{0x00}, section...))
}

func TestAnalyzerTracksServicesFromPATAndPMT(t *testing.T) {
	is := is.New(t)

	a := NewAnalyzer()
	_, err := a.StorePacket(patPacket(t, 1, 0, [2]uint16{0, 0x0010}, [2]uint16{100, 0x0100}))
	is.NoErr(err)

	is.True(a.HasPAT())
	svc, ok := a.Service(100)
	is.True(ok)
	is.Equal(svc.PMTPID, uint16(0x0100))
	is.True(!svc.PMTAcquired)

	streams := [][3]interface{}{
		{streamTypeAVCVideo, uint16(0x0200), uint8(1)},
		{streamTypeAACADTS, uint16(0x0201), uint8(2)},
	}
	_, err = a.StorePacket(pmtPacket(t, 0x0100, 100, 0x0200, 0, streams))
	is.NoErr(err)

	svc, ok = a.Service(100)
	is.True(ok)
	is.True(svc.PMTAcquired)
	is.Equal(svc.PCRPID, uint16(0x0200))
	is.Equal(len(svc.VideoES), 1)
	is.Equal(len(svc.AudioES), 1)
	is.Equal(svc.VideoES[0].PID, uint16(0x0200))
	is.Equal(svc.AudioES[0].PID, uint16(0x0201))
}

func TestAnalyzerRemovesServiceWhenPATDropsIt(t *testing.T) {
	is := is.New(t)

	a := NewAnalyzer()
	_, err := a.StorePacket(patPacket(t, 1, 0, [2]uint16{100, 0x0100}))
	is.NoErr(err)
	_, ok := a.Service(100)
	is.True(ok)

	_, err = a.StorePacket(patPacket(t, 1, 1, [2]uint16{200, 0x0200}))
	is.NoErr(err)

	_, ok = a.Service(100)
	is.True(!ok)
	_, ok = a.Service(200)
	is.True(ok)
}

func TestAnalyzerESListSortedStableByComponentTag(t *testing.T) {
	is := is.New(t)

	a := NewAnalyzer()
	_, err := a.StorePacket(patPacket(t, 1, 0, [2]uint16{100, 0x0100}))
	is.NoErr(err)

	streams := [][3]interface{}{
		{streamTypeAVCVideo, uint16(0x0300), uint8(3)},
		{streamTypeAVCVideo, uint16(0x0301), uint8(1)},
		{streamTypeAVCVideo, uint16(0x0302), uint8(2)},
	}
	_, err = a.StorePacket(pmtPacket(t, 0x0100, 100, 0x0300, 0, streams))
	is.NoErr(err)

	svc, _ := a.Service(100)
	is.Equal(len(svc.VideoES), 3)
	is.Equal(svc.VideoES[0].ComponentTag, uint8(1))
	is.Equal(svc.VideoES[1].ComponentTag, uint8(2))
	is.Equal(svc.VideoES[2].ComponentTag, uint8(3))
}

type analyzerListenerCounts struct {
	pat, pmt int
}

func (c *analyzerListenerCounts) OnPATUpdated(a *Analyzer)             { c.pat++ }
func (c *analyzerListenerCounts) OnPMTUpdated(a *Analyzer, sid uint16) { c.pmt++ }
func (c *analyzerListenerCounts) OnSDTUpdated(a *Analyzer)             {}
func (c *analyzerListenerCounts) OnNITUpdated(a *Analyzer)             {}
func (c *analyzerListenerCounts) OnEITUpdated(a *Analyzer)             {}
func (c *analyzerListenerCounts) OnCATUpdated(a *Analyzer)             {}
func (c *analyzerListenerCounts) OnTOTUpdated(a *Analyzer)             {}

func TestAnalyzerNotifiesListeners(t *testing.T) {
	is := is.New(t)

	a := NewAnalyzer()
	counts := &analyzerListenerCounts{}
	a.AddListener(counts)

	_, err := a.StorePacket(patPacket(t, 1, 0, [2]uint16{100, 0x0100}))
	is.NoErr(err)
	is.Equal(counts.pat, 1)

	_, err = a.StorePacket(pmtPacket(t, 0x0100, 100, 0x0100, 0, nil))
	is.NoErr(err)
	is.Equal(counts.pmt, 1)
}
