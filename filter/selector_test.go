package filter

import (
	"testing"

	"github.com/matryer/is"

	"github.com/tonalfitness/libisdb/psi"
	"github.com/tonalfitness/libisdb/tables"
)

func TestSelectorPassesOnlyTargetServicePIDs(t *testing.T) {
	is := is.New(t)

	s := NewSelector()
	s.SetTarget(100, StreamAll)

	_, keep := s.Process(patPacket(t, 1, 0, [2]uint16{0, 0x0010}, [2]uint16{100, 0x0100}, [2]uint16{200, 0x0200}))
	is.True(keep)

	streams100 := [][3]interface{}{{streamTypeAVCVideo, uint16(0x0300), uint8(0)}}
	_, keep = s.Process(pmtPacket(t, 0x0100, 100, 0x0300, 0, streams100))
	is.True(keep)

	streams200 := [][3]interface{}{{streamTypeAVCVideo, uint16(0x0400), uint8(0)}}
	// The non-target service's PMT is read internally but not passed on.
	_, keep = s.Process(pmtPacket(t, 0x0200, 200, 0x0400, 0, streams200))
	is.True(!keep)

	// The target service's own ES/PMT/PCR PID passes through.
	_, keep = s.Process(packetWithPayload(t, 0x0300, false, 0, []byte{0xAA}))
	is.True(keep)
	_, keep = s.Process(packetWithPayload(t, 0x0100, false, 1, []byte{0xBB}))
	is.True(keep)

	// The non-target service's ES is dropped.
	_, keep = s.Process(packetWithPayload(t, 0x0400, false, 0, []byte{0xCC}))
	is.True(!keep)

	// System PIDs below 0x0030 always pass regardless of target.
	_, keep = s.Process(packetWithPayload(t, PIDSDT, false, 0, []byte{0xDD}))
	is.True(keep)
}

func TestSelectorStreamFlagFiltersWithinTargetService(t *testing.T) {
	is := is.New(t)

	s := NewSelector()
	s.SetTarget(100, StreamVideo)

	_, _ = s.Process(patPacket(t, 1, 0, [2]uint16{100, 0x0100}))
	streams := [][3]interface{}{
		{streamTypeAVCVideo, uint16(0x0300), uint8(0)},
		{streamTypeAACADTS, uint16(0x0301), uint8(0)},
	}
	_, _ = s.Process(pmtPacket(t, 0x0100, 100, 0x0300, 0, streams))

	_, keep := s.Process(packetWithPayload(t, 0x0300, false, 0, []byte{0xAA}))
	is.True(keep)
	_, keep = s.Process(packetWithPayload(t, 0x0301, false, 0, []byte{0xBB}))
	is.True(!keep)
}

func TestSelectorGeneratesSingleServicePAT(t *testing.T) {
	is := is.New(t)

	s := NewSelector()
	s.SetTarget(100, StreamAll)
	s.SetGeneratePAT(true)

	_, _ = s.Process(patPacket(t, 7, 0, [2]uint16{0, 0x0010}, [2]uint16{100, 0x0100}, [2]uint16{200, 0x0200}))
	_, _ = s.Process(pmtPacket(t, 0x0100, 100, 0x0300, 0, nil))

	out, keep := s.Process(patPacket(t, 7, 0, [2]uint16{0, 0x0010}, [2]uint16{100, 0x0100}, [2]uint16{200, 0x0200}))
	is.True(keep)
	is.True(out != nil)
	is.Equal(out.PID, uint16(PIDPAT))
	is.True(out.PayloadUnitStartIndicator)

	var decoded *tables.PAT
	r := psi.NewReassembler(func(sec *psi.Section) {
		pat, err := tables.DecodePAT(sec)
		is.NoErr(err)
		decoded = pat
	})
	_, err := r.StorePacket(out)
	is.NoErr(err)
	is.True(decoded != nil)
	is.Equal(r.CRCErrorCount(), uint64(0))

	pmtPID, ok := decoded.PMTPID(100)
	is.True(ok)
	is.Equal(pmtPID, uint16(0x0100))
	_, ok = decoded.PMTPID(200)
	is.True(!ok)
	nitPID, ok := decoded.NetworkPID()
	is.True(ok)
	is.Equal(nitPID, uint16(PIDNIT))
}
