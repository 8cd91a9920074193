package tables

import (
	"testing"

	"github.com/matryer/is"

	"github.com/tonalfitness/libisdb/psi"
)

func TestDecodeEIT(t *testing.T) {
	is := is.New(t)

	payload := []byte{
		0x00, 0x01, // transport_stream_id
		0x00, 0x02, // original_network_id
		0x07,       // segment_last_section_number
		0x4E,       // last_table_id
		0x12, 0x34, // event_id
		0x43, 0x73, 0x12, 0x34, 0x56, // MJD + BCD start_time
		0x01, 0x00, 0x00, // BCD duration 01:00:00
		0x60, 0x00, // running_status=3(011) free_CA_mode=0 descriptors_loop_length=0
	}
	s := &psi.Section{
		Header: &psi.Header{
			TableID:           TableIDEITPFActual,
			TableIDExtension:  0x0099,
			SectionNumber:     0,
			LastSectionNumber: 0,
		},
		Payload: payload,
	}

	eit, err := DecodeEIT(s)
	is.NoErr(err)
	is.True(eit.IsPresentFollowing())
	is.True(eit.IsActual())
	is.Equal(eit.ServiceID, uint16(0x0099))
	is.Equal(eit.TransportStreamID, uint16(1))
	is.Equal(eit.OriginalNetworkID, uint16(2))
	is.Equal(len(eit.Events), 1)

	ev := eit.Events[0]
	is.Equal(ev.EventID, uint16(0x1234))
	is.Equal(ev.StartTime.Hour(), 12)
	is.Equal(ev.StartTime.Minute(), 34)
	is.Equal(ev.StartTime.Second(), 56)
	is.Equal(ev.Duration.Hours(), float64(1))
	is.Equal(ev.RunningStatus, uint8(3))
	is.True(!ev.FreeCAMode)
}

func TestEITSegmentIndex(t *testing.T) {
	is := is.New(t)
	e := &EIT{SectionNumber: 17}
	is.Equal(e.SegmentIndex(), uint8(2))
}

func TestUniqueIDEIT(t *testing.T) {
	is := is.New(t)
	e := &EIT{OriginalNetworkID: 1, TransportStreamID: 2, ServiceID: 3}
	is.Equal(UniqueID(e), EITUniqueID(1, 2, 3))
}
