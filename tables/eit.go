package tables

import (
	"fmt"
	"time"

	"github.com/tonalfitness/libisdb/arib"
	"github.com/tonalfitness/libisdb/descriptor"
	"github.com/tonalfitness/libisdb/psi"
)

// EITEvent is one event entry within an EIT section.
type EITEvent struct {
	EventID       uint16
	StartTime     time.Time
	Duration      time.Duration
	RunningStatus uint8
	FreeCAMode    bool
	Descriptors   *descriptor.Block
}

// EIT is one decoded Event Information Table section. A full
// present/following or schedule table is assembled from many of these
// by the EPG database / schedule tracker, keyed by (table_id,
// section_number) per spec.md §4.4.
type EIT struct {
	ID                       uint8
	ServiceID                uint16
	TransportStreamID        uint16
	OriginalNetworkID        uint16
	VersionNumber            uint8
	SectionNumber            uint8
	LastSectionNumber        uint8
	SegmentLastSectionNumber uint8
	LastTableID              uint8
	Events                   []EITEvent
}

func (t *EIT) TableID() uint8 { return t.ID }

// IsPresentFollowing reports whether this section is EIT p/f (as
// opposed to EIT schedule).
func (t *EIT) IsPresentFollowing() bool {
	return t.ID == TableIDEITPFActual || t.ID == TableIDEITPFOther
}

// IsActual reports whether this EIT describes the transport stream
// carrying it.
func (t *EIT) IsActual() bool {
	return t.ID == TableIDEITPFActual ||
		(t.ID >= TableIDEITScheduleActualBasicStart && t.ID <= TableIDEITScheduleActualExtendedEnd)
}

// IsExtended reports whether this section belongs to the Extended
// schedule bank (table ids 0x58-0x5F) rather than the Basic bank
// (0x50-0x57). Present/following sections are never "extended" in
// this sense.
func (t *EIT) IsExtended() bool {
	return t.ID >= TableIDEITScheduleActualExtendedStart && t.ID <= TableIDEITScheduleActualExtendedEnd
}

// SegmentIndex returns this section's schedule segment (0-31), each
// segment covering a 3-hour window, per the schedule completeness
// tracker's bitfield layout.
func (t *EIT) SegmentIndex() uint8 {
	return t.SectionNumber / 8
}

// DecodeEIT decodes an EIT section (present/following or schedule,
// actual or other) from a CRC-verified section.
func DecodeEIT(s *psi.Section) (*EIT, error) {
	if !isEITTableID(s.Header.TableID) {
		return nil, fmt.Errorf("tables: unexpected EIT table_id 0x%02X", s.Header.TableID)
	}
	if len(s.Payload) < 6 {
		return nil, fmt.Errorf("tables: EIT payload too short: %d bytes", len(s.Payload))
	}

	t := &EIT{
		ID:                s.Header.TableID,
		ServiceID:         s.Header.TableIDExtension,
		VersionNumber:     s.Header.VersionNumber,
		SectionNumber:     s.Header.SectionNumber,
		LastSectionNumber: s.Header.LastSectionNumber,
	}

	t.TransportStreamID = uint16(s.Payload[0])<<8 | uint16(s.Payload[1])
	t.OriginalNetworkID = uint16(s.Payload[2])<<8 | uint16(s.Payload[3])
	t.SegmentLastSectionNumber = s.Payload[4]
	t.LastTableID = s.Payload[5]

	pos := 6
	for pos+11 < len(s.Payload) {
		eventID := uint16(s.Payload[pos])<<8 | uint16(s.Payload[pos+1])

		startTime, err := arib.ParseMJDTime(s.Payload[pos+2 : pos+7])
		if err != nil {
			break
		}
		duration, err := arib.ParseDuration(s.Payload[pos+7 : pos+10])
		if err != nil {
			break
		}

		flagsByte := s.Payload[pos+10]
		descLength := int(flagsByte&0x0F)<<8 | int(s.Payload[pos+11])
		pos += 12

		if pos+descLength > len(s.Payload) {
			break
		}

		t.Events = append(t.Events, EITEvent{
			EventID:       eventID,
			StartTime:     startTime,
			Duration:      duration,
			RunningStatus: (flagsByte >> 5) & 0x07,
			FreeCAMode:    flagsByte&0x10 != 0,
			Descriptors:   descriptor.ParseBlock(s.Payload[pos : pos+descLength]),
		})
		pos += descLength
	}

	return t, nil
}

func isEITTableID(id uint8) bool {
	switch {
	case id == TableIDEITPFActual || id == TableIDEITPFOther:
		return true
	case id >= TableIDEITScheduleActualBasicStart && id <= TableIDEITScheduleActualExtendedEnd:
		return true
	case id >= TableIDEITScheduleOtherStart && id <= TableIDEITScheduleOtherEnd:
		return true
	}
	return false
}
