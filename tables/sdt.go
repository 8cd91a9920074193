package tables

import (
	"fmt"

	"github.com/tonalfitness/libisdb/descriptor"
	"github.com/tonalfitness/libisdb/psi"
)

// SDTService is one service entry within an SDT section.
type SDTService struct {
	ServiceID                uint16
	EITScheduleFlag          bool
	EITPresentFollowingFlag  bool
	RunningStatus            uint8
	FreeCAMode               bool
	Descriptors              *descriptor.Block
}

// SDT is the decoded Service Description Table, for either the actual
// transport stream (table_id 0x42) or another one (0x46).
type SDT struct {
	ID                uint8
	TransportStreamID uint16
	OriginalNetworkID uint16
	VersionNumber     uint8
	Services          []SDTService
}

func (t *SDT) TableID() uint8 { return t.ID }

// IsActual reports whether this SDT describes the transport stream
// carrying it.
func (t *SDT) IsActual() bool { return t.ID == TableIDSDTActual }

// DecodeSDT decodes an SDT from a CRC-verified section.
func DecodeSDT(s *psi.Section) (*SDT, error) {
	if s.Header.TableID != TableIDSDTActual && s.Header.TableID != TableIDSDTOther {
		return nil, fmt.Errorf("tables: unexpected SDT table_id 0x%02X", s.Header.TableID)
	}
	if len(s.Payload) < 2 {
		return nil, fmt.Errorf("tables: SDT payload too short: %d bytes", len(s.Payload))
	}

	t := &SDT{
		ID:                s.Header.TableID,
		TransportStreamID: s.Header.TableIDExtension,
		OriginalNetworkID: uint16(s.Payload[0])<<8 | uint16(s.Payload[1]),
		VersionNumber:     s.Header.VersionNumber,
	}

	pos := 3 // byte 2 is reserved_future_use
	for pos+4 < len(s.Payload) {
		serviceID := uint16(s.Payload[pos])<<8 | uint16(s.Payload[pos+1])
		flagsByte := s.Payload[pos+2]
		lengthByte := s.Payload[pos+3]
		descLength := int(lengthByte&0x0F)<<8 | int(s.Payload[pos+4])
		pos += 5
		if pos+descLength > len(s.Payload) {
			break
		}

		t.Services = append(t.Services, SDTService{
			ServiceID:               serviceID,
			EITScheduleFlag:         flagsByte&0x02 != 0,
			EITPresentFollowingFlag: flagsByte&0x01 != 0,
			RunningStatus:           (lengthByte >> 5) & 0x07,
			FreeCAMode:              lengthByte&0x10 != 0,
			Descriptors:             descriptor.ParseBlock(s.Payload[pos : pos+descLength]),
		})
		pos += descLength
	}

	return t, nil
}
