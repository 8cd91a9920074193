package tables

import (
	"fmt"

	"github.com/tonalfitness/libisdb/descriptor"
	"github.com/tonalfitness/libisdb/psi"
)

// BITBroadcaster is one broadcaster entry within a BIT section.
type BITBroadcaster struct {
	BroadcasterID uint8
	Descriptors   *descriptor.Block
}

// BIT is the decoded Broadcaster Information Table (table_id 0xC4), a
// structural decoder per SPEC_FULL.md §C.
type BIT struct {
	OriginalNetworkID      uint16
	BroadcastViewPropriety bool
	Descriptors            *descriptor.Block
	Broadcasters           []BITBroadcaster
}

func (t *BIT) TableID() uint8 { return TableIDBIT }

// DecodeBIT decodes a BIT from a CRC-verified section.
func DecodeBIT(s *psi.Section) (*BIT, error) {
	if s.Header.TableID != TableIDBIT {
		return nil, fmt.Errorf("tables: expected BIT table_id 0x%02X, got 0x%02X", TableIDBIT, s.Header.TableID)
	}
	if len(s.Payload) < 2 {
		return nil, fmt.Errorf("tables: BIT payload too short: %d bytes", len(s.Payload))
	}

	t := &BIT{
		OriginalNetworkID:      s.Header.TableIDExtension,
		BroadcastViewPropriety: s.Payload[0]&0x10 != 0,
	}

	descLength := int(s.Payload[0]&0x0F)<<8 | int(s.Payload[1])
	pos := 2
	if pos+descLength > len(s.Payload) {
		return nil, fmt.Errorf("tables: BIT first_descriptors_length overruns payload")
	}
	t.Descriptors = descriptor.ParseBlock(s.Payload[pos : pos+descLength])
	pos += descLength

	for pos+2 < len(s.Payload) {
		broadcasterID := s.Payload[pos]
		bDescLength := int(s.Payload[pos+1]&0x0F)<<8 | int(s.Payload[pos+2])
		pos += 3
		if pos+bDescLength > len(s.Payload) {
			break
		}
		t.Broadcasters = append(t.Broadcasters, BITBroadcaster{
			BroadcasterID: broadcasterID,
			Descriptors:   descriptor.ParseBlock(s.Payload[pos : pos+bDescLength]),
		})
		pos += bDescLength
	}

	return t, nil
}
