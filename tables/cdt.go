package tables

import (
	"fmt"

	"github.com/tonalfitness/libisdb/descriptor"
	"github.com/tonalfitness/libisdb/psi"
)

// CDT is the decoded Common Data Table (table_id 0xC8), carrying
// downloadable data modules such as logos. This is a structural
// decoder per SPEC_FULL.md §C: it exposes the data_module bytes
// uninterpreted rather than decoding any particular data_type's
// internal format.
type CDT struct {
	OriginalNetworkID uint16
	DataType          uint8
	Descriptors       *descriptor.Block
	DataModule        []byte
}

func (t *CDT) TableID() uint8 { return TableIDCDT }

// DecodeCDT decodes a CDT from a CRC-verified section.
func DecodeCDT(s *psi.Section) (*CDT, error) {
	if s.Header.TableID != TableIDCDT {
		return nil, fmt.Errorf("tables: expected CDT table_id 0x%02X, got 0x%02X", TableIDCDT, s.Header.TableID)
	}
	if len(s.Payload) < 3 {
		return nil, fmt.Errorf("tables: CDT payload too short: %d bytes", len(s.Payload))
	}

	t := &CDT{
		OriginalNetworkID: s.Header.TableIDExtension,
		DataType:          s.Payload[0],
	}

	descLength := int(s.Payload[1]&0x0F)<<8 | int(s.Payload[2])
	pos := 3
	if pos+descLength > len(s.Payload) {
		return nil, fmt.Errorf("tables: CDT descriptors_loop_length overruns payload")
	}
	t.Descriptors = descriptor.ParseBlock(s.Payload[pos : pos+descLength])
	pos += descLength

	t.DataModule = append([]byte(nil), s.Payload[pos:]...)

	return t, nil
}
