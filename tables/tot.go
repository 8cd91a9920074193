package tables

import (
	"fmt"
	"time"

	"github.com/tonalfitness/libisdb/arib"
	"github.com/tonalfitness/libisdb/descriptor"
	"github.com/tonalfitness/libisdb/psi"
)

// TOT is the decoded Time Offset Table: the JST wall-clock anchor used
// by the EPG database to interpolate event times between TOT arrivals
// (SPEC_FULL.md §C).
type TOT struct {
	JSTTime     time.Time
	Descriptors *descriptor.Block
}

func (t *TOT) TableID() uint8 { return TableIDTOT }

// DecodeTOT decodes a TOT. TOT is a short-form section
// (section_syntax_indicator 0), so psi.ParseSection performs no CRC
// check on it; the Analyzer and Engine still reach this through
// psi.Reassembler like the other tables.
func DecodeTOT(s *psi.Section) (*TOT, error) {
	if s.Header.TableID != TableIDTOT {
		return nil, fmt.Errorf("tables: expected TOT table_id 0x%02X, got 0x%02X", TableIDTOT, s.Header.TableID)
	}
	if len(s.Payload) < 5 {
		return nil, fmt.Errorf("tables: TOT payload too short: %d bytes", len(s.Payload))
	}

	jstTime, err := arib.ParseMJDTime(s.Payload[0:5])
	if err != nil {
		return nil, fmt.Errorf("tables: TOT time: %w", err)
	}

	var descs *descriptor.Block
	if len(s.Payload) >= 7 {
		descLength := int(s.Payload[5]&0x0F)<<8 | int(s.Payload[6])
		pos := 7
		if pos+descLength <= len(s.Payload) {
			descs = descriptor.ParseBlock(s.Payload[pos : pos+descLength])
		}
	}

	return &TOT{JSTTime: jstTime, Descriptors: descs}, nil
}
