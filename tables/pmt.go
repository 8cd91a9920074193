package tables

import (
	"fmt"

	"github.com/tonalfitness/libisdb/descriptor"
	"github.com/tonalfitness/libisdb/psi"
)

// PMTStream is one elementary stream entry in a PMT.
type PMTStream struct {
	StreamType  uint8
	PID         uint16
	Descriptors *descriptor.Block
}

// ComponentTag returns the stream's component_tag from its
// StreamIDDescriptor, if present.
func (s *PMTStream) ComponentTag() (uint8, bool) {
	if s.Descriptors == nil {
		return 0, false
	}
	d, ok := s.Descriptors.ByTag(descriptor.TagStreamID).(*descriptor.StreamIDDescriptor)
	if !ok {
		return 0, false
	}
	return d.ComponentTag, true
}

// PMT is the decoded Program Map Table for one service.
type PMT struct {
	ProgramNumber uint16
	VersionNumber uint8
	PCRPID        uint16
	Descriptors   *descriptor.Block
	Streams       []PMTStream
}

func (t *PMT) TableID() uint8 { return TableIDPMT }

// DecodePMT decodes a PMT from a CRC-verified section.
func DecodePMT(s *psi.Section) (*PMT, error) {
	if s.Header.TableID != TableIDPMT {
		return nil, fmt.Errorf("tables: expected PMT table_id 0x%02X, got 0x%02X", TableIDPMT, s.Header.TableID)
	}
	if len(s.Payload) < 4 {
		return nil, fmt.Errorf("tables: PMT payload too short: %d bytes", len(s.Payload))
	}

	t := &PMT{
		ProgramNumber: s.Header.TableIDExtension,
		VersionNumber: s.Header.VersionNumber,
	}

	t.PCRPID = uint16(s.Payload[0]&0x1F)<<8 | uint16(s.Payload[1])
	programInfoLength := int(s.Payload[2]&0x0F)<<8 | int(s.Payload[3])

	pos := 4
	if pos+programInfoLength > len(s.Payload) {
		return nil, fmt.Errorf("tables: PMT program_info_length overruns payload")
	}
	t.Descriptors = descriptor.ParseBlock(s.Payload[pos : pos+programInfoLength])
	pos += programInfoLength

	for pos+4 < len(s.Payload) {
		streamType := s.Payload[pos]
		pid := uint16(s.Payload[pos+1]&0x1F)<<8 | uint16(s.Payload[pos+2])
		esInfoLength := int(s.Payload[pos+3]&0x0F)<<8 | int(s.Payload[pos+4])
		pos += 5
		if pos+esInfoLength > len(s.Payload) {
			break
		}
		t.Streams = append(t.Streams, PMTStream{
			StreamType:  streamType,
			PID:         pid,
			Descriptors: descriptor.ParseBlock(s.Payload[pos : pos+esInfoLength]),
		})
		pos += esInfoLength
	}

	return t, nil
}
