package tables

import (
	"fmt"

	"github.com/tonalfitness/libisdb/descriptor"
	"github.com/tonalfitness/libisdb/psi"
)

// NITTransportStream is one transport stream entry within a NIT.
type NITTransportStream struct {
	TransportStreamID uint16
	OriginalNetworkID uint16
	Descriptors       *descriptor.Block
}

// NIT is the decoded Network Information Table, for either the actual
// network (table_id 0x40) or another one (0x41).
type NIT struct {
	ID                 uint8
	NetworkID          uint16
	VersionNumber      uint8
	NetworkDescriptors *descriptor.Block
	TransportStreams   []NITTransportStream
}

func (t *NIT) TableID() uint8 { return t.ID }

// IsActual reports whether this NIT describes the network carrying
// it.
func (t *NIT) IsActual() bool { return t.ID == TableIDNITActual }

// HasPartialReception reports whether any transport stream entry
// carries a PartialReceptionDescriptor, the signal the one-segment PAT
// synthesizer watches for (SPEC_FULL.md §C).
func (t *NIT) HasPartialReception() bool {
	for _, ts := range t.TransportStreams {
		if ts.Descriptors != nil && ts.Descriptors.ByTag(descriptor.TagPartialReception) != nil {
			return true
		}
	}
	return false
}

// DecodeNIT decodes a NIT from a CRC-verified section.
func DecodeNIT(s *psi.Section) (*NIT, error) {
	if s.Header.TableID != TableIDNITActual && s.Header.TableID != TableIDNITOther {
		return nil, fmt.Errorf("tables: unexpected NIT table_id 0x%02X", s.Header.TableID)
	}
	if len(s.Payload) < 2 {
		return nil, fmt.Errorf("tables: NIT payload too short: %d bytes", len(s.Payload))
	}

	t := &NIT{
		ID:            s.Header.TableID,
		NetworkID:     s.Header.TableIDExtension,
		VersionNumber: s.Header.VersionNumber,
	}

	pos := 0
	networkDescLength := int(s.Payload[pos]&0x0F)<<8 | int(s.Payload[pos+1])
	pos += 2
	if pos+networkDescLength > len(s.Payload) {
		return nil, fmt.Errorf("tables: NIT network_descriptors_length overruns payload")
	}
	t.NetworkDescriptors = descriptor.ParseBlock(s.Payload[pos : pos+networkDescLength])
	pos += networkDescLength

	if pos+2 > len(s.Payload) {
		return nil, fmt.Errorf("tables: NIT truncated before transport_stream_loop_length")
	}
	tsLoopLength := int(s.Payload[pos]&0x0F)<<8 | int(s.Payload[pos+1])
	pos += 2
	end := pos + tsLoopLength
	if end > len(s.Payload) {
		end = len(s.Payload)
	}

	for pos+5 < end {
		tsID := uint16(s.Payload[pos])<<8 | uint16(s.Payload[pos+1])
		onID := uint16(s.Payload[pos+2])<<8 | uint16(s.Payload[pos+3])
		descLength := int(s.Payload[pos+4]&0x0F)<<8 | int(s.Payload[pos+5])
		pos += 6
		if pos+descLength > end {
			break
		}
		t.TransportStreams = append(t.TransportStreams, NITTransportStream{
			TransportStreamID: tsID,
			OriginalNetworkID: onID,
			Descriptors:       descriptor.ParseBlock(s.Payload[pos : pos+descLength]),
		})
		pos += descLength
	}

	return t, nil
}
