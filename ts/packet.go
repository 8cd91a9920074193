// Package ts implements TS packet synchronization, header parsing,
// continuity tracking, and PID-based dispatch for MPEG-2 Transport
// Streams carrying ARIB STD-B10 payloads.
package ts

import "fmt"

// PacketSize is the fixed length of an MPEG-2 transport stream packet.
const PacketSize = 188

// SyncByte is the required first byte of every transport packet.
const SyncByte = 0x47

// NullPID is the reserved PID used for stuffing/null packets.
const NullPID = 0x1FFF

// ParseResult classifies the outcome of parsing one packet, mirroring
// the framer's {OK, FormatError, TransportError, ContinuityError} set.
type ParseResult int

const (
	ResultOK ParseResult = iota
	ResultFormatError
	ResultTransportError
	ResultContinuityError
)

func (r ParseResult) String() string {
	switch r {
	case ResultOK:
		return "OK"
	case ResultFormatError:
		return "FormatError"
	case ResultTransportError:
		return "TransportError"
	case ResultContinuityError:
		return "ContinuityError"
	default:
		return "Unknown"
	}
}

// AdaptationField holds the optional adaptation field carried ahead of
// (or instead of) the payload.
type AdaptationField struct {
	Length                    int
	DiscontinuityIndicator    bool
	RandomAccessIndicator     bool
	ElementaryStreamPriority  bool
	PCRFlag                   bool
	OPCRFlag                  bool
	SplicingPointFlag         bool
	TransportPrivateDataFlag  bool
	AdaptationFieldExtension  bool
	PCR                       uint64
	OPCR                      uint64
}

// Packet is a parsed 188-byte transport stream packet.
type Packet struct {
	TransportErrorIndicator    bool
	PayloadUnitStartIndicator  bool
	TransportPriority          bool
	PID                        uint16
	ScramblingControl          uint8
	AdaptationFieldControl     uint8
	ContinuityCounter          uint8
	Adaptation                 *AdaptationField
	Payload                    []byte

	Raw []byte
}

// HasAdaptationField reports whether the adaptation_field_control
// indicates an adaptation field is present.
func (p *Packet) HasAdaptationField() bool {
	return p.AdaptationFieldControl == 0x2 || p.AdaptationFieldControl == 0x3
}

// HasPayload reports whether the adaptation_field_control indicates a
// payload is present.
func (p *Packet) HasPayload() bool {
	return p.AdaptationFieldControl == 0x1 || p.AdaptationFieldControl == 0x3
}

// IsScrambled reports whether the scrambling_control field is non-zero.
func (p *Packet) IsScrambled() bool {
	return p.ScramblingControl != 0
}

// PayloadUnitStart reports whether this packet begins a new PSI
// section or PES packet, and if so returns the pointer field's value
// (how many bytes of stuffing/tail precede the new unit in Payload).
func (p *Packet) PayloadUnitStart() (pointerField int, ok bool) {
	if !p.PayloadUnitStartIndicator || len(p.Payload) == 0 {
		return 0, false
	}
	return int(p.Payload[0]), true
}

// ParsePacket decodes exactly PacketSize bytes into a Packet. raw must
// already be sync-aligned (raw[0] == SyncByte); callers resynchronizing
// a stream should use Framer instead of calling this directly.
func ParsePacket(raw []byte) (*Packet, ParseResult, error) {
	if len(raw) != PacketSize {
		return nil, ResultFormatError, fmt.Errorf("ts: packet must be %d bytes, got %d", PacketSize, len(raw))
	}
	if raw[0] != SyncByte {
		return nil, ResultFormatError, fmt.Errorf("ts: bad sync byte 0x%02X", raw[0])
	}

	p := &Packet{Raw: raw}

	b1, b2 := raw[1], raw[2]
	p.TransportErrorIndicator = b1&0x80 != 0
	p.PayloadUnitStartIndicator = b1&0x40 != 0
	p.TransportPriority = b1&0x20 != 0
	p.PID = (uint16(b1&0x1F) << 8) | uint16(b2)

	b3 := raw[3]
	p.ScramblingControl = (b3 >> 6) & 0x3
	p.AdaptationFieldControl = (b3 >> 4) & 0x3
	p.ContinuityCounter = b3 & 0xF

	result := ResultOK
	if p.TransportErrorIndicator {
		result = ResultTransportError
	}

	pos := 4
	if p.HasAdaptationField() {
		if pos >= PacketSize {
			return p, ResultFormatError, fmt.Errorf("ts: adaptation field control set but no bytes remain")
		}
		af, consumed, err := parseAdaptationField(raw[pos:])
		if err != nil {
			return p, ResultFormatError, err
		}
		p.Adaptation = af
		pos += consumed
	}

	if p.HasPayload() {
		if pos > PacketSize {
			return p, ResultFormatError, fmt.Errorf("ts: adaptation field overruns packet")
		}
		p.Payload = raw[pos:PacketSize]
	}

	return p, result, nil
}

func parseAdaptationField(b []byte) (*AdaptationField, int, error) {
	if len(b) < 1 {
		return nil, 0, fmt.Errorf("ts: truncated adaptation field")
	}
	length := int(b[0])
	if length == 0 {
		return &AdaptationField{Length: 0}, 1, nil
	}
	if length+1 > len(b) {
		return nil, 0, fmt.Errorf("ts: adaptation field length %d exceeds packet", length)
	}

	af := &AdaptationField{Length: length}
	flags := b[1]
	af.DiscontinuityIndicator = flags&0x80 != 0
	af.RandomAccessIndicator = flags&0x40 != 0
	af.ElementaryStreamPriority = flags&0x20 != 0
	af.PCRFlag = flags&0x10 != 0
	af.OPCRFlag = flags&0x08 != 0
	af.SplicingPointFlag = flags&0x04 != 0
	af.TransportPrivateDataFlag = flags&0x02 != 0
	af.AdaptationFieldExtension = flags&0x01 != 0

	pos := 2
	if af.PCRFlag {
		if pos+6 > len(b) {
			return nil, 0, fmt.Errorf("ts: truncated PCR field")
		}
		af.PCR = decodePCR(b[pos : pos+6])
		pos += 6
	}
	if af.OPCRFlag {
		if pos+6 > len(b) {
			return nil, 0, fmt.Errorf("ts: truncated OPCR field")
		}
		af.OPCR = decodePCR(b[pos : pos+6])
		pos += 6
	}

	return af, length + 1, nil
}

// decodePCR reconstructs the 42-bit PCR value (33-bit base * 300 +
// 9-bit extension) from its 6-byte wire encoding.
func decodePCR(b []byte) uint64 {
	base := uint64(b[0])<<25 | uint64(b[1])<<17 | uint64(b[2])<<9 | uint64(b[3])<<1 | uint64(b[4]>>7)
	ext := uint64(b[4]&0x01)<<8 | uint64(b[5])
	return base*300 + ext
}
