package psi

import (
	"github.com/tonalfitness/libisdb/ts"
)

// Handler receives each section completed by a Reassembler.
type Handler func(s *Section)

// state mirrors PSISectionParser's {WaitingHeader, WaitingPayload}
// split, collapsed here into a single accumulation buffer since Go's
// slice append handles both "waiting for more header bytes" and
// "waiting for more payload bytes" the same way.
type state int

const (
	stateWaitingHeader state = iota
	stateWaitingPayload
)

// Reassembler reconstructs PSI sections from TS packets on a single
// PID, handling the pointer-field convention, partial continuations,
// and multiple sections per packet (terminated by 0xFF stuffing).
type Reassembler struct {
	Handler Handler

	buf            []byte
	state          state
	crcErrorCount  uint64
	sectionCount   uint64
}

// NewReassembler returns a Reassembler that calls handler for each
// completed, CRC-verified section.
func NewReassembler(handler Handler) *Reassembler {
	return &Reassembler{Handler: handler, state: stateWaitingHeader}
}

// CRCErrorCount returns the number of sections dropped for CRC
// mismatch.
func (r *Reassembler) CRCErrorCount() uint64 { return r.crcErrorCount }

// SectionCount returns the number of sections successfully emitted.
func (r *Reassembler) SectionCount() uint64 { return r.sectionCount }

// OnPIDMapped satisfies ts.Consumer; the reassembler holds no
// per-mapping state to initialize.
func (r *Reassembler) OnPIDMapped(pid uint16) {}

// OnPIDUnmapped satisfies ts.Consumer, resetting accumulation so a
// later remap to the same PID starts clean.
func (r *Reassembler) OnPIDUnmapped(pid uint16) {
	r.reset()
}

func (r *Reassembler) reset() {
	r.buf = nil
	r.state = stateWaitingHeader
}

// StorePacket feeds one packet's payload into the reassembler. It
// returns true if at least one section was completed (successfully or
// not) as a result, satisfying ts.Consumer.
func (r *Reassembler) StorePacket(p *ts.Packet) (bool, error) {
	if !p.HasPayload() || len(p.Payload) == 0 {
		return false, nil
	}

	payload := p.Payload
	updated := false

	if p.PayloadUnitStartIndicator {
		pointer := int(payload[0])
		if pointer+1 > len(payload) {
			r.reset()
			return false, nil
		}

		// Bytes up to the pointer field continue the section in
		// progress, if any.
		if pointer > 0 && r.state == stateWaitingPayload {
			r.buf = append(r.buf, payload[1:1+pointer]...)
			if r.drain() {
				updated = true
			}
		}
		r.reset()

		payload = payload[1+pointer:]
	}

	if len(payload) == 0 {
		return updated, nil
	}

	r.buf = append(r.buf, payload...)
	r.state = stateWaitingPayload
	if r.drain() {
		updated = true
	}

	return updated, nil
}

// drain extracts as many complete sections as currently buffered,
// stopping at stuffing (0xFF) or an incomplete trailing section.
func (r *Reassembler) drain() bool {
	completed := false

	for len(r.buf) > 0 {
		if r.buf[0] == 0xFF {
			r.reset()
			break
		}
		if len(r.buf) < ShortHeaderLength {
			break
		}

		h, err := ParseHeader(r.buf)
		if err != nil {
			// Malformed header: cannot determine length, drop the
			// byte and keep scanning for plausible resync, same
			// spirit as the framer's forward search.
			r.buf = r.buf[1:]
			continue
		}

		total := ShortHeaderLength + int(h.SectionLength)
		if len(r.buf) < total {
			break // wait for continuation
		}

		section, err := ParseSection(r.buf[:total])
		r.buf = r.buf[total:]
		completed = true

		if err != nil {
			r.crcErrorCount++
			continue
		}

		r.sectionCount++
		if r.Handler != nil {
			r.Handler(section)
		}
	}

	return completed
}
