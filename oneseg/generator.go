// Package oneseg synthesizes a Program Association Table for
// one-segment (ワンセグ) broadcasts that carry no PAT of their own,
// grounded on original_source/LibISDB/TS/OneSegPATGenerator.{hpp,cpp}.
package oneseg

import (
	"sync"

	"github.com/tonalfitness/libisdb/crc"
	"github.com/tonalfitness/libisdb/psi"
	"github.com/tonalfitness/libisdb/tables"
	"github.com/tonalfitness/libisdb/ts"
)

const (
	// PMTPIDFirst is the first of the eight PIDs ARIB one-segment
	// broadcasts reserve for per-service PMTs in lieu of the PAT's
	// usual indirection.
	PMTPIDFirst uint16 = 0x1FC8
	// PMTPIDLast is the last one-segment PMT PID.
	PMTPIDLast uint16 = 0x1FCF
	// PMTPIDCount is the number of one-segment PMT PIDs.
	PMTPIDCount = int(PMTPIDLast-PMTPIDFirst) + 1

	// patGenPMTCount is how many times a 1seg PMT PID must be seen
	// with no PAT arriving before the generator concludes the stream
	// carries no PAT and starts synthesizing one.
	patGenPMTCount = 5

	transportStreamIDInvalid = 0xFFFF

	nitPID uint16 = 0x0010
	patPID uint16 = 0x0000
)

func is1SegPMTPID(pid uint16) bool {
	return pid >= PMTPIDFirst && pid <= PMTPIDLast
}

// Generator watches a one-segment transport stream and, once it's
// confident no real PAT is present, synthesizes one listing the
// services it has observed via their PMT PIDs directly.
type Generator struct {
	mu sync.Mutex

	transportStreamID uint16
	hasPAT            bool
	generatePAT       bool
	continuityCounter uint8
	pmtCount          [PMTPIDCount]uint8

	// version is the synthesized PAT's version_number, bumped whenever
	// the target PMT PID set or any observed PMT's own VersionNumber
	// changes, so downstream consumers see a version change whenever
	// the PAT's content would actually differ.
	version         uint8
	pmtVersions     [PMTPIDCount]uint8
	pmtVersionKnown [PMTPIDCount]bool

	pidMap   *ts.PIDMap
	nit      *psi.Reassembler
	pmts     [PMTPIDCount]*psi.Reassembler
	services [PMTPIDCount]uint16 // program_number (service_id) observed per PMT PID, 0 if none yet
}

// NewGenerator creates a Generator with no PIDs mapped yet.
func NewGenerator() *Generator {
	g := &Generator{}
	g.Reset()
	return g
}

// Reset clears all observed state, as the original's Reset does:
// every PID map, PMT count, and transport_stream_id learned from the
// NIT is forgotten.
func (g *Generator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.transportStreamID = transportStreamIDInvalid
	g.hasPAT = false
	g.generatePAT = false
	g.continuityCounter = 0
	g.pmtCount = [PMTPIDCount]uint8{}
	g.services = [PMTPIDCount]uint16{}
	g.version = 0
	g.pmtVersions = [PMTPIDCount]uint8{}
	g.pmtVersionKnown = [PMTPIDCount]bool{}

	g.pidMap = ts.NewPIDMap()
	g.nit = psi.NewReassembler(g.onNITSection)
	g.pidMap.Map(nitPID, g.nit)

	g.pmts = [PMTPIDCount]*psi.Reassembler{}
	for i := range g.pmts {
		idx := i
		g.pmts[idx] = psi.NewReassembler(func(s *psi.Section) { g.onPMTSection(idx, s) })
		g.pidMap.Map(PMTPIDFirst+uint16(idx), g.pmts[idx])
	}
}

// SetTransportStreamID supplies the transport_stream_id up front, so
// the generator need not wait for a NIT carrying a
// PartialReceptionDescriptor. It only takes effect if no id has been
// learned yet, matching the original's guard.
func (g *Generator) SetTransportStreamID(id uint16) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.transportStreamID != transportStreamIDInvalid {
		return false
	}
	g.transportStreamID = id
	return true
}

// StorePacket feeds one packet to the generator. It returns true when
// the caller should request a synthesized PAT packet via
// GeneratePATPacket (i.e. the stream has been confirmed to lack a real
// PAT, and this generator has learned enough to build one).
func (g *Generator) StorePacket(p *ts.Packet) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	pid := p.PID
	if pid == patPID {
		g.hasPAT = true
		g.pmtCount = [PMTPIDCount]uint8{}
		return false
	}
	if pid != nitPID && !is1SegPMTPID(pid) {
		return false
	}

	if _, err := g.pidMap.Store(p); err != nil {
		return false
	}

	if pid == nitPID || g.hasPAT {
		return false
	}

	idx := int(pid - PMTPIDFirst)
	if !g.generatePAT {
		if g.pmtCount[idx] < patGenPMTCount {
			g.pmtCount[idx]++
			if g.pmtCount[idx] == patGenPMTCount {
				g.generatePAT = true
			}
		}
	}
	return g.generatePAT && g.transportStreamID != transportStreamIDInvalid
}

// onNITSection is the Reassembler handler wired to the NIT PID. It
// tracks the partial-reception transport_stream_id, resetting hasPAT
// whenever that id changes (a channel retune) so the generator
// re-evaluates whether the new stream needs a synthesized PAT.
func (g *Generator) onNITSection(s *psi.Section) {
	nit, err := tables.DecodeNIT(s)
	if err != nil || !nit.IsActual() || len(nit.TransportStreams) == 0 {
		return
	}

	newID := uint16(transportStreamIDInvalid)
	if nit.HasPartialReception() {
		newID = nit.TransportStreams[0].TransportStreamID
	}

	if g.transportStreamID != newID {
		g.transportStreamID = newID
		g.hasPAT = false
	}
}

// onPMTSection records the service_id carried by the PMT at PID slot
// idx, so GeneratePATPacket can list it, and bumps the synthesized
// PAT's version whenever that service_id or the PMT's own version
// changes.
func (g *Generator) onPMTSection(idx int, s *psi.Section) {
	pmt, err := tables.DecodePMT(s)
	if err != nil {
		return
	}

	if g.services[idx] != pmt.ProgramNumber {
		g.services[idx] = pmt.ProgramNumber
		g.bumpVersion()
	}

	if !g.pmtVersionKnown[idx] {
		g.pmtVersionKnown[idx] = true
		g.pmtVersions[idx] = pmt.VersionNumber
	} else if g.pmtVersions[idx] != pmt.VersionNumber {
		g.pmtVersions[idx] = pmt.VersionNumber
		g.bumpVersion()
	}
}

// bumpVersion advances the synthesized PAT's version_number, wrapping
// at 5 bits per the field's width.
func (g *Generator) bumpVersion() {
	g.version = (g.version + 1) & 0x1F
}

// GeneratePATPacket builds one TS packet carrying a synthesized PAT
// over every one-segment service observed so far, with the NIT PID as
// the network_PID entry. It returns false if no transport_stream_id is
// known yet, or the first PMT slot has yielded no service.
func (g *Generator) GeneratePATPacket() (*ts.Packet, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.transportStreamID == transportStreamIDInvalid {
		return nil, false
	}
	if g.services[0] == 0 {
		return nil, false
	}

	var serviceIDs []uint16
	var pids []uint16
	for i, svc := range g.services {
		if svc != 0 {
			serviceIDs = append(serviceIDs, svc)
			pids = append(pids, PMTPIDFirst+uint16(i))
		}
	}

	sectionLength := 5 + (len(serviceIDs)+1)*4 + 4

	raw := make([]byte, ts.PacketSize)
	raw[0] = ts.SyncByte
	raw[1] = 0x60 // payload_unit_start_indicator | PID high(0)
	raw[2] = 0x00
	raw[3] = 0x10 | (g.continuityCounter & 0x0F)
	raw[4] = 0x00 // pointer_field

	raw[5] = 0x00 // table_id = PAT
	raw[6] = 0xF0 | byte(sectionLength>>8)
	raw[7] = byte(sectionLength)
	raw[8] = byte(g.transportStreamID >> 8)
	raw[9] = byte(g.transportStreamID)
	raw[10] = 0xC1 | (g.version&0x1F)<<1 // reserved | version_number | current_next_indicator
	raw[11] = 0x00 // section_number
	raw[12] = 0x00 // last_section_number

	raw[13] = 0x00
	raw[14] = 0x00
	raw[15] = 0xE0 | byte(nitPID>>8) // network_PID high
	raw[16] = byte(nitPID)

	pos := 17
	for i, svc := range serviceIDs {
		raw[pos] = byte(svc >> 8)
		raw[pos+1] = byte(svc)
		raw[pos+2] = 0xE0 | byte(pids[i]>>8)
		raw[pos+3] = byte(pids[i])
		pos += 4
	}

	checksum := crc.Checksum(raw[5:pos])
	raw[pos] = byte(checksum >> 24)
	raw[pos+1] = byte(checksum >> 16)
	raw[pos+2] = byte(checksum >> 8)
	raw[pos+3] = byte(checksum)
	pos += 4

	for ; pos < len(raw); pos++ {
		raw[pos] = 0xFF
	}

	g.continuityCounter++

	pkt, result, err := ts.ParsePacket(raw)
	if err != nil || result != ts.ResultOK {
		return nil, false
	}
	return pkt, true
}
