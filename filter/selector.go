package filter

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/tonalfitness/libisdb/crc"
	"github.com/tonalfitness/libisdb/psi"
	"github.com/tonalfitness/libisdb/tables"
	"github.com/tonalfitness/libisdb/ts"
)

// ServiceIDInvalid marks "no service selected": a Selector with this
// target passes every service through, filtering only by stream type
// if one is set.
const ServiceIDInvalid uint16 = 0xFFFF

// StreamFlag is a bitmask of elementary stream kinds a Selector keeps,
// mirroring StreamSelector::StreamFlag.
type StreamFlag uint32

const (
	StreamNone         StreamFlag = 0
	StreamMPEG2Video   StreamFlag = 1 << 0
	StreamAVC          StreamFlag = 1 << 1
	StreamHEVC         StreamFlag = 1 << 2
	StreamAACADTS      StreamFlag = 1 << 3
	StreamAACLATM      StreamFlag = 1 << 4
	StreamAC3          StreamFlag = 1 << 5
	StreamCaption      StreamFlag = 1 << 6
	StreamDataCarousel StreamFlag = 1 << 7

	StreamVideo StreamFlag = StreamMPEG2Video | StreamAVC | StreamHEVC
	StreamAudio StreamFlag = StreamAACADTS | StreamAACLATM | StreamAC3

	StreamAll StreamFlag = 0xFFFFFFFF
)

func streamFlagForES(st *tables.PMTStream) StreamFlag {
	switch classifyES(st) {
	case esKindVideo:
		switch st.StreamType {
		case streamTypeMPEG2Video:
			return StreamMPEG2Video
		case streamTypeAVCVideo:
			return StreamAVC
		case streamTypeHEVCVideo:
			return StreamHEVC
		}
	case esKindAudio:
		switch st.StreamType {
		case streamTypeAACADTS:
			return StreamAACADTS
		case streamTypeAACLATM:
			return StreamAACLATM
		case streamTypeAC3:
			return StreamAC3
		}
	case esKindCaption:
		return StreamCaption
	case esKindData:
		return StreamDataCarousel
	}
	return StreamNone
}

type selES struct {
	pid        uint16
	streamType uint8
	flag       StreamFlag
}

type selServiceInfo struct {
	serviceID uint16
	pmtPID    uint16
	pcrPID    uint16
	ecmPIDs   []uint16
	es        []selES
}

// Selector rewrites the packet stream to retain only a chosen
// service's (and/or stream type's) PIDs, grounded on
// original_source/LibISDB/TS/StreamSelector.{hpp,cpp} and
// original_source/LibISDB/Filters/ServiceSelectorFilter.hpp.
type Selector struct {
	log     zerolog.Logger
	metrics *metrics

	mu sync.Mutex

	pidMap          *ts.PIDMap
	patReassembler  *psi.Reassembler
	catReassembler  *psi.Reassembler
	pmtReassemblers map[uint16]*psi.Reassembler

	services map[uint16]*selServiceInfo
	emmPIDs  []uint16

	targetServiceID uint16
	targetStream    StreamFlag
	generatePAT     bool

	targetPIDs   map[uint16]bool
	targetPMTPID uint16

	curTSID              uint16
	curPATVersion         uint8
	lastUpstreamPATVersion uint8
	lastEffectivePMTPID   uint16
	outVersion            uint8
	outCC                 uint8
}

// SelectorOption configures a Selector at construction.
type SelectorOption func(*Selector)

// WithSelectorLogger attaches a structured logger.
func WithSelectorLogger(log zerolog.Logger) SelectorOption {
	return func(s *Selector) { s.log = log }
}

// WithSelectorMetricsRegisterer exports the Selector's counters to reg.
func WithSelectorMetricsRegisterer(reg prometheus.Registerer) SelectorOption {
	return func(s *Selector) { s.metrics = newMetrics(reg, "libisdb", "selector") }
}

// NewSelector returns a Selector with no target service selected
// (every service the PAT lists passes; other PIDs at or above 0x0030
// are dropped) and PAT rewriting disabled.
func NewSelector(opts ...SelectorOption) *Selector {
	s := &Selector{log: zerolog.Nop(), targetServiceID: ServiceIDInvalid, targetStream: StreamAll}
	for _, opt := range opts {
		opt(s)
	}
	s.Reset()
	return s
}

// Reset clears all tracked PAT/PMT/CAT state without touching the
// configured target service/stream/generatePAT settings.
func (s *Selector) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pidMap = ts.NewPIDMap()
	s.services = make(map[uint16]*selServiceInfo)
	s.pmtReassemblers = make(map[uint16]*psi.Reassembler)
	s.emmPIDs = nil
	s.targetPIDs = make(map[uint16]bool)
	s.targetPMTPID = 0
	s.curTSID = 0
	s.curPATVersion = 0
	s.lastUpstreamPATVersion = 0
	s.lastEffectivePMTPID = 0

	s.patReassembler = psi.NewReassembler(s.onPATSection)
	s.catReassembler = psi.NewReassembler(s.onCATSection)
	s.pidMap.Map(PIDPAT, s.patReassembler)
	s.pidMap.Map(PIDCAT, s.catReassembler)
}

// SetTarget selects which service (or ServiceIDInvalid for "every
// service") and which stream kinds (StreamAll for "every kind") to
// retain. The target PID table is recomputed immediately.
func (s *Selector) SetTarget(serviceID uint16, stream StreamFlag) {
	s.mu.Lock()
	s.targetServiceID = serviceID
	s.targetStream = stream
	s.recomputeTargetPIDsLocked()
	s.mu.Unlock()
}

// SetGeneratePAT controls whether Process rewrites the PAT to a
// single-service PAT when a target service is selected.
func (s *Selector) SetGeneratePAT(generate bool) {
	s.mu.Lock()
	s.generatePAT = generate
	s.mu.Unlock()
}

// TargetServiceID returns the currently selected service, or
// ServiceIDInvalid if none.
func (s *Selector) TargetServiceID() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targetServiceID
}

func (s *Selector) onPATSection(section *psi.Section) {
	pat, err := tables.DecodePAT(section)
	if err != nil {
		s.log.Debug().Err(err).Msg("discarding malformed PAT section")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.curTSID = pat.TransportStreamID
	s.curPATVersion = pat.VersionNumber

	seen := make(map[uint16]bool, len(pat.Programs))
	for _, prog := range pat.Programs {
		if prog.ProgramNumber == 0 {
			continue
		}
		seen[prog.ProgramNumber] = true
		svc, ok := s.services[prog.ProgramNumber]
		if !ok {
			svc = &selServiceInfo{serviceID: prog.ProgramNumber}
			s.services[prog.ProgramNumber] = svc
		}
		if svc.pmtPID != prog.PID {
			if svc.pmtPID != 0 {
				s.unmapPMTLocked(svc.pmtPID)
			}
			svc.pmtPID = prog.PID
			s.mapPMTLocked(prog.PID, prog.ProgramNumber)
		}
	}
	for sid, svc := range s.services {
		if !seen[sid] {
			s.unmapPMTLocked(svc.pmtPID)
			delete(s.services, sid)
		}
	}

	s.recomputeTargetPIDsLocked()
}

func (s *Selector) mapPMTLocked(pid, serviceID uint16) {
	sid := serviceID
	r := psi.NewReassembler(func(sec *psi.Section) { s.onPMTSection(sid, sec) })
	s.pmtReassemblers[pid] = r
	s.pidMap.Map(pid, r)
}

func (s *Selector) unmapPMTLocked(pid uint16) {
	s.pidMap.Unmap(pid)
	delete(s.pmtReassemblers, pid)
}

func (s *Selector) onPMTSection(serviceID uint16, section *psi.Section) {
	pmt, err := tables.DecodePMT(section)
	if err != nil {
		s.log.Debug().Err(err).Uint16("service_id", serviceID).Msg("discarding malformed PMT section")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	svc, ok := s.services[serviceID]
	if !ok {
		return
	}
	svc.pcrPID = pmt.PCRPID
	svc.ecmPIDs = nil
	for _, e := range ecmFromDescriptors(pmt.Descriptors) {
		svc.ecmPIDs = append(svc.ecmPIDs, e.PID)
	}
	svc.es = svc.es[:0]
	for i := range pmt.Streams {
		st := &pmt.Streams[i]
		for _, e := range ecmFromDescriptors(st.Descriptors) {
			svc.ecmPIDs = append(svc.ecmPIDs, e.PID)
		}
		svc.es = append(svc.es, selES{pid: st.PID, streamType: st.StreamType, flag: streamFlagForES(st)})
	}

	s.recomputeTargetPIDsLocked()
}

func (s *Selector) onCATSection(section *psi.Section) {
	cat, err := tables.DecodeCAT(section)
	if err != nil {
		s.log.Debug().Err(err).Msg("discarding malformed CAT section")
		return
	}

	emm := ecmFromDescriptors(cat.Descriptors)
	pids := make([]uint16, 0, len(emm))
	for _, e := range emm {
		pids = append(pids, e.PID)
	}

	s.mu.Lock()
	s.emmPIDs = pids
	s.recomputeTargetPIDsLocked()
	s.mu.Unlock()
}

// recomputeTargetPIDsLocked rebuilds the retained-PID set and bumps
// outVersion if the effective PMT PID or the upstream PAT's version
// changed, per spec.md §4.8. Callers must hold s.mu.
func (s *Selector) recomputeTargetPIDsLocked() {
	set := make(map[uint16]bool)
	addService := func(svc *selServiceInfo) {
		set[svc.pmtPID] = true
		if svc.pcrPID != 0 {
			set[svc.pcrPID] = true
		}
		for _, pid := range svc.ecmPIDs {
			set[pid] = true
		}
		for _, es := range svc.es {
			if s.targetStream == StreamAll || es.flag&s.targetStream != 0 {
				set[es.pid] = true
			}
		}
	}

	s.targetPMTPID = 0
	if s.targetServiceID != ServiceIDInvalid {
		if svc, ok := s.services[s.targetServiceID]; ok {
			addService(svc)
			s.targetPMTPID = svc.pmtPID
		}
	} else {
		for _, svc := range s.services {
			addService(svc)
		}
	}
	for _, pid := range s.emmPIDs {
		set[pid] = true
	}
	s.targetPIDs = set

	if s.curPATVersion != s.lastUpstreamPATVersion || s.targetPMTPID != s.lastEffectivePMTPID {
		s.outVersion = (s.outVersion + 1) & 0x1F
		s.lastUpstreamPATVersion = s.curPATVersion
		s.lastEffectivePMTPID = s.targetPMTPID
	}
}

// Process filters or rewrites one packet. The returned bool is false
// when the packet should be dropped (keep is false, the returned
// packet is nil).
func (s *Selector) Process(p *ts.Packet) (*ts.Packet, bool) {
	s.metrics.incPacket()

	s.pidMap.Store(p)

	if p.PID == PIDPAT {
		s.mu.Lock()
		generate := s.generatePAT && s.targetServiceID != ServiceIDInvalid && s.targetPMTPID != 0
		tsid := s.curTSID
		version := s.outVersion
		s.mu.Unlock()
		if !generate {
			return p, true
		}
		rewritten, ok := s.buildPATPacket(tsid, version)
		if !ok {
			return p, true
		}
		return rewritten, true
	}

	if p.PID < 0x0030 {
		return p, true
	}

	s.mu.Lock()
	keep := s.targetPIDs[p.PID]
	s.mu.Unlock()
	if !keep {
		s.metrics.incDroppedPacket()
		return nil, false
	}
	return p, true
}

// buildPATPacket synthesizes a single-service PAT: the NIT entry plus
// the target service's PMT entry, CRC'd and wrapped in one TS packet.
func (s *Selector) buildPATPacket(tsid uint16, version uint8) (*ts.Packet, bool) {
	s.mu.Lock()
	pmtPID := s.targetPMTPID
	serviceID := s.targetServiceID
	s.mu.Unlock()
	if pmtPID == 0 {
		return nil, false
	}

	sectionLength := 5 + 2*4 + 4 // header tail + network_PID entry + one service entry + CRC

	s.mu.Lock()
	s.outCC = (s.outCC + 1) & 0x0F
	cc := s.outCC
	s.mu.Unlock()

	raw := make([]byte, ts.PacketSize)
	raw[0] = ts.SyncByte
	raw[1] = 0x60 // payload_unit_start_indicator | PID high(0)
	raw[2] = 0x00
	raw[3] = 0x10 | cc
	raw[4] = 0x00 // pointer_field

	raw[5] = 0x00 // table_id = PAT
	raw[6] = 0xF0 | byte(sectionLength>>8)
	raw[7] = byte(sectionLength)
	raw[8] = byte(tsid >> 8)
	raw[9] = byte(tsid)
	raw[10] = 0xC1 | (version&0x1F)<<1 // reserved | version_number | current_next_indicator
	raw[11] = 0x00                     // section_number
	raw[12] = 0x00                     // last_section_number

	raw[13] = 0x00
	raw[14] = 0x00
	raw[15] = 0xE0 | byte(PIDNIT>>8) // network_PID high
	raw[16] = byte(PIDNIT)

	raw[17] = byte(serviceID >> 8)
	raw[18] = byte(serviceID)
	raw[19] = 0xE0 | byte(pmtPID>>8)
	raw[20] = byte(pmtPID)

	checksum := crc.Checksum(raw[5:21])
	raw[21] = byte(checksum >> 24)
	raw[22] = byte(checksum >> 16)
	raw[23] = byte(checksum >> 8)
	raw[24] = byte(checksum)
	for i := 25; i < len(raw); i++ {
		raw[i] = 0xFF
	}

	pkt, result, err := ts.ParsePacket(raw)
	if err != nil || result != ts.ResultOK {
		return nil, false
	}
	return pkt, true
}
