package filter

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/tonalfitness/libisdb/descriptor"
	"github.com/tonalfitness/libisdb/psi"
	"github.com/tonalfitness/libisdb/tables"
	"github.com/tonalfitness/libisdb/ts"
)

// Well-known system PIDs the Analyzer watches unconditionally, per
// ARIB STD-B10/ISO 13818-1.
const (
	PIDPAT uint16 = 0x0000
	PIDCAT uint16 = 0x0001
	PIDNIT uint16 = 0x0010
	PIDSDT uint16 = 0x0011
	PIDEIT uint16 = 0x0012
	PIDTOT uint16 = 0x0014
)

// Stream types the Analyzer classifies a PMT's elementary streams by,
// grounded on the stream_type dispatch in
// original_source/LibISDB/Filters/AnalyzerFilter.cpp's GetESType.
const (
	streamTypeMPEG2Video   uint8 = 0x02
	streamTypeAVCVideo     uint8 = 0x1B
	streamTypeHEVCVideo    uint8 = 0x24
	streamTypeAACADTS      uint8 = 0x0F
	streamTypeAACLATM      uint8 = 0x11
	streamTypeAC3          uint8 = 0x81
	streamTypeCaptionOrData uint8 = 0x06
	streamTypeDataCarousel uint8 = 0x0D

	dataComponentIDCaption uint16 = 0x0008
)

type esKind int

const (
	esKindOther esKind = iota
	esKindVideo
	esKindAudio
	esKindCaption
	esKindData
)

func classifyES(st *tables.PMTStream) esKind {
	switch st.StreamType {
	case streamTypeMPEG2Video, streamTypeAVCVideo, streamTypeHEVCVideo:
		return esKindVideo
	case streamTypeAACADTS, streamTypeAACLATM, streamTypeAC3:
		return esKindAudio
	case streamTypeCaptionOrData:
		if st.Descriptors != nil {
			if d, ok := st.Descriptors.ByTag(descriptor.TagDataComponent).(*descriptor.DataComponentDescriptor); ok && d.DataComponentID == dataComponentIDCaption {
				return esKindCaption
			}
		}
		return esKindData
	case streamTypeDataCarousel:
		return esKindData
	default:
		return esKindOther
	}
}

// ESInfo is one elementary stream entry in a service's ES list.
type ESInfo struct {
	PID             uint16
	StreamType      uint8
	ComponentTag    uint8
	HasComponentTag bool
}

// insertSortedByComponentTag inserts es into *list, keeping the list
// ordered by ComponentTag via a stable insertion sort: equal-tag
// entries never swap, so their relative PMT-loop order is preserved,
// per spec.md §4.7's "sort ... via insertion sort (stable)".
func insertSortedByComponentTag(list *[]ESInfo, es ESInfo) {
	*list = append(*list, es)
	s := *list
	for i := len(s) - 1; i > 0 && s[i-1].ComponentTag > s[i].ComponentTag; i-- {
		s[i-1], s[i] = s[i], s[i-1]
	}
}

// ECMInfo identifies one conditional-access system's ECM PID, found on
// either a PMT's program-level or ES-level CA descriptors.
type ECMInfo struct {
	CASystemID uint16
	PID        uint16
}

func ecmFromDescriptors(b *descriptor.Block) []ECMInfo {
	if b == nil {
		return nil
	}
	var out []ECMInfo
	for _, d := range b.AllByTag(descriptor.TagCA) {
		if ca, ok := d.(*descriptor.CADescriptor); ok {
			out = append(out, ECMInfo{CASystemID: ca.CASystemID, PID: ca.CAPID})
		}
	}
	return out
}

// ServiceState is the Analyzer's aggregated view of one service,
// rebuilt from PAT/PMT/SDT/EIT, mirroring AnalyzerFilter::ServiceInfo.
type ServiceState struct {
	ServiceID     uint16
	PMTPID        uint16
	PMTAcquired   bool
	VersionNumber uint8

	PCRPID  uint16
	ECMList []ECMInfo

	VideoES   []ESInfo
	AudioES   []ESInfo
	CaptionES []ESInfo
	DataES    []ESInfo
	OtherES   []ESInfo

	RunningStatus uint8
	FreeCAMode    bool

	ProviderName string
	ServiceName  string
	ServiceType  uint8

	EITUpdated bool
}

func (s *ServiceState) clone() ServiceState {
	cp := *s
	cp.ECMList = append([]ECMInfo(nil), s.ECMList...)
	cp.VideoES = append([]ESInfo(nil), s.VideoES...)
	cp.AudioES = append([]ESInfo(nil), s.AudioES...)
	cp.CaptionES = append([]ESInfo(nil), s.CaptionES...)
	cp.DataES = append([]ESInfo(nil), s.DataES...)
	cp.OtherES = append([]ESInfo(nil), s.OtherES...)
	return cp
}

// sdtInfo is the SDT-derived naming the Analyzer holds for a service,
// applied to ServiceState when a PAT creates the service (if an SDT has
// already arrived) or when the SDT arrives (if the service already
// exists).
type sdtInfo struct {
	providerName  string
	serviceName   string
	serviceType   uint8
	runningStatus uint8
	freeCAMode    bool
}

// TSInfo is one transport stream's NIT-derived metadata, keyed by
// TransportStreamID.
type TSInfo struct {
	TransportStreamID  uint16
	OriginalNetworkID  uint16
	TSName             string
	RemoteControlKeyID uint8
	Services           []descriptor.ServiceListEntry
}

// NetworkInfo is the Analyzer's NIT-derived view of the network.
type NetworkInfo struct {
	NetworkID              uint16
	NetworkName            string
	BroadcastingFlag       uint8
	BroadcastingIdentifier uint8
}

// TOTInfo anchors wall-clock time to the transport stream's own clock,
// per AnalyzerFilter's "remember current time and then-current PCR".
type TOTInfo struct {
	Time   time.Time
	PCRPID uint16
	PCR    uint64
	HasPCR bool
}

// Listener receives Analyzer update notifications, mirroring
// AnalyzerFilter::EventListener. Every callback fires with the
// Analyzer's lock released.
type Listener interface {
	OnPATUpdated(a *Analyzer)
	OnPMTUpdated(a *Analyzer, serviceID uint16)
	OnSDTUpdated(a *Analyzer)
	OnNITUpdated(a *Analyzer)
	OnEITUpdated(a *Analyzer)
	OnCATUpdated(a *Analyzer)
	OnTOTUpdated(a *Analyzer)
}

// Option configures an Analyzer at construction.
type Option func(*Analyzer)

// WithLogger attaches a structured logger; the default is
// zerolog.Nop(), so an Analyzer is silent unless a caller opts in.
func WithLogger(log zerolog.Logger) Option {
	return func(a *Analyzer) { a.log = log }
}

// WithMetricsRegisterer exports the Analyzer's counters to reg. A nil
// reg (the default) disables export entirely.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(a *Analyzer) { a.metrics = newMetrics(reg, "libisdb", "analyzer") }
}

// Analyzer aggregates decoded PAT/PMT/SDT/NIT/CAT/TOT/EIT tables into
// a queryable service model, grounded on
// original_source/LibISDB/Filters/AnalyzerFilter.{hpp,cpp}.
type Analyzer struct {
	log     zerolog.Logger
	metrics *metrics

	mu sync.RWMutex

	pidMap          *ts.PIDMap
	patReassembler  *psi.Reassembler
	catReassembler  *psi.Reassembler
	sdtReassembler  *psi.Reassembler
	nitReassembler  *psi.Reassembler
	eitReassembler  *psi.Reassembler
	totReassembler  *psi.Reassembler
	pmtReassemblers map[uint16]*psi.Reassembler // PMT PID -> reassembler

	services map[uint16]*ServiceState // ServiceID -> state
	sdtCache map[uint16]sdtInfo       // ServiceID -> SDT naming, retained across PMT rebuilds

	network        NetworkInfo
	tsInfo         map[uint16]TSInfo // TransportStreamID -> NIT entry
	crossTSServices map[uint64][]tables.SDTService

	emmPIDs []uint16

	tot TOTInfo

	pcrByPID map[uint16]uint64

	patSeen     bool
	patVersion  uint8
	pendingEIT  bool

	listeners []Listener
}

// NewAnalyzer returns an empty, ready-to-use Analyzer.
func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(a)
	}
	a.Reset()
	return a
}

// AddListener registers l for future update notifications.
func (a *Analyzer) AddListener(l Listener) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, l)
}

func (a *Analyzer) notify(fn func(l Listener)) {
	a.mu.RLock()
	ls := append([]Listener(nil), a.listeners...)
	a.mu.RUnlock()
	for _, l := range ls {
		fn(l)
	}
}

// Reset clears all aggregated state, e.g. on a channel retune, and
// rewires every system-PID reassembler fresh.
func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.pidMap = ts.NewPIDMap()
	a.services = make(map[uint16]*ServiceState)
	a.sdtCache = make(map[uint16]sdtInfo)
	a.tsInfo = make(map[uint16]TSInfo)
	a.crossTSServices = make(map[uint64][]tables.SDTService)
	a.pcrByPID = make(map[uint16]uint64)
	a.pmtReassemblers = make(map[uint16]*psi.Reassembler)
	a.emmPIDs = nil
	a.network = NetworkInfo{}
	a.tot = TOTInfo{}
	a.patSeen = false
	a.pendingEIT = false

	a.patReassembler = psi.NewReassembler(a.onPATSection)
	a.catReassembler = psi.NewReassembler(a.onCATSection)
	a.sdtReassembler = psi.NewReassembler(a.onSDTSection)
	a.nitReassembler = psi.NewReassembler(a.onNITSection)
	a.eitReassembler = psi.NewReassembler(a.onEITSection)
	a.totReassembler = psi.NewReassembler(a.onTOTSection)

	a.pidMap.Map(PIDPAT, a.patReassembler)
	a.pidMap.Map(PIDCAT, a.catReassembler)
	a.pidMap.Map(PIDSDT, a.sdtReassembler)
	a.pidMap.Map(PIDNIT, a.nitReassembler)
	a.pidMap.Map(PIDEIT, a.eitReassembler)
	a.pidMap.Map(PIDTOT, a.totReassembler)
}

// StorePacket feeds one packet into the Analyzer. It satisfies
// ts.Consumer so an Analyzer can sit directly in a Graph's pipeline.
func (a *Analyzer) StorePacket(p *ts.Packet) (bool, error) {
	a.metrics.incPacket()
	if p.PID == ts.NullPID {
		a.metrics.incNullPacket()
		return false, nil
	}
	if p.IsScrambled() {
		a.metrics.incScrambledPacket()
	}
	if p.HasAdaptationField() && p.Adaptation.PCRFlag {
		a.mu.Lock()
		a.pcrByPID[p.PID] = p.Adaptation.PCR
		a.mu.Unlock()
	}
	r, _ := a.pidMap.GetTarget(p.PID).(*psi.Reassembler)
	var crcBefore uint64
	if r != nil {
		crcBefore = r.CRCErrorCount()
	}
	updated, err := a.pidMap.Store(p)
	if r != nil {
		for n := r.CRCErrorCount() - crcBefore; n > 0; n-- {
			a.metrics.incCRCError()
		}
	}
	return updated, err
}

func (a *Analyzer) OnPIDMapped(pid uint16)   {}
func (a *Analyzer) OnPIDUnmapped(pid uint16) {}

func (a *Analyzer) onPATSection(s *psi.Section) {
	pat, err := tables.DecodePAT(s)
	if err != nil {
		a.log.Debug().Err(err).Msg("discarding malformed PAT section")
		return
	}

	a.mu.Lock()

	newPrograms := make(map[uint16]uint16, len(pat.Programs))
	for _, prog := range pat.Programs {
		if prog.ProgramNumber == 0 {
			continue // network_PID entry, not a service
		}
		newPrograms[prog.ProgramNumber] = prog.PID
	}

	for sid, svc := range a.services {
		pid, ok := newPrograms[sid]
		if !ok || pid != svc.PMTPID {
			a.unmapPMTLocked(svc.PMTPID)
			delete(a.services, sid)
		}
	}
	for sid, pid := range newPrograms {
		if _, ok := a.services[sid]; ok {
			continue
		}
		svc := &ServiceState{ServiceID: sid, PMTPID: pid}
		if info, ok := a.sdtCache[sid]; ok {
			applySDTInfo(svc, info)
		}
		a.services[sid] = svc
		a.mapPMTLocked(pid, sid)
	}

	a.patSeen = true
	a.patVersion = pat.VersionNumber
	fireEIT := a.pendingEIT
	a.pendingEIT = false

	a.mu.Unlock()

	a.notify(func(l Listener) { l.OnPATUpdated(a) })
	if fireEIT {
		a.notify(func(l Listener) { l.OnEITUpdated(a) })
	}
}

func (a *Analyzer) mapPMTLocked(pid, serviceID uint16) {
	sid := serviceID
	r := psi.NewReassembler(func(s *psi.Section) { a.onPMTSection(sid, s) })
	a.pmtReassemblers[pid] = r
	a.pidMap.Map(pid, r)
}

func (a *Analyzer) unmapPMTLocked(pid uint16) {
	a.pidMap.Unmap(pid)
	delete(a.pmtReassemblers, pid)
}

func (a *Analyzer) onPMTSection(serviceID uint16, s *psi.Section) {
	pmt, err := tables.DecodePMT(s)
	if err != nil {
		a.log.Debug().Err(err).Uint16("service_id", serviceID).Msg("discarding malformed PMT section")
		return
	}

	a.mu.Lock()
	svc, ok := a.services[serviceID]
	if !ok {
		// PAT removed this service concurrently with its PMT arriving.
		a.mu.Unlock()
		return
	}

	svc.PMTAcquired = true
	svc.VersionNumber = pmt.VersionNumber
	svc.PCRPID = pmt.PCRPID
	svc.ECMList = ecmFromDescriptors(pmt.Descriptors)
	svc.VideoES, svc.AudioES, svc.CaptionES, svc.DataES, svc.OtherES = nil, nil, nil, nil, nil

	for i := range pmt.Streams {
		st := &pmt.Streams[i]
		es := ESInfo{PID: st.PID, StreamType: st.StreamType}
		if tag, ok := st.ComponentTag(); ok {
			es.ComponentTag, es.HasComponentTag = tag, true
		}
		svc.ECMList = append(svc.ECMList, ecmFromDescriptors(st.Descriptors)...)

		switch classifyES(st) {
		case esKindVideo:
			insertSortedByComponentTag(&svc.VideoES, es)
		case esKindAudio:
			insertSortedByComponentTag(&svc.AudioES, es)
		case esKindCaption:
			insertSortedByComponentTag(&svc.CaptionES, es)
		case esKindData:
			insertSortedByComponentTag(&svc.DataES, es)
		default:
			svc.OtherES = append(svc.OtherES, es)
		}
	}

	a.mu.Unlock()

	a.notify(func(l Listener) { l.OnPMTUpdated(a, serviceID) })
}

func applySDTInfo(svc *ServiceState, info sdtInfo) {
	svc.ProviderName = info.providerName
	svc.ServiceName = info.serviceName
	svc.ServiceType = info.serviceType
	svc.RunningStatus = info.runningStatus
	svc.FreeCAMode = info.freeCAMode
}

func (a *Analyzer) onSDTSection(s *psi.Section) {
	sdt, err := tables.DecodeSDT(s)
	if err != nil {
		a.log.Debug().Err(err).Msg("discarding malformed SDT section")
		return
	}

	a.mu.Lock()
	if sdt.IsActual() {
		for _, svcEntry := range sdt.Services {
			info := sdtInfo{runningStatus: svcEntry.RunningStatus, freeCAMode: svcEntry.FreeCAMode}
			if svcEntry.Descriptors != nil {
				if d, ok := svcEntry.Descriptors.ByTag(descriptor.TagService).(*descriptor.ServiceDescriptor); ok {
					info.providerName = d.ProviderName
					info.serviceName = d.ServiceName
					info.serviceType = d.ServiceType
				}
			}
			a.sdtCache[svcEntry.ServiceID] = info
			if svc, ok := a.services[svcEntry.ServiceID]; ok {
				applySDTInfo(svc, info)
			}
		}
	} else {
		key := uint64(sdt.OriginalNetworkID)<<16 | uint64(sdt.TransportStreamID)
		a.crossTSServices[key] = sdt.Services
	}
	a.mu.Unlock()

	a.notify(func(l Listener) { l.OnSDTUpdated(a) })
}

func (a *Analyzer) onNITSection(s *psi.Section) {
	nit, err := tables.DecodeNIT(s)
	if err != nil {
		a.log.Debug().Err(err).Msg("discarding malformed NIT section")
		return
	}

	a.mu.Lock()
	if nit.IsActual() {
		a.network.NetworkID = nit.NetworkID
		if nit.NetworkDescriptors != nil {
			if d, ok := nit.NetworkDescriptors.ByTag(descriptor.TagNetworkName).(*descriptor.NetworkNameDescriptor); ok {
				a.network.NetworkName = d.Name
			}
			if d, ok := nit.NetworkDescriptors.ByTag(descriptor.TagSystemManagement).(*descriptor.SystemManagementDescriptor); ok {
				a.network.BroadcastingFlag = d.BroadcastingFlag
				a.network.BroadcastingIdentifier = d.BroadcastingIdentifier
			}
		}
	}
	for _, tsEntry := range nit.TransportStreams {
		info := TSInfo{TransportStreamID: tsEntry.TransportStreamID, OriginalNetworkID: tsEntry.OriginalNetworkID}
		if tsEntry.Descriptors != nil {
			if d, ok := tsEntry.Descriptors.ByTag(descriptor.TagTSInformation).(*descriptor.TSInformationDescriptor); ok {
				info.TSName = d.TSName
				info.RemoteControlKeyID = d.RemoteControlKeyID
			}
			if d, ok := tsEntry.Descriptors.ByTag(descriptor.TagServiceList).(*descriptor.ServiceListDescriptor); ok {
				info.Services = d.Services
			}
		}
		a.tsInfo[tsEntry.TransportStreamID] = info
	}
	a.mu.Unlock()

	a.notify(func(l Listener) { l.OnNITUpdated(a) })
}

func (a *Analyzer) onCATSection(s *psi.Section) {
	cat, err := tables.DecodeCAT(s)
	if err != nil {
		a.log.Debug().Err(err).Msg("discarding malformed CAT section")
		return
	}

	emm := ecmFromDescriptors(cat.Descriptors)
	pids := make([]uint16, 0, len(emm))
	for _, e := range emm {
		pids = append(pids, e.PID)
	}

	a.mu.Lock()
	a.emmPIDs = pids
	a.mu.Unlock()

	a.notify(func(l Listener) { l.OnCATUpdated(a) })
}

func (a *Analyzer) onTOTSection(s *psi.Section) {
	tot, err := tables.DecodeTOT(s)
	if err != nil {
		a.log.Debug().Err(err).Msg("discarding malformed TOT section")
		return
	}

	a.mu.Lock()
	a.tot.Time = tot.JSTTime
	pcrPID := a.preferredPCRPIDLocked()
	if pcr, ok := a.pcrByPID[pcrPID]; ok {
		a.tot.PCRPID, a.tot.PCR, a.tot.HasPCR = pcrPID, pcr, true
	} else {
		a.tot.HasPCR = false
	}
	a.mu.Unlock()

	a.notify(func(l Listener) { l.OnTOTUpdated(a) })
}

// preferredPCRPIDLocked picks the lowest-ServiceID service's PCR PID
// as the anchor for TOT/PCR interpolation. Callers must hold a.mu.
func (a *Analyzer) preferredPCRPIDLocked() uint16 {
	var best uint16
	var bestSID uint16
	haveBest := false
	for sid, svc := range a.services {
		if svc.PCRPID == 0 {
			continue
		}
		if !haveBest || sid < bestSID {
			best, bestSID, haveBest = svc.PCRPID, sid, true
		}
	}
	return best
}

func (a *Analyzer) onEITSection(s *psi.Section) {
	eit, err := tables.DecodeEIT(s)
	if err != nil {
		a.log.Debug().Err(err).Msg("discarding malformed EIT section")
		return
	}

	a.mu.Lock()
	if !a.patSeen {
		a.pendingEIT = true
		a.mu.Unlock()
		return
	}
	if svc, ok := a.services[eit.ServiceID]; ok {
		svc.EITUpdated = true
	}
	a.mu.Unlock()

	a.notify(func(l Listener) { l.OnEITUpdated(a) })
}

// Service returns a snapshot of serviceID's aggregated state.
func (a *Analyzer) Service(serviceID uint16) (ServiceState, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	svc, ok := a.services[serviceID]
	if !ok {
		return ServiceState{}, false
	}
	return svc.clone(), true
}

// ServiceList returns a snapshot of every currently known service.
func (a *Analyzer) ServiceList() []ServiceState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]ServiceState, 0, len(a.services))
	for _, svc := range a.services {
		out = append(out, svc.clone())
	}
	return out
}

// ResetEITUpdated clears serviceID's "EIT updated" flag.
func (a *Analyzer) ResetEITUpdated(serviceID uint16) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if svc, ok := a.services[serviceID]; ok {
		svc.EITUpdated = false
	}
}

// Network returns a snapshot of the NIT-derived network info.
func (a *Analyzer) Network() NetworkInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.network
}

// TransportStream returns tsid's NIT-derived metadata, if known.
func (a *Analyzer) TransportStream(tsid uint16) (TSInfo, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	info, ok := a.tsInfo[tsid]
	return info, ok
}

// EMMPIDs returns the current set of EMM PIDs extracted from CAT.
func (a *Analyzer) EMMPIDs() []uint16 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]uint16(nil), a.emmPIDs...)
}

// TOT returns the Analyzer's current time/PCR anchor.
func (a *Analyzer) TOT() TOTInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.tot
}

// HasPAT reports whether a PAT has been seen since the last Reset.
func (a *Analyzer) HasPAT() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.patSeen
}
