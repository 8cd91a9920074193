package libisdb

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tonalfitness/libisdb/epg"
	"github.com/tonalfitness/libisdb/filter"
	"github.com/tonalfitness/libisdb/oneseg"
	"github.com/tonalfitness/libisdb/psi"
	"github.com/tonalfitness/libisdb/tables"
	"github.com/tonalfitness/libisdb/ts"
)

// readChunkPackets is how many TS packets Feed reads from its source at
// a time, amortizing the read(2) syscall the way a larger bufio buffer
// would, without needing the caller to size one itself.
const readChunkPackets = 256

// Option configures an Engine at construction.
type Option func(*Engine)

// WithLogger attaches a structured logger to the Engine's Analyzer and
// Graph. The default is zerolog.Nop().
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithEPGSourceID overrides the randomly generated epg.SourceID this
// Engine tags its EIT contributions with, for callers merging several
// Engines' databases together.
func WithEPGSourceID(id epg.SourceID) Option {
	return func(e *Engine) { e.sourceID = id }
}

// Engine wires ts/psi/tables/oneseg/epg/filter into one pipeline: feed
// it a transport stream, and query the Analyzer/EPG database for what
// it found, the way tonalfitness/ivsmeta's package-level Read/ReadStream
// wired gots/easyid3/pes together behind one entry point.
type Engine struct {
	cfg Config
	log zerolog.Logger

	sourceID epg.SourceID

	analyzer *filter.Analyzer
	selector *filter.Selector
	oneSeg   *oneseg.Generator
	epgDB    *epg.Database
	graph    *filter.Graph

	epgPIDs   *ts.PIDMap
	eitReasm  *psi.Reassembler
	totReasm  *psi.Reassembler

	mu      sync.Mutex
	started bool
	out     chan *ts.Packet
}

// NewEngine returns a ready-to-use Engine. Call Start before Feed/
// PushPacket, and Stop when done.
func NewEngine(cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:      cfg,
		log:      zerolog.Nop(),
		sourceID: epg.NewSourceID(),
		epgDB:    epg.NewDatabase(),
		out:      make(chan *ts.Packet, cfg.QueueSize),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.analyzer = filter.NewAnalyzer(filter.WithLogger(e.log))
	if cfg.Generate1SegPAT {
		e.oneSeg = oneseg.NewGenerator()
	}

	e.epgPIDs = ts.NewPIDMap()
	e.eitReasm = psi.NewReassembler(e.onEITSection)
	e.totReasm = psi.NewReassembler(e.onTOTSection)
	e.epgPIDs.Map(filter.PIDEIT, e.eitReasm)
	e.epgPIDs.Map(filter.PIDTOT, e.totReasm)

	analyzerStage := filter.StageFunc(func(p *ts.Packet) (*ts.Packet, bool) {
		_, _ = e.analyzer.StorePacket(p)
		return p, true
	})
	epgStage := filter.StageFunc(func(p *ts.Packet) (*ts.Packet, bool) {
		_, _ = e.epgPIDs.Store(p)
		return p, true
	})
	// selectorStage defers to whatever Selector SelectService installs
	// later; nil means "no selection", pass everything through. This
	// indirection lets SelectService plug a Selector in after Start
	// without tearing down and rebuilding the running Graph.
	selectorStage := filter.StageFunc(func(p *ts.Packet) (*ts.Packet, bool) {
		e.mu.Lock()
		sel := e.selector
		e.mu.Unlock()
		if sel == nil {
			return p, true
		}
		return sel.Process(p)
	})

	e.graph = filter.NewGraph(e.onOutput,
		filter.WithGraphLogger(e.log),
		filter.WithQueueSize(cfg.QueueSize),
		filter.WithIdleInterval(cfg.StreamingIdleInterval),
		filter.WithShutdownTimeout(cfg.ShutdownTimeout),
		filter.WithInputWait(time.Duration(cfg.InputWaitMS)*time.Millisecond),
		filter.WithStages(analyzerStage, epgStage, selectorStage),
	)

	return e
}

func (e *Engine) onEITSection(s *psi.Section) {
	eit, err := tables.DecodeEIT(s)
	if err != nil {
		e.log.Debug().Err(err).Msg("discarding malformed EIT section")
		return
	}
	e.epgDB.UpdateSection(eit, e.sourceID)
}

func (e *Engine) onTOTSection(s *psi.Section) {
	tot, err := tables.DecodeTOT(s)
	if err != nil {
		e.log.Debug().Err(err).Msg("discarding malformed TOT section")
		return
	}
	e.epgDB.UpdateTOT(tot)
}

func (e *Engine) onOutput(p *ts.Packet) {
	select {
	case e.out <- p:
	default:
		// The caller isn't draining Packets(): rather than block the
		// streaming thread indefinitely, drop it. Graph's own queue
		// already applies backpressure upstream of this point; this
		// is the last-resort release valve for a stalled consumer.
	}
}

// Start launches the Graph's streaming thread. SelectService, Analyzer,
// and EPG remain usable before Start; only packet delivery is gated.
func (e *Engine) Start() {
	e.mu.Lock()
	e.started = true
	e.mu.Unlock()
	e.graph.Start()
}

// Stop signals the streaming thread to end and waits for it to drain,
// per Graph.Stop's contract.
func (e *Engine) Stop() bool {
	return e.graph.Stop()
}

// Packets returns the channel of packets that survived the Stage chain
// (including any Selector's filtering). If nothing drains it, the
// Engine drops further output rather than blocking.
func (e *Engine) Packets() <-chan *ts.Packet {
	return e.out
}

// PushPacket feeds one already-parsed packet into the pipeline.
func (e *Engine) PushPacket(p *ts.Packet) {
	if e.oneSeg != nil {
		if e.oneSeg.StorePacket(p) {
			if patPkt, ok := e.oneSeg.GeneratePATPacket(); ok {
				e.graph.Push(patPkt)
			}
		}
	}

	if !e.cfg.OutputNullPackets && p.PID == ts.NullPID {
		return
	}
	if !e.cfg.OutputErrorPackets && p.TransportErrorIndicator {
		return
	}
	e.graph.Push(p)
}

// Feed reads r as a raw transport stream until EOF, resynchronizing on
// 0x47 as needed, dispatching every recovered packet to PushPacket.
func (e *Engine) Feed(r io.Reader) error {
	framer := ts.NewFramer(func(p *ts.Packet, result ts.ParseResult) {
		e.PushPacket(p)
	})

	chunk := make([]byte, ts.PacketSize*readChunkPackets)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			framer.Feed(chunk[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("libisdb: feed: %w", err)
		}
	}
}

// SelectService configures (or replaces) the Engine's Stream Selector,
// restricting output to one service/stream kind and optionally
// rewriting the PAT down to that service alone. Safe to call before or
// after Start, and safe to call again to change the target service.
func (e *Engine) SelectService(serviceID uint16, stream filter.StreamFlag, generatePAT bool) {
	e.mu.Lock()
	sel := e.selector
	if sel == nil {
		sel = filter.NewSelector(filter.WithSelectorLogger(e.log))
		e.selector = sel
	}
	e.mu.Unlock()

	sel.SetTarget(serviceID, stream)
	sel.SetGeneratePAT(generatePAT)
}

// ClearSelection removes any configured Selector, returning the Engine
// to passing every service through unfiltered.
func (e *Engine) ClearSelection() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selector = nil
}

// Analyzer returns the Engine's aggregated service-model view.
func (e *Engine) Analyzer() *filter.Analyzer { return e.analyzer }

// EPG returns the Engine's EPG database.
func (e *Engine) EPG() *epg.Database { return e.epgDB }
