package filter

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/tonalfitness/libisdb/ts"
)

// Stage transforms or drops one packet on its way through a Graph. A
// false return discards the packet: it never reaches the next stage or
// the Graph's output.
type Stage interface {
	Process(p *ts.Packet) (*ts.Packet, bool)
}

// StageFunc adapts a plain function to Stage.
type StageFunc func(p *ts.Packet) (*ts.Packet, bool)

// Process calls f.
func (f StageFunc) Process(p *ts.Packet) (*ts.Packet, bool) { return f(p) }

const (
	defaultQueueSize      = 4096
	defaultIdleInterval   = 10 * time.Millisecond
	defaultShutdownTimeout = 10 * time.Second
)

// GraphOption configures a Graph at construction.
type GraphOption func(*Graph)

// WithGraphLogger attaches a structured logger; the default is
// zerolog.Nop().
func WithGraphLogger(log zerolog.Logger) GraphOption {
	return func(g *Graph) { g.log = log }
}

// WithGraphMetricsRegisterer exports the Graph's counters to reg. A nil
// reg (the default) disables export entirely.
func WithGraphMetricsRegisterer(reg prometheus.Registerer) GraphOption {
	return func(g *Graph) { g.metrics = newMetrics(reg, "libisdb", "graph") }
}

// WithQueueSize sets the input queue's capacity, past which Push starts
// applying backpressure. Default 4096 packets.
func WithQueueSize(n int) GraphOption {
	return func(g *Graph) {
		if n > 0 {
			g.queueSize = n
		}
	}
}

// WithIdleInterval sets how long the streaming thread sleeps after
// finding the queue empty before checking again, mirroring
// StreamingThread::m_StreamingThreadIdleWait. Default 10ms.
func WithIdleInterval(d time.Duration) GraphOption {
	return func(g *Graph) { g.idleInterval = d }
}

// WithShutdownTimeout sets how long Stop waits for the streaming thread
// to notice the end signal and drain before giving up, mirroring
// StreamingThread::m_StreamingThreadTimeout. Default 10s.
func WithShutdownTimeout(d time.Duration) GraphOption {
	return func(g *Graph) { g.shutdownTimeout = d }
}

// WithInputWait makes Push block up to d for queue space instead of
// dropping the oldest half of the queue when full. A Push that is still
// blocked when d elapses reports failure rather than forcing room.
func WithInputWait(d time.Duration) GraphOption {
	return func(g *Graph) { g.inputWait = d }
}

// WithStages sets the ordered chain of Stages a packet passes through
// between Push and the Graph's output function.
func WithStages(stages ...Stage) GraphOption {
	return func(g *Graph) { g.stages = append([]Stage(nil), stages...) }
}

// Graph runs one streaming thread that drains a bounded packet queue
// through an ordered Stage chain to an output function, grounded on
// original_source/LibISDB/Base/StreamingThread.{hpp,cpp}. A Graph
// typically wraps an Analyzer and/or Selector as Stages, or calls
// their StorePacket/Process methods directly from a Stage closure.
type Graph struct {
	log     zerolog.Logger
	metrics *metrics

	queueSize      int
	idleInterval   time.Duration
	shutdownTimeout time.Duration
	inputWait      time.Duration

	stages []Stage
	output func(p *ts.Packet)

	mu   sync.Mutex
	cond *sync.Cond
	buf  []*ts.Packet

	endSignal atomic.Bool
	done      chan struct{}
	running   bool
}

// NewGraph returns a Graph that calls output for every packet that
// survives the Stage chain. output may be nil to discard everything
// (useful when every Stage's own side effects, e.g. an Analyzer's
// aggregated state, are the point).
func NewGraph(output func(p *ts.Packet), opts ...GraphOption) *Graph {
	g := &Graph{
		log:             zerolog.Nop(),
		queueSize:       defaultQueueSize,
		idleInterval:    defaultIdleInterval,
		shutdownTimeout: defaultShutdownTimeout,
		output:          output,
	}
	g.cond = sync.NewCond(&g.mu)
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Start launches the streaming thread. Calling Start on an already
// started Graph is a no-op.
func (g *Graph) Start() {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return
	}
	g.running = true
	g.endSignal.Store(false)
	g.done = make(chan struct{})
	g.mu.Unlock()

	go g.loop()
}

// Stop signals the streaming thread to end and waits up to
// ShutdownTimeout for it to drain and exit. It returns true if the
// thread was abandoned after the timeout elapsed rather than exiting
// cleanly; Go offers no way to forcibly kill a goroutine, so "forced
// termination" here means the call stops waiting and counts the event,
// leaving the goroutine to notice the end signal and exit whenever it
// next checks.
func (g *Graph) Stop() bool {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return false
	}
	done := g.done
	g.mu.Unlock()

	g.endSignal.Store(true)
	g.mu.Lock()
	g.cond.Broadcast()
	g.mu.Unlock()

	select {
	case <-done:
		g.mu.Lock()
		g.running = false
		g.mu.Unlock()
		return false
	case <-time.After(g.shutdownTimeout):
		g.metrics.incForcedTermination()
		g.log.Warn().Msg("streaming thread did not drain within shutdown timeout, abandoning")
		g.mu.Lock()
		g.running = false
		g.mu.Unlock()
		return true
	}
}

// Push enqueues p for the streaming thread. With no input-wait
// configured, a full queue drops its oldest half to make room rather
// than blocking the caller indefinitely, and Push always succeeds. With
// WithInputWait set, Push instead waits up to that duration for space
// and reports false if the timeout elapses first.
func (g *Graph) Push(p *ts.Packet) bool {
	g.mu.Lock()

	if len(g.buf) >= g.queueSize {
		if g.inputWait > 0 {
			if !g.waitForSpaceLocked(time.Now().Add(g.inputWait)) {
				g.mu.Unlock()
				g.metrics.incDroppedPacket()
				return false
			}
		} else {
			g.dropOldestHalfLocked()
		}
	}

	g.buf = append(g.buf, p)
	g.metrics.setQueueDepth(len(g.buf))
	g.cond.Signal()
	g.mu.Unlock()
	return true
}

// waitForSpaceLocked waits on g.cond until the queue has room or
// deadline passes. Callers must hold g.mu; it is released while
// waiting and reacquired before returning, per sync.Cond's contract.
func (g *Graph) waitForSpaceLocked(deadline time.Time) bool {
	for len(g.buf) >= g.queueSize {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		timer := time.AfterFunc(remaining, func() {
			g.mu.Lock()
			g.cond.Broadcast()
			g.mu.Unlock()
		})
		g.cond.Wait()
		timer.Stop()
	}
	return true
}

// dropOldestHalfLocked discards the oldest half of the queue (at least
// one packet) to make room for an incoming one. Callers must hold g.mu.
func (g *Graph) dropOldestHalfLocked() {
	n := len(g.buf) / 2
	if n == 0 {
		n = 1
	}
	for i := 0; i < n; i++ {
		g.metrics.incDroppedPacket()
	}
	rest := make([]*ts.Packet, len(g.buf)-n)
	copy(rest, g.buf[n:])
	g.buf = rest
}

func (g *Graph) loop() {
	defer close(g.done)

	wait := time.Duration(0)
	for {
		if wait > 0 {
			g.mu.Lock()
			if len(g.buf) == 0 && !g.endSignal.Load() {
				timer := time.AfterFunc(wait, func() {
					g.mu.Lock()
					g.cond.Broadcast()
					g.mu.Unlock()
				})
				g.cond.Wait()
				timer.Stop()
			}
			g.mu.Unlock()
		}

		if g.endSignal.Load() {
			return
		}

		if g.processStream() {
			wait = 0
		} else {
			wait = g.idleInterval
		}
	}
}

// processStream dequeues and runs one packet through the Stage chain,
// reporting whether there was a packet to process at all, mirroring
// StreamingThread::ProcessStream's return value driving the caller's
// wait interval.
func (g *Graph) processStream() bool {
	g.mu.Lock()
	if len(g.buf) == 0 {
		g.mu.Unlock()
		return false
	}
	p := g.buf[0]
	g.buf = g.buf[1:]
	g.metrics.setQueueDepth(len(g.buf))
	g.cond.Broadcast() // wake a Push waiting for queue space
	g.mu.Unlock()

	g.metrics.incPacket()
	if p.PID == ts.NullPID {
		g.metrics.incNullPacket()
	}
	if p.TransportErrorIndicator {
		g.metrics.incErrorPacket()
	}

	cur := p
	ok := true
	for _, st := range g.stages {
		cur, ok = st.Process(cur)
		if !ok || cur == nil {
			ok = false
			break
		}
	}
	if ok && g.output != nil {
		g.output(cur)
	}
	return true
}
