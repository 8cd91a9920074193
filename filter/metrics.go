// Package filter aggregates decoded tables into a queryable service
// model (Analyzer), rewrites the packet stream down to one service
// (Selector), and runs the streaming-thread pipeline that drives both
// (Graph), grounded on
// original_source/LibISDB/Filters/AnalyzerFilter.hpp,
// original_source/LibISDB/Filters/ServiceSelectorFilter.hpp, and
// spec.md §5.
package filter

import "github.com/prometheus/client_golang/prometheus"

// metrics holds every counter/gauge a Graph or Analyzer exposes,
// registered lazily against a caller-supplied prometheus.Registerer. A
// nil Registerer (the zero value) means "don't export": every method
// on a nil-backed metrics is a safe no-op, so embedding callers that
// never wire a registry pay nothing.
type metrics struct {
	packetCount           prometheus.Counter
	nullPacketCount        prometheus.Counter
	errorPacketCount       prometheus.Counter
	continuityErrorCount   prometheus.Counter
	crcErrorCount          prometheus.Counter
	scrambledPacketCount   prometheus.Counter
	droppedPacketCount     prometheus.Counter
	forcedTerminationCount prometheus.Counter
	queueDepth             prometheus.Gauge
}

// newMetrics registers a fresh counter set against reg, returning a
// usable-but-inert metrics if reg is nil. namespace/subsystem follow
// Prometheus' convention so a Graph and an Analyzer in the same
// process don't collide (e.g. "libisdb"/"graph" vs "libisdb"/"analyzer").
func newMetrics(reg prometheus.Registerer, namespace, subsystem string) *metrics {
	m := &metrics{
		packetCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "packets_total",
			Help: "Transport stream packets processed.",
		}),
		nullPacketCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "null_packets_total",
			Help: "Null (PID 0x1FFF) packets processed.",
		}),
		errorPacketCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "error_packets_total",
			Help: "Packets with transport_error_indicator set.",
		}),
		continuityErrorCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "continuity_errors_total",
			Help: "Continuity counter discontinuities observed.",
		}),
		crcErrorCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "crc_errors_total",
			Help: "PSI sections dropped for CRC mismatch.",
		}),
		scrambledPacketCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "scrambled_packets_total",
			Help: "Packets with a non-zero scrambling_control.",
		}),
		droppedPacketCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "dropped_packets_total",
			Help: "Packets dropped by backpressure (queue full).",
		}),
		forcedTerminationCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "forced_terminations_total",
			Help: "Streaming threads forcibly terminated after a shutdown timeout.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "queue_depth",
			Help: "Current packet queue depth.",
		}),
	}
	if reg == nil {
		return m
	}
	for _, c := range []prometheus.Collector{
		m.packetCount, m.nullPacketCount, m.errorPacketCount, m.continuityErrorCount,
		m.crcErrorCount, m.scrambledPacketCount, m.droppedPacketCount,
		m.forcedTerminationCount, m.queueDepth,
	} {
		// Registration errors, AlreadyRegisteredError included, are
		// ignored rather than panicking: when several Graphs/Analyzers
		// share one registry under the same subsystem name, only the
		// first set of counters is registered, and later sets count
		// without being exported.
		_ = reg.Register(c)
	}
	return m
}

func (m *metrics) incPacket() {
	if m == nil {
		return
	}
	m.packetCount.Inc()
}

func (m *metrics) incNullPacket() {
	if m == nil {
		return
	}
	m.nullPacketCount.Inc()
}

func (m *metrics) incErrorPacket() {
	if m == nil {
		return
	}
	m.errorPacketCount.Inc()
}

func (m *metrics) incContinuityError() {
	if m == nil {
		return
	}
	m.continuityErrorCount.Inc()
}

func (m *metrics) incCRCError() {
	if m == nil {
		return
	}
	m.crcErrorCount.Inc()
}

func (m *metrics) incScrambledPacket() {
	if m == nil {
		return
	}
	m.scrambledPacketCount.Inc()
}

func (m *metrics) incDroppedPacket() {
	if m == nil {
		return
	}
	m.droppedPacketCount.Inc()
}

func (m *metrics) incForcedTermination() {
	if m == nil {
		return
	}
	m.forcedTerminationCount.Inc()
}

func (m *metrics) setQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
