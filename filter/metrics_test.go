package filter

import (
	"testing"

	"github.com/matryer/is"
	"github.com/prometheus/client_golang/prometheus"
)

func TestNilMetricsAreSafeNoOps(t *testing.T) {
	var m *metrics
	m.incPacket()
	m.incNullPacket()
	m.incErrorPacket()
	m.incContinuityError()
	m.incCRCError()
	m.incScrambledPacket()
	m.incDroppedPacket()
	m.incForcedTermination()
	m.setQueueDepth(5)
}

func TestNewMetricsWithNilRegistererIsUsable(t *testing.T) {
	is := is.New(t)
	m := newMetrics(nil, "libisdb", "test")
	is.True(m != nil)
	m.incPacket()
}

func TestNewMetricsToleratesSharedRegistry(t *testing.T) {
	is := is.New(t)
	reg := prometheus.NewRegistry()
	a := newMetrics(reg, "libisdb", "shared")
	b := newMetrics(reg, "libisdb", "shared")
	is.True(a != nil)
	is.True(b != nil)
	a.incPacket()
	b.incPacket()
}
