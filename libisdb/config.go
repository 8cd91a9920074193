// Package libisdb is the module's facade: it wires ts/psi/tables/
// descriptor/oneseg/epg/filter into one usable Engine, the way
// tonalfitness/ivsmeta's top-level package wires gots/easyid3/pes
// together behind Read/ReadStream. There is no teacher config layer to
// adapt (ivsmeta takes its one option, a io.Reader, directly), so
// Config follows the plain-struct, explicit-defaults style the rest of
// the pack uses for runtime options.
package libisdb

import "time"

// Config holds the runtime options spec.md §5/§6 expose.
type Config struct {
	// MaxSequencePacketCount is carried with a default, but the Engine
	// does not read it; no accumulator in the pipeline is bounded by it.
	MaxSequencePacketCount int

	// OutputNullPackets makes the Engine forward PID 0x1FFF packets
	// to Analyzer/Graph stages instead of dropping them in PushPacket.
	OutputNullPackets bool
	// OutputErrorPackets makes the Engine forward packets with
	// transport_error_indicator set instead of dropping them before
	// the Stage chain.
	OutputErrorPackets bool

	// Generate1SegPAT enables oneseg.Generator: a synthesized PAT is
	// injected once a one-segment stream is confirmed to carry none.
	Generate1SegPAT bool

	// QueueSize is the Graph's packet queue capacity.
	QueueSize int
	// InitialPoolPercentage is carried with a default, but the Engine
	// does not read it and preallocates no packet objects.
	InitialPoolPercentage int
	// InputWaitMS is how long Push waits for queue space before
	// reporting failure, instead of dropping the oldest half of the
	// queue. Zero means "drop, never wait".
	InputWaitMS int

	// StreamingIdleInterval is how long the streaming thread sleeps
	// after finding its queue empty before checking again.
	StreamingIdleInterval time.Duration
	// ShutdownTimeout is how long Stop waits for the streaming thread
	// to drain before abandoning it.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the Engine's documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxSequencePacketCount: 4096,
		OutputNullPackets:      false,
		OutputErrorPackets:     false,
		Generate1SegPAT:        false,
		QueueSize:              4096,
		InitialPoolPercentage:  100,
		InputWaitMS:            0,
		StreamingIdleInterval:  10 * time.Millisecond,
		ShutdownTimeout:        10 * time.Second,
	}
}
