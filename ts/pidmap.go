package ts

import "sync"

// PIDMax is the highest representable PID (13 bits).
const PIDMax = 0x1FFF

// Consumer is a PID map target: something that accepts packets for a
// mapped PID and is notified of its mapping lifecycle.
type Consumer interface {
	// StorePacket processes one packet for this PID. The boolean
	// return signals a downstream-visible update (e.g. a PSI
	// section completed) that callers may choose to observe.
	StorePacket(p *Packet) (bool, error)
	// OnPIDMapped is called once when the consumer is bound to pid.
	OnPIDMapped(pid uint16)
	// OnPIDUnmapped is called exactly once when the consumer is
	// released, whether by explicit Unmap, remap, or UnmapAll.
	OnPIDUnmapped(pid uint16)
}

// PIDMap dispatches packets to per-PID consumers in constant time via
// an 8192-entry slot table, mirroring PIDMapManager's array-of-targets
// design.
type PIDMap struct {
	mu      sync.Mutex
	targets [PIDMax + 1]Consumer
}

// NewPIDMap returns an empty PID map.
func NewPIDMap() *PIDMap {
	return &PIDMap{}
}

// Map binds consumer to pid, taking ownership. If a consumer was
// already bound to pid, its OnPIDUnmapped fires first.
func (m *PIDMap) Map(pid uint16, consumer Consumer) {
	m.mu.Lock()
	old := m.targets[pid]
	m.targets[pid] = consumer
	m.mu.Unlock()

	if old != nil {
		old.OnPIDUnmapped(pid)
	}
	if consumer != nil {
		consumer.OnPIDMapped(pid)
	}
}

// Unmap releases the consumer bound to pid, if any, firing
// OnPIDUnmapped.
func (m *PIDMap) Unmap(pid uint16) {
	m.mu.Lock()
	old := m.targets[pid]
	m.targets[pid] = nil
	m.mu.Unlock()

	if old != nil {
		old.OnPIDUnmapped(pid)
	}
}

// UnmapAll releases every bound consumer.
func (m *PIDMap) UnmapAll() {
	m.mu.Lock()
	var released []struct {
		pid uint16
		c   Consumer
	}
	for pid, c := range m.targets {
		if c != nil {
			released = append(released, struct {
				pid uint16
				c   Consumer
			}{uint16(pid), c})
			m.targets[pid] = nil
		}
	}
	m.mu.Unlock()

	for _, r := range released {
		r.c.OnPIDUnmapped(r.pid)
	}
}

// GetTarget returns the consumer bound to pid, or nil.
func (m *PIDMap) GetTarget(pid uint16) Consumer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.targets[pid]
}

// Count returns the number of currently mapped PIDs.
func (m *PIDMap) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.targets {
		if c != nil {
			n++
		}
	}
	return n
}

// Store dispatches a packet to its mapped consumer. Storing to an
// unmapped PID is a silent no-op, not an error.
func (m *PIDMap) Store(p *Packet) (bool, error) {
	c := m.GetTarget(p.PID)
	if c == nil {
		return false, nil
	}
	return c.StorePacket(p)
}

// StoreStream dispatches a homogeneous slice of packets sharing a
// single PID, avoiding a map lookup per packet. It panics if the
// packets do not all share the first packet's PID — a programmer
// error, not a stream error.
func (m *PIDMap) StoreStream(packets []*Packet) (bool, error) {
	if len(packets) == 0 {
		return false, nil
	}
	pid := packets[0].PID
	c := m.GetTarget(pid)
	if c == nil {
		return false, nil
	}
	updated := false
	for _, p := range packets {
		if p.PID != pid {
			panic("ts: StoreStream called with mixed PIDs")
		}
		ok, err := c.StorePacket(p)
		if err != nil {
			return updated, err
		}
		updated = updated || ok
	}
	return updated, nil
}
