package ts

// resyncMargin is the out-of-sync byte count past which a
// FormatError/TransportError result triggers an in-buffer resync scan,
// per the framer's "still unsynchronized" heuristic.
const resyncMargin = 16

// Counters tallies per-result packet counts, both overall and per PID.
type Counters struct {
	Input           uint64
	Output          uint64
	FormatError     uint64
	TransportError  uint64
	ContinuityError uint64
	Scrambled       uint64

	PerPID map[uint16]*PIDCounters
}

// PIDCounters tallies per-PID outcomes.
type PIDCounters struct {
	Input           uint64
	ContinuityError uint64
	Scrambled       uint64
}

func newCounters() *Counters {
	return &Counters{PerPID: make(map[uint16]*PIDCounters)}
}

func (c *Counters) perPID(pid uint16) *PIDCounters {
	pc, ok := c.PerPID[pid]
	if !ok {
		pc = &PIDCounters{}
		c.PerPID[pid] = pc
	}
	return pc
}

// DispatchFunc receives one recovered packet and its parse result.
type DispatchFunc func(p *Packet, result ParseResult)

// Framer resynchronizes an arbitrary byte stream to 188-byte TS
// packets, tracks per-PID continuity, and dispatches each recovered
// packet.
type Framer struct {
	buf         []byte
	outOfSync   uint64
	continuity  *ContinuityTracker
	Counters    *Counters
	Dispatch    DispatchFunc
}

// NewFramer returns a Framer that calls dispatch for every recovered
// packet.
func NewFramer(dispatch DispatchFunc) *Framer {
	return &Framer{
		continuity: NewContinuityTracker(),
		Counters:   newCounters(),
		Dispatch:   dispatch,
	}
}

// OutOfSyncCount returns the total number of bytes discarded while
// searching for sync, across the Framer's lifetime.
func (f *Framer) OutOfSyncCount() uint64 {
	return f.outOfSync
}

// Feed appends data to the framer's internal buffer and emits every
// complete packet it can recover, resyncing on 0x47 as needed.
func (f *Framer) Feed(data []byte) {
	f.buf = append(f.buf, data...)

	for {
		// SearchSync: drop bytes until 0x47.
		syncIdx := -1
		for i, b := range f.buf {
			if b == SyncByte {
				syncIdx = i
				break
			}
		}
		if syncIdx < 0 {
			f.outOfSync += uint64(len(f.buf))
			f.buf = f.buf[:0]
			return
		}
		if syncIdx > 0 {
			f.outOfSync += uint64(syncIdx)
			f.buf = f.buf[syncIdx:]
		}

		if len(f.buf) < PacketSize {
			return
		}

		candidate := f.buf[:PacketSize]
		p, result, err := ParsePacket(candidate)

		if err != nil || result == ResultFormatError || result == ResultTransportError {
			if f.outOfSync > resyncMargin || err != nil {
				// Still probably unsynchronized: search forward
				// within the buffered packet for another sync byte
				// rather than accepting this one as a false lock.
				next := -1
				for i := 1; i < len(candidate); i++ {
					if candidate[i] == SyncByte {
						next = i
						break
					}
				}
				if next > 0 {
					f.outOfSync += uint64(next)
					f.buf = f.buf[next:]
					continue
				}
			}
		}

		f.buf = f.buf[PacketSize:]

		if err != nil {
			f.Counters.Input++
			f.Counters.FormatError++
			continue
		}

		f.Counters.Input++
		f.Counters.perPID(p.PID).Input++

		if p.IsScrambled() {
			f.Counters.Scrambled++
			f.Counters.perPID(p.PID).Scrambled++
		}

		if result == ResultOK && f.continuity.Check(p) {
			result = ResultContinuityError
		}

		switch result {
		case ResultFormatError:
			f.Counters.FormatError++
		case ResultTransportError:
			f.Counters.TransportError++
		case ResultContinuityError:
			f.Counters.ContinuityError++
			f.Counters.perPID(p.PID).ContinuityError++
		}

		f.Counters.Output++

		if f.Dispatch != nil {
			f.Dispatch(p, result)
		}
	}
}
