package filter

import (
	"sync"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/tonalfitness/libisdb/ts"
)

func mustPacket(t *testing.T, pid uint16, cc uint8) *ts.Packet {
	t.Helper()
	raw := make([]byte, ts.PacketSize)
	raw[0] = ts.SyncByte
	raw[1] = byte(pid>>8) & 0x1F
	raw[2] = byte(pid)
	raw[3] = 0x10 | (cc & 0xF)
	for i := 4; i < ts.PacketSize; i++ {
		raw[i] = 0xFF
	}
	p, result, err := ts.ParsePacket(raw)
	if err != nil || result != ts.ResultOK {
		t.Fatalf("ParsePacket: %v %v", result, err)
	}
	return p
}

func TestGraphPassesPacketsInOrder(t *testing.T) {
	is := is.New(t)

	var mu sync.Mutex
	var got []uint16
	g := NewGraph(func(p *ts.Packet) {
		mu.Lock()
		got = append(got, p.PID)
		mu.Unlock()
	}, WithIdleInterval(time.Millisecond))
	g.Start()
	defer g.Stop()

	for i := uint16(0); i < 10; i++ {
		is.True(g.Push(mustPacket(t, 0x100+i, uint8(i))))
	}

	is.True(waitFor(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 10
	}, time.Second))

	mu.Lock()
	defer mu.Unlock()
	for i, pid := range got {
		is.Equal(pid, uint16(0x100+i))
	}
}

func TestGraphStageCanDropPackets(t *testing.T) {
	is := is.New(t)

	var mu sync.Mutex
	var got []uint16
	dropEven := StageFunc(func(p *ts.Packet) (*ts.Packet, bool) {
		return p, p.PID%2 != 0
	})
	g := NewGraph(func(p *ts.Packet) {
		mu.Lock()
		got = append(got, p.PID)
		mu.Unlock()
	}, WithStages(dropEven), WithIdleInterval(time.Millisecond))
	g.Start()
	defer g.Stop()

	for i := uint16(0); i < 6; i++ {
		is.True(g.Push(mustPacket(t, i, uint8(i))))
	}

	is.True(waitFor(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	}, time.Second))

	mu.Lock()
	defer mu.Unlock()
	for _, pid := range got {
		is.True(pid%2 != 0)
	}
}

func TestGraphPushDropsOldestHalfWhenFull(t *testing.T) {
	is := is.New(t)

	block := make(chan struct{})
	var once sync.Once
	g := NewGraph(func(p *ts.Packet) {
		once.Do(func() { <-block })
	}, WithQueueSize(4), WithIdleInterval(time.Millisecond))
	g.Start()
	defer func() {
		close(block)
		g.Stop()
	}()

	// The first packet is immediately dequeued by the streaming thread
	// and blocks in output, so fill the queue behind it.
	is.True(g.Push(mustPacket(t, 0, 0)))
	time.Sleep(20 * time.Millisecond)

	for i := uint16(1); i <= 4; i++ {
		is.True(g.Push(mustPacket(t, i, uint8(i))))
	}
	// Queue is now full (size 4); this Push must drop the oldest half
	// rather than block, and still succeed.
	is.True(g.Push(mustPacket(t, 99, 9)))
}

func TestGraphStopTimesOutOnStuckStage(t *testing.T) {
	is := is.New(t)

	block := make(chan struct{})
	g := NewGraph(func(p *ts.Packet) {
		<-block
	}, WithShutdownTimeout(20*time.Millisecond), WithIdleInterval(time.Millisecond))
	g.Start()
	is.True(g.Push(mustPacket(t, 1, 0)))
	time.Sleep(10 * time.Millisecond)

	forced := g.Stop()
	is.True(forced)
	close(block)
}

func waitFor(cond func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return cond()
}
