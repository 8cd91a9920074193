package ts

import (
	"testing"

	"github.com/matryer/is"
)

func validPacket(pid uint16, cc uint8, payloadStart bool) []byte {
	p := make([]byte, PacketSize)
	p[0] = SyncByte
	b1 := byte(pid >> 8 & 0x1F)
	if payloadStart {
		b1 |= 0x40
	}
	p[1] = b1
	p[2] = byte(pid)
	p[3] = 0x10 | (cc & 0xF) // adaptation_field_control=01 (payload only)
	for i := 4; i < PacketSize; i++ {
		p[i] = 0xFF
	}
	return p
}

func TestFramerSyncRecovery(t *testing.T) {
	is := is.New(t)

	var got []ParseResult
	f := NewFramer(func(p *Packet, result ParseResult) {
		got = append(got, result)
	})

	garbage := make([]byte, 50)
	for i := range garbage {
		garbage[i] = 0x00
	}

	stream := append(garbage, validPacket(0x100, 5, true)...)
	stream = append(stream, validPacket(0x100, 6, true)...)

	f.Feed(stream)

	is.Equal(len(got), 2)
	is.Equal(got[0], ResultOK)
	is.Equal(got[1], ResultOK)
	is.Equal(f.Counters.Output, uint64(2))
	is.Equal(f.OutOfSyncCount(), uint64(50))
}

func TestFramerContinuityError(t *testing.T) {
	is := is.New(t)

	var got []ParseResult
	f := NewFramer(func(p *Packet, result ParseResult) {
		got = append(got, result)
	})

	stream := append(validPacket(0x200, 3, true), validPacket(0x200, 5, true)...)
	f.Feed(stream)

	is.Equal(len(got), 2)
	is.Equal(got[0], ResultOK)
	is.Equal(got[1], ResultContinuityError)
	is.Equal(f.Counters.perPID(0x200).ContinuityError, uint64(1))
}

func TestFramerEmitsDisjointPackets(t *testing.T) {
	is := is.New(t)

	var n int
	f := NewFramer(func(p *Packet, result ParseResult) {
		n++
		is.Equal(len(p.Raw), PacketSize)
	})

	stream := append(validPacket(0x10, 0, true), validPacket(0x20, 0, true)...)
	stream = append(stream, validPacket(0x30, 0, true)...)
	f.Feed(stream)

	is.Equal(n, 3)
}
