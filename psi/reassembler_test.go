package psi

import (
	"testing"

	"github.com/matryer/is"

	"github.com/tonalfitness/libisdb/crc"
	"github.com/tonalfitness/libisdb/ts"
)

// buildSection constructs a minimal syntax-extended section with a
// valid CRC, given a table id and a few payload bytes.
func buildSection(tableID uint8, tableIDExt uint16, payload []byte) []byte {
	body := make([]byte, 0, 16)
	body = append(body, byte(tableIDExt>>8), byte(tableIDExt))
	body = append(body, 0xC1) // reserved(2)=11, version=00000, current_next=1
	body = append(body, 0x00) // section_number
	body = append(body, 0x00) // last_section_number
	body = append(body, payload...)

	sectionLength := len(body) + 4 // + CRC
	header := []byte{
		tableID,
		0x80 | byte(sectionLength>>8&0x0F), // syntax indicator=1, private=0, reserved=11
		byte(sectionLength),
	}

	full := append(header, body...)
	sum := crc.Checksum(full)
	full = append(full, byte(sum>>24), byte(sum>>16), byte(sum>>8), byte(sum))
	return full
}

func packetWithPayload(pid uint16, pusi bool, payload []byte) *ts.Packet {
	raw := make([]byte, ts.PacketSize)
	raw[0] = ts.SyncByte
	b1 := byte(pid >> 8 & 0x1F)
	if pusi {
		b1 |= 0x40
	}
	raw[1] = b1
	raw[2] = byte(pid)
	raw[3] = 0x10 // payload only, cc=0
	copy(raw[4:], payload)
	for i := 4 + len(payload); i < ts.PacketSize; i++ {
		raw[i] = 0xFF
	}
	p, _, err := ts.ParsePacket(raw)
	if err != nil {
		panic(err)
	}
	return p
}

func TestReassemblerSingleSectionOnePacket(t *testing.T) {
	is := is.New(t)

	section := buildSection(0x00, 0x1234, []byte{0x01, 0x02, 0x03})
	payload := append([]byte{0x00}, section...) // pointer field = 0

	var got *Section
	r := NewReassembler(func(s *Section) { got = s })

	updated, err := r.StorePacket(packetWithPayload(0x10, true, payload))
	is.NoErr(err)
	is.True(updated)
	is.True(got != nil)
	is.Equal(got.Header.TableIDExtension, uint16(0x1234))
	is.Equal(r.CRCErrorCount(), uint64(0))
}

func TestReassemblerSplitAcrossPackets(t *testing.T) {
	is := is.New(t)

	section := buildSection(0x00, 0x5678, make([]byte, 200))
	payload := append([]byte{0x00}, section...)

	// The first packet is filled entirely with section bytes, as a
	// multiplexer splitting a long section does; the rest follows in
	// the next packet.
	split := ts.PacketSize - 4
	first := payload[:split]
	second := payload[split:]

	var got *Section
	r := NewReassembler(func(s *Section) { got = s })

	_, err := r.StorePacket(packetWithPayload(0x10, true, first))
	is.NoErr(err)
	is.True(got == nil)

	updated, err := r.StorePacket(packetWithPayload(0x10, false, second))
	is.NoErr(err)
	is.True(updated)
	is.True(got != nil)
	is.Equal(got.Header.TableIDExtension, uint16(0x5678))
}

func TestReassemblerCRCMismatchDropped(t *testing.T) {
	is := is.New(t)

	section := buildSection(0x00, 0x1111, []byte{0x01})
	section[len(section)-1] ^= 0xFF // corrupt CRC
	payload := append([]byte{0x00}, section...)

	var called bool
	r := NewReassembler(func(s *Section) { called = true })

	_, err := r.StorePacket(packetWithPayload(0x10, true, payload))
	is.NoErr(err)
	is.True(!called)
	is.Equal(r.CRCErrorCount(), uint64(1))
}
