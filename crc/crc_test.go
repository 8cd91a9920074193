package crc

import (
	"testing"

	"github.com/matryer/is"
)

func TestChecksumEmpty(t *testing.T) {
	is := is.New(t)
	is.Equal(Checksum(nil), uint32(0xFFFFFFFF))
}

func TestVerifyRoundTrip(t *testing.T) {
	is := is.New(t)

	payload := []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}
	sum := Checksum(payload)

	buf := append(append([]byte{}, payload...),
		byte(sum>>24), byte(sum>>16), byte(sum>>8), byte(sum))

	is.True(Verify(buf))

	buf[0] ^= 0xFF
	is.True(!Verify(buf))
}

func TestVerifyTooShort(t *testing.T) {
	is := is.New(t)
	is.True(!Verify([]byte{0x01, 0x02, 0x03}))
}
