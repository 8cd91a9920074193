package arib

import (
	"testing"

	"github.com/matryer/is"
)

func TestDecodeAlphanumeric(t *testing.T) {
	is := is.New(t)

	d := NewDecoder()
	// ESC ( J  switches to Alphanumeric, then plain ASCII bytes.
	input := []byte{0x1B, 0x28, 0x4A, 'H', 'e', 'l', 'l', 'o'}
	is.Equal(d.Decode(input, 0), "Hello")
}

func TestDecodeHalfWidthKatakana(t *testing.T) {
	is := is.New(t)

	d := NewDecoder()
	input := []byte{0x1B, 0x28, 0x49, 0x31} // ESC ( I, then ｱ
	out := d.Decode(input, 0)
	is.Equal(len([]rune(out)), 1)
}

func TestDecodeCRBecomesNewline(t *testing.T) {
	is := is.New(t)

	d := NewDecoder()
	input := []byte{0x1B, 0x28, 0x4A, 'A', 0x0D, 'B'}
	is.Equal(d.Decode(input, 0), "A\nB")
}
