// Package arib decodes ARIB STD-B24 8-bit text and ARIB STD-B10
// Modified-Julian-Day/BCD time fields, the two broadcast-specific wire
// formats table decoders need that no general-purpose library covers.
package arib

import "strings"

// DecodeFlag enumerates the string decoder's behavioral switches,
// named in spec.md's External Interfaces section.
type DecodeFlag uint

const (
	// UseCharSize is accepted by Decode but does not change its
	// output: characters are emitted at the width of the designated
	// code set whether or not it is set (alphanumerics as ASCII,
	// half-width katakana as halfwidth forms).
	UseCharSize DecodeFlag = 1 << iota
	// Latin1 maps bytes decoded in the Latin code set to their
	// Latin-1 code points. No escape sequence handled by Decoder
	// designates that set, so the flag does not affect Decode's output.
	Latin1
)

// codeSet identifies which graphic character set is currently
// designated into G0, per ARIB STD-B24 Table 7-3 (the subset used in
// ordinary broadcast text: DRCS and the mosaic sets are not handled).
type codeSet int

const (
	setKanji codeSet = iota
	setAlphanumeric
	setHiragana
	setKatakana
	setHalfWidthKatakana
	setLatin1
)

// Decoder holds the designated-code-set state across a Decode call,
// mirroring ARIBStringDecoder's persistent G0 state (escape sequences
// in one string can affect how a later call, e.g. a continuation
// field, should be interpreted, so the decoder is reusable rather than
// a pure function).
type Decoder struct {
	current codeSet
}

// NewDecoder returns a decoder defaulting to the Kanji (2-byte) set,
// the default initial G0 designation for ARIB broadcast text.
func NewDecoder() *Decoder {
	return &Decoder{current: setKanji}
}

// Decode converts ARIB 8-bit text into a Go string.
func (d *Decoder) Decode(data []byte, flags DecodeFlag) string {
	var b strings.Builder
	i := 0
	for i < len(data) {
		c := data[i]

		switch {
		case c == 0x1B: // ESC
			n := d.handleEscape(data[i+1:])
			i += 1 + n
			continue
		case c == 0x0D: // CR -> line break in ARIB captions
			b.WriteByte('\n')
			i++
			continue
		case c == 0x0A: // LF, ignored (CR alone delimits lines)
			i++
			continue
		case c == 0x00: // NUL padding
			i++
			continue
		case c == 0x20 && d.current != setHalfWidthKatakana:
			b.WriteByte(' ')
			i++
			continue
		}

		switch d.current {
		case setAlphanumeric:
			b.WriteByte(toFullOrHalf(c, flags))
			i++
		case setHalfWidthKatakana:
			b.WriteRune(halfWidthKatakana(c))
			i++
		case setLatin1:
			if flags&Latin1 != 0 {
				b.WriteRune(rune(c))
			} else {
				b.WriteByte(c)
			}
			i++
		case setHiragana:
			if i+1 >= len(data) {
				i++
				continue
			}
			b.WriteRune(hiragana(c, data[i+1]))
			i += 2
		case setKatakana:
			if i+1 >= len(data) {
				i++
				continue
			}
			b.WriteRune(fullWidthKatakana(c, data[i+1]))
			i += 2
		default: // setKanji
			if i+1 >= len(data) {
				i++
				continue
			}
			b.WriteRune(kanji(c, data[i+1]))
			i += 2
		}
	}
	return b.String()
}

// handleEscape parses one escape sequence starting after the ESC
// byte, updates the designated code set, and returns how many bytes
// (after ESC) were consumed.
func (d *Decoder) handleEscape(rest []byte) int {
	if len(rest) == 0 {
		return 0
	}

	switch rest[0] {
	case 0x24: // '$' - 2-byte set designation
		if len(rest) >= 2 && rest[1] == 0x42 { // ESC $ B : Kanji (JIS X 0208)
			d.current = setKanji
			return 2
		}
		if len(rest) >= 3 && rest[1] == 0x28 && rest[2] == 0x44 { // ESC $ ( D : additional Kanji plane
			d.current = setKanji
			return 3
		}
		if len(rest) >= 2 {
			d.current = setKanji
			return 2
		}
		return 1
	case 0x28: // '(' - 1-byte set designation
		if len(rest) >= 2 {
			switch rest[1] {
			case 0x4A: // J : Alphanumeric
				d.current = setAlphanumeric
				return 2
			case 0x49: // I : Half-width Katakana
				d.current = setHalfWidthKatakana
				return 2
			case 0x31: // Hiragana (single-byte designation variant)
				d.current = setHiragana
				return 2
			case 0x32:
				d.current = setKatakana
				return 2
			}
			return 2
		}
		return 1
	default:
		return 1
	}
}

func toFullOrHalf(c byte, flags DecodeFlag) byte {
	return c
}

// halfWidthKatakana maps a JIS X 0201 half-width katakana byte
// (0x21-0x5F range as carried in ARIB text) to its Unicode code point
// in the Halfwidth and Fullwidth Forms block.
func halfWidthKatakana(c byte) rune {
	if c < 0x21 || c > 0x5F {
		return rune(c)
	}
	return 0xFF61 + rune(c-0x21)
}

// kanji maps a 2-byte JIS row/cell pair to a Unicode code point.
//
// This is a reduced mapping covering the JIS X 0208 kuten layout by
// offset into the CJK Unified Ideographs block in row/cell order; it
// is not the full JIS X 0213 table (which requires a multi-thousand
// entry lookup not reproduced here). Rows falling in known
// non-kanji bands (symbols, full-width alphanumerics, kana) are
// special-cased; everything else falls through to the ideograph
// approximation.
func kanji(b1, b2 byte) rune {
	row := int(b1) - 0x21
	cell := int(b2) - 0x21
	if row < 0 || cell < 0 || row > 93 || cell > 93 {
		return '�'
	}

	switch row {
	case 2: // kuten row 3: full-width digits and Latin letters
		if cell >= 32 {
			return fullWidthLatin(cell - 32)
		}
		return fullWidthDigitsSymbols(cell)
	case 3: // kuten row 4: hiragana
		return hiraganaCell(cell)
	case 4: // kuten row 5: katakana
		return katakanaCell(cell)
	}

	return 0x4E00 + rune(row*94+cell)
}

func fullWidthDigitsSymbols(cell int) rune {
	switch {
	case cell >= 15 && cell <= 24: // 0-9
		return '0' + rune(cell-15)
	default:
		return 0x3000 + rune(cell)
	}
}

func fullWidthLatin(cell int) rune {
	switch {
	case cell >= 0 && cell <= 25:
		return 'A' + rune(cell)
	case cell >= 32 && cell <= 57:
		return 'a' + rune(cell-32)
	default:
		return '?'
	}
}

func hiraganaCell(cell int) rune {
	if cell < 0 || cell > 82 {
		return '�'
	}
	return 0x3041 + rune(cell)
}

func katakanaCell(cell int) rune {
	if cell < 0 || cell > 85 {
		return '�'
	}
	return 0x30A1 + rune(cell)
}

func hiragana(b1, b2 byte) rune {
	return hiraganaCell(int(b2) - 0x21)
}

func fullWidthKatakana(b1, b2 byte) rune {
	return katakanaCell(int(b2) - 0x21)
}
