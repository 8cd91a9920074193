// Package descriptor implements the ARIB/MPEG descriptor registry:
// tag-length-value records embedded in PSI table entries, decoded into
// typed variants or a generic pass-through for unrecognized tags.
package descriptor

// Descriptor is implemented by every decoded descriptor variant,
// including the generic Raw fallback for unrecognized tags.
type Descriptor interface {
	// Tag returns the 8-bit descriptor tag.
	Tag() uint8
	// Length returns the descriptor_length byte's value: the number
	// of content bytes following the tag and length bytes.
	Length() uint8
	// Valid reports whether decoding succeeded. A descriptor whose
	// declared length didn't match its content, or whose fields
	// failed a bounds check, decodes to an invalid descriptor rather
	// than erroring the whole block.
	Valid() bool
}

// base is embedded by every concrete descriptor type to carry the
// common tag/length/valid bookkeeping, mirroring DescriptorBase's role
// in the original.
type base struct {
	tag   uint8
	len   uint8
	valid bool
}

func (b *base) Tag() uint8   { return b.tag }
func (b *base) Length() uint8 { return b.len }
func (b *base) Valid() bool  { return b.valid }

// Raw is the generic pass-through variant for tags with no specific
// decoder. A tag whose specific decoder fails keeps its typed variant,
// with Valid() reporting false.
type Raw struct {
	base
	Content []byte
}

func newRaw(tag uint8, content []byte) *Raw {
	r := &Raw{Content: append([]byte(nil), content...)}
	r.tag = tag
	r.len = uint8(len(content))
	r.valid = true
	return r
}
