// Package psi reassembles PSI/SI sections from TS packet payloads and
// verifies their CRC-32/MPEG-2 checksum, per ISO/IEC 13818-1 and ARIB
// STD-B10.
package psi

import (
	"bytes"
	"fmt"

	"github.com/icza/bitio"

	"github.com/tonalfitness/libisdb/crc"
)

// MaxSectionLength is the largest value section_length may take.
const MaxSectionLength = 4093

// Header is the common PSI section header, valid for both
// single-byte-length and syntax-extended sections.
type Header struct {
	TableID               uint8
	SectionSyntaxIndicator bool
	PrivateIndicator      bool
	SectionLength         uint16

	// The following are only meaningful when SectionSyntaxIndicator is set.
	TableIDExtension    uint16
	VersionNumber       uint8
	CurrentNextIndicator bool
	SectionNumber       uint8
	LastSectionNumber   uint8
}

// ShortHeaderLength is the byte length of the fixed part of a section
// header before section_length's payload.
const ShortHeaderLength = 3

// SyntaxHeaderLength is the additional byte length of the
// syntax-extended portion of the header (table_id_extension through
// last_section_number), counted inside section_length.
const SyntaxHeaderLength = 5

// ParseHeader reads the header fields from the first bytes of a
// section. It requires at least ShortHeaderLength bytes, and
// ShortHeaderLength+SyntaxHeaderLength when SectionSyntaxIndicator is
// set.
func ParseHeader(b []byte) (*Header, error) {
	if len(b) < ShortHeaderLength {
		return nil, fmt.Errorf("psi: short header needs %d bytes, got %d", ShortHeaderLength, len(b))
	}

	r := bitio.NewReader(bytes.NewReader(b))
	h := &Header{}

	tableID, err := r.ReadBits(8)
	if err != nil {
		return nil, err
	}
	h.TableID = uint8(tableID)

	if h.TableID == 0xFF {
		return nil, fmt.Errorf("psi: reserved table_id 0xFF")
	}

	ssi, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	h.SectionSyntaxIndicator = ssi

	priv, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	h.PrivateIndicator = priv

	if _, err := r.ReadBits(2); err != nil { // reserved
		return nil, err
	}

	length, err := r.ReadBits(12)
	if err != nil {
		return nil, err
	}
	h.SectionLength = uint16(length)
	if h.SectionLength > MaxSectionLength {
		return nil, fmt.Errorf("psi: section_length %d exceeds max %d", h.SectionLength, MaxSectionLength)
	}

	if !h.SectionSyntaxIndicator {
		return h, nil
	}

	if len(b) < ShortHeaderLength+SyntaxHeaderLength {
		return nil, fmt.Errorf("psi: extended header needs %d bytes, got %d",
			ShortHeaderLength+SyntaxHeaderLength, len(b))
	}
	if h.SectionLength < 9 {
		return nil, fmt.Errorf("psi: extended section_length %d below minimum 9", h.SectionLength)
	}

	tableIDExt, err := r.ReadBits(16)
	if err != nil {
		return nil, err
	}
	h.TableIDExtension = uint16(tableIDExt)

	if _, err := r.ReadBits(2); err != nil { // reserved
		return nil, err
	}

	version, err := r.ReadBits(5)
	if err != nil {
		return nil, err
	}
	h.VersionNumber = uint8(version)

	cni, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	h.CurrentNextIndicator = cni

	secNum, err := r.ReadBits(8)
	if err != nil {
		return nil, err
	}
	h.SectionNumber = uint8(secNum)

	lastSecNum, err := r.ReadBits(8)
	if err != nil {
		return nil, err
	}
	h.LastSectionNumber = uint8(lastSecNum)

	if h.SectionNumber > h.LastSectionNumber {
		return nil, fmt.Errorf("psi: section_number %d > last_section_number %d", h.SectionNumber, h.LastSectionNumber)
	}

	return h, nil
}

// Section is a fully reassembled, CRC-verified (when applicable) PSI
// section.
type Section struct {
	Header  *Header
	Payload []byte // table-specific bytes, after the header, excluding CRC
	CRC     uint32
}

// TotalLength is the section's total byte length including the 3-byte
// short header (section_length counts everything after it).
func (s *Section) TotalLength() int {
	return ShortHeaderLength + int(s.Header.SectionLength)
}

// ParseSection parses and, for syntax-extended sections, CRC-verifies
// a complete section from raw bytes (exactly TotalLength() bytes).
func ParseSection(raw []byte) (*Section, error) {
	h, err := ParseHeader(raw)
	if err != nil {
		return nil, err
	}

	total := ShortHeaderLength + int(h.SectionLength)
	if len(raw) < total {
		return nil, fmt.Errorf("psi: need %d bytes, got %d", total, len(raw))
	}
	full := raw[:total]

	s := &Section{Header: h}

	if h.SectionSyntaxIndicator {
		if !crc.Verify(full) {
			return nil, ErrCRCMismatch
		}
		s.CRC = crc.Checksum(full[:len(full)-4])
		s.Payload = full[ShortHeaderLength+SyntaxHeaderLength : len(full)-4]
	} else {
		s.Payload = full[ShortHeaderLength:]
	}

	return s, nil
}
