// Package tables decodes PSI sections into typed ARIB/MPEG table
// objects: PAT, CAT, PMT, SDT, NIT, EIT, TOT, BIT, CDT, SDTT.
package tables

import (
	"fmt"

	"github.com/tonalfitness/libisdb/descriptor"
	"github.com/tonalfitness/libisdb/psi"
)

// Table ids, per spec.md §6 External Interfaces.
const (
	TableIDPAT          uint8 = 0x00
	TableIDCAT          uint8 = 0x01
	TableIDPMT          uint8 = 0x02
	TableIDNITActual    uint8 = 0x40
	TableIDNITOther     uint8 = 0x41
	TableIDSDTActual    uint8 = 0x42
	TableIDSDTOther     uint8 = 0x46
	TableIDEITPFActual  uint8 = 0x4E
	TableIDEITPFOther   uint8 = 0x4F
	// EIT schedule table ids span two ranges: 0x50-0x57 (actual,
	// Basic bank) and 0x60-0x6F (other). 0x58-0x5F is the Extended
	// bank for the actual TS.
	TableIDEITScheduleActualBasicStart    uint8 = 0x50
	TableIDEITScheduleActualBasicEnd      uint8 = 0x57
	TableIDEITScheduleActualExtendedStart uint8 = 0x58
	TableIDEITScheduleActualExtendedEnd   uint8 = 0x5F
	TableIDEITScheduleOtherStart          uint8 = 0x60
	TableIDEITScheduleOtherEnd            uint8 = 0x6F
	TableIDTOT          uint8 = 0x73
	TableIDSDTT         uint8 = 0xC3
	TableIDBIT          uint8 = 0xC4
	TableIDCDT          uint8 = 0xC8
)

// Table is implemented by every decoded table type.
type Table interface {
	TableID() uint8
}

// PATProgram is one program_number -> PID mapping in a PAT. A
// program_number of 0 designates the network_PID entry rather than a
// program.
type PATProgram struct {
	ProgramNumber uint16
	PID           uint16
}

// PAT is the decoded Program Association Table.
type PAT struct {
	TransportStreamID uint16
	VersionNumber     uint8
	Programs          []PATProgram
}

func (t *PAT) TableID() uint8 { return TableIDPAT }

// NetworkPID returns the PID carrying the NIT, or 0 if the PAT has no
// network_PID entry (program_number 0).
func (t *PAT) NetworkPID() (uint16, bool) {
	for _, p := range t.Programs {
		if p.ProgramNumber == 0 {
			return p.PID, true
		}
	}
	return 0, false
}

// PMTPID returns the PMT PID for programNumber, if present.
func (t *PAT) PMTPID(programNumber uint16) (uint16, bool) {
	for _, p := range t.Programs {
		if p.ProgramNumber == programNumber {
			return p.PID, true
		}
	}
	return 0, false
}

// DecodePAT decodes a PAT from a CRC-verified section.
func DecodePAT(s *psi.Section) (*PAT, error) {
	if s.Header.TableID != TableIDPAT {
		return nil, fmt.Errorf("tables: expected PAT table_id 0x%02X, got 0x%02X", TableIDPAT, s.Header.TableID)
	}

	t := &PAT{
		TransportStreamID: s.Header.TableIDExtension,
		VersionNumber:     s.Header.VersionNumber,
	}

	for pos := 0; pos+3 < len(s.Payload); pos += 4 {
		programNumber := uint16(s.Payload[pos])<<8 | uint16(s.Payload[pos+1])
		pid := uint16(s.Payload[pos+2]&0x1F)<<8 | uint16(s.Payload[pos+3])
		t.Programs = append(t.Programs, PATProgram{ProgramNumber: programNumber, PID: pid})
	}

	return t, nil
}

// CAT is the decoded Conditional Access Table.
type CAT struct {
	VersionNumber uint8
	Descriptors   *descriptor.Block
}

func (t *CAT) TableID() uint8 { return TableIDCAT }

// DecodeCAT decodes a CAT from a CRC-verified section.
func DecodeCAT(s *psi.Section) (*CAT, error) {
	if s.Header.TableID != TableIDCAT {
		return nil, fmt.Errorf("tables: expected CAT table_id 0x%02X, got 0x%02X", TableIDCAT, s.Header.TableID)
	}
	return &CAT{
		VersionNumber: s.Header.VersionNumber,
		Descriptors:   descriptor.ParseBlock(s.Payload),
	}, nil
}
