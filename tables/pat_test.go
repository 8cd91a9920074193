package tables

import (
	"testing"

	"github.com/matryer/is"

	"github.com/tonalfitness/libisdb/psi"
)

func TestDecodePAT(t *testing.T) {
	is := is.New(t)

	payload := []byte{
		0x00, 0x00, 0xE0, 0x10, // program_number 0 -> PID 0x0010 (network PID)
		0x00, 0x01, 0xE0, 0x20, // program_number 1 -> PID 0x0020 (PMT)
	}
	s := &psi.Section{
		Header: &psi.Header{
			TableID:         TableIDPAT,
			TableIDExtension: 1,
			VersionNumber:   3,
		},
		Payload: payload,
	}

	pat, err := DecodePAT(s)
	is.NoErr(err)
	is.Equal(len(pat.Programs), 2)

	pid, ok := pat.NetworkPID()
	is.True(ok)
	is.Equal(pid, uint16(0x0010))

	pmtPID, ok := pat.PMTPID(1)
	is.True(ok)
	is.Equal(pmtPID, uint16(0x0020))

	_, ok = pat.PMTPID(99)
	is.True(!ok)
}

func TestDecodePATWrongTableID(t *testing.T) {
	is := is.New(t)
	s := &psi.Section{Header: &psi.Header{TableID: TableIDCAT}}
	_, err := DecodePAT(s)
	is.True(err != nil)
}

func TestDecodeThroughDispatcher(t *testing.T) {
	is := is.New(t)
	s := &psi.Section{
		Header: &psi.Header{
			TableID:         TableIDPAT,
			TableIDExtension: 7,
		},
		Payload: []byte{0x00, 0x01, 0xE0, 0x21},
	}
	tbl, err := Decode(s)
	is.NoErr(err)
	pat, ok := tbl.(*PAT)
	is.True(ok)
	is.Equal(pat.TransportStreamID, uint16(7))
}

func TestDecodeUnsupportedTable(t *testing.T) {
	is := is.New(t)
	s := &psi.Section{Header: &psi.Header{TableID: 0x99}}
	_, err := Decode(s)
	is.True(err != nil)
}
