package tables

import (
	"testing"

	"github.com/matryer/is"

	"github.com/tonalfitness/libisdb/psi"
)

func TestDecodeCDT(t *testing.T) {
	is := is.New(t)

	payload := []byte{
		0x01,       // data_type
		0x00, 0x00, // descriptors_loop_length = 0
		0xDE, 0xAD, 0xBE, 0xEF, // data_module bytes
	}
	s := &psi.Section{
		Header:  &psi.Header{TableID: TableIDCDT, TableIDExtension: 0x1234},
		Payload: payload,
	}

	cdt, err := DecodeCDT(s)
	is.NoErr(err)
	is.Equal(cdt.OriginalNetworkID, uint16(0x1234))
	is.Equal(cdt.DataType, uint8(1))
	is.Equal(len(cdt.DataModule), 4)
}
