package tables

import (
	"testing"

	"github.com/matryer/is"

	"github.com/tonalfitness/libisdb/psi"
)

func TestDecodeBIT(t *testing.T) {
	is := is.New(t)

	payload := []byte{
		0x00, 0x00, // broadcast_view_propriety(0) | first_descriptors_length(0)
		0x07,       // broadcaster_id
		0x00, 0x00, // broadcaster_descriptors_length = 0
	}
	s := &psi.Section{
		Header:  &psi.Header{TableID: TableIDBIT, TableIDExtension: 0x0042},
		Payload: payload,
	}

	bit, err := DecodeBIT(s)
	is.NoErr(err)
	is.Equal(bit.OriginalNetworkID, uint16(0x0042))
	is.True(!bit.BroadcastViewPropriety)
	is.Equal(len(bit.Broadcasters), 1)
	is.Equal(bit.Broadcasters[0].BroadcasterID, uint8(7))
}
