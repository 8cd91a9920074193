package tables

import (
	"testing"

	"github.com/matryer/is"

	"github.com/tonalfitness/libisdb/descriptor"
	"github.com/tonalfitness/libisdb/psi"
)

func TestDecodeNIT(t *testing.T) {
	is := is.New(t)

	// network_descriptors_length=0, transport_stream_loop_length=6,
	// one TS entry with zero-length descriptors.
	payload := []byte{
		0x00, 0x00, // network_descriptors_length
		0x00, 0x06, // transport_stream_loop_length
		0x00, 0x01, // transport_stream_id
		0x00, 0x02, // original_network_id
		0x00, 0x00, // descriptors_loop_length
	}
	s := &psi.Section{
		Header: &psi.Header{
			TableID:          TableIDNITActual,
			TableIDExtension: 0x0003,
		},
		Payload: payload,
	}

	nit, err := DecodeNIT(s)
	is.NoErr(err)
	is.True(nit.IsActual())
	is.Equal(nit.NetworkID, uint16(3))
	is.Equal(len(nit.TransportStreams), 1)
	is.Equal(nit.TransportStreams[0].TransportStreamID, uint16(1))
	is.Equal(nit.TransportStreams[0].OriginalNetworkID, uint16(2))
	is.True(!nit.HasPartialReception())
}

func TestNITHasPartialReception(t *testing.T) {
	is := is.New(t)
	nit := &NIT{
		TransportStreams: []NITTransportStream{
			{Descriptors: descriptor.ParseBlock([]byte{byte(descriptor.TagPartialReception), 0x00})},
		},
	}
	is.True(nit.HasPartialReception())
}
