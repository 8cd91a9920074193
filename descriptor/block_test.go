package descriptor

import (
	"testing"

	"github.com/matryer/is"
)

func TestParseBlockDecodesKnownTag(t *testing.T) {
	is := is.New(t)

	// CA descriptor: tag=0x09, length=4, CA_system_id=0x0005, CA_PID=0x0200
	data := []byte{TagCA, 0x04, 0x00, 0x05, 0x02, 0x00}

	blk := ParseBlock(data)
	is.Equal(blk.Count(), 1)

	ca, ok := blk.ByIndex(0).(*CADescriptor)
	is.True(ok)
	is.Equal(ca.CASystemID, uint16(0x0005))
	is.Equal(ca.CAPID, uint16(0x0200))
	is.True(ca.Valid())
}

func TestParseBlockUnknownTagIsRaw(t *testing.T) {
	is := is.New(t)

	data := []byte{0x7F, 0x02, 0xAA, 0xBB}
	blk := ParseBlock(data)
	is.Equal(blk.Count(), 1)

	raw, ok := blk.ByIndex(0).(*Raw)
	is.True(ok)
	is.Equal(raw.Content, []byte{0xAA, 0xBB})
}

func TestParseBlockNonDestructivePartial(t *testing.T) {
	is := is.New(t)

	good := []byte{TagCA, 0x04, 0x00, 0x05, 0x02, 0x00}
	// Second descriptor claims a length longer than remaining bytes.
	bad := []byte{TagStreamID, 0x05, 0x01}
	data := append(append([]byte{}, good...), bad...)

	blk := ParseBlock(data)
	is.Equal(blk.Count(), 1)
	is.True(blk.ByTag(TagCA) != nil)
}
