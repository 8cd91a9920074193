package arib

import (
	"testing"

	"github.com/matryer/is"
)

func TestParseMJDTime(t *testing.T) {
	is := is.New(t)

	// 2020-01-01 12:34:56 JST. MJD for 2020-01-01 is 58849.
	mjd := 58849
	buf := []byte{byte(mjd >> 8), byte(mjd), 0x12, 0x34, 0x56}

	tm, err := ParseMJDTime(buf)
	is.NoErr(err)
	is.Equal(tm.Year(), 2020)
	is.Equal(int(tm.Month()), 1)
	is.Equal(tm.Day(), 1)
	is.Equal(tm.Hour(), 12)
	is.Equal(tm.Minute(), 34)
	is.Equal(tm.Second(), 56)
}

func TestParseDuration(t *testing.T) {
	is := is.New(t)

	buf := []byte{0x00, 0x30, 0x00} // 00:30:00 = 30 minutes
	d, err := ParseDuration(buf)
	is.NoErr(err)
	is.Equal(d.Minutes(), float64(30))
}
