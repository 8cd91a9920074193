package arib

import (
	"fmt"
	"time"
)

// JST is the ARIB broadcast time zone (UTC+9), used by EIT/SDT/TOT
// time fields per ARIB STD-B10.
var JST = time.FixedZone("JST", 9*60*60)

// DownmixRevision selects which ARIB STD-B21 audio downmix behavior
// AudioComponentDescriptor metadata assumes. Audio decoding itself is
// out of scope; this only affects how that metadata is interpreted by
// a caller-supplied decoder.
type DownmixRevision int

const (
	// DownmixB21_5_3 is STD-B21 revision 5.3 and later: no implicit
	// 1/sqrt(2) downmix factor. This is the default.
	DownmixB21_5_3 DownmixRevision = iota
	// DownmixPre53 is the behavior before STD-B21 5.3, which applied
	// an implicit 1/sqrt(2) attenuation.
	DownmixPre53
)

// bcdByte decodes one BCD-encoded byte (two 4-bit decimal digits).
func bcdByte(b byte) int {
	return int(b>>4)*10 + int(b&0x0F)
}

// ParseMJDTime decodes the 40-bit Modified-Julian-Day + BCD
// time-of-day field used by EIT start_time and TOT JST_time, returning
// the JST wall-clock time it encodes.
func ParseMJDTime(b []byte) (time.Time, error) {
	if len(b) < 5 {
		return time.Time{}, fmt.Errorf("arib: MJD time field needs 5 bytes, got %d", len(b))
	}

	mjd := int(b[0])<<8 | int(b[1])
	hour := bcdByte(b[2])
	minute := bcdByte(b[3])
	second := bcdByte(b[4])

	y, m, d := mjdToDate(mjd)

	return time.Date(y, time.Month(m), d, hour, minute, second, 0, JST), nil
}

// mjdToDate converts a Modified Julian Day number to a Gregorian
// calendar date using the algorithm specified in ARIB STD-B10 / ETSI
// EN 300 468 annex C.
func mjdToDate(mjd int) (year, month, day int) {
	yy := int((float64(mjd) - 15078.2) / 365.25)
	mm := int((float64(mjd) - 14956.1 - float64(int(float64(yy)*365.25))) / 30.6001)
	dd := mjd - 14956 - int(float64(yy)*365.25) - int(float64(mm)*30.6001)

	k := 0
	if mm == 14 || mm == 15 {
		k = 1
	}

	year = yy + k + 1900
	month = mm - 1 - k*12
	day = dd
	return
}

// ParseDuration decodes a 24-bit BCD hh:mm:ss duration field (used by
// EIT's duration) into a time.Duration.
func ParseDuration(b []byte) (time.Duration, error) {
	if len(b) < 3 {
		return 0, fmt.Errorf("arib: duration field needs 3 bytes, got %d", len(b))
	}
	h := bcdByte(b[0])
	m := bcdByte(b[1])
	s := bcdByte(b[2])
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second, nil
}

// ToUTC converts a JST-zoned time (as produced by ParseMJDTime) to
// UTC.
func ToUTC(t time.Time) time.Time {
	return t.UTC()
}

// ToLocal converts a JST-zoned time to the host's local time zone.
func ToLocal(t time.Time) time.Time {
	return t.Local()
}
