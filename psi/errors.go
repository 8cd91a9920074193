package psi

import "errors"

// ErrCRCMismatch is returned when a reassembled section's CRC-32/MPEG-2
// does not verify. The caller-visible effect is a dropped section and
// an incremented per-reassembler counter, not a fatal error.
var ErrCRCMismatch = errors.New("psi: CRC-32/MPEG-2 mismatch")
