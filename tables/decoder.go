package tables

import (
	"fmt"

	"github.com/tonalfitness/libisdb/psi"
)

// Decode dispatches a CRC-verified section to the right table decoder
// by table_id, returning a Table. Unrecognized table ids return
// ErrUnsupportedTable rather than an error wrapping a lower-level
// failure, so callers can distinguish "not a table we know" from "a
// table we know but couldn't parse."
func Decode(s *psi.Section) (Table, error) {
	switch {
	case s.Header.TableID == TableIDPAT:
		return DecodePAT(s)
	case s.Header.TableID == TableIDCAT:
		return DecodeCAT(s)
	case s.Header.TableID == TableIDPMT:
		return DecodePMT(s)
	case s.Header.TableID == TableIDSDTActual || s.Header.TableID == TableIDSDTOther:
		return DecodeSDT(s)
	case s.Header.TableID == TableIDNITActual || s.Header.TableID == TableIDNITOther:
		return DecodeNIT(s)
	case isEITTableID(s.Header.TableID):
		return DecodeEIT(s)
	case s.Header.TableID == TableIDTOT:
		return DecodeTOT(s)
	case s.Header.TableID == TableIDSDTT:
		return DecodeSDTT(s)
	case s.Header.TableID == TableIDBIT:
		return DecodeBIT(s)
	case s.Header.TableID == TableIDCDT:
		return DecodeCDT(s)
	default:
		return nil, fmt.Errorf("%w: table_id 0x%02X", ErrUnsupportedTable, s.Header.TableID)
	}
}
