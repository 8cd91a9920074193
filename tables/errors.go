package tables

import "errors"

// ErrUnsupportedTable is returned by Decode when a section's table_id
// doesn't match any decoder this package implements.
var ErrUnsupportedTable = errors.New("tables: unsupported table_id")
