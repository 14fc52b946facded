package csvio

import (
	"errors"
)

// Sentinel error kinds for this package.
var (
	ErrEmptySchema   = errors.New("empty schema")
	ErrMissingHeader = errors.New("missing header row")
	ErrMissingColumn = errors.New("schema column not in header")
	ErrBadCell       = errors.New("cannot parse cell")
)
