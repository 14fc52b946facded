package pivot

import (
	"errors"
)

// Sentinel error kinds for this package.
var (
	ErrNoValueColumns = errors.New("at least one value column required")
)
