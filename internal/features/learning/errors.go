package learning

import (
	"errors"
)

// Sentinel error kinds for this package.
var (
	ErrNilCatalog = errors.New("nil content catalog")
)
