package report

import (
	"errors"
)

// Sentinel error kinds for this package.
var (
	ErrShapeMismatch = errors.New("feature/label shape mismatch")
	ErrEmptyInput    = errors.New("no rows to evaluate")
	ErrNilFactory    = errors.New("nil classifier factory")
)
