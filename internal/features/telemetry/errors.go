package telemetry

import (
	"errors"
)

// Sentinel error kinds for this package.
var (
	ErrUnsupportedStrategy = errors.New("unsupported filling strategy")
	ErrUnknownNorm         = errors.New("unknown quality norm")
)
