package aggregate

import (
	"errors"
)

// Sentinel error kinds for this package. Both are configuration errors:
// they fail at call time, before any aggregation work begins.
var (
	ErrUnsupportedFunc = errors.New("unsupported aggregation function")
	ErrNoGroupKeys     = errors.New("at least one grouping key required")
)
