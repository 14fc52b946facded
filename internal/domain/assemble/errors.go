package assemble

import (
	"errors"
)

// Sentinel error kinds for this package.
var (
	ErrNilTable          = errors.New("nil table in join spec")
	ErrAllColumnsDropped = errors.New("drop list removes every column")
)
