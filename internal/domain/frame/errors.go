package frame

import (
	"errors"
)

// Sentinel error kinds for this package. These allow errors.Is from callers.
var (
	ErrUnknownColumn  = errors.New("unknown column")
	ErrColumnExists   = errors.New("column already exists")
	ErrArityMismatch  = errors.New("row arity mismatch")
	ErrColumnConflict = errors.New("conflicting column names in join")
	ErrLengthMismatch = errors.New("column length mismatch")
)
