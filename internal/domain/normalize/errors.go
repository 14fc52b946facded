package normalize

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for this package.
var (
	ErrUnknownEventType = errors.New("unknown event type")
	ErrUnknownPolicy    = errors.New("unknown event-type policy")
)

// ParseError reports a malformed timestamp, carrying the offending value.
type ParseError struct {
	Raw   string
	cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed timestamp %q: %v", e.Raw, e.cause)
}

func (e *ParseError) Unwrap() error { return e.cause }
