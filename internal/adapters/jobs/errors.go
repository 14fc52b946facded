package jobs

import (
	"errors"
)

// Sentinel error kinds for this package.
var (
	ErrEnqueueFailed   = errors.New("job could not be enqueued")
	ErrBatchIncomplete = errors.New("batch finished with unexecuted jobs")
)
