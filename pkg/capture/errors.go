package capture

import (
	"errors"
	"fmt"
)

// ErrNotIdle is returned by Start when a session is already running or
// still winding down.
var ErrNotIdle = errors.New("capture: source is not idle")

// AcquisitionError reports a failure to open or read the capture device.
// It ends the capture session.
type AcquisitionError struct {
	Op  string // "open" or "read"
	Err error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("capture %s: %v", e.Op, e.Err)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}
