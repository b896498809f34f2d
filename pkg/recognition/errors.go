package recognition

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrInvalidArgument marks a request the service cannot process as sent.
	ErrInvalidArgument = errors.New("recognition: invalid argument")
	// ErrCapability marks a failure inside a detector or recognizer.
	ErrCapability = errors.New("recognition: capability failed")
	// ErrNotTrained is returned when predicting with an untrained recognizer.
	ErrNotTrained = errors.New("recognition: recognizer not trained")
	// ErrEmptyTrainingSet is returned when no usable training image was found.
	ErrEmptyTrainingSet = errors.New("recognition: empty training set")
)

// ValidationError describes a malformed recognition request.
// errors.Is(err, ErrInvalidArgument) holds for every ValidationError.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid request: %s: %v", e.Reason, e.Err)
	}
	return "invalid request: " + e.Reason
}

func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidArgument}
	}
	return []error{ErrInvalidArgument, e.Err}
}

// StorageError reports a missing or unreadable model, cascade or training
// resource. The service does not start when one occurs.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// guard runs a capability call, turning errors and panics into ErrCapability.
func guard(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s panicked: %v", ErrCapability, op, r)
		}
	}()
	if err := fn(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCapability, op, err)
	}
	return nil
}
