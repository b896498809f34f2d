package dispatch

import (
	"context"
	"errors"
	"fmt"
)

// ErrAlreadyRunning is returned by Start while a worker is running.
var ErrAlreadyRunning = errors.New("dispatch: already running")

// Class says whether the dispatcher can keep going after an error.
type Class int

const (
	// Recoverable errors are logged and the worker moves on to the next frame.
	Recoverable Class = iota
	// Fatal errors end the worker.
	Fatal
)

func (c Class) String() string {
	if c == Fatal {
		return "fatal"
	}
	return "recoverable"
}

// StatusCoder is implemented by errors that carry an HTTP status.
type StatusCoder interface {
	HTTPStatus() int
}

// TransportError wraps a failed recognition request.
type TransportError struct {
	Class Class
	Op    string
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Op, e.Class, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Classify decides how the worker treats err. HTTP 4xx statuses and
// cancellation of the session context are Fatal. Network failures,
// timeouts, 5xx statuses and undecodable bodies are Recoverable.
func Classify(err error) Class {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Class
	}
	if errors.Is(err, context.Canceled) {
		return Fatal
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		if s := sc.HTTPStatus(); s >= 400 && s < 500 {
			return Fatal
		}
		return Recoverable
	}
	return Recoverable
}
