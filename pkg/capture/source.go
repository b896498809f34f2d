// Package capture runs the acquisition loop: it reads frames from a device,
// mirrors and previews every frame, and hands one frame per sample interval
// to the dispatch queue.
package capture

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-facerecog/internal/log"
	"github.com/teslashibe/go-facerecog/pkg/frame"
)

// Device produces frames. Read returns a fresh buffer on every call.
type Device interface {
	Open() error
	Read() (frame.Frame, error)
	Close() error
}

// Preview renders frames locally. It must not modify the frame.
type Preview interface {
	Show(f frame.Frame) error
	Close() error
}

// Pusher accepts sampled frames. Push must not block.
type Pusher interface {
	Push(f frame.Frame)
}

// IntervalSource yields the current sample interval. It is read once per
// sampling decision, so changes take effect on the next frame.
type IntervalSource interface {
	SampleInterval() time.Duration
}

// State is the session state of a Source.
type State int32

const (
	Idle State = iota
	Capturing
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Capturing:
		return "capturing"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// EventType identifies a lifecycle event.
type EventType int

const (
	EventStarted EventType = iota
	EventStopped
)

func (t EventType) String() string {
	if t == EventStarted {
		return "started"
	}
	return "stopped"
}

// Event is published on the Events channel. Err is set on a Stopped event
// when the session ended because of a failure.
type Event struct {
	Type EventType
	Err  error
	At   time.Time
}

// Option configures a Source.
type Option func(*Source)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Source) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Source) { s.logger = l }
}

// WithMirror controls horizontal mirroring. Enabled by default.
func WithMirror(enabled bool) Option {
	return func(s *Source) { s.mirror = enabled }
}

// WithEventBuffer sets the Events channel capacity. Events that do not fit
// are dropped.
func WithEventBuffer(n int) Option {
	return func(s *Source) { s.eventBuf = n }
}

// Source is the capture session. Only one session runs at a time.
type Source struct {
	dev      Device
	preview  Preview
	queue    Pusher
	interval IntervalSource

	now      func() time.Time
	logger   *slog.Logger
	mirror   bool
	eventBuf int

	state  atomic.Int32
	events chan Event

	mu   sync.Mutex
	done chan struct{}
}

// NewSource wires a capture source. preview may be nil.
func NewSource(dev Device, preview Preview, queue Pusher, interval IntervalSource, opts ...Option) *Source {
	s := &Source{
		dev:      dev,
		preview:  preview,
		queue:    queue,
		interval: interval,
		now:      time.Now,
		logger:   log.Component("capture"),
		mirror:   true,
		eventBuf: 8,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.events = make(chan Event, s.eventBuf)

	closed := make(chan struct{})
	close(closed)
	s.done = closed
	return s
}

// State returns the current session state.
func (s *Source) State() State {
	return State(s.state.Load())
}

// Events returns the lifecycle event channel.
func (s *Source) Events() <-chan Event {
	return s.events
}

// Start opens the device and launches the capture loop. It fails with
// ErrNotIdle unless the source is Idle, and with *AcquisitionError when the
// device cannot be opened.
func (s *Source) Start(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(Idle), int32(Capturing)) {
		return ErrNotIdle
	}
	if err := s.dev.Open(); err != nil {
		s.state.Store(int32(Idle))
		return &AcquisitionError{Op: "open", Err: err}
	}

	done := make(chan struct{})
	s.mu.Lock()
	s.done = done
	s.mu.Unlock()

	s.emit(Event{Type: EventStarted, At: s.now()})
	go s.run(ctx, done)
	return nil
}

// Stop asks the loop to exit after the current iteration. It does not wait;
// use Wait for that. Stop is a no-op unless the source is Capturing.
func (s *Source) Stop() {
	if s.state.CompareAndSwap(int32(Capturing), int32(Stopping)) {
		s.logger.Debug("stop requested")
	}
}

// Wait blocks until the current session, if any, has fully exited.
func (s *Source) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	<-done
}

func (s *Source) run(ctx context.Context, done chan struct{}) {
	var runErr error
	defer func() {
		if err := s.dev.Close(); err != nil {
			s.logger.Warn("close device", "error", err)
		}
		s.state.Store(int32(Idle))
		s.emit(Event{Type: EventStopped, Err: runErr, At: s.now()})
		close(done)
	}()

	lastPush := s.now()
	rateStart := lastPush
	frames := 0

	for {
		if s.State() == Stopping || ctx.Err() != nil {
			return
		}

		f, err := s.dev.Read()
		if err != nil {
			runErr = &AcquisitionError{Op: "read", Err: err}
			s.logger.Error("capture aborted", "error", err)
			return
		}

		now := s.now()
		f.CapturedAt = now
		if s.mirror {
			f = f.Mirror()
		}

		if s.preview != nil {
			if err := s.preview.Show(f); err != nil {
				s.logger.Debug("preview failed", "error", err)
			}
		}

		frames++
		if elapsed := now.Sub(rateStart); elapsed >= time.Second {
			s.logger.Debug("capture rate", "fps", float64(frames)/elapsed.Seconds())
			rateStart, frames = now, 0
		}

		if now.Sub(lastPush) >= s.interval.SampleInterval() {
			s.queue.Push(f)
			lastPush = now
		}
	}
}

func (s *Source) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.logger.Warn("event dropped, channel full", "event", ev.Type)
	}
}
