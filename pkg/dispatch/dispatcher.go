package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-facerecog/internal/log"
	"github.com/teslashibe/go-facerecog/pkg/frame"
	"github.com/teslashibe/go-facerecog/pkg/metrics"
	"github.com/teslashibe/go-facerecog/pkg/wire"
)

// DefaultPollInterval bounds how long the worker waits on an empty queue
// before re-checking for shutdown.
const DefaultPollInterval = 50 * time.Millisecond

// Requester performs one recognition round trip.
type Requester interface {
	Recognize(ctx context.Context, f frame.Frame) (*wire.Response, error)
}

// Result is the outcome of one dispatched frame.
type Result struct {
	Seq      uint64
	Frame    frame.Frame
	Response *wire.Response
	Err      error
	Latency  time.Duration
}

// Sink receives results in dispatch order. Consume runs on the worker
// goroutine and should return quickly.
type Sink interface {
	Consume(r Result)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Result)

// Consume calls f(r).
func (f SinkFunc) Consume(r Result) { f(r) }

// State is the dispatcher lifecycle state.
type State int32

const (
	Stopped State = iota
	Running
	ShuttingDown
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	case ShuttingDown:
		return "shutting_down"
	default:
		return "unknown"
	}
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(interval time.Duration) Option {
	return func(d *Dispatcher) { d.poll = interval }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithMetrics records outcomes and latency to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// Dispatcher runs a single worker that takes frames off the queue and
// issues one request at a time, so at most one request is in flight.
type Dispatcher struct {
	queue *Queue
	req   Requester
	sink  Sink

	poll    time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics

	state atomic.Int32

	mu    sync.Mutex
	done  chan struct{}
	fatal error
}

// New creates a stopped dispatcher.
func New(queue *Queue, req Requester, sink Sink, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queue:  queue,
		req:    req,
		sink:   sink,
		poll:   DefaultPollInterval,
		logger: log.Component("dispatch"),
	}
	for _, opt := range opts {
		opt(d)
	}
	closed := make(chan struct{})
	close(closed)
	d.done = closed
	return d
}

// State returns the lifecycle state.
func (d *Dispatcher) State() State {
	return State(d.state.Load())
}

// Start launches the worker. ctx scopes every request; cancelling it
// aborts the in-flight request and ends the worker without draining.
func (d *Dispatcher) Start(ctx context.Context) error {
	if !d.state.CompareAndSwap(int32(Stopped), int32(Running)) {
		return ErrAlreadyRunning
	}
	done := make(chan struct{})
	d.mu.Lock()
	d.done = done
	d.fatal = nil
	d.mu.Unlock()

	go d.run(ctx, done)
	d.logger.Debug("dispatcher started")
	return nil
}

// Done is closed when the current worker exits.
func (d *Dispatcher) Done() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.done
}

// Err returns the fatal error that ended the last worker, if any.
func (d *Dispatcher) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fatal
}

// Shutdown asks the worker to finish every queued frame and exit, then
// waits for it. It returns the fatal error that ended the worker early, if
// any. Calling Shutdown on a stopped dispatcher just returns that error.
func (d *Dispatcher) Shutdown() error {
	if d.state.CompareAndSwap(int32(Running), int32(ShuttingDown)) {
		d.logger.Debug("dispatcher draining", "queued", d.queue.Len())
	}
	<-d.Done()
	return d.Err()
}

func (d *Dispatcher) run(ctx context.Context, done chan struct{}) {
	defer func() {
		d.state.Store(int32(Stopped))
		close(done)
		d.logger.Debug("dispatcher stopped")
	}()

	var seq uint64
	for {
		if d.State() == ShuttingDown && d.queue.Len() == 0 {
			return
		}
		if err := ctx.Err(); err != nil {
			d.mu.Lock()
			d.fatal = &TransportError{Class: Fatal, Op: "dispatch", Err: err}
			d.mu.Unlock()
			return
		}

		f, ok := d.queue.Pop(d.poll)
		if !ok {
			continue
		}

		seq++
		start := time.Now()
		resp, err := d.req.Recognize(ctx, f)
		res := Result{Seq: seq, Frame: f, Response: resp, Latency: time.Since(start)}

		if err != nil {
			class := Classify(err)
			res.Err = &TransportError{Class: class, Op: "recognize", Err: err}
			res.Response = nil

			if class == Fatal {
				d.metrics.ObserveDispatch(metrics.ResultFatal, res.Latency)
				d.logger.Error("request failed, dispatcher stopping", "seq", seq, "error", err)
				d.mu.Lock()
				d.fatal = res.Err
				d.mu.Unlock()
				d.sink.Consume(res)
				return
			}

			d.metrics.ObserveDispatch(metrics.ResultRecoverable, res.Latency)
			d.logger.Warn("request failed, skipping frame", "seq", seq, "error", err)
			d.sink.Consume(res)
			continue
		}

		d.metrics.ObserveDispatch(metrics.ResultOK, res.Latency)
		d.logger.Debug("recognized", "seq", seq, "person", resp.PredictedPerson, "latency", res.Latency)
		d.sink.Consume(res)
	}
}
