package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-facerecog/internal/log"
	"github.com/teslashibe/go-facerecog/pkg/capture"
	"github.com/teslashibe/go-facerecog/pkg/dispatch"
	"github.com/teslashibe/go-facerecog/pkg/metrics"
)

// ErrSessionActive is returned by Start while a session is running.
var ErrSessionActive = errors.New("client: session already active")

// NotificationType identifies a Notification.
type NotificationType int

const (
	NotifyStarted NotificationType = iota
	NotifyStopped
	NotifyResult
	NotifyFailed
)

func (t NotificationType) String() string {
	switch t {
	case NotifyStarted:
		return "started"
	case NotifyStopped:
		return "stopped"
	case NotifyResult:
		return "result"
	case NotifyFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Notification is what the presentation layer consumes.
type Notification struct {
	Type   NotificationType
	Result *dispatch.Result
	Err    error
	At     time.Time
}

// lifecycleReserve slots of the notification buffer are kept free of
// results so start/stop/failure notifications are not lost.
const lifecycleReserve = 4

// Status is a point-in-time view of the session.
type Status struct {
	Capture  capture.State
	Dispatch dispatch.State
	Queued   int
	Interval time.Duration
	Endpoint string
}

type session struct {
	cancel context.CancelFunc
	ended  chan struct{}
}

// ControllerOption configures a Controller.
type ControllerOption func(*controllerOptions)

type controllerOptions struct {
	sinks        []dispatch.Sink
	metrics      *metrics.Metrics
	logger       *slog.Logger
	notifyBuffer int
	mirror       bool
	pollInterval time.Duration
}

// WithSinks adds result sinks that run on the dispatch worker before the
// result is announced.
func WithSinks(sinks ...dispatch.Sink) ControllerOption {
	return func(o *controllerOptions) { o.sinks = append(o.sinks, sinks...) }
}

// WithControllerMetrics records queue and dispatch metrics to m.
func WithControllerMetrics(m *metrics.Metrics) ControllerOption {
	return func(o *controllerOptions) { o.metrics = m }
}

// WithControllerLogger sets the logger.
func WithControllerLogger(l *slog.Logger) ControllerOption {
	return func(o *controllerOptions) { o.logger = l }
}

// WithNotifyBuffer sets the notification channel capacity.
func WithNotifyBuffer(n int) ControllerOption {
	return func(o *controllerOptions) { o.notifyBuffer = n }
}

// WithMirrorFrames controls horizontal mirroring of captured frames.
func WithMirrorFrames(enabled bool) ControllerOption {
	return func(o *controllerOptions) { o.mirror = enabled }
}

// WithDispatchPoll overrides the dispatcher poll interval.
func WithDispatchPoll(d time.Duration) ControllerOption {
	return func(o *controllerOptions) { o.pollInterval = d }
}

// Controller starts and stops capture sessions. Starting a session starts
// the dispatcher before capture; stopping it stops capture first and then
// lets the dispatcher drain.
type Controller struct {
	settings   *Settings
	queue      *dispatch.Queue
	source     *capture.Source
	dispatcher *dispatch.Dispatcher
	sinks      []dispatch.Sink

	notes  chan Notification
	logger *slog.Logger

	mu     sync.Mutex
	active *session
}

// NewController wires capture, queue and dispatcher around dev and req.
// preview may be nil.
func NewController(dev capture.Device, preview capture.Preview, req dispatch.Requester, settings *Settings, opts ...ControllerOption) *Controller {
	o := controllerOptions{
		logger:       log.Component("controller"),
		notifyBuffer: 64,
		mirror:       true,
		pollInterval: dispatch.DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.notifyBuffer <= lifecycleReserve {
		o.notifyBuffer = lifecycleReserve + 1
	}

	c := &Controller{
		settings: settings,
		sinks:    o.sinks,
		notes:    make(chan Notification, o.notifyBuffer),
		logger:   o.logger,
	}
	c.queue = dispatch.NewQueue(dispatch.WithQueueMetrics(o.metrics), dispatch.WithQueueLogger(o.logger))
	c.source = capture.NewSource(dev, preview, c.queue, settings,
		capture.WithMirror(o.mirror), capture.WithLogger(o.logger))
	c.dispatcher = dispatch.New(c.queue, req, dispatch.SinkFunc(c.consume),
		dispatch.WithMetrics(o.metrics), dispatch.WithLogger(o.logger),
		dispatch.WithPollInterval(o.pollInterval))
	return c
}

// Settings returns the live settings.
func (c *Controller) Settings() *Settings {
	return c.settings
}

// Notifications returns the presentation channel.
func (c *Controller) Notifications() <-chan Notification {
	return c.notes
}

// Status reports the current state.
func (c *Controller) Status() Status {
	return Status{
		Capture:  c.source.State(),
		Dispatch: c.dispatcher.State(),
		Queued:   c.queue.Len(),
		Interval: c.settings.SampleInterval(),
		Endpoint: c.settings.Endpoint(),
	}
}

// Active reports whether a session is running.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

// Start begins a capture session.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		return ErrSessionActive
	}

	sctx, cancel := context.WithCancel(ctx)
	if err := c.dispatcher.Start(sctx); err != nil {
		cancel()
		return err
	}
	if err := c.source.Start(sctx); err != nil {
		if derr := c.dispatcher.Shutdown(); derr != nil {
			c.logger.Warn("dispatcher shutdown", "error", derr)
		}
		cancel()
		return err
	}

	s := &session{cancel: cancel, ended: make(chan struct{})}
	c.active = s
	go c.watch(s)

	c.logger.Info("session started", "endpoint", c.settings.Endpoint(), "interval", c.settings.SampleInterval())
	c.notify(Notification{Type: NotifyStarted, At: time.Now()})
	return nil
}

// Stop ends the session: capture stops, queued frames are still sent, and
// Stop returns once the dispatcher has exited. It returns the error that
// ended the dispatcher early, if any.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.active
	if s == nil {
		return nil
	}
	err := c.teardown(s)
	c.logger.Info("session stopped")
	c.notify(Notification{Type: NotifyStopped, Err: err, At: time.Now()})
	return err
}

// teardown must be called with c.mu held.
func (c *Controller) teardown(s *session) error {
	c.source.Stop()
	c.source.Wait()
	c.discardEvents()

	err := c.dispatcher.Shutdown()
	if err != nil {
		if n := c.queue.Drain(); n > 0 {
			c.logger.Warn("discarded queued frames", "count", n)
		}
	}
	s.cancel()
	close(s.ended)
	c.active = nil
	return err
}

// watch ends the session when capture or dispatch fails on its own.
func (c *Controller) watch(s *session) {
	dispDone := c.dispatcher.Done()
	for {
		select {
		case <-s.ended:
			return
		case ev := <-c.source.Events():
			if ev.Type == capture.EventStopped && ev.Err != nil {
				c.fail(s, ev.Err)
				return
			}
		case <-dispDone:
			if err := c.dispatcher.Err(); err != nil {
				c.fail(s, err)
				return
			}
			dispDone = nil
		}
	}
}

func (c *Controller) fail(s *session, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != s {
		return
	}
	if err := c.teardown(s); err != nil && !errors.Is(cause, err) {
		c.logger.Debug("dispatcher error during teardown", "error", err)
	}
	c.logger.Error("session failed", "error", cause)
	c.notify(Notification{Type: NotifyFailed, Err: cause, At: time.Now()})
}

func (c *Controller) discardEvents() {
	for {
		select {
		case <-c.source.Events():
		default:
			return
		}
	}
}

func (c *Controller) consume(r dispatch.Result) {
	for _, sink := range c.sinks {
		sink.Consume(r)
	}
	c.notify(Notification{Type: NotifyResult, Result: &r, Err: r.Err, At: time.Now()})
}

func (c *Controller) notify(n Notification) {
	if n.Type == NotifyResult && len(c.notes) >= cap(c.notes)-lifecycleReserve {
		c.logger.Debug("presentation behind, result dropped")
		return
	}
	select {
	case c.notes <- n:
	default:
		c.logger.Warn("notification dropped", "type", n.Type)
	}
}
