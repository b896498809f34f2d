// Package dispatch moves sampled frames from the capture loop to the
// recognition service, one request at a time.
package dispatch

import (
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-facerecog/internal/log"
	"github.com/teslashibe/go-facerecog/pkg/frame"
	"github.com/teslashibe/go-facerecog/pkg/metrics"
)

// DefaultHighWater is the depth at which the queue starts warning.
const DefaultHighWater = 32

// Queue is an unbounded FIFO of frames. Push never blocks and nothing is
// ever dropped; a warning is logged each time the depth crosses the
// high-water mark.
type Queue struct {
	mu    sync.Mutex
	items []frame.Frame
	ready chan struct{}

	highWater int
	above     bool

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithHighWater sets the warning threshold. Zero disables the warning.
func WithHighWater(n int) QueueOption {
	return func(q *Queue) { q.highWater = n }
}

// WithQueueMetrics publishes the depth to m.
func WithQueueMetrics(m *metrics.Metrics) QueueOption {
	return func(q *Queue) { q.metrics = m }
}

// WithQueueLogger sets the logger.
func WithQueueLogger(l *slog.Logger) QueueOption {
	return func(q *Queue) { q.logger = l }
}

// NewQueue creates an empty queue.
func NewQueue(opts ...QueueOption) *Queue {
	q := &Queue{
		ready:     make(chan struct{}, 1),
		highWater: DefaultHighWater,
		logger:    log.Component("dispatch"),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Push appends f.
func (q *Queue) Push(f frame.Frame) {
	q.mu.Lock()
	q.items = append(q.items, f)
	n := len(q.items)
	crossed := q.highWater > 0 && n >= q.highWater && !q.above
	if crossed {
		q.above = true
	}
	q.mu.Unlock()

	q.metrics.SetQueueDepth(n)
	if crossed {
		q.logger.Warn("dispatch queue above high-water mark", "depth", n, "high_water", q.highWater)
	}

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Pop removes the oldest frame, waiting up to timeout for one to arrive.
// It reports false if the queue stayed empty.
func (q *Queue) Pop(timeout time.Duration) (frame.Frame, bool) {
	var timer *time.Timer
	for {
		if f, ok := q.tryPop(); ok {
			if timer != nil {
				timer.Stop()
			}
			return f, true
		}
		if timer == nil {
			timer = time.NewTimer(timeout)
		}
		select {
		case <-q.ready:
		case <-timer.C:
			return q.tryPop()
		}
	}
}

func (q *Queue) tryPop() (frame.Frame, bool) {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		return frame.Frame{}, false
	}
	f := q.items[0]
	q.items[0] = frame.Frame{}
	q.items = q.items[1:]
	n := len(q.items)
	if q.above && n < q.highWater/2 {
		q.above = false
	}
	q.mu.Unlock()

	q.metrics.SetQueueDepth(n)
	return f, true
}

// Len returns the number of queued frames.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain discards every queued frame and returns how many were removed.
func (q *Queue) Drain() int {
	q.mu.Lock()
	n := len(q.items)
	q.items = nil
	q.above = false
	q.mu.Unlock()

	q.metrics.SetQueueDepth(0)
	return n
}
