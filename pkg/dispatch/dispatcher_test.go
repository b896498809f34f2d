package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-facerecog/internal/log"
	"github.com/teslashibe/go-facerecog/pkg/frame"
	"github.com/teslashibe/go-facerecog/pkg/wire"
)

type statusErr int

func (e statusErr) Error() string   { return fmt.Sprintf("status %d", int(e)) }
func (e statusErr) HTTPStatus() int { return int(e) }

// fakeRequester echoes the frame id and tracks concurrent calls.
type fakeRequester struct {
	delay    time.Duration
	failWith func(id byte) error

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	calls       atomic.Int32
}

func (r *fakeRequester) Recognize(ctx context.Context, f frame.Frame) (*wire.Response, error) {
	n := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	for {
		cur := r.maxInFlight.Load()
		if n <= cur || r.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	r.calls.Add(1)

	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	id := f.Data[0]
	if r.failWith != nil {
		if err := r.failWith(id); err != nil {
			return nil, err
		}
	}
	return &wire.Response{PredictedPerson: fmt.Sprintf("p%d", id)}, nil
}

type collectSink struct {
	mu      sync.Mutex
	results []Result
}

func (s *collectSink) Consume(r Result) {
	s.mu.Lock()
	s.results = append(s.results, r)
	s.mu.Unlock()
}

func (s *collectSink) ids() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.results))
	for i, r := range s.results {
		out[i] = r.Frame.Data[0]
	}
	return out
}

func newTestDispatcher(req Requester, sink Sink) (*Queue, *Dispatcher) {
	q := NewQueue(WithQueueLogger(log.Discard()), WithHighWater(0))
	d := New(q, req, sink, WithLogger(log.Discard()), WithPollInterval(5*time.Millisecond))
	return q, d
}

func TestSingleFlightUnderConcurrentPush(t *testing.T) {
	req := &fakeRequester{delay: 200 * time.Microsecond}
	sink := &collectSink{}
	q, d := newTestDispatcher(req, sink)

	require.NoError(t, d.Start(context.Background()))

	var (
		orderMu sync.Mutex
		pushed  []byte
		wg      sync.WaitGroup
	)
	for g := 0; g < 5; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				id := byte(g*20 + i)
				orderMu.Lock()
				q.Push(testFrame(id))
				pushed = append(pushed, id)
				orderMu.Unlock()
			}
		}(g)
	}
	wg.Wait()

	require.NoError(t, d.Shutdown())

	assert.Equal(t, int32(1), req.maxInFlight.Load())
	assert.Equal(t, int32(100), req.calls.Load())
	assert.Equal(t, pushed, sink.ids(), "results arrive in enqueue order")

	for i, r := range sink.results {
		assert.Equal(t, uint64(i+1), r.Seq)
		assert.NoError(t, r.Err)
	}
}

func TestShutdownDrainsQueuedFrames(t *testing.T) {
	const k = 12
	req := &fakeRequester{delay: 2 * time.Millisecond}
	sink := &collectSink{}
	q, d := newTestDispatcher(req, sink)

	for i := 0; i < k; i++ {
		q.Push(testFrame(byte(i)))
	}
	require.NoError(t, d.Start(context.Background()))
	require.NoError(t, d.Shutdown())

	assert.Len(t, sink.ids(), k)
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, Stopped, d.State())

	select {
	case <-d.Done():
	default:
		t.Fatal("Done should be closed after Shutdown")
	}
}

func TestRecoverableErrorSkipsFrame(t *testing.T) {
	req := &fakeRequester{failWith: func(id byte) error {
		switch id {
		case 2:
			return statusErr(503)
		case 3:
			return errors.New("connection reset")
		}
		return nil
	}}
	sink := &collectSink{}
	q, d := newTestDispatcher(req, sink)

	for i := byte(1); i <= 4; i++ {
		q.Push(testFrame(i))
	}
	require.NoError(t, d.Start(context.Background()))
	require.NoError(t, d.Shutdown())

	require.Len(t, sink.results, 4)
	assert.NoError(t, sink.results[0].Err)
	assert.Equal(t, "p1", sink.results[0].Response.PredictedPerson)

	var te *TransportError
	require.ErrorAs(t, sink.results[1].Err, &te)
	assert.Equal(t, Recoverable, te.Class)
	assert.Nil(t, sink.results[1].Response)
	assert.Error(t, sink.results[2].Err)
	assert.NoError(t, sink.results[3].Err)
}

func TestFatalErrorStopsWorker(t *testing.T) {
	req := &fakeRequester{failWith: func(id byte) error {
		if id == 2 {
			return statusErr(400)
		}
		return nil
	}}
	sink := &collectSink{}
	q, d := newTestDispatcher(req, sink)

	for i := byte(1); i <= 5; i++ {
		q.Push(testFrame(i))
	}
	require.NoError(t, d.Start(context.Background()))

	select {
	case <-d.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop on fatal error")
	}

	err := d.Shutdown()
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, Fatal, te.Class)
	assert.Equal(t, []byte{1, 2}, sink.ids())
	assert.Equal(t, 3, q.Len(), "frames after the fatal error stay queued")
	assert.Equal(t, Stopped, d.State())

	// The dispatcher can be restarted and picks up where it left off.
	req.failWith = nil
	require.NoError(t, d.Start(context.Background()))
	require.NoError(t, d.Shutdown())
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, sink.ids())
}

func TestStartTwice(t *testing.T) {
	_, d := newTestDispatcher(&fakeRequester{}, &collectSink{})
	require.NoError(t, d.Start(context.Background()))
	assert.ErrorIs(t, d.Start(context.Background()), ErrAlreadyRunning)
	require.NoError(t, d.Shutdown())
}

func TestContextCancelEndsIdleWorker(t *testing.T) {
	_, d := newTestDispatcher(&fakeRequester{}, &collectSink{})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, d.Start(ctx))
	cancel()

	select {
	case <-d.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker ignored cancellation")
	}
	assert.ErrorIs(t, d.Err(), context.Canceled)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{name: "bad request", err: statusErr(400), want: Fatal},
		{name: "not found", err: fmt.Errorf("post: %w", statusErr(404)), want: Fatal},
		{name: "server error", err: statusErr(500), want: Recoverable},
		{name: "unavailable", err: statusErr(503), want: Recoverable},
		{name: "plain", err: errors.New("dial tcp: refused"), want: Recoverable},
		{name: "deadline", err: context.DeadlineExceeded, want: Recoverable},
		{name: "canceled", err: context.Canceled, want: Fatal},
		{name: "already classified", err: &TransportError{Class: Fatal, Err: errors.New("x")}, want: Fatal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}
