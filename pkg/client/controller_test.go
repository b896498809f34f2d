package client

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-facerecog/internal/log"
	"github.com/teslashibe/go-facerecog/pkg/capture"
	"github.com/teslashibe/go-facerecog/pkg/dispatch"
	"github.com/teslashibe/go-facerecog/pkg/frame"
	"github.com/teslashibe/go-facerecog/pkg/wire"
)

type stubDevice struct {
	failAfter int32
	reads     atomic.Int32
}

func (d *stubDevice) Open() error { return nil }

func (d *stubDevice) Read() (frame.Frame, error) {
	n := d.reads.Add(1)
	if d.failAfter > 0 && n > d.failAfter {
		return frame.Frame{}, errors.New("device unplugged")
	}
	time.Sleep(time.Millisecond)
	return frame.Frame{Data: []byte{byte(n), 0}, Width: 2, Height: 1, Format: frame.GRAY8}, nil
}

func (d *stubDevice) Close() error { return nil }

type stubRequester struct {
	err   error
	calls atomic.Int32
}

func (r *stubRequester) Recognize(_ context.Context, f frame.Frame) (*wire.Response, error) {
	n := r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	return &wire.Response{PredictedPerson: fmt.Sprintf("p%d", n), Bytes: f.Data, Cols: f.Width, Rows: f.Height}, nil
}

type countSink struct{ n atomic.Int32 }

func (s *countSink) Consume(dispatch.Result) { s.n.Add(1) }

func newTestController(t *testing.T, dev capture.Device, req dispatch.Requester, opts ...ControllerOption) *Controller {
	t.Helper()
	settings, err := NewSettings("http://127.0.0.1:1", "", 5*time.Millisecond)
	require.NoError(t, err)
	opts = append([]ControllerOption{
		WithControllerLogger(log.Discard()),
		WithDispatchPoll(2 * time.Millisecond),
	}, opts...)
	return NewController(dev, nil, req, settings, opts...)
}

func waitNotification(t *testing.T, c *Controller, want NotificationType) Notification {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case n := <-c.Notifications():
			if n.Type == want {
				return n
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %v notification", want)
			return Notification{}
		}
	}
}

func TestControllerSession(t *testing.T) {
	req := &stubRequester{}
	sink := &countSink{}
	c := newTestController(t, &stubDevice{}, req, WithSinks(sink))

	require.NoError(t, c.Start(context.Background()))
	waitNotification(t, c, NotifyStarted)
	assert.True(t, c.Active())
	assert.ErrorIs(t, c.Start(context.Background()), ErrSessionActive)

	res := waitNotification(t, c, NotifyResult)
	require.NotNil(t, res.Result)
	require.NoError(t, res.Result.Err)
	assert.Equal(t, "p1", res.Result.Response.PredictedPerson)

	require.NoError(t, c.Stop())
	waitNotification(t, c, NotifyStopped)

	st := c.Status()
	assert.False(t, c.Active())
	assert.Equal(t, capture.Idle, st.Capture)
	assert.Equal(t, dispatch.Stopped, st.Dispatch)
	assert.Equal(t, 0, st.Queued, "stop drains the queue")
	assert.Equal(t, req.calls.Load(), sink.n.Load())

	// Stopping twice is harmless and a new session can start.
	require.NoError(t, c.Stop())
	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Stop())
}

func TestControllerFatalDispatchRevertsSession(t *testing.T) {
	req := &stubRequester{err: &APIError{StatusCode: 400, Status: "400 Bad Request"}}
	c := newTestController(t, &stubDevice{}, req)

	require.NoError(t, c.Start(context.Background()))

	n := waitNotification(t, c, NotifyFailed)
	var te *dispatch.TransportError
	require.ErrorAs(t, n.Err, &te)
	assert.Equal(t, dispatch.Fatal, te.Class)

	assert.False(t, c.Active())
	st := c.Status()
	assert.Equal(t, capture.Idle, st.Capture)
	assert.Equal(t, dispatch.Stopped, st.Dispatch)
	assert.Equal(t, 0, st.Queued)
	assert.Equal(t, int32(1), req.calls.Load(), "nothing is sent after a fatal error")
}

func TestControllerAcquisitionFailure(t *testing.T) {
	req := &stubRequester{}
	c := newTestController(t, &stubDevice{failAfter: 20}, req)

	require.NoError(t, c.Start(context.Background()))

	n := waitNotification(t, c, NotifyFailed)
	var acqErr *capture.AcquisitionError
	require.ErrorAs(t, n.Err, &acqErr)
	assert.False(t, c.Active())
	assert.Equal(t, 0, c.Status().Queued, "frames captured before the failure are still sent")
}

func TestControllerIntervalChangeIsLive(t *testing.T) {
	req := &stubRequester{}
	c := newTestController(t, &stubDevice{}, req)
	require.NoError(t, c.Settings().SetSampleInterval(time.Hour))

	require.NoError(t, c.Start(context.Background()))
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(0), req.calls.Load())

	require.NoError(t, c.Settings().SetSampleInterval(time.Millisecond))
	waitNotification(t, c, NotifyResult)
	require.NoError(t, c.Stop())
}
