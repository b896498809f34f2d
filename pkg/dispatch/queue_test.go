package dispatch

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-facerecog/internal/log"
	"github.com/teslashibe/go-facerecog/pkg/frame"
	"github.com/teslashibe/go-facerecog/pkg/metrics"
)

func testFrame(id byte) frame.Frame {
	return frame.Frame{Data: []byte{id}, Width: 1, Height: 1, Format: frame.GRAY8}
}

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(WithQueueLogger(log.Discard()))
	for i := byte(1); i <= 5; i++ {
		q.Push(testFrame(i))
	}
	assert.Equal(t, 5, q.Len())

	for i := byte(1); i <= 5; i++ {
		f, ok := q.Pop(time.Millisecond)
		require.True(t, ok)
		assert.Equal(t, i, f.Data[0])
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueuePopTimeout(t *testing.T) {
	q := NewQueue(WithQueueLogger(log.Discard()))

	start := time.Now()
	_, ok := q.Pop(20 * time.Millisecond)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestQueuePopWakesOnPush(t *testing.T) {
	q := NewQueue(WithQueueLogger(log.Discard()))

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Push(testFrame(42))
	}()

	f, ok := q.Pop(2 * time.Second)
	require.True(t, ok)
	assert.Equal(t, byte(42), f.Data[0])
}

func TestQueueDrainAndDepthGauge(t *testing.T) {
	m := metrics.New()
	q := NewQueue(WithQueueLogger(log.Discard()), WithQueueMetrics(m), WithHighWater(2))

	q.Push(testFrame(1))
	q.Push(testFrame(2))
	q.Push(testFrame(3))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.QueueDepth))

	assert.Equal(t, 3, q.Drain())
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.QueueDepth))

	_, ok := q.Pop(time.Millisecond)
	assert.False(t, ok)
}
