package recognition

import (
	"image"
	"math/rand"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// writeNoiseImage writes a w x h gray PNG of seeded noise and returns its path.
func writeNoiseImage(t *testing.T, dir, name string, w, h int, seed int64) string {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	pix := make([]byte, w*h)
	rng.Read(pix)

	m, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC1, pix)
	require.NoError(t, err)
	defer m.Close()

	path := filepath.Join(dir, name)
	require.True(t, gocv.IMWrite(path, m), "write %s", path)
	return path
}

type stubDetector struct {
	boxes []image.Rectangle
	err   error
	panic bool
	calls atomic.Int32
}

func (d *stubDetector) Detect(img gocv.Mat) ([]image.Rectangle, error) {
	d.calls.Add(1)
	if d.panic {
		panic("cascade exploded")
	}
	return d.boxes, d.err
}

func (d *stubDetector) Close() error { return nil }

type stubRecognizer struct {
	label  int
	labels LabelTable
	block  chan struct{}
}

func (r *stubRecognizer) Predict(gocv.Mat) (int, error) {
	if r.block != nil {
		<-r.block
	}
	return r.label, nil
}

func (r *stubRecognizer) Labels() LabelTable { return r.labels }
