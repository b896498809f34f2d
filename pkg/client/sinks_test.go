package client

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-facerecog/pkg/dispatch"
	"github.com/teslashibe/go-facerecog/pkg/frame"
	"github.com/teslashibe/go-facerecog/pkg/wire"
	"gocv.io/x/gocv"
)

func TestResultFileName(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	assert.Equal(t, "alice-1700000000123.jpg", ResultFileName("alice", at))
	assert.Equal(t, "unknown-1700000000123.jpg", ResultFileName("", at))
	assert.Equal(t, "a_b-1700000000123.jpg", ResultFileName("a/b", at))
}

func TestFileSinkWritesJPEG(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	sink := &FileSink{Dir: dir}

	pix := make([]byte, 16*8)
	for i := range pix {
		pix[i] = byte(i)
	}
	sink.Consume(dispatch.Result{Seq: 1, Response: &wire.Response{
		PredictedPerson: "bob", Bytes: pix, Cols: 16, Rows: 8, Type: frame.MatTypeGRAY8,
	}})
	sink.Consume(dispatch.Result{Seq: 2, Err: assert.AnError})

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Regexp(t, `^bob-\d+\.jpg$`, entries[0].Name())

	img := gocv.IMRead(filepath.Join(dir, entries[0].Name()), gocv.IMReadGrayScale)
	defer img.Close()
	assert.Equal(t, 16, img.Cols())
	assert.Equal(t, 8, img.Rows())
}

func TestRecognizeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probe.png")
	src := gocv.NewMatWithSize(12, 20, gocv.MatTypeCV8UC3)
	defer src.Close()
	require.True(t, gocv.IMWrite(path, src))

	req := &stubRequester{}
	resp, err := RecognizeFile(context.Background(), req, path, frame.GRAY8)
	require.NoError(t, err)
	assert.Equal(t, 20, resp.Cols)
	assert.Equal(t, 12, resp.Rows)
	assert.Len(t, resp.Bytes, 240)

	_, err = RecognizeFile(context.Background(), req, filepath.Join(t.TempDir(), "missing.png"), frame.GRAY8)
	assert.Error(t, err)
}
