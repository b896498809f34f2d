package client

import (
	"context"
	"fmt"

	"github.com/teslashibe/go-facerecog/pkg/dispatch"
	"github.com/teslashibe/go-facerecog/pkg/frame"
	"github.com/teslashibe/go-facerecog/pkg/imgproc"
	"github.com/teslashibe/go-facerecog/pkg/wire"
)

// RecognizeFile submits a single image from disk, bypassing capture and
// the queue. The image is sent as-is, without mirroring.
func RecognizeFile(ctx context.Context, req dispatch.Requester, path string, format frame.PixelFormat) (*wire.Response, error) {
	f, err := imgproc.ReadFile(path, format)
	if err != nil {
		return nil, err
	}
	resp, err := req.Recognize(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("recognize %s: %w", path, err)
	}
	return resp, nil
}
