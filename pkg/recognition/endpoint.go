package recognition

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/teslashibe/go-facerecog/internal/log"
	"github.com/teslashibe/go-facerecog/pkg/frame"
	"github.com/teslashibe/go-facerecog/pkg/imgproc"
	"github.com/teslashibe/go-facerecog/pkg/metrics"
	"github.com/teslashibe/go-facerecog/pkg/wire"
	"gocv.io/x/gocv"
	"golang.org/x/sync/semaphore"
)

// DefaultIdentifyConcurrency bounds concurrent detect-and-identify work.
const DefaultIdentifyConcurrency = 4

// Identification is published for every request that produced a name.
type Identification struct {
	Person string
	Faces  int
	Cols   int
	Rows   int
	At     time.Time

	// Annotated is the downscaled frame with the face boxes drawn.
	Annotated frame.Frame
}

// Observer is told about identifications. Observe runs on the request
// goroutine and must not block for long.
type Observer interface {
	Observe(ctx context.Context, id Identification)
}

// EndpointOption configures an Endpoint.
type EndpointOption func(*Endpoint)

// WithIdentifyConcurrency limits how many identifications run at once.
func WithIdentifyConcurrency(n int64) EndpointOption {
	return func(e *Endpoint) {
		if n > 0 {
			e.sem = semaphore.NewWeighted(n)
		}
	}
}

// WithObservers registers identification observers.
func WithObservers(obs ...Observer) EndpointOption {
	return func(e *Endpoint) { e.observers = append(e.observers, obs...) }
}

// WithEndpointMetrics records face and identity counts to m.
func WithEndpointMetrics(m *metrics.Metrics) EndpointOption {
	return func(e *Endpoint) { e.metrics = m }
}

// WithEndpointLogger sets the logger.
func WithEndpointLogger(l *slog.Logger) EndpointOption {
	return func(e *Endpoint) { e.logger = l }
}

// Endpoint orchestrates a recognition request: decode, convert to gray,
// downscale by four, detect and optionally identify, then encode the
// annotated frame. Capabilities are read-only after construction, so an
// Endpoint serves concurrent requests.
type Endpoint struct {
	detector   Detector
	recognizer Recognizer

	sem       *semaphore.Weighted
	observers []Observer
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewEndpoint creates an endpoint. recognizer may be nil for a
// detection-only service.
func NewEndpoint(detector Detector, recognizer Recognizer, opts ...EndpointOption) *Endpoint {
	e := &Endpoint{
		detector:   detector,
		recognizer: recognizer,
		sem:        semaphore.NewWeighted(DefaultIdentifyConcurrency),
		logger:     log.Component("endpoint"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DetectOnly outlines every face and returns the annotated frame with an
// empty person name.
func (e *Endpoint) DetectOnly(ctx context.Context, hdr wire.Header, body []byte) (*wire.Response, error) {
	start := time.Now()
	img, err := e.prepare(hdr, body)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	faces, err := e.detect(img)
	if err != nil {
		return nil, err
	}
	resp, err := respond("", img)
	if err != nil {
		return nil, err
	}
	e.logger.Info("detect completed", "faces", faces, "elapsed", time.Since(start))
	return resp, nil
}

// DetectAndIdentify predicts the person in the frame, then outlines every
// face. The work runs on its own goroutine, bounded by the identify
// semaphore; cancelling ctx abandons the wait but not the work.
func (e *Endpoint) DetectAndIdentify(ctx context.Context, hdr wire.Header, body []byte) (*wire.Response, error) {
	if e.recognizer == nil {
		return nil, fmt.Errorf("%w: no recognizer configured", ErrCapability)
	}
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	type outcome struct {
		resp *wire.Response
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		defer e.sem.Release(1)
		resp, err := e.identify(hdr, body)
		done <- outcome{resp, err}
	}()

	select {
	case o := <-done:
		return o.resp, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *Endpoint) identify(hdr wire.Header, body []byte) (*wire.Response, error) {
	start := time.Now()
	img, err := e.prepare(hdr, body)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	var label int
	if err := guard("predict", func() error {
		var perr error
		label, perr = e.recognizer.Predict(img)
		return perr
	}); err != nil {
		return nil, err
	}
	person := e.recognizer.Labels().Name(label)

	faces, err := e.detect(img)
	if err != nil {
		return nil, err
	}
	resp, err := respond(person, img)
	if err != nil {
		return nil, err
	}

	e.metrics.ObserveIdentity(person)
	if person != "" {
		annotated, _ := resp.Frame()
		id := Identification{
			Person:    person,
			Faces:     faces,
			Cols:      resp.Cols,
			Rows:      resp.Rows,
			At:        time.Now(),
			Annotated: annotated,
		}
		for _, o := range e.observers {
			o.Observe(context.Background(), id)
		}
	}
	e.logger.Info("identify completed", "person", person, "label", label, "faces", faces,
		"elapsed", time.Since(start))
	return resp, nil
}

// prepare decodes the request and returns the gray, downscaled image.
func (e *Endpoint) prepare(hdr wire.Header, body []byte) (gocv.Mat, error) {
	f, err := wire.DecodeRequest(hdr, body)
	if err != nil {
		return gocv.NewMat(), &ValidationError{Reason: "decode frame", Err: err}
	}
	if f.Width < imgproc.DownscaleFactor || f.Height < imgproc.DownscaleFactor {
		return gocv.NewMat(), &ValidationError{
			Reason: fmt.Sprintf("frame %dx%d smaller than %dx%d", f.Width, f.Height,
				imgproc.DownscaleFactor, imgproc.DownscaleFactor),
		}
	}

	src, err := imgproc.ToMat(f)
	if err != nil {
		return gocv.NewMat(), &ValidationError{Reason: "frame to image", Err: err}
	}
	defer src.Close()

	gray := imgproc.ToGray(src)
	defer gray.Close()
	return imgproc.Downscale(gray), nil
}

// detect finds faces and draws their boxes onto img.
func (e *Endpoint) detect(img gocv.Mat) (int, error) {
	var boxes []image.Rectangle
	if err := guard("detect", func() error {
		var derr error
		boxes, derr = e.detector.Detect(img)
		return derr
	}); err != nil {
		return 0, err
	}
	imgproc.DrawBoxes(&img, boxes)
	e.metrics.AddFaces(len(boxes))
	return len(boxes), nil
}

func respond(person string, img gocv.Mat) (*wire.Response, error) {
	f, err := imgproc.FromMat(img)
	if err != nil {
		return nil, fmt.Errorf("%w: encode response: %w", ErrCapability, err)
	}
	return wire.NewResponse(person, f), nil
}
