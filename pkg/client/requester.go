package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/teslashibe/go-facerecog/internal/httpc"
	"github.com/teslashibe/go-facerecog/internal/log"
	"github.com/teslashibe/go-facerecog/pkg/frame"
	"github.com/teslashibe/go-facerecog/pkg/wire"
)

// maxResponseBytes caps the response body. An annotated 4K BGR frame is
// about 25 MB, base64 adds a third.
const maxResponseBytes = 64 << 20

// ErrResponseTooLarge is returned when the response body exceeds the limit.
var ErrResponseTooLarge = errors.New("client: response too large")

// APIError is returned for a non-2xx response.
type APIError struct {
	StatusCode int
	Status     string
	RequestID  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("recognition service returned %s (request %s)", e.Status, e.RequestID)
}

// HTTPStatus returns the response status code.
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

// HTTPRequester posts frames to the recognition service.
type HTTPRequester struct {
	settings *Settings
	client   *http.Client
	maxBytes int64
	logger   *slog.Logger
}

// RequesterOption configures an HTTPRequester.
type RequesterOption func(*HTTPRequester)

// WithHTTPClient replaces the shared httpc client.
func WithHTTPClient(c *http.Client) RequesterOption {
	return func(r *HTTPRequester) { r.client = c }
}

// WithMaxResponseBytes overrides the response body limit.
func WithMaxResponseBytes(n int64) RequesterOption {
	return func(r *HTTPRequester) {
		if n > 0 {
			r.maxBytes = n
		}
	}
}

// NewHTTPRequester creates a requester that reads the endpoint from settings
// on every call.
func NewHTTPRequester(settings *Settings, opts ...RequesterOption) *HTTPRequester {
	r := &HTTPRequester{
		settings: settings,
		client:   httpc.Client,
		maxBytes: maxResponseBytes,
		logger:   log.Component("requester"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Recognize sends f and decodes the annotated response.
func (r *HTTPRequester) Recognize(ctx context.Context, f frame.Frame) (*wire.Response, error) {
	hdr, body, err := wire.EncodeRequest(f)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	endpoint := r.settings.Endpoint()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", wire.ContentType)
	req.Header.Set(wire.HeaderRequestID, requestID)
	hdr.Apply(req.Header)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(data)) > r.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes (request %s)", ErrResponseTooLarge, r.maxBytes, requestID)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Status: resp.Status, RequestID: requestID}
	}

	out, err := wire.UnmarshalResponse(data)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("response", "request_id", requestID, "person", out.PredictedPerson,
		"cols", out.Cols, "rows", out.Rows)
	return out, nil
}
