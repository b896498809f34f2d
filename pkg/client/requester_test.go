package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-facerecog/pkg/dispatch"
	"github.com/teslashibe/go-facerecog/pkg/frame"
	"github.com/teslashibe/go-facerecog/pkg/wire"
)

func newTestRequester(t *testing.T, handler http.HandlerFunc) *HTTPRequester {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	settings, err := NewSettings(srv.URL, "", time.Second)
	require.NoError(t, err)
	return NewHTTPRequester(settings, WithHTTPClient(srv.Client()))
}

func TestRecognizeSendsHeadersAndBody(t *testing.T) {
	in := frame.Frame{Data: []byte{1, 2, 3, 4, 5, 6}, Width: 3, Height: 2, Format: frame.GRAY8}

	req := newTestRequester(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, wire.DefaultRequestPath, r.URL.Path)
		assert.Equal(t, "10", r.Header.Get(wire.HeaderPixelFormat))
		assert.Equal(t, "3", r.Header.Get(wire.HeaderWidth))
		assert.Equal(t, "2", r.Header.Get(wire.HeaderHeight))
		_, err := uuid.Parse(r.Header.Get(wire.HeaderRequestID))
		assert.NoError(t, err)

		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, in.Data, body)

		out, _ := wire.MarshalResponse(&wire.Response{
			PredictedPerson: "alice", Bytes: []byte{9}, Cols: 1, Rows: 1, Type: frame.MatTypeGRAY8,
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(out)
	})

	resp, err := req.Recognize(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "alice", resp.PredictedPerson)
	assert.Equal(t, []byte{9}, resp.Bytes)
}

func TestRecognizeErrorClasses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   dispatch.Class
	}{
		{name: "bad request", status: http.StatusBadRequest, want: dispatch.Fatal},
		{name: "server error", status: http.StatusInternalServerError, want: dispatch.Recoverable},
		{name: "bad gateway", status: http.StatusBadGateway, want: dispatch.Recoverable},
		{name: "garbage body", status: http.StatusOK, body: "not json", want: dispatch.Recoverable},
		{name: "bad geometry", status: http.StatusOK, body: `{"bytes":"AQ==","cols":4,"rows":4,"type":0}`, want: dispatch.Recoverable},
	}

	in := frame.Frame{Data: []byte{1}, Width: 1, Height: 1, Format: frame.GRAY8}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := newTestRequester(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			})
			_, err := req.Recognize(context.Background(), in)
			require.Error(t, err)
			assert.Equal(t, tc.want, dispatch.Classify(err))
		})
	}
}

func TestRecognizeAPIError(t *testing.T) {
	req := newTestRequester(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	_, err := req.Recognize(context.Background(),
		frame.Frame{Data: []byte{1}, Width: 1, Height: 1, Format: frame.GRAY8})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.HTTPStatus())
	assert.NotEmpty(t, apiErr.RequestID)
}

func TestRecognizeConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	settings, err := NewSettings(url, "", time.Second)
	require.NoError(t, err)
	_, err = NewHTTPRequester(settings).Recognize(context.Background(),
		frame.Frame{Data: []byte{1}, Width: 1, Height: 1, Format: frame.GRAY8})
	require.Error(t, err)
	assert.Equal(t, dispatch.Recoverable, dispatch.Classify(err))
}

func TestRecognizeRejectsOversizedResponse(t *testing.T) {
	in := frame.Frame{Data: []byte{1, 2, 3, 4}, Width: 2, Height: 2, Format: frame.GRAY8}
	out, err := wire.MarshalResponse(&wire.Response{
		PredictedPerson: "alice", Bytes: make([]byte, 64), Cols: 8, Rows: 8, Type: frame.MatTypeGRAY8,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(out)
	}))
	t.Cleanup(srv.Close)
	settings, err := NewSettings(srv.URL, "", time.Second)
	require.NoError(t, err)

	limited := NewHTTPRequester(settings, WithHTTPClient(srv.Client()), WithMaxResponseBytes(int64(len(out)-1)))
	_, err = limited.Recognize(context.Background(), in)
	assert.ErrorIs(t, err, ErrResponseTooLarge)
	assert.Equal(t, dispatch.Recoverable, dispatch.Classify(err))

	exact := NewHTTPRequester(settings, WithHTTPClient(srv.Client()), WithMaxResponseBytes(int64(len(out))))
	resp, err := exact.Recognize(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "alice", resp.PredictedPerson)
}
