// Package wire encodes recognition requests and responses.
//
// A request is the raw pixel buffer as the body plus three headers:
// pixelFormat (integer code), width and height. A response is a JSON object
// with the predicted person, the annotated frame bytes and its geometry.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/teslashibe/go-facerecog/pkg/frame"
)

// Header names.
const (
	HeaderPixelFormat = "pixelFormat"
	HeaderWidth       = "width"
	HeaderHeight      = "height"
	HeaderRequestID   = "X-Request-ID"
)

// ContentType is the request body media type.
const ContentType = "application/octet-stream"

// Route paths relative to the service root.
const (
	RootPath              = "/recog"
	PathDetectIdentify    = "/detectIdentify"
	PathDetect            = "/detect"
	PathUpload            = "/upload"
	PathAttendance        = "/attendance"
	PathAttendanceSummary = PathAttendance + "/summary"
	DefaultRequestPath    = RootPath + PathDetectIdentify
	DefaultDetectOnlyPath = RootPath + PathDetect
)

// ErrMissingHeader is returned when a required header is absent or not an integer.
var ErrMissingHeader = errors.New("wire: missing or malformed header")

// Header is the metadata sent alongside the raw pixel body.
type Header struct {
	PixelFormat int
	Width       int
	Height      int
}

// Apply writes the header fields into h.
func (hd Header) Apply(h http.Header) {
	h.Set(HeaderPixelFormat, strconv.Itoa(hd.PixelFormat))
	h.Set(HeaderWidth, strconv.Itoa(hd.Width))
	h.Set(HeaderHeight, strconv.Itoa(hd.Height))
}

// ParseHeader reads the request header through get, which is typically
// http.Header.Get or fiber's Ctx.Get.
func ParseHeader(get func(key string) string) (Header, error) {
	var hd Header
	fields := []struct {
		key string
		dst *int
	}{
		{HeaderPixelFormat, &hd.PixelFormat},
		{HeaderWidth, &hd.Width},
		{HeaderHeight, &hd.Height},
	}
	for _, f := range fields {
		raw := get(f.key)
		if raw == "" {
			return Header{}, fmt.Errorf("%w: %s", ErrMissingHeader, f.key)
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return Header{}, fmt.Errorf("%w: %s=%q", ErrMissingHeader, f.key, raw)
		}
		*f.dst = v
	}
	return hd, nil
}

// EncodeRequest turns a frame into the request header and body.
func EncodeRequest(f frame.Frame) (Header, []byte, error) {
	if err := f.Validate(); err != nil {
		return Header{}, nil, err
	}
	return Header{PixelFormat: f.Format.Code(), Width: f.Width, Height: f.Height}, f.Data, nil
}

// DecodeRequest rebuilds a frame from the request header and body.
// An unrecognised pixel format code yields frame.ErrUnknownFormat.
func DecodeRequest(hd Header, body []byte) (frame.Frame, error) {
	format, err := frame.FormatFromCode(hd.PixelFormat)
	if err != nil {
		return frame.Frame{}, err
	}
	return frame.New(body, hd.Width, hd.Height, format)
}

// Response is the recognition reply. Field names match the JSON the
// deployed clients parse.
type Response struct {
	PredictedPerson string `json:"predictedPerson"`
	Bytes           []byte `json:"bytes"`
	Cols            int    `json:"cols"`
	Rows            int    `json:"rows"`
	Type            int    `json:"type"`
}

// NewResponse builds a response from the annotated frame.
func NewResponse(predicted string, annotated frame.Frame) *Response {
	return &Response{
		PredictedPerson: predicted,
		Bytes:           annotated.Data,
		Cols:            annotated.Width,
		Rows:            annotated.Height,
		Type:            annotated.Format.MatType(),
	}
}

// Frame decodes the annotated frame carried by the response.
func (r *Response) Frame() (frame.Frame, error) {
	format, err := frame.FormatFromMatType(r.Type)
	if err != nil {
		return frame.Frame{}, err
	}
	return frame.New(r.Bytes, r.Cols, r.Rows, format)
}

// MarshalResponse encodes r as JSON.
func MarshalResponse(r *Response) ([]byte, error) {
	return json.Marshal(r)
}

// UnmarshalResponse decodes a JSON response body and checks the frame geometry.
func UnmarshalResponse(data []byte) (*Response, error) {
	var r Response
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if _, err := r.Frame(); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &r, nil
}
