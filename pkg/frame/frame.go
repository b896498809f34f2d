// Package frame defines the pixel buffer that flows from the capture device
// through the dispatcher to the recognition endpoint.
package frame

import (
	"bytes"
	"errors"
	"fmt"
	"time"
)

// PixelFormat identifies the layout of a single pixel in a Frame.
type PixelFormat int

// Supported pixel formats.
const (
	FormatUnknown PixelFormat = iota
	GRAY8                     // single 8-bit channel
	BGR24                     // three 8-bit channels, blue first
)

// Request header codes carried in the pixelFormat header. Deployed clients
// send these values, so they must not change.
const (
	CodeBGR24 = 5
	CodeGRAY8 = 10
)

// OpenCV matrix type codes used in the response "type" field.
const (
	MatTypeGRAY8 = 0  // CV_8UC1
	MatTypeBGR24 = 16 // CV_8UC3
)

// ErrUnknownFormat is returned for a pixel format code that is not GRAY8 or BGR24.
var ErrUnknownFormat = errors.New("frame: unknown pixel format")

// ErrSizeMismatch is returned when a buffer does not match its declared dimensions.
var ErrSizeMismatch = errors.New("frame: buffer size mismatch")

// MaxDimension bounds width and height. It keeps width*height*bpp well inside
// int and the dimensions inside OpenCV's 32-bit sizes.
const MaxDimension = 1 << 14

// String returns the format name.
func (p PixelFormat) String() string {
	switch p {
	case GRAY8:
		return "GRAY8"
	case BGR24:
		return "BGR24"
	default:
		return fmt.Sprintf("PixelFormat(%d)", int(p))
	}
}

// BytesPerPixel returns the number of bytes a single pixel occupies.
func (p PixelFormat) BytesPerPixel() int {
	switch p {
	case GRAY8:
		return 1
	case BGR24:
		return 3
	default:
		return 0
	}
}

// Code returns the request header code for the format.
func (p PixelFormat) Code() int {
	switch p {
	case GRAY8:
		return CodeGRAY8
	case BGR24:
		return CodeBGR24
	default:
		return -1
	}
}

// MatType returns the OpenCV matrix type for the format.
func (p PixelFormat) MatType() int {
	switch p {
	case GRAY8:
		return MatTypeGRAY8
	case BGR24:
		return MatTypeBGR24
	default:
		return -1
	}
}

// FormatFromCode maps a request header code to a PixelFormat.
func FormatFromCode(code int) (PixelFormat, error) {
	switch code {
	case CodeGRAY8:
		return GRAY8, nil
	case CodeBGR24:
		return BGR24, nil
	default:
		return FormatUnknown, fmt.Errorf("%w: code %d", ErrUnknownFormat, code)
	}
}

// FormatFromMatType maps an OpenCV matrix type to a PixelFormat.
func FormatFromMatType(t int) (PixelFormat, error) {
	switch t {
	case MatTypeGRAY8:
		return GRAY8, nil
	case MatTypeBGR24:
		return BGR24, nil
	default:
		return FormatUnknown, fmt.Errorf("%w: mat type %d", ErrUnknownFormat, t)
	}
}

// ParseFormat maps a format name ("gray", "bgr") to a PixelFormat.
func ParseFormat(name string) (PixelFormat, error) {
	switch name {
	case "gray", "GRAY8", "gray8":
		return GRAY8, nil
	case "bgr", "BGR24", "bgr24", "color":
		return BGR24, nil
	default:
		return FormatUnknown, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Frame is a row-major pixel buffer without row padding.
// A Frame is never modified after it has been handed to a queue; operations
// that change pixels return a new Frame.
type Frame struct {
	Data       []byte
	Width      int
	Height     int
	Format     PixelFormat
	CapturedAt time.Time
}

// New builds a Frame and validates the buffer length.
func New(data []byte, width, height int, format PixelFormat) (Frame, error) {
	f := Frame{Data: data, Width: width, Height: height, Format: format}
	if err := f.Validate(); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// Validate checks that the buffer matches width*height*bytesPerPixel.
func (f Frame) Validate() error {
	bpp := f.Format.BytesPerPixel()
	if bpp == 0 {
		return fmt.Errorf("%w: %v", ErrUnknownFormat, f.Format)
	}
	if f.Width <= 0 || f.Height <= 0 || f.Width > MaxDimension || f.Height > MaxDimension {
		return fmt.Errorf("%w: %dx%d outside 1..%d", ErrSizeMismatch, f.Width, f.Height, MaxDimension)
	}
	if want := f.Width * f.Height * bpp; len(f.Data) != want {
		return fmt.Errorf("%w: got %d bytes, want %d for %dx%d %v",
			ErrSizeMismatch, len(f.Data), want, f.Width, f.Height, f.Format)
	}
	return nil
}

// Stride returns the number of bytes in one row.
func (f Frame) Stride() int {
	return f.Width * f.Format.BytesPerPixel()
}

// Mirror returns a horizontally flipped copy of the frame.
func (f Frame) Mirror() Frame {
	bpp := f.Format.BytesPerPixel()
	stride := f.Stride()
	out := make([]byte, len(f.Data))
	for y := 0; y < f.Height; y++ {
		row := f.Data[y*stride : (y+1)*stride]
		dst := out[y*stride : (y+1)*stride]
		for x := 0; x < f.Width; x++ {
			copy(dst[(f.Width-1-x)*bpp:(f.Width-x)*bpp], row[x*bpp:(x+1)*bpp])
		}
	}
	mirrored := f
	mirrored.Data = out
	return mirrored
}

// Equal reports whether two frames carry the same pixels and header.
func (f Frame) Equal(o Frame) bool {
	return f.Width == o.Width && f.Height == o.Height && f.Format == o.Format &&
		bytes.Equal(f.Data, o.Data)
}
