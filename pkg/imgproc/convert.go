// Package imgproc bridges frames and OpenCV matrices and holds the image
// operations shared by the client and the recognition service.
package imgproc

import (
	"fmt"
	"time"

	"github.com/teslashibe/go-facerecog/pkg/frame"
	"gocv.io/x/gocv"
)

// ToMat copies the frame into a new gocv.Mat. The caller owns the Mat.
func ToMat(f frame.Frame) (gocv.Mat, error) {
	if err := f.Validate(); err != nil {
		return gocv.NewMat(), err
	}
	mt := gocv.MatTypeCV8UC1
	if f.Format == frame.BGR24 {
		mt = gocv.MatTypeCV8UC3
	}
	view, err := gocv.NewMatFromBytes(f.Height, f.Width, mt, f.Data)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("frame to mat: %w", err)
	}
	defer view.Close()
	return view.Clone(), nil
}

// FromMat copies an 8-bit one or three channel Mat into a Frame.
func FromMat(m gocv.Mat) (frame.Frame, error) {
	if m.Empty() {
		return frame.Frame{}, fmt.Errorf("%w: empty mat", frame.ErrSizeMismatch)
	}
	format, err := frame.FormatFromMatType(int(m.Type()))
	if err != nil {
		return frame.Frame{}, err
	}
	return frame.New(m.ToBytes(), m.Cols(), m.Rows(), format)
}

// EncodeJPEG renders the frame as a JPEG image.
func EncodeJPEG(f frame.Frame) ([]byte, error) {
	m, err := ToMat(f)
	if err != nil {
		return nil, err
	}
	defer m.Close()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, m)
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}

// ReadFile loads an image from disk as a Frame in the requested format.
func ReadFile(path string, format frame.PixelFormat) (frame.Frame, error) {
	flag := gocv.IMReadColor
	if format == frame.GRAY8 {
		flag = gocv.IMReadGrayScale
	}
	m := gocv.IMRead(path, flag)
	defer m.Close()
	if m.Empty() {
		return frame.Frame{}, fmt.Errorf("read image %s: empty or unreadable", path)
	}
	f, err := FromMat(m)
	if err != nil {
		return frame.Frame{}, fmt.Errorf("read image %s: %w", path, err)
	}
	f.CapturedAt = time.Now()
	return f, nil
}
