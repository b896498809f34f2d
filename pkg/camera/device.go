package camera

import (
	"errors"
	"fmt"
	"sync"

	"github.com/teslashibe/go-facerecog/pkg/frame"
	"github.com/teslashibe/go-facerecog/pkg/imgproc"
	"gocv.io/x/gocv"
)

// Device errors.
var (
	ErrNotOpen    = errors.New("camera: device not open")
	ErrReadFailed = errors.New("camera: read failed")
	ErrEmptyFrame = errors.New("camera: empty frame")
)

// GocvDevice reads frames from a local video device through OpenCV.
type GocvDevice struct {
	config Config

	mu  sync.Mutex
	vc  *gocv.VideoCapture
	img gocv.Mat
}

// NewGocvDevice creates a device for cfg. Nothing is opened until Open.
func NewGocvDevice(cfg Config) *GocvDevice {
	return &GocvDevice{config: cfg}
}

// Open opens the video device and applies the requested resolution.
func (d *GocvDevice) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.vc != nil {
		return nil
	}
	vc, err := gocv.OpenVideoCapture(d.config.DeviceID)
	if err != nil {
		return fmt.Errorf("open device %d: %w", d.config.DeviceID, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return fmt.Errorf("open device %d: not available", d.config.DeviceID)
	}
	if d.config.Width > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(d.config.Width))
	}
	if d.config.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameHeight, float64(d.config.Height))
	}

	d.vc = vc
	d.img = gocv.NewMat()
	return nil
}

// Read grabs the next frame. A fresh buffer is returned every call.
func (d *GocvDevice) Read() (frame.Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.vc == nil {
		return frame.Frame{}, ErrNotOpen
	}
	if ok := d.vc.Read(&d.img); !ok {
		return frame.Frame{}, ErrReadFailed
	}
	if d.img.Empty() {
		return frame.Frame{}, ErrEmptyFrame
	}

	if d.config.Format == frame.GRAY8 {
		gray := imgproc.ToGray(d.img)
		defer gray.Close()
		return imgproc.FromMat(gray)
	}
	return imgproc.FromMat(d.img)
}

// Close releases the device. It is safe to call more than once.
func (d *GocvDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.vc == nil {
		return nil
	}
	err := d.vc.Close()
	d.img.Close()
	d.vc = nil
	return err
}
