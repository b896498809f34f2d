package camera

import (
	"sync"

	"github.com/teslashibe/go-facerecog/pkg/frame"
	"github.com/teslashibe/go-facerecog/pkg/imgproc"
	"gocv.io/x/gocv"
)

// WindowPreview shows frames in an OpenCV HighGUI window.
// The window is created lazily on the first Show.
type WindowPreview struct {
	title string

	mu     sync.Mutex
	window *gocv.Window
}

// NewWindowPreview returns a preview that draws into a window called title.
func NewWindowPreview(title string) *WindowPreview {
	return &WindowPreview{title: title}
}

// Show renders f and pumps the window event loop once.
func (p *WindowPreview) Show(f frame.Frame) error {
	m, err := imgproc.ToMat(f)
	if err != nil {
		return err
	}
	defer m.Close()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.window == nil {
		p.window = gocv.NewWindow(p.title)
	}
	p.window.IMShow(m)
	p.window.WaitKey(1)
	return nil
}

// Close destroys the window.
func (p *WindowPreview) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.window == nil {
		return nil
	}
	err := p.window.Close()
	p.window = nil
	return err
}

// NopPreview discards frames. Used in headless sessions.
type NopPreview struct{}

// Show does nothing.
func (NopPreview) Show(frame.Frame) error { return nil }

// Close does nothing.
func (NopPreview) Close() error { return nil }
