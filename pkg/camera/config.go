// Package camera provides the local capture device and its configuration.
// Settings are validated up front and can be swapped through a Manager
// between capture sessions.
package camera

import (
	"time"

	"github.com/teslashibe/go-facerecog/pkg/frame"
)

// Config holds all capture device parameters.
type Config struct {
	// === Device ===
	DeviceID int `json:"device_id" yaml:"device_id"` // index passed to the video backend

	// === Resolution ===
	// Zero width or height keeps the device default.
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`

	// Format is the pixel layout frames are delivered in.
	Format frame.PixelFormat `json:"format" yaml:"format"`

	// === Sampling ===
	// SampleInterval is the minimum time between two frames handed to the
	// dispatch queue. Every frame is still shown in the preview.
	SampleInterval time.Duration `json:"sample_interval" yaml:"sample_interval"`

	// Mirror flips frames horizontally so the preview behaves like a mirror.
	Mirror bool `json:"mirror" yaml:"mirror"`
}

// Device limits accepted by Validate.
const (
	MaxWidth          = 4096
	MaxHeight         = 2160
	MinSampleInterval = 10 * time.Millisecond
	MaxSampleInterval = 10 * time.Minute
)

// DefaultSampleInterval is one submission per second.
const DefaultSampleInterval = time.Second

// DefaultConfig returns the standard webcam configuration: device 0 at
// 640x480, color frames, one sample per second.
func DefaultConfig() Config {
	return Config{
		DeviceID:       0,
		Width:          640,
		Height:         480,
		Format:         frame.BGR24,
		SampleInterval: DefaultSampleInterval,
		Mirror:         true,
	}
}

// LegacyConfig returns 320x240 gray capture for slow links.
func LegacyConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 320
	cfg.Height = 240
	cfg.Format = frame.GRAY8
	return cfg
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.DeviceID < 0 {
		errors = append(errors, "device_id must not be negative")
	}
	if c.Width != 0 && (c.Width < 16 || c.Width > MaxWidth) {
		errors = append(errors, "width must be 0 (device default) or between 16 and 4096")
	}
	if c.Height != 0 && (c.Height < 16 || c.Height > MaxHeight) {
		errors = append(errors, "height must be 0 (device default) or between 16 and 2160")
	}
	if c.Format != frame.GRAY8 && c.Format != frame.BGR24 {
		errors = append(errors, "format must be GRAY8 or BGR24")
	}
	if c.SampleInterval < MinSampleInterval || c.SampleInterval > MaxSampleInterval {
		errors = append(errors, "sample_interval must be between 10ms and 10m")
	}

	return errors
}
