// Package client is the capture side of the pipeline: it owns the capture
// session, the dispatch worker and the HTTP requester, and reports
// progress to the presentation layer through a notification channel.
package client

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-facerecog/pkg/wire"
)

// Settings errors.
var (
	ErrInvalidInterval = errors.New("client: sample interval must be positive")
	ErrInvalidURL      = errors.New("client: invalid service URL")
)

// Settings holds the values that can change while a session runs. Every
// field is read atomically, so a change is picked up by the next sampling
// decision or the next request.
type Settings struct {
	interval atomic.Int64
	baseURL  atomic.Pointer[string]
	path     atomic.Pointer[string]
}

// NewSettings validates and stores the initial values.
func NewSettings(baseURL, path string, interval time.Duration) (*Settings, error) {
	s := &Settings{}
	if err := s.SetBaseURL(baseURL); err != nil {
		return nil, err
	}
	if err := s.SetSampleInterval(interval); err != nil {
		return nil, err
	}
	s.SetRequestPath(path)
	return s, nil
}

// SampleInterval returns the minimum time between two submitted frames.
func (s *Settings) SampleInterval() time.Duration {
	return time.Duration(s.interval.Load())
}

// SetSampleInterval changes the sampling interval.
func (s *Settings) SetSampleInterval(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidInterval, d)
	}
	s.interval.Store(int64(d))
	return nil
}

// BaseURL returns the service root, for example http://localhost:8080.
func (s *Settings) BaseURL() string {
	return *s.baseURL.Load()
}

// SetBaseURL changes the service root. Only http and https are accepted.
func (s *Settings) SetBaseURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	v := strings.TrimRight(u.String(), "/")
	s.baseURL.Store(&v)
	return nil
}

// RequestPath returns the route frames are posted to.
func (s *Settings) RequestPath() string {
	return *s.path.Load()
}

// SetRequestPath changes the route. An empty path selects
// wire.DefaultRequestPath.
func (s *Settings) SetRequestPath(p string) {
	p = strings.TrimSpace(p)
	if p == "" {
		p = wire.DefaultRequestPath
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	s.path.Store(&p)
}

// Endpoint returns the full request URL.
func (s *Settings) Endpoint() string {
	return s.BaseURL() + s.RequestPath()
}
