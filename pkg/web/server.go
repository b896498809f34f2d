// Package web serves the recognition endpoint over HTTP.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/teslashibe/go-facerecog/internal/log"
	"github.com/teslashibe/go-facerecog/pkg/attendance"
	"github.com/teslashibe/go-facerecog/pkg/hub"
	"github.com/teslashibe/go-facerecog/pkg/metrics"
	"github.com/teslashibe/go-facerecog/pkg/wire"
)

// DefaultBodyLimit fits a 1920x1080 BGR24 frame with room to spare.
const DefaultBodyLimit = 16 * 1024 * 1024

// Recognizer is the recognition work behind the /recog routes.
type Recognizer interface {
	DetectOnly(ctx context.Context, hdr wire.Header, body []byte) (*wire.Response, error)
	DetectAndIdentify(ctx context.Context, hdr wire.Header, body []byte) (*wire.Response, error)
}

// AttendanceReader lists recent sightings and per-person summaries.
type AttendanceReader interface {
	Recent(ctx context.Context, limit int) ([]attendance.Sighting, error)
	Summarize(ctx context.Context, since time.Time) ([]attendance.Summary, error)
}

// Config holds server settings.
type Config struct {
	Addr      string
	UploadDir string
	BodyLimit int
}

// DefaultConfig returns the listen defaults.
func DefaultConfig() Config {
	return Config{
		Addr:      ":8080",
		UploadDir: "uploads",
		BodyLimit: DefaultBodyLimit,
	}
}

// Option configures a Server.
type Option func(*Server)

// WithAttendance serves the attendance log at /recog/attendance and
// /recog/attendance/summary.
func WithAttendance(a AttendanceReader) Option {
	return func(s *Server) { s.attendance = a }
}

// WithResults serves the live results feed at /ws/results.
func WithResults(h *hub.Hub) Option {
	return func(s *Server) { s.results = h }
}

// WithMetrics records request metrics and serves gatherer at /metrics.
func WithMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = gatherer
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// Server is the recognition service HTTP front end.
type Server struct {
	app *fiber.App
	cfg Config

	recognizer Recognizer
	attendance AttendanceReader
	results    *hub.Hub
	metrics    *metrics.Metrics
	gatherer   prometheus.Gatherer
	logger     *slog.Logger
	now        func() time.Time
}

// NewServer creates the server and registers its routes.
func NewServer(cfg Config, rec Recognizer, opts ...Option) *Server {
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = DefaultBodyLimit
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = DefaultConfig().UploadDir
	}
	s := &Server{
		cfg:        cfg,
		now:        time.Now,
		recognizer: rec,
		logger:     log.Component("web"),
	}
	for _, opt := range opts {
		opt(s)
	}

	app := fiber.New(fiber.Config{
		AppName:               "facerecog",
		DisableStartupMessage: true,
		BodyLimit:             cfg.BodyLimit,
		ErrorHandler:          s.handleError,
	})

	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(s.requestID)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	recog := app.Group(wire.RootPath)
	recog.Post(wire.PathDetectIdentify, s.handleDetectIdentify)
	recog.Post(wire.PathDetect, s.handleDetect)
	recog.Post(wire.PathUpload, s.handleUpload)
	if s.attendance != nil {
		recog.Get(wire.PathAttendance, s.handleAttendance)
		recog.Get(wire.PathAttendanceSummary, s.handleAttendanceSummary)
	}

	if s.gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	if s.results != nil {
		// WebSocket upgrade middleware
		app.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/ws/results", websocket.New(s.handleResultsWS))
	}

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Listen(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr)
		errCh <- s.app.Listen(s.cfg.Addr)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	case <-ctx.Done():
	}

	if err := s.app.ShutdownWithTimeout(10 * time.Second); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// requestID echoes or assigns X-Request-ID and logs the request.
func (s *Server) requestID(c *fiber.Ctx) error {
	id := c.Get(wire.HeaderRequestID)
	if id == "" {
		id = uuid.NewString()
	}
	c.Set(wire.HeaderRequestID, id)
	c.Locals("request_id", id)

	start := time.Now()
	err := c.Next()
	s.logger.Debug("request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"duration", time.Since(start),
		"request_id", id)
	return err
}

// handleError keeps fiber's status codes but never leaks error text.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.SendStatus(code)
}
