package web

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/teslashibe/go-facerecog/pkg/attendance"
	"github.com/teslashibe/go-facerecog/pkg/hub"
	"github.com/teslashibe/go-facerecog/pkg/recognition"
	"github.com/teslashibe/go-facerecog/pkg/wire"
)

// Upload replies. Deployed clients match on these strings.
const (
	uploadOK    = "File uploaded: "
	uploadEmpty = "Failed to upload file because the file was empty."
	uploadFail  = "Failed to upload image!"
)

type recognizeFunc func(ctx context.Context, hdr wire.Header, body []byte) (*wire.Response, error)

// handleDetectIdentify predicts the person and outlines every face
func (s *Server) handleDetectIdentify(c *fiber.Ctx) error {
	return s.recognize(c, wire.DefaultRequestPath, s.recognizer.DetectAndIdentify)
}

// handleDetect outlines every face without identifying anyone
func (s *Server) handleDetect(c *fiber.Ctx) error {
	return s.recognize(c, wire.DefaultDetectOnlyPath, s.recognizer.DetectOnly)
}

// recognize runs fn on the request and writes the JSON reply. Bad input
// yields 400 and any other failure 500, both with an empty body.
func (s *Server) recognize(c *fiber.Ctx, route string, fn recognizeFunc) error {
	start := time.Now()
	status := fiber.StatusOK
	defer func() {
		s.metrics.ObserveRequest(route, status, time.Since(start))
	}()

	logger := s.logger.With("route", route, "request_id", c.Locals("request_id"))

	hdr, err := wire.ParseHeader(func(key string) string { return c.Get(key) })
	if err != nil {
		logger.Warn("rejected request", "error", err)
		status = fiber.StatusBadRequest
		c.Status(status)
		return nil
	}
	logger.Debug("recognition request",
		"pixel_format", hdr.PixelFormat, "width", hdr.Width, "height", hdr.Height)

	// fasthttp reuses the body buffer once the handler returns.
	body := append([]byte(nil), c.Body()...)

	resp, err := fn(c.UserContext(), hdr, body)
	switch {
	case err == nil:
	case errors.Is(err, recognition.ErrInvalidArgument):
		logger.Warn("rejected request", "error", err)
		status = fiber.StatusBadRequest
		c.Status(status)
		return nil
	default:
		logger.Error("recognition failed", "error", err)
		status = fiber.StatusInternalServerError
		c.Status(status)
		return nil
	}

	return c.JSON(resp)
}

// handleUpload stores a multipart "file" in the upload directory.
func (s *Server) handleUpload(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString(uploadEmpty)
	}
	if fh.Size == 0 {
		return c.SendString(uploadEmpty)
	}

	name := filepath.Base(fh.Filename)
	if name == "." || name == string(filepath.Separator) {
		return c.SendString(uploadFail)
	}
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		s.logger.Error("create upload dir", "dir", s.cfg.UploadDir, "error", err)
		return c.SendString(uploadFail)
	}
	if err := c.SaveFile(fh, filepath.Join(s.cfg.UploadDir, name)); err != nil {
		s.logger.Error("save upload", "file", name, "error", err)
		return c.SendString(uploadFail)
	}

	s.logger.Info("file uploaded", "file", name, "bytes", fh.Size)
	return c.SendString(uploadOK + name)
}

// handleAttendance returns the most recent sightings
func (s *Server) handleAttendance(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	if limit < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "limit must not be negative",
		})
	}

	sightings, err := s.attendance.Recent(c.UserContext(), limit)
	if err != nil {
		s.logger.Error("list attendance", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "attendance unavailable",
		})
	}
	return c.JSON(sightings)
}

// handleAttendanceSummary groups sightings by person. since is an RFC 3339
// time or a duration back from now ("24h"); empty means everything.
func (s *Server) handleAttendanceSummary(c *fiber.Ctx) error {
	since, err := parseSince(c.Query("since"), s.now())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	summary, err := s.attendance.Summarize(c.UserContext(), since)
	if err != nil {
		s.logger.Error("summarize attendance", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "attendance unavailable",
		})
	}
	if summary == nil {
		summary = []attendance.Summary{}
	}
	return c.JSON(summary)
}

func parseSince(raw string, now time.Time) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return time.Time{}, fmt.Errorf("since must be an RFC 3339 time or a positive duration, got %q", raw)
	}
	return now.Add(-d), nil
}

// handleResultsWS streams identifications to a websocket client
func (s *Server) handleResultsWS(c *websocket.Conn) {
	client := hub.NewClient(s.results, c)
	if client == nil {
		c.Close()
		return
	}
	client.Run()
}
