package client

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/teslashibe/go-facerecog/internal/log"
	"github.com/teslashibe/go-facerecog/pkg/dispatch"
	"github.com/teslashibe/go-facerecog/pkg/imgproc"
	"github.com/teslashibe/go-facerecog/pkg/wire"
)

// UnknownPerson names files for responses without a prediction.
const UnknownPerson = "unknown"

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// ResultFileName returns "<person>-<unix millis>.jpg".
func ResultFileName(person string, at time.Time) string {
	if person == "" {
		person = UnknownPerson
	}
	return fmt.Sprintf("%s-%d.jpg", unsafeName.ReplaceAllString(person, "_"), at.UnixMilli())
}

// SaveResult writes the annotated frame of resp into dir as a JPEG and
// returns the file path.
func SaveResult(dir string, resp *wire.Response, at time.Time) (string, error) {
	f, err := resp.Frame()
	if err != nil {
		return "", err
	}
	data, err := imgproc.EncodeJPEG(f)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, ResultFileName(resp.PredictedPerson, at))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write result: %w", err)
	}
	return path, nil
}

// FileSink stores every successful response under Dir.
type FileSink struct {
	Dir    string
	Logger *slog.Logger
}

// Consume implements dispatch.Sink.
func (s *FileSink) Consume(r dispatch.Result) {
	if r.Err != nil || r.Response == nil {
		return
	}
	path, err := SaveResult(s.Dir, r.Response, time.Now())
	if err != nil {
		s.logger().Warn("save result", "seq", r.Seq, "error", err)
		return
	}
	s.logger().Debug("result saved", "seq", r.Seq, "path", path)
}

func (s *FileSink) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return log.Component("filesink")
}

// LogSink logs every result at info level.
type LogSink struct {
	Logger *slog.Logger
}

// Consume implements dispatch.Sink.
func (s LogSink) Consume(r dispatch.Result) {
	l := s.Logger
	if l == nil {
		l = log.Component("results")
	}
	if r.Err != nil {
		l.Warn("recognition failed", "seq", r.Seq, "latency", r.Latency, "error", r.Err)
		return
	}
	l.Info("recognized", "seq", r.Seq, "person", r.Response.PredictedPerson,
		"cols", r.Response.Cols, "rows", r.Response.Rows, "latency", r.Latency)
}
