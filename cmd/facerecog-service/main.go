// facerecog-service trains or loads the face recognizer and serves the
// recognition endpoint over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/teslashibe/go-facerecog/internal/config"
	"github.com/teslashibe/go-facerecog/internal/log"
	"github.com/teslashibe/go-facerecog/pkg/attendance"
	"github.com/teslashibe/go-facerecog/pkg/hub"
	"github.com/teslashibe/go-facerecog/pkg/metrics"
	"github.com/teslashibe/go-facerecog/pkg/recognition"
	"github.com/teslashibe/go-facerecog/pkg/web"
)

// Options holds the service flags.
type Options struct {
	ListenAddr  string
	DataDir     string
	Detector    string
	CascadePath string
	YuNetModel  string
	TrainingDir string
	ModelPath   string
	ReuseModel  bool
	Concurrency int64
	UploadDir   string
	Attendance  string
	LogLevel    string
}

var opts Options

var rootCmd = &cobra.Command{
	Use:          "facerecog-service",
	Short:        "Face detection and identification service",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.Init(opts.LogLevel)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), opts)
	},
}

func init() {
	defaults := recognition.DefaultConfig()

	f := rootCmd.Flags()
	f.StringVar(&opts.ListenAddr, "listen", config.ListenAddr(), "Listen address (env "+config.EnvListenAddr+")")
	f.StringVar(&opts.DataDir, "data-dir", config.DataDir(), "Directory relative paths resolve against (env "+config.EnvDataDir+")")
	f.StringVar(&opts.Detector, "detector", defaults.Detector, "Face detector: cascade or yunet")
	f.StringVar(&opts.CascadePath, "cascade", "haar/haarcascade_frontalface_alt.xml", "Haar cascade file")
	f.StringVar(&opts.YuNetModel, "yunet-model", "", "YuNet ONNX model (with --detector yunet)")
	f.StringVar(&opts.TrainingDir, "training-dir", "training", "Directory of <label>-<name>_<seq> training images")
	f.StringVar(&opts.ModelPath, "model", "model/lbph.yaml", "Where the trained model is saved")
	f.BoolVar(&opts.ReuseModel, "reuse-model", false, "Load the saved model instead of training when it exists")
	f.Int64Var(&opts.Concurrency, "identify-concurrency", defaults.IdentifyConcurrency, "Concurrent identifications")
	f.StringVar(&opts.UploadDir, "upload-dir", "uploads", "Where /recog/upload stores files")
	f.StringVar(&opts.Attendance, "attendance-db", "attendance.db", "Attendance sqlite database (empty disables)")
	f.StringVar(&opts.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// resolve joins a relative path onto the data directory.
func resolve(dataDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dataDir, path)
}

// recognitionConfig builds the capability config from the flags.
func recognitionConfig(o Options) recognition.Config {
	cfg := recognition.DefaultConfig()
	cfg.Detector = o.Detector
	cfg.CascadePath = resolve(o.DataDir, o.CascadePath)
	cfg.YuNet.ModelPath = resolve(o.DataDir, o.YuNetModel)
	cfg.TrainingDir = resolve(o.DataDir, o.TrainingDir)
	cfg.ModelPath = resolve(o.DataDir, o.ModelPath)
	cfg.ReuseModel = o.ReuseModel
	cfg.IdentifyConcurrency = o.Concurrency
	return cfg
}

func run(ctx context.Context, o Options) error {
	logger := log.Component("service")

	caps, err := recognition.Setup(recognitionConfig(o), os.Stderr, logger)
	if err != nil {
		var se *recognition.StorageError
		if errors.As(err, &se) {
			logger.Error("startup resource unavailable", "op", se.Op, "path", se.Path, "error", se.Err)
		}
		return err
	}
	defer caps.Close()
	logger.Info("capabilities ready", "detector", o.Detector, "people", len(caps.Recognizer.Labels()))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New()
	if err := m.Register(reg); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	results := hub.New("results")
	hubCtx, stopHub := context.WithCancel(context.Background())
	go results.Run(hubCtx)
	defer func() {
		stopHub()
		<-results.Done()
	}()

	observers := []recognition.Observer{results}
	serverOpts := []web.Option{
		web.WithResults(results),
		web.WithMetrics(m, reg),
	}
	if o.Attendance != "" {
		path := resolve(o.DataDir, o.Attendance)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create attendance dir: %w", err)
		}
		att, err := attendance.Open(path)
		if err != nil {
			return err
		}
		defer att.Close()
		observers = append(observers, att)
		serverOpts = append(serverOpts, web.WithAttendance(att))
	}

	endpoint := recognition.NewEndpoint(caps.Detector, caps.Recognizer,
		recognition.WithIdentifyConcurrency(o.Concurrency),
		recognition.WithObservers(observers...),
		recognition.WithEndpointMetrics(m),
	)

	cfg := web.DefaultConfig()
	cfg.Addr = o.ListenAddr
	cfg.UploadDir = resolve(o.DataDir, o.UploadDir)
	return web.NewServer(cfg, endpoint, serverOpts...).Listen(ctx)
}
