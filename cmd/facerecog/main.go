// facerecog streams webcam frames to the recognition service, or submits a
// single image with --nogui.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/teslashibe/go-facerecog/internal/config"
	"github.com/teslashibe/go-facerecog/internal/log"
	"github.com/teslashibe/go-facerecog/pkg/camera"
	"github.com/teslashibe/go-facerecog/pkg/client"
	"github.com/teslashibe/go-facerecog/pkg/frame"
	"github.com/teslashibe/go-facerecog/pkg/wire"
)

// Options holds the root command flags.
type Options struct {
	NoGUI       bool
	Path        string
	URL         string
	RequestPath string
	OutDir      string

	Preset      string
	Interval    time.Duration
	Device      int
	Width       int
	Height      int
	Format      string
	Preview     bool
	Mirror      bool
	LogLevel    string
	MetricsAddr string
}

var opts Options

var rootCmd = &cobra.Command{
	Use:   "facerecog",
	Short: "Face recognition client",
	Long: `Streams webcam frames to the recognition service and saves the
annotated replies. With --nogui a single image file is submitted instead.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.Init(opts.LogLevel)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if opts.NoGUI {
			return runOneShot(cmd.Context(), opts)
		}
		return runStream(cmd.Context(), opts)
	},
}

func init() {
	f := rootCmd.Flags()
	f.BoolVar(&opts.NoGUI, "nogui", false, "Submit --path once and exit instead of streaming")
	f.StringVar(&opts.Path, "path", "", "Image file to submit in --nogui mode")
	f.StringVar(&opts.RequestPath, "type", wire.DefaultRequestPath, "Endpoint path ("+wire.DefaultRequestPath+" or "+wire.DefaultDetectOnlyPath+")")
	f.StringVar(&opts.OutDir, "outdir", "", "Directory for annotated result images (stream mode saves nothing when empty)")

	f.StringVar(&opts.Preset, "preset", camera.PresetDefault, fmt.Sprintf("Capture preset %v", camera.PresetNames()))
	f.DurationVar(&opts.Interval, "interval", 0, "Sample interval (overrides the preset)")
	f.IntVar(&opts.Device, "device", -1, "Capture device index (overrides the preset)")
	f.IntVar(&opts.Width, "width", 0, "Capture width (overrides the preset)")
	f.IntVar(&opts.Height, "height", 0, "Capture height (overrides the preset)")
	f.StringVar(&opts.Format, "format", "", "Pixel format: gray or bgr (overrides the preset)")
	f.BoolVar(&opts.Preview, "preview", true, "Show the capture preview window")
	f.BoolVar(&opts.Mirror, "mirror", true, "Mirror captured frames horizontally")
	f.StringVar(&opts.MetricsAddr, "metrics-addr", "", "Serve client metrics on this address (e.g. :9101)")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.URL, "url", config.ServiceURL(), "Service base URL (env "+config.EnvServiceURL+")")
	pf.StringVar(&opts.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cameraConfig resolves the preset and applies flag overrides.
func cameraConfig(o Options) (camera.Config, error) {
	params := map[string]any{
		"preset": o.Preset,
		"mirror": o.Mirror,
	}
	if o.Interval > 0 {
		params["sample_interval"] = o.Interval
	}
	if o.Device >= 0 {
		params["device_id"] = o.Device
	}
	if o.Width > 0 {
		params["width"] = o.Width
	}
	if o.Height > 0 {
		params["height"] = o.Height
	}
	if o.Format != "" {
		params["format"] = o.Format
	}

	m := camera.NewManager()
	if err := m.UpdateConfig(params); err != nil {
		return camera.Config{}, err
	}
	return m.GetConfig(), nil
}

// runOneShot submits a single image and saves the annotated reply.
func runOneShot(ctx context.Context, o Options) error {
	logger := log.Component("oneshot")
	if o.Path == "" {
		return fmt.Errorf("--nogui requires --path")
	}

	format := frame.BGR24
	if o.Format != "" {
		f, err := frame.ParseFormat(o.Format)
		if err != nil {
			return err
		}
		format = f
	}

	settings, err := client.NewSettings(o.URL, o.RequestPath, camera.DefaultSampleInterval)
	if err != nil {
		return err
	}
	req := client.NewHTTPRequester(settings)

	start := time.Now()
	resp, err := client.RecognizeFile(ctx, req, o.Path, format)
	if err != nil {
		logger.Error("recognition failed", "path", o.Path, "endpoint", settings.Endpoint(), "error", err)
		return err
	}
	logger.Info("recognized", "person", resp.PredictedPerson, "cols", resp.Cols, "rows", resp.Rows,
		"elapsed", time.Since(start))

	outDir := o.OutDir
	if outDir == "" {
		outDir = "."
	}
	path, err := client.SaveResult(outDir, resp, time.Now())
	if err != nil {
		logger.Error("save result", "error", err)
		return err
	}
	fmt.Println(path)
	return nil
}
