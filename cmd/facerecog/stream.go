package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chzyer/readline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/teslashibe/go-facerecog/internal/log"
	"github.com/teslashibe/go-facerecog/pkg/camera"
	"github.com/teslashibe/go-facerecog/pkg/capture"
	"github.com/teslashibe/go-facerecog/pkg/client"
	"github.com/teslashibe/go-facerecog/pkg/dispatch"
	"github.com/teslashibe/go-facerecog/pkg/metrics"
)

// runStream captures from the webcam and drives sessions from a console.
func runStream(ctx context.Context, o Options) error {
	logger := log.Component("stream")

	camCfg, err := cameraConfig(o)
	if err != nil {
		return err
	}
	settings, err := client.NewSettings(o.URL, o.RequestPath, camCfg.SampleInterval)
	if err != nil {
		return err
	}

	m := metrics.New()
	if o.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		if err := m.Register(reg); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		srv := serveMetrics(o.MetricsAddr, reg)
		defer srv.Close()
	}

	var preview capture.Preview = camera.NopPreview{}
	if o.Preview {
		wp := camera.NewWindowPreview("facerecog")
		defer wp.Close()
		preview = wp
	}

	sinks := []dispatch.Sink{client.LogSink{Logger: logger}}
	if o.OutDir != "" {
		sinks = append(sinks, &client.FileSink{Dir: o.OutDir, Logger: logger})
	}

	ctl := client.NewController(
		camera.NewGocvDevice(camCfg),
		preview,
		client.NewHTTPRequester(settings),
		settings,
		client.WithSinks(sinks...),
		client.WithControllerMetrics(m),
		client.WithMirrorFrames(camCfg.Mirror),
	)

	rl, err := readline.New("facerecog> ")
	if err != nil {
		return err
	}
	defer func() {
		_ = rl.Close()
	}()

	go printNotifications(ctx, rl.Stdout(), ctl.Notifications())
	go func() {
		<-ctx.Done()
		_ = rl.Close()
	}()

	logger.Info("ready", "device", camCfg.DeviceID, "size", fmt.Sprintf("%dx%d", camCfg.Width, camCfg.Height),
		"format", camCfg.Format, "endpoint", settings.Endpoint())
	fmt.Fprintln(rl.Stdout(), consoleHelp)

	defer func() {
		if err := ctl.Stop(); err != nil {
			logger.Warn("stop", "error", err)
		}
	}()

	for {
		line, err := rl.Readline()
		if err != nil { // io.EOF, readline.ErrInterrupt or closed
			return nil
		}
		cmd, err := parseCommand(line)
		if errors.Is(err, errEmptyLine) {
			continue
		}
		if err != nil {
			fmt.Fprintln(rl.Stdout(), err)
			continue
		}
		if quit := execute(ctx, ctl, cmd, rl.Stdout()); quit {
			return nil
		}
	}
}

// execute runs one console command and reports whether to quit.
func execute(ctx context.Context, ctl *client.Controller, cmd command, out io.Writer) bool {
	settings := ctl.Settings()
	switch cmd.kind {
	case cmdStart:
		if err := ctl.Start(ctx); err != nil {
			fmt.Fprintln(out, "start:", err)
		}
	case cmdStop:
		if err := ctl.Stop(); err != nil {
			fmt.Fprintln(out, "stop:", err)
		}
	case cmdInterval:
		if err := settings.SetSampleInterval(cmd.interval); err != nil {
			fmt.Fprintln(out, "interval:", err)
			return false
		}
		fmt.Fprintln(out, "interval", settings.SampleInterval())
	case cmdURL:
		if err := settings.SetBaseURL(cmd.arg); err != nil {
			fmt.Fprintln(out, "url:", err)
			return false
		}
		fmt.Fprintln(out, "endpoint", settings.Endpoint())
	case cmdType:
		settings.SetRequestPath(cmd.arg)
		fmt.Fprintln(out, "endpoint", settings.Endpoint())
	case cmdStatus:
		st := ctl.Status()
		fmt.Fprintf(out, "capture=%s dispatch=%s queued=%d interval=%s endpoint=%s\n",
			st.Capture, st.Dispatch, st.Queued, st.Interval, st.Endpoint)
	case cmdHelp:
		fmt.Fprintln(out, consoleHelp)
	case cmdQuit:
		return true
	}
	return false
}

// printNotifications is the presentation loop.
func printNotifications(ctx context.Context, out io.Writer, notes <-chan client.Notification) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-notes:
			fmt.Fprintln(out, formatNotification(n))
		}
	}
}

func formatNotification(n client.Notification) string {
	ts := n.At.Format("15:04:05.000")
	switch n.Type {
	case client.NotifyResult:
		if n.Err != nil {
			return fmt.Sprintf("%s #%d failed: %v", ts, n.Result.Seq, n.Err)
		}
		person := n.Result.Response.PredictedPerson
		if person == "" {
			person = "-"
		}
		return fmt.Sprintf("%s #%d %s (%dx%d, %s)", ts, n.Result.Seq, person,
			n.Result.Response.Cols, n.Result.Response.Rows, n.Result.Latency.Round(time.Millisecond))
	case client.NotifyFailed:
		return fmt.Sprintf("%s session stopped: %v", ts, n.Err)
	case client.NotifyStopped:
		if n.Err != nil {
			return fmt.Sprintf("%s stopped: %v", ts, n.Err)
		}
		return ts + " stopped"
	default:
		return ts + " " + n.Type.String()
	}
}

// serveMetrics exposes reg on addr in the background.
func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Component("metrics").Error("metrics server", "addr", addr, "error", err)
		}
	}()
	return srv
}
