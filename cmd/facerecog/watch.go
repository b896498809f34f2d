package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"github.com/teslashibe/go-facerecog/internal/log"
	"github.com/teslashibe/go-facerecog/pkg/client"
	"github.com/teslashibe/go-facerecog/pkg/hub"
)

// ResultsPath is the live results feed on the service.
const ResultsPath = "/ws/results"

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print the service's live identification feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(cmd.Context(), opts.URL, framesDir, os.Stdout)
	},
}

var framesDir string

func init() {
	watchCmd.Flags().StringVar(&framesDir, "frames-dir", "", "Save the annotated JPEG of each identification here")
	rootCmd.AddCommand(watchCmd)
}

// feedURL turns the service base URL into the websocket feed URL.
func feedURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + ResultsPath
	return u.String(), nil
}

// runWatch prints one line per identification until ctx is cancelled or
// the service closes the feed. With framesDir set, the annotated JPEG that
// follows each event is written there.
func runWatch(ctx context.Context, base, framesDir string, out io.Writer) error {
	logger := log.Component("watch")

	target, err := feedURL(base)
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", target, err)
	}
	defer conn.Close()
	logger.Info("watching", "url", target)

	go func() {
		<-ctx.Done()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}()

	var last hub.ResultEvent
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("read feed: %w", err)
		}
		if mt == websocket.BinaryMessage {
			if framesDir == "" {
				continue
			}
			path, err := saveFrame(framesDir, last, data)
			if err != nil {
				logger.Warn("save frame", "error", err)
				continue
			}
			fmt.Fprintf(out, "  saved %s\n", path)
			continue
		}
		var ev hub.ResultEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			logger.Warn("malformed event", "error", err)
			continue
		}
		last = ev
		fmt.Fprintf(out, "%s %s faces=%d %dx%d\n",
			ev.At.Format("2006-01-02 15:04:05"), ev.PredictedPerson, ev.Faces, ev.Cols, ev.Rows)
	}
}

// saveFrame writes a JPEG named after the event it belongs to.
func saveFrame(dir string, ev hub.ResultEvent, jpeg []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create frames dir: %w", err)
	}
	path := filepath.Join(dir, client.ResultFileName(ev.PredictedPerson, ev.At))
	if err := os.WriteFile(path, jpeg, 0o644); err != nil {
		return "", fmt.Errorf("write frame: %w", err)
	}
	return path, nil
}
