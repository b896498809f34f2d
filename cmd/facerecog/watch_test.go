package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-facerecog/pkg/client"
	"github.com/teslashibe/go-facerecog/pkg/hub"
)

// feedServer sends ev, then jpeg, then closes the feed normally.
func feedServer(t *testing.T, ev hub.ResultEvent, jpeg []byte) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ResultsPath, r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()

		data, _ := json.Marshal(ev)
		assert.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
		assert.NoError(t, conn.WriteMessage(websocket.BinaryMessage, jpeg))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		// Wait for the client to go away.
		_, _, _ = conn.ReadMessage()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWatchPrintsEventsAndSavesFrames(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.Local)
	ev := hub.ResultEvent{PredictedPerson: "Alice", Faces: 1, Cols: 160, Rows: 120, At: at}
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xD9}
	srv := feedServer(t, ev, jpeg)
	dir := t.TempDir()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var out bytes.Buffer
	require.NoError(t, runWatch(ctx, srv.URL, dir, &out))

	assert.Contains(t, out.String(), "2024-05-01 09:30:00 Alice faces=1 160x120")
	saved, err := os.ReadFile(filepath.Join(dir, client.ResultFileName("Alice", at)))
	require.NoError(t, err)
	assert.Equal(t, jpeg, saved)
}

func TestWatchIgnoresFramesWithoutDir(t *testing.T) {
	ev := hub.ResultEvent{PredictedPerson: "Bob", At: time.Now()}
	srv := feedServer(t, ev, []byte{0xFF, 0xD8})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var out bytes.Buffer
	require.NoError(t, runWatch(ctx, srv.URL, "", &out))
	assert.Contains(t, out.String(), " Bob ")
	assert.NotContains(t, out.String(), "saved")
}
