package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/dirwatch/internal/browser"
	"github.com/listenupapp/dirwatch/internal/feed"
	"github.com/listenupapp/dirwatch/internal/monitor"
	"github.com/listenupapp/dirwatch/internal/ratelimit"
	"github.com/listenupapp/dirwatch/internal/sse"
	"github.com/listenupapp/dirwatch/internal/validation"
	"github.com/listenupapp/dirwatch/internal/watcher"
)

// testServer wraps the API server with the components behind it.
type testServer struct {
	*Server
	api humatest.TestAPI
	dir string
}

type testError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func setupTestServer(t *testing.T, limiter *ratelimit.KeyedRateLimiter) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx, cancel := context.WithCancel(context.Background())

	manager := sse.NewManager(logger)
	manager.Start(ctx)

	mon := monitor.New(monitor.Options{}, manager, logger)
	queue := feed.NewQueue(logger)
	go queue.Run(ctx, mon.Apply)

	controller := watcher.NewController(queue, logger, watcher.Options{})

	t.Cleanup(func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = controller.Shutdown()
		_ = queue.Shutdown(shutdownCtx)
		_ = manager.Shutdown(shutdownCtx)
		cancel()
	})

	dir := t.TempDir()
	s := NewServer(Deps{
		Controller:   controller,
		Builder:      browser.NewBuilder(browser.Options{Locale: "en"}, logger),
		Monitor:      mon,
		Feed:         queue,
		SSEManager:   manager,
		Validator:    validation.New(),
		ControlLimit: limiter,
		StartPath:    dir,
	}, logger)

	return &testServer{
		Server: s,
		api:    humatest.Wrap(t, s.API()),
		dir:    dir,
	}
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v), string(body))
	return v
}

func browsePath(path string) string {
	return "/api/v1/filesystem?path=" + url.QueryEscape(path)
}

func TestHealth(t *testing.T) {
	ts := setupTestServer(t, nil)

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	health := decode[HealthResponse](t, resp.Body.Bytes())
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "idle", health.Components["watcher"].Message)
	assert.Equal(t, "0 pending", health.Components["feed"].Message)
	assert.Equal(t, "no connected clients", health.Components["sse"].Message)
}

func TestFormatSSEStatus(t *testing.T) {
	assert.Equal(t, "no connected clients", formatSSEStatus(0))
	assert.Equal(t, "1 connected client", formatSSEStatus(1))
	assert.Equal(t, "3 connected clients", formatSSEStatus(3))
}

func TestBrowse(t *testing.T) {
	ts := setupTestServer(t, nil)
	require.NoError(t, os.Mkdir(filepath.Join(ts.dir, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ts.dir, "a.txt"), []byte("hello"), 0o644))

	resp := ts.api.Get(browsePath(ts.dir))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	snap := decode[browser.Snapshot](t, resp.Body.Bytes())
	assert.Equal(t, ts.dir, snap.Path)
	assert.False(t, snap.IsRoot)

	names := make([]string, 0, len(snap.Entries))
	for _, e := range snap.Entries {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"..", "docs", "a.txt"}, names)
	assert.Equal(t, "5 B", snap.Entries[2].SizeLabel)

	assert.Equal(t, ts.dir, ts.Monitor.CurrentDir())
}

func TestBrowse_DefaultsToStartPath(t *testing.T) {
	ts := setupTestServer(t, nil)

	resp := ts.api.Get("/api/v1/filesystem")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, ts.dir, decode[browser.Snapshot](t, resp.Body.Bytes()).Path)

	// Once browsed, the current directory wins over the start path.
	sub := filepath.Join(ts.dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.Equal(t, http.StatusOK, ts.api.Get(browsePath(sub)).Code)

	resp = ts.api.Get("/api/v1/filesystem")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, sub, decode[browser.Snapshot](t, resp.Body.Bytes()).Path)
}

func TestBrowse_Errors(t *testing.T) {
	ts := setupTestServer(t, nil)
	file := filepath.Join(ts.dir, "plain.txt")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantCode   string
	}{
		{"missing", filepath.Join(ts.dir, "nope"), http.StatusNotFound, "NOT_FOUND"},
		{"file", file, http.StatusBadRequest, "NOT_A_DIRECTORY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.api.Get(browsePath(tt.path))
			require.Equal(t, tt.wantStatus, resp.Code, resp.Body.String())
			assert.Equal(t, tt.wantCode, decode[testError](t, resp.Body.Bytes()).Code)
		})
	}

	// A failed browse does not move the current directory.
	assert.Empty(t, ts.Monitor.CurrentDir())
}

func TestWatch_StartStop(t *testing.T) {
	ts := setupTestServer(t, nil)

	resp := ts.api.Get("/api/v1/watch")
	require.Equal(t, http.StatusOK, resp.Code)
	status := decode[WatchStatus](t, resp.Body.Bytes())
	assert.Equal(t, "idle", status.State)
	assert.Equal(t, monitor.LabelNotListening, status.ListeningLabel)

	resp = ts.api.Post("/api/v1/watch", map[string]any{"path": ts.dir})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	status = decode[WatchStatus](t, resp.Body.Bytes())
	assert.Equal(t, "running", status.State)
	assert.True(t, status.Listening)
	assert.Equal(t, monitor.LabelListening, status.ListeningLabel)
	assert.Equal(t, ts.dir, status.Target)
	assert.NotEmpty(t, status.SessionID)

	resp = ts.api.Post("/api/v1/watch", map[string]any{"path": ts.dir})
	require.Equal(t, http.StatusConflict, resp.Code, resp.Body.String())
	assert.Equal(t, "ALREADY_RUNNING", decode[testError](t, resp.Body.Bytes()).Code)

	resp = ts.api.Delete("/api/v1/watch")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	status = decode[WatchStatus](t, resp.Body.Bytes())
	assert.Equal(t, "stopped", status.State)
	assert.Equal(t, "user_requested", status.Reason)
	assert.False(t, status.Listening)
	assert.Equal(t, monitor.LabelNotListening, status.ListeningLabel)

	resp = ts.api.Delete("/api/v1/watch")
	require.Equal(t, http.StatusConflict, resp.Code, resp.Body.String())
	assert.Equal(t, "NOT_RUNNING", decode[testError](t, resp.Body.Bytes()).Code)
}

func TestWatch_StartOnFile(t *testing.T) {
	ts := setupTestServer(t, nil)
	file := filepath.Join(ts.dir, "plain.txt")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	resp := ts.api.Post("/api/v1/watch", map[string]any{"path": file})
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code, resp.Body.String())
	assert.Equal(t, "SETUP_FAILED", decode[testError](t, resp.Body.Bytes()).Code)

	resp = ts.api.Get("/api/v1/watch")
	require.Equal(t, http.StatusOK, resp.Code)
	status := decode[WatchStatus](t, resp.Body.Bytes())
	assert.Equal(t, "stopped", status.State)
	assert.False(t, status.Listening)
	assert.Equal(t, "Can't watch '"+file+"': not a directory", status.Error)

	// Starting again hides the error label.
	resp = ts.api.Post("/api/v1/watch", map[string]any{"path": ts.dir})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Empty(t, decode[WatchStatus](t, resp.Body.Bytes()).Error)
}

func TestWatch_StartUsesCurrentDirectory(t *testing.T) {
	ts := setupTestServer(t, nil)
	sub := filepath.Join(ts.dir, "music")
	require.NoError(t, os.Mkdir(sub, 0o755))

	require.Equal(t, http.StatusOK, ts.api.Get(browsePath(sub)).Code)

	resp := ts.api.Post("/api/v1/watch", map[string]any{})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, sub, decode[WatchStatus](t, resp.Body.Bytes()).Target)
}

func TestWatch_StartDefaultsToStartPath(t *testing.T) {
	ts := setupTestServer(t, nil)

	resp := ts.api.Post("/api/v1/watch", map[string]any{})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	status := decode[WatchStatus](t, resp.Body.Bytes())
	assert.Equal(t, ts.dir, status.Target)
	assert.Equal(t, "running", status.State)
}

func TestWatch_StartValidation(t *testing.T) {
	ts := setupTestServer(t, nil)

	t.Run("no start directory", func(t *testing.T) {
		ts.StartPath = ""
		resp := ts.api.Post("/api/v1/watch", map[string]any{})
		require.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())
		assert.Equal(t, "VALIDATION", decode[testError](t, resp.Body.Bytes()).Code)
	})

	t.Run("NUL in path", func(t *testing.T) {
		resp := ts.api.Post("/api/v1/watch", map[string]any{"path": "/tmp/a\x00b"})
		require.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())
		assert.Equal(t, "VALIDATION", decode[testError](t, resp.Body.Bytes()).Code)
	})
}

func TestWatch_EventsAndClear(t *testing.T) {
	ts := setupTestServer(t, nil)

	resp := ts.api.Post("/api/v1/watch", map[string]any{"path": ts.dir})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	require.NoError(t, os.WriteFile(filepath.Join(ts.dir, "new.txt"), []byte("x"), 0o644))

	var listing ListEventsResponse
	require.Eventually(t, func() bool {
		resp := ts.api.Get("/api/v1/watch/events?since=0")
		if resp.Code != http.StatusOK {
			return false
		}
		if err := json.Unmarshal(resp.Body.Bytes(), &listing); err != nil {
			return false
		}
		for _, row := range listing.Rows {
			if row.Name != nil && *row.Name == "new.txt" {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)

	assert.Equal(t, int64(len(listing.Rows)), listing.Status.Entries)
	assert.Equal(t, listing.Rows[len(listing.Rows)-1].Seq, listing.Status.LastSeq)

	// Nothing newer than the last row.
	since := listing.Status.LastSeq
	resp = ts.api.Get("/api/v1/watch/events?since=" + strconv.FormatUint(since, 10))
	require.Equal(t, http.StatusOK, resp.Code)
	newer := decode[ListEventsResponse](t, resp.Body.Bytes())
	for _, row := range newer.Rows {
		assert.Greater(t, row.Seq, since)
	}

	resp = ts.api.Delete("/api/v1/watch")
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Delete("/api/v1/watch/events")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	status := decode[WatchStatus](t, resp.Body.Bytes())
	assert.Equal(t, int64(0), status.Entries)
	assert.Equal(t, "0", status.EntriesLabel)

	resp = ts.api.Get("/api/v1/watch/events?since=0")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, decode[ListEventsResponse](t, resp.Body.Bytes()).Rows)
}

func TestWatch_RateLimited(t *testing.T) {
	limiter := ratelimit.New(1, 1, time.Hour)
	t.Cleanup(limiter.Stop)
	ts := setupTestServer(t, limiter)

	resp := ts.api.Post("/api/v1/watch", map[string]any{"path": ts.dir})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = ts.api.Delete("/api/v1/watch")
	require.Equal(t, http.StatusTooManyRequests, resp.Code, resp.Body.String())
	assert.Equal(t, "RATE_LIMITED", decode[testError](t, resp.Body.Bytes()).Code)

	// Reads are not limited.
	resp = ts.api.Get("/api/v1/watch")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "running", decode[WatchStatus](t, resp.Body.Bytes()).State)
}

func TestOpenAPI(t *testing.T) {
	ts := setupTestServer(t, nil)

	resp := ts.api.Get("/openapi.json")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "/api/v1/watch/events")
	assert.Contains(t, resp.Body.String(), "/api/v1/filesystem")
}
