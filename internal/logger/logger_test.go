package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plainHandler(buf *bytes.Buffer, level slog.Level) *PrettyHandler {
	h := NewPrettyHandler(buf, &slog.HandlerOptions{Level: level})
	h.palette = plainPalette
	return h
}

func TestNew_CustomWriter(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelInfo, Format: "json", Writer: &buf})
	log.Info("watch started")

	assert.Contains(t, buf.String(), `"msg":"watch started"`)
	assert.Contains(t, buf.String(), `"level":"INFO"`)
}

func TestNew_FormatAutoDetection(t *testing.T) {
	tests := []struct {
		environment string
		wantJSON    bool
	}{
		{"production", true},
		{"development", false},
		{"staging", false},
	}

	for _, tt := range tests {
		t.Run(tt.environment, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(Config{Level: slog.LevelInfo, Environment: tt.environment, Writer: &buf, NoColor: true})
			log.Info("test")

			if tt.wantJSON {
				assert.Contains(t, buf.String(), `"msg":"test"`)
			} else {
				assert.Contains(t, buf.String(), "INF test")
			}
		})
	}
}

func TestNew_NoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "")

	var colored, plain bytes.Buffer
	New(Config{Writer: &colored}).Info("hello")
	New(Config{Writer: &plain, NoColor: true}).Info("hello")

	assert.Contains(t, colored.String(), colorReset)
	assert.NotContains(t, plain.String(), "\033[")
}

func TestNew_NoColorEnvironment(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	var buf bytes.Buffer
	New(Config{Writer: &buf}).Info("hello")
	assert.NotContains(t, buf.String(), "\033[")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DeBuG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestPrettyHandler_Enabled(t *testing.T) {
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})

	assert.False(t, h.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))

	// No level configured means info.
	h = NewPrettyHandler(&buf, nil)
	assert.False(t, h.Enabled(context.Background(), slog.LevelDebug))
}

func TestPrettyHandler_Handle(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(plainHandler(&buf, slog.LevelInfo))

	log.Info("batch delivered", "count", 3, "target", "/tmp/my dir", "empty", "")

	line := buf.String()
	assert.Contains(t, line, "INF batch delivered")
	assert.Contains(t, line, "count=3")
	assert.Contains(t, line, `target="/tmp/my dir"`)
	assert.Contains(t, line, `empty=""`)
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestPrettyHandler_LevelFormatting(t *testing.T) {
	tests := []struct {
		level slog.Level
		want  string
	}{
		{slog.LevelDebug, "DBG"},
		{slog.LevelInfo, "INF"},
		{slog.LevelWarn, "WRN"},
		{slog.LevelError, "ERR"},
		{slog.LevelError + 4, "ERROR+4"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			var buf bytes.Buffer
			slog.New(plainHandler(&buf, slog.LevelDebug)).Log(context.Background(), tt.level, "test")
			assert.Contains(t, buf.String(), " "+tt.want+" test")
		})
	}
}

func TestPrettyHandler_Component(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(plainHandler(&buf, slog.LevelInfo)).With("component", "watcher", "session_id", "wch-1")

	log.Info("session started", "target", "/srv")

	line := buf.String()
	assert.Contains(t, line, "INF [watcher] session started")
	assert.Contains(t, line, "session_id=wch-1 target=/srv")
	assert.NotContains(t, line, "component=")
}

func TestPrettyHandler_ComponentOnRecord(t *testing.T) {
	var buf bytes.Buffer
	slog.New(plainHandler(&buf, slog.LevelInfo)).Info("hello", "component", "api")
	assert.Contains(t, buf.String(), "[api] hello")
}

func TestPrettyHandler_Groups(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(plainHandler(&buf, slog.LevelInfo))

	log.WithGroup("request").With("method", "GET").Info("handled",
		"status", 200,
		slog.Group("client", "ip", "10.0.0.1"),
	)

	line := buf.String()
	assert.Contains(t, line, "request.method=GET")
	assert.Contains(t, line, "request.status=200")
	assert.Contains(t, line, "request.client.ip=10.0.0.1")
}

func TestPrettyHandler_WithGroupEmpty(t *testing.T) {
	h := NewPrettyHandler(&bytes.Buffer{}, nil)
	assert.Same(t, h, h.WithGroup(""))
}

func TestPrettyHandler_WithAttrsDoesNotShare(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(plainHandler(&buf, slog.LevelInfo)).With("a", 1)

	base.With("b", 2).Info("first")
	base.With("c", 3).Info("second")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "a=1 b=2")
	assert.Contains(t, lines[1], "a=1 c=3")
	assert.NotContains(t, lines[1], "b=2")
}

func TestPrettyHandler_WithSource(t *testing.T) {
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo, AddSource: true})

	slog.New(h).Info("test message")
	assert.Contains(t, buf.String(), "logger_test.go:")
}

func TestPrettyHandler_ConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(plainHandler(&buf, slog.LevelInfo))

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Go(func() {
			for range 50 {
				log.Info("line", "worker", i)
			}
		})
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 400)
	for _, line := range lines {
		assert.Contains(t, line, "INF line worker=")
	}
}

func TestFormatValue(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name  string
		value slog.Value
		want  string
	}{
		{"string", slog.StringValue("test"), "test"},
		{"string with space", slog.StringValue("a b"), `"a b"`},
		{"time", slog.TimeValue(now), now.Format(time.RFC3339)},
		{"duration", slog.DurationValue(5 * time.Second), "5s"},
		{"int", slog.IntValue(42), "42"},
		{"bool", slog.BoolValue(true), "true"},
		{"error", slog.AnyValue(errors.New("permission denied")), `"permission denied"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatValue(tt.value))
		})
	}
}

func TestLogger_Component(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelInfo, Format: "json", Writer: &buf})

	log.Component("feed").Info("queue closed")
	assert.Contains(t, buf.String(), `"component":"feed"`)
}

func TestLogger_WithError(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelInfo, Format: "json", Writer: &buf})

	log.WithError(errors.New("inotify_init1: too many open files")).Error("watch failed")
	assert.Contains(t, buf.String(), `"error":"inotify_init1: too many open files"`)
}

func TestDiscard(t *testing.T) {
	log := Discard()
	assert.False(t, log.Enabled(context.Background(), slog.LevelError))
	log.Error("dropped")
}
