package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		level string
		want  bool // whether we expect the message to appear
	}{
		{name: "info level logs info", cfg: Config{Level: "info"}, level: "info", want: true},
		{name: "info level does not log debug", cfg: Config{Level: "info"}, level: "debug", want: false},
		{name: "debug level logs debug", cfg: Config{Level: "debug"}, level: "debug", want: true},
		{name: "error level logs error", cfg: Config{Level: "error"}, level: "error", want: true},
		{name: "error level does not log warn", cfg: Config{Level: "error"}, level: "warn", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.cfg.Output = buf
			logger := NewLogger(tt.cfg)

			switch tt.level {
			case "debug":
				logger.Debug("disk attached")
			case "info":
				logger.Info("disk attached")
			case "warn":
				logger.Warn("disk attached")
			case "error":
				logger.Error("disk attached")
			}

			got := strings.Contains(buf.String(), "disk attached")
			if got != tt.want {
				t.Errorf("expected message presence=%v, got=%v, output=%s", tt.want, got, buf.String())
			}
		})
	}
}

func TestLoggerJSONFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(Config{Level: "info", Format: "json", Output: buf})

	logger.Info("instance stopped", "instance", "db1")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log: %v, output: %s", err, buf.String())
	}
	if entry["msg"] != "instance stopped" {
		t.Errorf("expected msg='instance stopped', got=%v", entry["msg"])
	}
	if entry["instance"] != "db1" {
		t.Errorf("expected instance='db1', got=%v", entry["instance"])
	}
}

func TestLoggerTextFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(Config{Level: "info", Format: "text", Output: buf})

	logger.Info("instance stopped", "instance", "db1")

	output := buf.String()
	if !strings.Contains(output, "instance=db1") {
		t.Errorf("expected 'instance=db1' in output, got: %s", output)
	}
}

func TestLoggerWithComponent(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(Config{Level: "info", Output: buf}).WithComponent("store")

	logger.Info("reset")

	if !strings.Contains(buf.String(), `"component":"store"`) {
		t.Errorf("expected component field, got: %s", buf.String())
	}
}

func TestLoggerContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(Config{Level: "debug", Output: buf})

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithActor(ctx, "user-1")
	ctx = WithComponent(ctx, "api")

	logger.DebugContext(ctx, "d")
	logger.InfoContext(ctx, "i")
	logger.WarnContext(ctx, "w")
	logger.ErrorContext(ctx, "e")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 log lines, got %d: %s", len(lines), buf.String())
	}
	for _, line := range lines {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("failed to parse JSON log: %v", err)
		}
		if entry["request_id"] != "req-1" || entry["actor"] != "user-1" || entry["component"] != "api" {
			t.Errorf("missing context fields in %s", line)
		}
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	if got := WithRequestID(ctx, ""); got != ctx {
		t.Error("empty request id should return the same context")
	}
	if got := WithActor(ctx, ""); got != ctx {
		t.Error("empty actor should return the same context")
	}
	//nolint:staticcheck // nil context is part of the contract
	if RequestIDFromContext(nil) != "" || ActorFromContext(nil) != "" || ComponentFromContext(nil) != "" {
		t.Error("nil context should yield empty values")
	}
	if RequestIDFromContext(ctx) != "" {
		t.Error("expected empty request id")
	}
	if got := RequestIDFromContext(WithRequestID(ctx, "abc")); got != "abc" {
		t.Errorf("RequestIDFromContext = %q, want abc", got)
	}
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	base := NewLogger(Config{Level: "info", Output: buf})

	ctx := WithRequestID(context.Background(), "req-2")
	FromContext(ctx, base).Info("plain call")

	if !strings.Contains(buf.String(), `"request_id":"req-2"`) {
		t.Errorf("expected request_id in output, got: %s", buf.String())
	}

	if FromContext(context.Background(), base) != base {
		t.Error("expected the same logger for an empty context")
	}
	if FromContext(ctx, nil) == nil {
		t.Error("expected a default logger when nil is passed")
	}
}

func TestNewLoggerFromSlog(t *testing.T) {
	buf := &bytes.Buffer{}
	sl := slog.New(slog.NewJSONHandler(buf, nil))
	logger := NewLoggerFromSlog(sl)
	if logger.Slog() != sl {
		t.Error("Slog() should return the wrapped logger")
	}
	if NewLoggerFromSlog(nil).Slog() == nil {
		t.Error("nil slog should fall back to the default")
	}
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Error("dropped")
	l.With("k", "v").Info("dropped")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("MOCKAPI_LOG_LEVEL", "debug")
	t.Setenv("MOCKAPI_LOG_FORMAT", "text")

	cfg := ConfigFromEnv()
	if cfg.Level != "debug" {
		t.Errorf("Level = %q, want debug", cfg.Level)
	}
	if cfg.Format != "text" {
		t.Errorf("Format = %q, want text", cfg.Format)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Level != "info" || cfg.Format != "json" || cfg.Output == nil {
		t.Errorf("unexpected default config: %+v", cfg)
	}
}
