package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewHandler(&buf, "info", "json")).Info("hello", "rows", 3)
	if !strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), `"rows":3`) {
		t.Errorf("json output = %q", buf.String())
	}

	buf.Reset()
	slog.New(NewHandler(&buf, "warn", "text")).Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info entry written at warn level: %q", buf.String())
	}
}

func TestSetup_File(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	path := filepath.Join(t.TempDir(), "app.log")
	closeFn := Setup(Options{Level: "info", Format: "text", File: path, MaxSizeMB: 1})
	slog.Info("written to file", "table", "contacts")
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file = %q, want entry", data)
	}
}

func TestFromContext_RequestID(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	slog.SetDefault(slog.New(NewHandler(&buf, "info", "text")))

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	WithFields(ctx, "session", "s1").Info("step")

	out := buf.String()
	if !strings.Contains(out, "request_id=req-42") || !strings.Contains(out, "session=s1") {
		t.Errorf("log line = %q", out)
	}
}
