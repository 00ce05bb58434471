package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"
)

func restoreJSON(t *testing.T) {
	t.Helper()
	prev := GetLevel()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = Shutdown(ctx)
		SetLevel(prev)
		SetOutput(&bytes.Buffer{})
	})
}

func TestSetupSelectsOTELHandler(t *testing.T) {
	restoreJSON(t)
	t.Setenv("OTEL_ENABLED", "TRUE")
	t.Setenv("OTEL_SERVICE_NAME", "warden-test")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://127.0.0.1:4317")

	if err := Setup(context.Background()); err != nil {
		t.Fatalf("Setup() failed: %v", err)
	}

	h, ok := Logger.Handler().(*levelHandler)
	if !ok {
		t.Fatalf("handler = %T, want *levelHandler", Logger.Handler())
	}
	if slog.Default().Handler() != Logger.Handler() {
		t.Error("Setup() should make the OTEL logger the slog default")
	}
	if shutdownOTEL == nil {
		t.Error("Setup() should register a shutdown hook")
	}

	SetLevel(LevelWarning)
	if h.Enabled(context.Background(), LevelInfo) {
		t.Error("INFO should be filtered below a WARN threshold")
	}
	if !h.Enabled(context.Background(), LevelError) {
		t.Error("ERROR should pass a WARN threshold")
	}
	if _, ok := h.WithAttrs([]slog.Attr{slog.String("k", "v")}).(*levelHandler); !ok {
		t.Error("WithAttrs() should keep the level filter")
	}
}

func TestSetupDefaultsToJSON(t *testing.T) {
	restoreJSON(t)
	t.Setenv("OTEL_ENABLED", "")

	if err := Setup(context.Background()); err != nil {
		t.Fatalf("Setup() failed: %v", err)
	}
	if _, ok := Logger.Handler().(*slog.JSONHandler); !ok {
		t.Errorf("handler = %T, want *slog.JSONHandler", Logger.Handler())
	}
	if err := Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() without OTEL = %v, want nil", err)
	}
}
