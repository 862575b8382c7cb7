package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/felixgeelhaar/vpsctl/internal/ports"
)

func TestNopLogger_ImplementsInterface(_ *testing.T) {
	var _ ports.Logger = NewNopLogger()
}

func TestNopLogger_Methods(t *testing.T) {
	logger := NewNopLogger()
	ctx := context.Background()

	logger.Debug(ctx, "debug message")
	logger.Info(ctx, "info message")
	logger.Warn(ctx, "warn message")
	logger.Error(ctx, "error message")

	withLogger := logger.With(ports.F("key", "value"))
	withLogger.Info(ctx, "with fields")
	if withLogger.Level() != logger.Level() {
		t.Error("With should share the parent's level")
	}
}

func TestNopLogger_Level(t *testing.T) {
	logger := NewNopLogger()

	if logger.Level() != ports.LevelInfo {
		t.Errorf("default level = %v, want %v", logger.Level(), ports.LevelInfo)
	}

	logger.SetLevel(ports.LevelDebug)
	if logger.Level() != ports.LevelDebug {
		t.Errorf("after SetLevel, level = %v, want %v", logger.Level(), ports.LevelDebug)
	}
}

func TestConsoleLogger_ImplementsInterface(_ *testing.T) {
	var _ ports.Logger = NewConsoleLogger()
}

func TestConsoleLogger_TextOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsoleLogger(
		WithOutput(&buf),
		WithFormat(FormatText),
		WithTimestamp(false),
	)

	logger.Info(context.Background(), "test message", ports.F("step", "apt:update"))

	output := buf.String()
	if !strings.Contains(output, "level=INFO") {
		t.Errorf("output should contain level=INFO, got %q", output)
	}
	if !strings.Contains(output, `msg="test message"`) {
		t.Errorf("output should contain message, got %q", output)
	}
	if !strings.Contains(output, "step=apt:update") {
		t.Errorf("output should contain field, got %q", output)
	}
	if strings.Contains(output, "time=") {
		t.Errorf("output should not contain a timestamp, got %q", output)
	}
}

func TestConsoleLogger_TintOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsoleLogger(
		WithOutput(&buf),
		WithTimestamp(false),
	)

	logger.Warn(context.Background(), "clock drift", ports.F("offset", "2s"))

	output := buf.String()
	if !strings.Contains(output, "WRN") {
		t.Errorf("output should contain WRN, got %q", output)
	}
	if !strings.Contains(output, "clock drift") {
		t.Errorf("output should contain message, got %q", output)
	}
	if strings.Contains(output, "\x1b[") {
		t.Errorf("output should not contain colors by default, got %q", output)
	}
}

func TestConsoleLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsoleLogger(
		WithOutput(&buf),
		WithFormat(FormatJSON),
	)

	logger.Error(context.Background(), "apply failed", ports.Err(errors.New("boom")), ports.F("attempt", 2))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v (%q)", err, buf.String())
	}
	if entry["level"] != "ERROR" {
		t.Errorf("level = %v, want ERROR", entry["level"])
	}
	if entry["msg"] != "apply failed" {
		t.Errorf("msg = %v, want %q", entry["msg"], "apply failed")
	}
	if entry["error"] != "boom" {
		t.Errorf("error = %v, want boom", entry["error"])
	}
	if entry["attempt"] != float64(2) {
		t.Errorf("attempt = %v, want 2", entry["attempt"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("JSON output should contain time by default")
	}
}

func TestConsoleLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsoleLogger(
		WithOutput(&buf),
		WithFormat(FormatText),
		WithLevel(ports.LevelWarn),
	)
	ctx := context.Background()

	logger.Debug(ctx, "debug")
	logger.Info(ctx, "info")
	if buf.Len() != 0 {
		t.Errorf("debug and info should be filtered, got %q", buf.String())
	}

	logger.Warn(ctx, "warn")
	logger.Error(ctx, "error")
	if got := strings.Count(buf.String(), "\n"); got != 2 {
		t.Errorf("expected 2 lines, got %d: %q", got, buf.String())
	}
}

func TestConsoleLogger_With(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsoleLogger(WithOutput(&buf), WithFormat(FormatText))

	child := logger.With(ports.F("run", "abc"))
	child.Info(context.Background(), "hello")

	if !strings.Contains(buf.String(), "run=abc") {
		t.Errorf("child output should contain base field, got %q", buf.String())
	}
}

func TestConsoleLogger_With_DoesNotModifyOriginal(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsoleLogger(WithOutput(&buf), WithFormat(FormatText))

	_ = logger.With(ports.F("run", "abc"))
	logger.Info(context.Background(), "hello")

	if strings.Contains(buf.String(), "run=abc") {
		t.Errorf("original logger should not carry child fields, got %q", buf.String())
	}
}

func TestConsoleLogger_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsoleLogger(WithOutput(&buf), WithFormat(FormatText))
	child := logger.With(ports.F("k", "v"))

	logger.SetLevel(ports.LevelDebug)
	if logger.Level() != ports.LevelDebug {
		t.Errorf("Level() = %v, want %v", logger.Level(), ports.LevelDebug)
	}

	child.Debug(context.Background(), "visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("child should follow parent level, got %q", buf.String())
	}
}

func TestValidFormat(t *testing.T) {
	for _, f := range []string{FormatTint, FormatText, FormatJSON} {
		if !ValidFormat(f) {
			t.Errorf("ValidFormat(%q) = false, want true", f)
		}
	}
	if ValidFormat("xml") {
		t.Error("ValidFormat(xml) = true, want false")
	}
}
