package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/felixgeelhaar/vpsctl/internal/ports"
)

// Output formats understood by NewConsoleLogger.
const (
	FormatTint = "tint"
	FormatText = "text"
	FormatJSON = "json"
)

// ConsoleLogger logs structured messages to the console through log/slog.
type ConsoleLogger struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

type consoleConfig struct {
	out         io.Writer
	level       ports.Level
	format      string
	color       bool
	includeTime bool
}

// ConsoleLoggerOption configures the console logger.
type ConsoleLoggerOption func(*consoleConfig)

// WithOutput sets the output writer (default: os.Stderr).
func WithOutput(w io.Writer) ConsoleLoggerOption {
	return func(c *consoleConfig) {
		c.out = w
	}
}

// WithLevel sets the minimum log level (default: Info).
func WithLevel(level ports.Level) ConsoleLoggerOption {
	return func(c *consoleConfig) {
		c.level = level
	}
}

// WithFormat selects the handler: tint, text or json (default: tint).
func WithFormat(format string) ConsoleLoggerOption {
	return func(c *consoleConfig) {
		c.format = format
	}
}

// WithColor toggles ANSI colors for the tint handler.
func WithColor(enabled bool) ConsoleLoggerOption {
	return func(c *consoleConfig) {
		c.color = enabled
	}
}

// WithTimestamp includes timestamp in log entries.
func WithTimestamp(enabled bool) ConsoleLoggerOption {
	return func(c *consoleConfig) {
		c.includeTime = enabled
	}
}

// ValidFormat reports whether format names a supported handler.
func ValidFormat(format string) bool {
	switch format {
	case FormatTint, FormatText, FormatJSON:
		return true
	default:
		return false
	}
}

// NewConsoleLogger creates a new console logger.
func NewConsoleLogger(opts ...ConsoleLoggerOption) *ConsoleLogger {
	cfg := consoleConfig{
		out:         os.Stderr,
		level:       ports.LevelInfo,
		format:      FormatTint,
		includeTime: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	level := new(slog.LevelVar)
	level.Set(cfg.level.Slog())

	var replace func([]string, slog.Attr) slog.Attr
	if !cfg.includeTime {
		replace = func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		}
	}

	var handler slog.Handler
	switch cfg.format {
	case FormatJSON:
		handler = slog.NewJSONHandler(cfg.out, &slog.HandlerOptions{Level: level, ReplaceAttr: replace})
	case FormatText:
		handler = slog.NewTextHandler(cfg.out, &slog.HandlerOptions{Level: level, ReplaceAttr: replace})
	default:
		handler = tint.NewHandler(cfg.out, &tint.Options{
			Level:       level,
			ReplaceAttr: replace,
			TimeFormat:  time.Kitchen,
			NoColor:     !cfg.color,
		})
	}

	return &ConsoleLogger{logger: slog.New(handler), level: level}
}

// Debug logs a debug message.
func (l *ConsoleLogger) Debug(ctx context.Context, msg string, fields ...ports.Field) {
	l.log(ctx, ports.LevelDebug, msg, fields)
}

// Info logs an informational message.
func (l *ConsoleLogger) Info(ctx context.Context, msg string, fields ...ports.Field) {
	l.log(ctx, ports.LevelInfo, msg, fields)
}

// Warn logs a warning message.
func (l *ConsoleLogger) Warn(ctx context.Context, msg string, fields ...ports.Field) {
	l.log(ctx, ports.LevelWarn, msg, fields)
}

// Error logs an error message.
func (l *ConsoleLogger) Error(ctx context.Context, msg string, fields ...ports.Field) {
	l.log(ctx, ports.LevelError, msg, fields)
}

// With returns a new logger with additional fields. The level is shared
// with the parent.
func (l *ConsoleLogger) With(fields ...ports.Field) ports.Logger {
	return &ConsoleLogger{
		logger: l.logger.With(toAny(fields)...),
		level:  l.level,
	}
}

// Level returns the minimum log level.
func (l *ConsoleLogger) Level() ports.Level {
	switch lvl := l.level.Level(); {
	case lvl <= slog.LevelDebug:
		return ports.LevelDebug
	case lvl <= slog.LevelInfo:
		return ports.LevelInfo
	case lvl <= slog.LevelWarn:
		return ports.LevelWarn
	default:
		return ports.LevelError
	}
}

// SetLevel sets the minimum log level.
func (l *ConsoleLogger) SetLevel(level ports.Level) {
	l.level.Set(level.Slog())
}

// Slog exposes the underlying slog logger, e.g. for libraries that take one.
func (l *ConsoleLogger) Slog() *slog.Logger {
	return l.logger
}

func (l *ConsoleLogger) log(ctx context.Context, level ports.Level, msg string, fields []ports.Field) {
	if ctx == nil {
		ctx = context.Background()
	}
	l.logger.Log(ctx, level.Slog(), msg, toAny(fields)...)
}

func toAny(fields []ports.Field) []any {
	attrs := make([]any, 0, len(fields))
	for _, f := range fields {
		switch v := f.Value.(type) {
		case error:
			attrs = append(attrs, slog.String(f.Key, v.Error()))
		case fmt.Stringer:
			attrs = append(attrs, slog.String(f.Key, v.String()))
		default:
			attrs = append(attrs, slog.Any(f.Key, v))
		}
	}
	return attrs
}

var _ ports.Logger = (*ConsoleLogger)(nil)
