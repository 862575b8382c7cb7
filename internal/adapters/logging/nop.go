// Package logging provides ports.Logger implementations on log/slog:
// console output in tint, text or JSON format, and a discarding logger.
package logging

import "log/slog"

// NewNopLogger returns a logger whose handler drops every record. Fields
// and level changes behave as on a console logger.
func NewNopLogger() *ConsoleLogger {
	level := new(slog.LevelVar)
	return &ConsoleLogger{logger: slog.New(slog.DiscardHandler), level: level}
}
