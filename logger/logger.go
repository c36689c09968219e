// Package logger wraps log/slog behind a small interface so packages can
// log without depending on handler configuration.
package logger

import (
	"log/slog"
	"os"
)

// Constants for logging levels
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Logger interface defines the logging contract
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	With(args ...any) Logger
}

// NewLogger creates a new text logger with the specified level
func NewLogger(level string) Logger {
	opts := &slog.HandlerOptions{Level: parseLevelString(level)}
	return &slogLogger{logger: slog.New(slog.NewTextHandler(os.Stdout, opts))}
}

// NewJSONLogger creates a new JSON logger with the specified level
func NewJSONLogger(level string) Logger {
	opts := &slog.HandlerOptions{Level: parseLevelString(level)}
	return &slogLogger{logger: slog.New(slog.NewJSONHandler(os.Stdout, opts))}
}

// NewNoOpLogger creates a logger that discards all log messages
func NewNoOpLogger() Logger {
	return &slogLogger{logger: slog.New(slog.DiscardHandler)}
}
