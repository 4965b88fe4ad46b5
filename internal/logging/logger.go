// Package logging provides centralized logging for the relay.
package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// sessionCounter is used to generate unique session IDs.
var sessionCounter atomic.Uint64

// NewLogger creates a new slog.Logger with the specified level.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: lvl,
	}
	handler := slog.NewTextHandler(os.Stderr, opts)
	return slog.New(handler)
}

// WithSession returns a new logger with session-specific attributes.
// It generates a unique session ID for log correlation.
func WithSession(logger *slog.Logger, remoteAddr string) *slog.Logger {
	id := sessionCounter.Add(1)
	return logger.With(
		slog.Uint64("session_id", id),
		slog.String("remote_addr", remoteAddr),
	)
}

// WithDestination returns a new logger with delivery-lane attributes.
func WithDestination(logger *slog.Logger, destination int64) *slog.Logger {
	return logger.With(slog.Int64("destination", destination))
}

// DebugWriter is an io.Writer that logs everything written to it at debug
// level. It is handed to the SMTP server as its protocol trace sink when
// log_level is debug.
type DebugWriter struct {
	logger *slog.Logger
}

// NewDebugWriter creates a writer that logs all data written to it.
func NewDebugWriter(logger *slog.Logger) *DebugWriter {
	return &DebugWriter{logger: logger}
}

// Write logs the data and reports it fully written.
func (w *DebugWriter) Write(p []byte) (int, error) {
	if len(p) > 0 {
		w.logger.Debug("smtp trace",
			slog.String("data", strings.TrimRight(string(p), "\r\n")),
		)
	}
	return len(p), nil
}
