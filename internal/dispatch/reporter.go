package dispatch

import "log/slog"

// LogReporter logs terminal delivery outcomes. It is the default outcome
// sink when no other observability collaborator is wired in.
type LogReporter struct {
	logger *slog.Logger
}

// NewLogReporter creates a LogReporter.
func NewLogReporter(logger *slog.Logger) *LogReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogReporter{logger: logger}
}

// Report logs one terminal outcome.
func (r *LogReporter) Report(msg Message, attempts int, err error) {
	if err == nil {
		r.logger.Info("message delivered",
			slog.Int64("destination", int64(msg.Destination)),
			slog.Int("attempts", attempts))
		return
	}
	r.logger.Error("message delivery failed",
		slog.Int64("destination", int64(msg.Destination)),
		slog.Int("attempts", attempts),
		slog.String("error", err.Error()))
}
