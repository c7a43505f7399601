// Package recorder fans accepted answers out to the configured persistence
// sinks. Sink failures are logged and never surfaced to the interview flow.
package recorder

import (
	"context"
	"log/slog"
	"time"

	"github.com/tjfontaine/interview-conductor/internal/core/domain"
	"github.com/tjfontaine/interview-conductor/internal/core/ports"
)

const persistTimeout = 5 * time.Second

// Recorder delivers each record to every sink in order. Records arrive in
// chronological order, exactly once each; the recorder preserves that order
// per sink by delivering synchronously.
type Recorder struct {
	sinks  []ports.RecordSink
	logger *slog.Logger
}

// New builds a recorder over the given sinks.
func New(sinks []ports.RecordSink, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{sinks: sinks, logger: logger}
}

// Record hands rec to every sink, best effort. Persistence is decoupled
// from the session lifecycle so a cancelled interview still flushes its
// final answers; a short timeout bounds each delivery.
func (r *Recorder) Record(ctx context.Context, rec *domain.ResponseRecord) {
	persistCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	for _, sink := range r.sinks {
		if err := sink.HandleRecord(persistCtx, rec); err != nil {
			r.logger.Error("failed to persist response",
				slog.String("session_id", rec.SessionID),
				slog.String("question", rec.Question),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Close closes all sinks, returning the first error encountered.
func (r *Recorder) Close() error {
	var firstErr error
	for _, sink := range r.sinks {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
