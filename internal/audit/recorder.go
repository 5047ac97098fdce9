// Package audit captures the gateway's append-only authentication trail.
// Records are fanned out to every configured sink; a sink failure is logged
// and swallowed so auditing can never change an authentication outcome.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Sink receives events. Implementations must tolerate concurrent appends.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Recorder fans events out to its sinks.
type Recorder struct {
	sinks  []Sink
	logger *slog.Logger
	now    func() time.Time
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithClock replaces the time source, used by tests.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

// NewRecorder constructs a recorder over the given sinks.
func NewRecorder(logger *slog.Logger, sinks ...Sink) *Recorder {
	return &Recorder{sinks: sinks, logger: logger, now: time.Now}
}

// Record stamps and appends one event. It never returns an error and never
// panics past a sink; the flow's outcome must not depend on audit plumbing.
func (r *Recorder) Record(ctx context.Context, event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = r.now()
	}
	if event.Username == "" {
		event.Username = "unknown"
	}
	for _, sink := range r.sinks {
		if err := sink.Append(ctx, event); err != nil {
			r.logger.Warn("audit sink append failed",
				"tag", event.Tag, "error", err)
		}
	}
}
