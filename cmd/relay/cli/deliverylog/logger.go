package deliverylog

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/entireio/relay/cmd/relay/cli/logging"
)

// Logger records attempts into a Store. Store failures are logged and
// swallowed: delivery never depends on the log.
type Logger struct {
	store Store
	max   int
	now   func() time.Time
}

// NewLogger returns a Logger over store. maxEntries bounds Stats reads.
// A nil now uses time.Now.
func NewLogger(store Store, maxEntries int, now func() time.Time) *Logger {
	if now == nil {
		now = time.Now
	}
	return &Logger{store: store, max: maxEntries, now: now}
}

// Record stores a. ID and Timestamp are filled in when empty. The hook is
// logged from ctx, not from a.
func (l *Logger) Record(ctx context.Context, a Attempt) Attempt {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = l.now()
	}

	logging.Info(ctx, "delivery attempt",
		"layer", string(a.Layer),
		"outcome", string(a.Outcome),
		"elapsed_ms", a.ElapsedMs,
		"retry_attempt", a.RetryAttempt,
		"destination", a.Destination,
		"length", a.MessageLength,
		"hash", a.ContentHash,
	)

	if err := l.store.Append(ctx, a); err != nil {
		logging.Warn(ctx, "failed to record delivery attempt", "error", err.Error())
	}
	return a
}

// Recent returns up to n attempts, newest first. Errors yield nil.
func (l *Logger) Recent(ctx context.Context, n int) []Attempt {
	attempts, err := l.store.Recent(ctx, n)
	if err != nil {
		logging.Warn(ctx, "failed to read delivery log", "error", err.Error())
		return nil
	}
	return attempts
}

// Stats aggregates the retained attempts.
func (l *Logger) Stats(ctx context.Context) Stats {
	return Compute(l.Recent(ctx, l.max), l.now())
}
