// Package deliverylog records every delivery attempt in a capped log and
// aggregates it into delivery statistics. The log is diagnostic only;
// nothing reads it back to decide what to deliver.
package deliverylog

import (
	"context"
	"time"
)

// Layer names the pipeline stage that produced an attempt.
type Layer string

const (
	LayerImmediate   Layer = "immediate"
	LayerRetry       Layer = "retry"
	LayerBackground  Layer = "background"
	LayerPaneCapture Layer = "pane-capture"
)

// Layers lists every layer in pipeline order.
var Layers = []Layer{LayerImmediate, LayerRetry, LayerBackground, LayerPaneCapture}

// Outcome is the result of an attempt.
type Outcome string

const (
	OutcomeDelivered      Outcome = "delivered"
	OutcomeDedup          Outcome = "dedup"
	OutcomeRetryExhausted Outcome = "retry-exhausted"
)

// Outcomes lists every outcome.
var Outcomes = []Outcome{OutcomeDelivered, OutcomeDedup, OutcomeRetryExhausted}

// Attempt is one delivery attempt.
type Attempt struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	SessionID     string    `json:"session_id,omitempty"`
	ContentHash   string    `json:"content_hash,omitempty"`
	Layer         Layer     `json:"layer"`
	Hook          string    `json:"hook,omitempty"`
	ElapsedMs     int64     `json:"elapsed_ms"`
	RetryAttempt  int       `json:"retry_attempt"`
	Destination   string    `json:"destination,omitempty"`
	Outcome       Outcome   `json:"outcome"`
	MessageLength int       `json:"message_length"`
	Error         string    `json:"error,omitempty"`
}

// Succeeded reports whether the attempt reached its destination.
func (a Attempt) Succeeded() bool {
	return a.Outcome == OutcomeDelivered && a.Error == ""
}

// Store persists attempts. Recent returns the newest attempts first.
type Store interface {
	Append(ctx context.Context, a Attempt) error
	Recent(ctx context.Context, n int) ([]Attempt, error)
	Close() error
}
