// Package session holds the escalation state of one watched session: the
// phase machine and the retry session it drives.
package session

import "time"

// Retry is the single active retry session.
type Retry struct {
	StartedAt time.Time
	Attempts  int
	Path      string // transcript being polled
	Hook      string // hook that triggered the retry
}

// Elapsed returns the time since the retry started.
func (r *Retry) Elapsed(now time.Time) time.Duration {
	return now.Sub(r.StartedAt)
}

// State is the mutable escalation state owned by a watcher.
type State struct {
	SessionID string
	Phase     Phase

	// Retry is non-nil only while Phase is PhaseRetrying.
	Retry *Retry

	// LastDeliveredAt is the time of the last successful delivery.
	LastDeliveredAt *time.Time
}

// RetryTrigger describes what opened a retry session.
type RetryTrigger struct {
	Path string
	Hook string
}

// ApplyCommonActions applies the bookkeeping of a transition to state: the
// new phase, and a fresh retry session on ActionStartRetry. All actions are
// returned for the caller to execute, since the caller owns the timers.
// The retry session is closed with EndRetry once its outcome is logged.
func ApplyCommonActions(state *State, result TransitionResult, now time.Time, trigger RetryTrigger) []Action {
	state.Phase = result.NewPhase
	for _, action := range result.Actions {
		if action == ActionStartRetry && state.Retry == nil {
			state.Retry = &Retry{StartedAt: now, Path: trigger.Path, Hook: trigger.Hook}
		}
	}
	return result.Actions
}

// EndRetry clears and returns the active retry session, if any.
func (s *State) EndRetry() *Retry {
	r := s.Retry
	s.Retry = nil
	return r
}

// MarkDelivered records a successful delivery time.
func (s *State) MarkDelivered(at time.Time) {
	s.LastDeliveredAt = &at
}

// DeliveredWithin reports whether a delivery succeeded within d of now.
func (s *State) DeliveredWithin(now time.Time, d time.Duration) bool {
	return s.LastDeliveredAt != nil && now.Sub(*s.LastDeliveredAt) < d
}
