package agent

import "time"

// HookInput contains normalized data from a hook callback.
type HookInput struct {
	// Hook is the relay verb (e.g., "stop").
	Hook string
	// EventName is the agent's own event name, when it sends one.
	EventName      string
	SessionID      string
	TranscriptPath string
	Timestamp      time.Time
}
