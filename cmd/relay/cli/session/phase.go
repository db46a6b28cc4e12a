package session

import (
	"fmt"
	"strings"
)

// Phase is the escalation stage of a watched session.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseWatching Phase = "watching"
	PhaseRetrying Phase = "retrying"
)

// allPhases is the canonical list of phases for enumeration (e.g., diagram generation).
var allPhases = []Phase{PhaseIdle, PhaseWatching, PhaseRetrying}

// PhaseFromString normalizes a phase string; empty or unknown values are PhaseIdle.
func PhaseFromString(s string) Phase {
	switch Phase(s) {
	case PhaseWatching:
		return PhaseWatching
	case PhaseRetrying:
		return PhaseRetrying
	default:
		return PhaseIdle
	}
}

// IsRetrying reports whether a retry session is active.
func (p Phase) IsRetrying() bool {
	return p == PhaseRetrying
}

// Event is something that happened to a watched session.
type Event int

const (
	EventStart          Event = iota // Watcher started
	EventStop                        // Watcher stopped
	EventHookRead                    // A hook notification triggered a read pass
	EventTick                        // Background poller period elapsed
	EventBackgroundRead              // Background read pass finished
	EventRetryPoll                   // Retry timer fired and a read pass finished
)

// allEvents is the canonical list of events for enumeration.
var allEvents = []Event{EventStart, EventStop, EventHookRead, EventTick, EventBackgroundRead, EventRetryPoll}

// String returns a human-readable name for the event.
func (e Event) String() string {
	switch e {
	case EventStart:
		return "Start"
	case EventStop:
		return "Stop"
	case EventHookRead:
		return "HookRead"
	case EventTick:
		return "Tick"
	case EventBackgroundRead:
		return "BackgroundRead"
	case EventRetryPoll:
		return "RetryPoll"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

// Action is a side effect the watcher performs after a transition.
// The state machine only declares them.
type Action int

const (
	ActionScheduleTick      Action = iota // Arm the next background tick
	ActionRescanFiles                     // Look for a newer transcript file
	ActionReadBackground                  // Run a read pass with layer background
	ActionStartRetry                      // Open a retry session and arm the first poll
	ActionScheduleRetryPoll               // Arm the next retry poll
	ActionCancelRetry                     // Close the retry session and disarm its timer
	ActionRecordExhausted                 // Log a retry-exhausted attempt
	ActionPaneCapture                     // Run the pane capture fallback
	ActionSignalComplete                  // Stop the destination's progress indicator
)

// String returns a human-readable name for the action.
func (a Action) String() string {
	switch a {
	case ActionScheduleTick:
		return "ScheduleTick"
	case ActionRescanFiles:
		return "RescanFiles"
	case ActionReadBackground:
		return "ReadBackground"
	case ActionStartRetry:
		return "StartRetry"
	case ActionScheduleRetryPoll:
		return "ScheduleRetryPoll"
	case ActionCancelRetry:
		return "CancelRetry"
	case ActionRecordExhausted:
		return "RecordExhausted"
	case ActionPaneCapture:
		return "PaneCapture"
	case ActionSignalComplete:
		return "SignalComplete"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// TransitionContext carries the outcome of the read pass behind an event.
type TransitionContext struct {
	Found          bool // the pass reached the dedup check with at least one message
	FinalAnswer    bool // the triggering hook marks the end of a turn
	CeilingReached bool // the retry session has run for its full ceiling
}

// TransitionResult holds the outcome of a state machine transition.
type TransitionResult struct {
	NewPhase Phase
	Actions  []Action
}

// Transition computes the next phase and required actions given the current
// phase and an event. This is a pure function with no side effects.
func Transition(current Phase, event Event, ctx TransitionContext) TransitionResult {
	current = PhaseFromString(string(current))

	if event == EventStop {
		if current == PhaseRetrying {
			return TransitionResult{NewPhase: PhaseIdle, Actions: []Action{ActionCancelRetry}}
		}
		return TransitionResult{NewPhase: PhaseIdle}
	}

	switch current {
	case PhaseIdle:
		return transitionFromIdle(event)
	case PhaseWatching:
		return transitionFromWatching(event, ctx)
	case PhaseRetrying:
		return transitionFromRetrying(event, ctx)
	default:
		return TransitionResult{NewPhase: PhaseIdle}
	}
}

func transitionFromIdle(event Event) TransitionResult {
	if event == EventStart {
		return TransitionResult{
			NewPhase: PhaseWatching,
			Actions:  []Action{ActionScheduleTick},
		}
	}
	// Nothing is processed until the watcher starts.
	return TransitionResult{NewPhase: PhaseIdle}
}

func transitionFromWatching(event Event, ctx TransitionContext) TransitionResult {
	switch event {
	case EventHookRead:
		switch {
		case ctx.Found && ctx.FinalAnswer:
			return TransitionResult{NewPhase: PhaseWatching, Actions: []Action{ActionSignalComplete}}
		case !ctx.Found && ctx.FinalAnswer:
			return TransitionResult{NewPhase: PhaseRetrying, Actions: []Action{ActionStartRetry}}
		default:
			// Intermediate hooks never start a retry.
			return TransitionResult{NewPhase: PhaseWatching}
		}
	case EventTick:
		return TransitionResult{
			NewPhase: PhaseWatching,
			Actions:  []Action{ActionRescanFiles, ActionReadBackground, ActionScheduleTick},
		}
	case EventBackgroundRead:
		if ctx.Found {
			return TransitionResult{NewPhase: PhaseWatching, Actions: []Action{ActionSignalComplete}}
		}
		return TransitionResult{NewPhase: PhaseWatching}
	default:
		// Start is idempotent; a stale retry poll is ignored.
		return TransitionResult{NewPhase: PhaseWatching}
	}
}

func transitionFromRetrying(event Event, ctx TransitionContext) TransitionResult {
	switch event {
	case EventHookRead:
		if ctx.Found {
			return TransitionResult{
				NewPhase: PhaseWatching,
				Actions:  []Action{ActionCancelRetry, ActionSignalComplete},
			}
		}
		// A second final-answer hook while retrying is a no-op.
		return TransitionResult{NewPhase: PhaseRetrying}
	case EventTick:
		// Rescan only: reading belongs to the retry session.
		return TransitionResult{
			NewPhase: PhaseRetrying,
			Actions:  []Action{ActionRescanFiles, ActionScheduleTick},
		}
	case EventRetryPoll:
		switch {
		case ctx.Found:
			return TransitionResult{
				NewPhase: PhaseWatching,
				Actions:  []Action{ActionCancelRetry, ActionSignalComplete},
			}
		case ctx.CeilingReached:
			return TransitionResult{
				NewPhase: PhaseWatching,
				Actions: []Action{
					ActionCancelRetry, ActionRecordExhausted,
					ActionPaneCapture, ActionSignalComplete,
				},
			}
		default:
			return TransitionResult{NewPhase: PhaseRetrying, Actions: []Action{ActionScheduleRetryPoll}}
		}
	default:
		return TransitionResult{NewPhase: PhaseRetrying}
	}
}

// MermaidDiagram generates a Mermaid state diagram from the transition table.
// The diagram is derived by calling Transition() for representative context
// variants per phase/event, so it stays in sync with the implementation.
func MermaidDiagram() string {
	var b strings.Builder
	b.WriteString("stateDiagram-v2\n")
	b.WriteString("    state \"IDLE\" as idle\n")
	b.WriteString("    state \"WATCHING\" as watching\n")
	b.WriteString("    state \"RETRYING\" as retrying\n")
	b.WriteString("\n")

	type contextVariant struct {
		label string
		ctx   TransitionContext
	}

	for _, phase := range allPhases {
		for _, event := range allEvents {
			var variants []contextVariant
			switch event {
			case EventHookRead:
				variants = []contextVariant{
					{"[found, final]", TransitionContext{Found: true, FinalAnswer: true}},
					{"[missing, final]", TransitionContext{FinalAnswer: true}},
					{"[found]", TransitionContext{Found: true}},
				}
			case EventRetryPoll:
				variants = []contextVariant{
					{"[found]", TransitionContext{Found: true}},
					{"[ceiling]", TransitionContext{CeilingReached: true}},
					{"[missing]", TransitionContext{}},
				}
			case EventBackgroundRead:
				variants = []contextVariant{
					{"[found]", TransitionContext{Found: true}},
				}
			default:
				variants = []contextVariant{{"", TransitionContext{}}}
			}

			for _, v := range variants {
				result := Transition(phase, event, v.ctx)
				if result.NewPhase == phase && len(result.Actions) == 0 {
					continue
				}

				label := event.String()
				if v.label != "" {
					label += " " + v.label
				}
				if len(result.Actions) > 0 {
					names := make([]string, 0, len(result.Actions))
					for _, a := range result.Actions {
						names = append(names, a.String())
					}
					label += " / " + strings.Join(names, ", ")
				}
				fmt.Fprintf(&b, "    %s --> %s : %s\n", phase, result.NewPhase, label)
			}
		}
	}
	return b.String()
}
