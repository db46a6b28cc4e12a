package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/entireio/relay/cmd/relay/cli/agent"
	"github.com/entireio/relay/cmd/relay/cli/agent/claudecode"
	"github.com/entireio/relay/cmd/relay/cli/logging"
	"github.com/entireio/relay/cmd/relay/cli/paths"
	"github.com/entireio/relay/cmd/relay/cli/settings"
)

// HookHandlerFunc handles one decoded hook event.
type HookHandlerFunc func(ctx context.Context, input *agent.HookInput) error

// hookRegistry maps (agentName, hookName) to handler functions.
// Agents define the hook vocabulary; handler logic stays in the CLI package.
var hookRegistry = map[string]map[string]HookHandlerFunc{}

// RegisterHookHandler registers a handler for an agent's hook.
func RegisterHookHandler(agentName, hookName string, handler HookHandlerFunc) {
	if hookRegistry[agentName] == nil {
		hookRegistry[agentName] = make(map[string]HookHandlerFunc)
	}
	hookRegistry[agentName][hookName] = handler
}

// GetHookHandler returns the handler for an agent's hook, or nil if not found.
func GetHookHandler(agentName, hookName string) HookHandlerFunc {
	if handlers, ok := hookRegistry[agentName]; ok {
		return handlers[hookName]
	}
	return nil
}

//nolint:gochecknoinits // Hook handler registration at startup is the intended pattern
func init() {
	for _, hook := range []string{
		claudecode.HookNameSessionStart,
		claudecode.HookNameUserPromptSubmit,
		claudecode.HookNameStop,
		claudecode.HookNameSubagentStop,
		claudecode.HookNameNotification,
		claudecode.HookNameSessionEnd,
	} {
		RegisterHookHandler(agent.AgentNameClaudeCode, hook, forwardToDaemon(agent.AgentNameClaudeCode))
	}
}

// forwardToDaemon returns a handler that posts the event to the daemon.
// A daemon that is not running is not an error.
func forwardToDaemon(agentName string) HookHandlerFunc {
	return func(ctx context.Context, input *agent.HookInput) error {
		socket, err := paths.HomePath(paths.SocketFileName)
		if err != nil {
			return err
		}
		err = sendNotification(ctx, socket, Notification{
			Agent:          agentName,
			Hook:           input.Hook,
			EventName:      input.EventName,
			SessionID:      input.SessionID,
			TranscriptPath: input.TranscriptPath,
		})
		if errors.Is(err, errDaemonNotRunning) {
			logging.Debug(ctx, "daemon not running, hook dropped")
			return nil
		}
		return err
	}
}

// initHookLogging opens the hooks log file. Logging falls back to stderr
// when the file cannot be opened.
func initHookLogging() func() {
	logging.SetLogLevelGetter(settings.GetLogLevel)
	if err := logging.Init("hooks"); err != nil {
		return func() {}
	}
	return logging.Close
}

// agentHookLogCleanup stores the cleanup function for agent hook logging.
// Set by PersistentPreRunE, called by PersistentPostRunE.
var agentHookLogCleanup func()

// newAgentHooksCmd creates a hooks subcommand for an agent that implements HookHandler.
func newAgentHooksCmd(agentName string, handler agent.HookHandler) *cobra.Command {
	cmd := &cobra.Command{
		Use:    agentName,
		Short:  handler.Description() + " hook handlers",
		Hidden: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			agentHookLogCleanup = initHookLogging()
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if agentHookLogCleanup != nil {
				agentHookLogCleanup()
			}
			return nil
		},
	}

	for _, hookName := range handler.GetHookNames() {
		cmd.AddCommand(newAgentHookVerbCmdWithLogging(handler, hookName))
	}

	return cmd
}

// newAgentHookVerbCmdWithLogging creates the command for one hook verb.
// Hook commands never fail the agent: every error is logged and swallowed.
func newAgentHookVerbCmdWithLogging(ag agent.Agent, hookName string) *cobra.Command {
	return &cobra.Command{
		Use:   hookName,
		Short: "Called on " + hookName,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !settings.IsEnabled() {
				return nil
			}

			start := time.Now()
			agentName := ag.Name()
			ctx := logging.WithAgent(logging.WithComponent(cmd.Context(), "hooks"), agentName)
			ctx = logging.WithHook(ctx, hookName)

			input, err := ag.ParseHookInput(hookName, cmd.InOrStdin())
			if err != nil {
				logging.Warn(ctx, "unreadable hook input", slog.String("error", err.Error()))
				return nil
			}
			ctx = logging.WithSession(ctx, input.SessionID)
			logging.Debug(ctx, "hook invoked", slog.String("transcript", input.TranscriptPath))

			handler := GetHookHandler(agentName, hookName)
			if handler == nil {
				logging.Error(ctx, "no handler registered",
					slog.String("error", fmt.Sprintf("no handler registered for %s/%s", agentName, hookName)))
				return nil
			}

			hookErr := handler(ctx, input)
			if hookErr != nil {
				logging.Warn(ctx, "hook handler failed", slog.String("error", hookErr.Error()))
			}
			logging.LogDuration(ctx, slog.LevelDebug, "hook completed", start,
				slog.Bool("success", hookErr == nil),
			)
			return nil
		},
	}
}
