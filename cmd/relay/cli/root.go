package cli

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/entireio/relay/cmd/relay/cli/paths"
	"github.com/entireio/relay/cmd/relay/cli/settings"
	"github.com/entireio/relay/cmd/relay/cli/telemetry"
	"github.com/entireio/relay/cmd/relay/cli/versioncheck"
)

const gettingStarted = `

Getting Started:
  Run 'relay enable' in your project to install the agent hooks, then
  'relay daemon' to start delivering answers. 'relay mode' picks where
  they go.

`

const accessibilityHelp = `
Environment Variables:
  ACCESSIBLE            Set to any value (e.g., ACCESSIBLE=1) to enable
                        accessibility mode. This uses simpler text prompts
                        instead of interactive TUI elements.
  RELAY_HOME            Override the state directory (default ~/.relay).
  RELAY_TELEGRAM_TOKEN  Telegram bot token for the telegram destination.
`

// Version information (can be set at build time)
var (
	Version = "dev"
	Commit  = "unknown"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Deliver coding agent answers where you are",
		Long:  "relay watches your coding agent's transcripts and reliably delivers its final answers" + gettingStarted + accessibilityHelp,
		// Let main.go handle error printing to avoid duplication
		SilenceErrors: true,
		// Hide completion command from help but keep it functional
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			trackCommand(cmd)
			versioncheck.CheckAndNotify(cmd, Version)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newDaemonCmd())
	cmd.AddCommand(newModeCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newLogCmd())
	cmd.AddCommand(newEnableCmd())
	cmd.AddCommand(newDisableCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newHooksCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// trackCommand sends a usage event when the user opted in. Hook commands
// run inside the agent's turn and are never tracked.
func trackCommand(cmd *cobra.Command) {
	if strings.HasPrefix(cmd.CommandPath(), "relay hooks") {
		return
	}
	s, err := settings.Load()
	if err != nil {
		return
	}
	client := telemetry.NewClient(Version, s.Telemetry)
	defer client.Close()
	if _, off := client.(*telemetry.NoOpClient); off {
		return
	}

	var destination string
	if mode, err := currentMode(cmd); err == nil {
		destination, _ = mode.Destination()
	}
	running := false
	if socket, err := paths.HomePath(paths.SocketFileName); err == nil {
		running = pingDaemon(cmd.Context(), socket, 200*time.Millisecond)
	}
	client.TrackCommand(cmd, destination, running)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "relay %s (%s)\n", Version, Commit)
			fmt.Fprintf(w, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(w, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
