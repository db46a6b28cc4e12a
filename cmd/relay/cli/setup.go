package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/entireio/relay/cmd/relay/cli/agent"
	"github.com/entireio/relay/cmd/relay/cli/channel"
	"github.com/entireio/relay/cmd/relay/cli/paths"
	"github.com/entireio/relay/cmd/relay/cli/settings"
)

// DisabledMessage is shown by commands that do nothing while relay is disabled.
const DisabledMessage = "relay is disabled. Run `relay enable` to re-enable."

func newEnableCmd() *cobra.Command {
	var (
		localDev  bool
		forceHook bool
		uninstall bool
		agentName string
	)

	cmd := &cobra.Command{
		Use:   "enable",
		Short: "Enable relay and install agent hooks",
		Long: `Enable relay and install its hook commands into the agent configuration
of the current project. Run 'relay daemon' afterwards to start delivering.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ag, err := hookAgent(agentName)
			if err != nil {
				return err
			}
			if uninstall {
				return runUninstallHooks(cmd.OutOrStdout(), ag)
			}
			return runEnable(cmd.OutOrStdout(), ag, localDev, forceHook)
		},
	}

	cmd.Flags().BoolVar(&localDev, "local-dev", false, "Use go run instead of the relay binary for hooks")
	cmd.Flags().MarkHidden("local-dev") //nolint:errcheck,gosec // flag is defined above
	cmd.Flags().BoolVarP(&forceHook, "force", "f", false, "Force reinstall hooks (removes existing relay hooks first)")
	cmd.Flags().BoolVar(&uninstall, "uninstall", false, "Remove relay hooks from the agent configuration")
	cmd.Flags().StringVar(&agentName, "agent", "", "Agent to install hooks for (default: claude-code)")
	//nolint:errcheck,gosec // completion is optional, flag is defined above
	cmd.RegisterFlagCompletionFunc("agent", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return agent.List(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func newDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable",
		Short: "Disable relay",
		Long:  "Disable relay temporarily. Hooks exit silently and the daemon refuses to start. Installed hooks are kept.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDisable(cmd.OutOrStdout())
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show relay status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cmd.OutOrStdout())
		},
	}
}

// hookAgent resolves name (or the default agent) to an agent that supports hooks.
//
//nolint:ireturn // callers need the hook interface
func hookAgent(name string) (agent.HookSupport, error) {
	var ag agent.Agent
	if name == "" {
		ag = agent.Default()
		if ag == nil {
			return nil, errors.New("no agent registered")
		}
	} else {
		var err error
		if ag, err = agent.Get(name); err != nil {
			return nil, err
		}
	}
	hs, ok := ag.(agent.HookSupport)
	if !ok {
		return nil, fmt.Errorf("agent %s does not support hooks", ag.Name())
	}
	return hs, nil
}

func runEnable(w io.Writer, ag agent.HookSupport, localDev, force bool) error {
	root, err := paths.ProjectRoot()
	if err != nil {
		return fmt.Errorf("finding project root: %w", err)
	}
	if _, err := paths.EnsureHome(); err != nil {
		return err
	}

	count, err := ag.InstallHooks(root, localDev, force)
	if err != nil {
		return fmt.Errorf("failed to install %s hooks: %w", ag.Name(), err)
	}

	s, err := settings.Load()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	s.Enabled = true
	if err := settings.Save(s); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	if count > 0 {
		fmt.Fprintf(w, "Installed %d %s hooks in %s.\n", count, ag.Name(), root)
	} else {
		fmt.Fprintf(w, "%s hooks already installed.\n", ag.Name())
	}
	fmt.Fprintln(w, "relay is now enabled. Start delivering with 'relay daemon'.")
	return nil
}

func runUninstallHooks(w io.Writer, ag agent.HookSupport) error {
	root, err := paths.ProjectRoot()
	if err != nil {
		return fmt.Errorf("finding project root: %w", err)
	}
	count, err := ag.UninstallHooks(root)
	if err != nil {
		return fmt.Errorf("failed to remove %s hooks: %w", ag.Name(), err)
	}
	if count == 0 {
		fmt.Fprintf(w, "No %s hooks to remove.\n", ag.Name())
		return nil
	}
	fmt.Fprintf(w, "Removed %d %s hooks.\n", count, ag.Name())
	return nil
}

func runDisable(w io.Writer) error {
	s, err := settings.Load()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	s.Enabled = false
	if err := settings.Save(s); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	fmt.Fprintln(w, "relay is now disabled.")
	return nil
}

func runStatus(cmd *cobra.Command, w io.Writer) error {
	s, err := settings.Load()
	if err != nil {
		return fmt.Errorf("failed to check status: %w", err)
	}
	if !s.Enabled {
		fmt.Fprintln(w, "○ disabled")
		return nil
	}
	fmt.Fprintln(w, "● enabled")

	if mode, err := currentMode(cmd); err == nil {
		fmt.Fprintf(w, "  mode:   %s\n", mode)
	} else {
		fmt.Fprintf(w, "  mode:   %s (%v)\n", mode, err)
	}

	daemon := "not running"
	if socket, err := paths.HomePath(paths.SocketFileName); err == nil && pingDaemon(cmd.Context(), socket, 500*time.Millisecond) {
		daemon = "running"
	}
	fmt.Fprintf(w, "  daemon: %s\n", daemon)

	if root, err := paths.ProjectRoot(); err == nil {
		if ag, err := hookAgent(""); err == nil {
			hooks := "not installed"
			if ag.AreHooksInstalled(root) {
				hooks = "installed"
			}
			fmt.Fprintf(w, "  hooks:  %s (%s)\n", hooks, ag.Name())
		}
	}
	return nil
}

func currentMode(cmd *cobra.Command) (channel.Mode, error) {
	path, err := channelStatePath()
	if err != nil {
		return channel.DefaultMode, err
	}
	return channel.FileModeStore{Path: path}.Mode(cmd.Context())
}
