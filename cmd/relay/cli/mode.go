package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/entireio/relay/cmd/relay/cli/channel"
)

// knownModes are offered by the interactive picker and shell completion.
// Any <destination>[-verbose] is accepted on the command line.
var knownModes = []channel.Mode{
	channel.ModeLocal,
	channel.ModeSilent,
	channel.Mode(channel.TelegramDestination),
	channel.Mode(channel.TelegramDestination + "-verbose"),
}

func newModeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mode [mode]",
		Short: "Show or change where answers are delivered",
		Long: `Show or change the channel mode.

Modes:
  local              print answers in the daemon's terminal
  silent             record deliveries without sending them
  telegram           send answers to the configured Telegram chat
  telegram-verbose   as telegram, with the reasoning trace attached

The daemon reads the mode before every delivery, so a change takes effect
immediately.`,
		Args: cobra.MaximumNArgs(1),
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			names := make([]string, len(knownModes))
			for i, m := range knownModes {
				names[i] = string(m)
			}
			return names, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := channelStatePath()
			if err != nil {
				return err
			}
			store := channel.FileModeStore{Path: path}
			w := cmd.OutOrStdout()

			if len(args) == 1 {
				return runSetMode(w, store, args[0])
			}

			current, err := store.Mode(cmd.Context())
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			}
			if !isTerminal(os.Stdin) || !isTerminal(os.Stdout) {
				fmt.Fprintln(w, current)
				return nil
			}

			selected, err := promptMode(current)
			if err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					return nil
				}
				return fmt.Errorf("mode selection: %w", err)
			}
			if selected == current {
				fmt.Fprintf(w, "Mode unchanged: %s\n", current)
				return nil
			}
			return runSetMode(w, store, string(selected))
		},
	}
	return cmd
}

func runSetMode(w io.Writer, store channel.FileModeStore, arg string) error {
	mode, err := channel.ParseMode(arg)
	if err != nil {
		return err
	}
	if err := store.Set(mode); err != nil {
		return err
	}
	fmt.Fprintf(w, "Mode set to %s.\n", mode)
	if dest, _ := mode.Destination(); !slices.Contains(knownModes, channel.Mode(dest)) {
		fmt.Fprintf(w, "Note: %q is not a built-in destination; deliveries fail until the daemon registers it.\n", dest)
	}
	return nil
}

func promptMode(current channel.Mode) (channel.Mode, error) {
	selected := current
	opts := make([]huh.Option[channel.Mode], 0, len(knownModes))
	for _, m := range knownModes {
		opts = append(opts, huh.NewOption(string(m), m))
	}
	form := NewAccessibleForm(huh.NewGroup(
		huh.NewSelect[channel.Mode]().
			Title("Deliver answers to").
			Options(opts...).
			Value(&selected),
	))
	if err := form.Run(); err != nil {
		return current, err //nolint:wrapcheck // caller checks for huh.ErrUserAborted
	}
	return selected, nil
}
