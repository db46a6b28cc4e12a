package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/entireio/relay/cmd/relay/cli/deliverylog"
	"github.com/entireio/relay/cmd/relay/cli/paths"
	"github.com/entireio/relay/cmd/relay/cli/settings"
)

func newStatsCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show delivery statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, closeFn, err := openDeliveryLog(cmd.Context())
			if err != nil {
				return err
			}
			if logger == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No deliveries recorded yet.")
				return nil
			}
			defer closeFn()

			stats := logger.Stats(cmd.Context())
			if jsonOut {
				return writeStatsJSON(cmd.OutOrStdout(), stats)
			}
			writeStats(cmd.OutOrStdout(), stats)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON")
	return cmd
}

// openDeliveryLog opens the daemon's delivery database for reading.
// Returns a nil logger when nothing has been recorded yet.
func openDeliveryLog(ctx context.Context) (*deliverylog.Logger, func(), error) {
	path, err := paths.HomePath(paths.DeliveryDBFileName)
	if err != nil {
		return nil, nil, err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("checking delivery log: %w", err)
	}

	s, err := settings.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading settings: %w", err)
	}
	maxEntries := s.Delivery.LogEntries()
	store, err := deliverylog.OpenSQLite(ctx, path, maxEntries)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() { _ = store.Close() } //nolint:errcheck // read-only use
	return deliverylog.NewLogger(store, maxEntries, time.Now), closeFn, nil
}

func writeStatsJSON(w io.Writer, s deliverylog.Stats) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encoding stats: %w", err)
	}
	return nil
}

func writeStats(w io.Writer, s deliverylog.Stats) {
	if s.Total == 0 {
		fmt.Fprintln(w, "No deliveries recorded yet.")
		return
	}
	bold := color.New(color.Bold)

	bold.Fprintf(w, "Attempts: %d\n", s.Total)
	fmt.Fprintln(w)

	bold.Fprintln(w, "By outcome")
	for _, o := range deliverylog.Outcomes {
		fmt.Fprintf(w, "  %-16s %s\n", o, outcomeColor(o).Sprint(s.ByOutcome[o]))
	}
	fmt.Fprintln(w)

	bold.Fprintln(w, "By layer")
	for _, l := range deliverylog.Layers {
		fmt.Fprintf(w, "  %-16s %d\n", l, s.ByLayer[l])
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Avg retry latency:  %s\n", formatLatency(s.AvgRetryLatency))
	fmt.Fprintf(w, "Avg message length: %.0f chars\n", s.AvgMessageLength)
	if s.LastDelivered == nil {
		fmt.Fprintf(w, "Last delivery:      %s\n", color.New(color.FgYellow).Sprint("never"))
		return
	}
	fmt.Fprintf(w, "Last delivery:      %s (%s ago)\n",
		s.LastDelivered.Local().Format(time.DateTime), s.SinceLastDelivery.Round(time.Second))
}

func outcomeColor(o deliverylog.Outcome) *color.Color {
	switch o {
	case deliverylog.OutcomeDelivered:
		return color.New(color.FgGreen)
	case deliverylog.OutcomeDedup:
		return color.New(color.FgCyan)
	case deliverylog.OutcomeRetryExhausted:
		return color.New(color.FgRed)
	default:
		return color.New(color.Reset)
	}
}

func formatLatency(d time.Duration) string {
	if d == 0 {
		return "-"
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(100 * time.Millisecond).String()
}
