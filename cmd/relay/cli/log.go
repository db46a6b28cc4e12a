package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/entireio/relay/cmd/relay/cli/deliverylog"
)

func newLogCmd() *cobra.Command {
	var (
		limit   int
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show recent delivery attempts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, closeFn, err := openDeliveryLog(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if logger == nil {
				fmt.Fprintln(w, "No deliveries recorded yet.")
				return nil
			}
			defer closeFn()

			attempts := logger.Recent(cmd.Context(), limit)
			if jsonOut {
				return writeAttemptsJSON(w, attempts)
			}
			if len(attempts) == 0 {
				fmt.Fprintln(w, "No deliveries recorded yet.")
				return nil
			}
			writeAttemptsTable(w, attempts, isTerminal(os.Stdout))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of attempts to show (0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON lines")
	return cmd
}

func writeAttemptsJSON(w io.Writer, attempts []deliverylog.Attempt) error {
	enc := json.NewEncoder(w)
	for _, a := range attempts {
		if err := enc.Encode(a); err != nil {
			return fmt.Errorf("encoding attempt: %w", err)
		}
	}
	return nil
}

func writeAttemptsTable(w io.Writer, attempts []deliverylog.Attempt, rounded bool) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	if rounded {
		tw.SetStyle(table.StyleRounded)
	}
	tw.AppendHeader(table.Row{"Time", "Layer", "Hook", "Outcome", "Dest", "Retry", "Elapsed", "Len", "Error"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
		{Number: 9, WidthMax: 40},
	})
	for _, a := range attempts {
		retry := "-"
		if a.RetryAttempt > 0 {
			retry = strconv.Itoa(a.RetryAttempt)
		}
		tw.AppendRow(table.Row{
			a.Timestamp.Local().Format(time.DateTime),
			a.Layer,
			a.Hook,
			a.Outcome,
			a.Destination,
			retry,
			fmt.Sprintf("%dms", a.ElapsedMs),
			a.MessageLength,
			a.Error,
		})
	}
	tw.Render()
}
