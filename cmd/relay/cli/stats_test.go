package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entireio/relay/cmd/relay/cli/deliverylog"
	"github.com/entireio/relay/cmd/relay/cli/paths"
)

func seedDeliveryLog(t *testing.T, attempts ...deliverylog.Attempt) {
	t.Helper()
	_, err := paths.EnsureHome()
	require.NoError(t, err)
	path, err := paths.HomePath(paths.DeliveryDBFileName)
	require.NoError(t, err)

	store, err := deliverylog.OpenSQLite(t.Context(), path, 100)
	require.NoError(t, err)
	defer store.Close()

	logger := deliverylog.NewLogger(store, 100, time.Now)
	for _, a := range attempts {
		logger.Record(t.Context(), a)
	}
}

func sampleAttempts() []deliverylog.Attempt {
	return []deliverylog.Attempt{
		{SessionID: "s1", Layer: deliverylog.LayerImmediate, Hook: "stop", Outcome: deliverylog.OutcomeDelivered, Destination: "local", MessageLength: 40},
		{SessionID: "s1", Layer: deliverylog.LayerRetry, Hook: "stop", RetryAttempt: 2, ElapsedMs: 400, Outcome: deliverylog.OutcomeDelivered, Destination: "telegram", MessageLength: 60},
		{SessionID: "s1", Layer: deliverylog.LayerRetry, Hook: "stop", RetryAttempt: 62, ElapsedMs: 60000, Outcome: deliverylog.OutcomeRetryExhausted},
		{SessionID: "s1", Layer: deliverylog.LayerPaneCapture, Hook: "stop", Outcome: deliverylog.OutcomeDedup, MessageLength: 60},
	}
}

func TestStatsCommand_NoDeliveries(t *testing.T) {
	setupTestDir(t)

	out, err := runRoot(t, "stats")
	require.NoError(t, err)
	assert.Equal(t, "No deliveries recorded yet.\n", out)

	out, err = runRoot(t, "log")
	require.NoError(t, err)
	assert.Equal(t, "No deliveries recorded yet.\n", out)
}

func TestStatsCommand(t *testing.T) {
	setupTestDir(t)
	seedDeliveryLog(t, sampleAttempts()...)

	out, err := runRoot(t, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Attempts: 4")
	assert.Contains(t, out, "retry-exhausted")
	assert.Contains(t, out, "pane-capture")
	assert.Contains(t, out, "Avg retry latency:  400ms")
	assert.Contains(t, out, "Avg message length: 50 chars")
	assert.Contains(t, out, "Last delivery:")

	out, err = runRoot(t, "stats", "--json")
	require.NoError(t, err)
	var stats deliverylog.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.ByOutcome[deliverylog.OutcomeDelivered])
	assert.Equal(t, 2, stats.ByLayer[deliverylog.LayerRetry])
}

func TestLogCommand(t *testing.T) {
	setupTestDir(t)
	seedDeliveryLog(t, sampleAttempts()...)

	out, err := runRoot(t, "log", "--json", "-n", "2")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)

	var newest deliverylog.Attempt
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &newest))
	assert.Equal(t, deliverylog.LayerPaneCapture, newest.Layer, "newest first")
	assert.NotEmpty(t, newest.ID)

	out, err = runRoot(t, "log")
	require.NoError(t, err)
	assert.Contains(t, out, "pane-capture")
	assert.Contains(t, out, "400ms")
	assert.Contains(t, out, "telegram")
}

func TestWriteStats_Empty(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	writeStats(&out, deliverylog.Compute(nil, time.Now()))
	assert.Equal(t, "No deliveries recorded yet.\n", out.String())
}

func TestWriteStats_NeverDelivered(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	writeStats(&out, deliverylog.Compute([]deliverylog.Attempt{
		{Layer: deliverylog.LayerRetry, Outcome: deliverylog.OutcomeRetryExhausted},
	}, time.Now()))
	assert.Contains(t, out.String(), "Last delivery:")
	assert.Contains(t, out.String(), "never")
}

func TestFormatLatency(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "-"},
		{250 * time.Millisecond, "250ms"},
		{1234 * time.Millisecond, "1.2s"},
		{61 * time.Second, "1m1s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatLatency(tt.in), tt.in.String())
	}
}
