package telemetry

import (
	"testing"

	"github.com/spf13/cobra"
)

func TestNewClientOptOut(t *testing.T) {
	t.Setenv(OptOutEnvVar, "1")
	enabled := true

	client := NewClient("1.0.0", &enabled)

	if _, ok := client.(*NoOpClient); !ok {
		t.Error("RELAY_TELEMETRY_OPTOUT=1 should return NoOpClient even when enabled")
	}
}

func TestNewClientTelemetryDisabledInSettings(t *testing.T) {
	t.Setenv(OptOutEnvVar, "")
	disabled := false
	client := NewClient("1.0.0", &disabled)

	if _, ok := client.(*NoOpClient); !ok {
		t.Error("telemetryEnabled=false should return NoOpClient")
	}
}

func TestNewClientNilTelemetryDefaultsToDisabled(t *testing.T) {
	t.Setenv(OptOutEnvVar, "")

	client := NewClient("1.0.0", nil)

	if _, ok := client.(*NoOpClient); !ok {
		t.Error("telemetryEnabled=nil should return NoOpClient (disabled by default)")
	}
}

func TestNoOpClientMethods(_ *testing.T) {
	client := &NoOpClient{}

	// Should not panic
	client.TrackCommand(nil, "", false)
	client.TrackCommand(&cobra.Command{Use: "test"}, "telegram", true)
	client.Close()
}

func TestPostHogClientSkipsNilClient(_ *testing.T) {
	client := &PostHogClient{machineID: "test-id"}

	// No underlying client: must be a no-op, not a panic.
	client.TrackCommand(&cobra.Command{Use: "stats"}, "local", false)
	client.TrackCommand(&cobra.Command{Use: "hooks", Hidden: true}, "local", false)
	client.TrackCommand(nil, "local", false)
	client.Close()
}

func TestCommandPropertiesRecordsFlagNamesOnly(t *testing.T) {
	root := &cobra.Command{Use: "relay"}
	cmd := &cobra.Command{Use: "log"}
	cmd.Flags().Int("limit", 20, "")
	cmd.Flags().Bool("json", false, "")
	root.AddCommand(cmd)
	if err := cmd.Flags().Set("limit", "5"); err != nil {
		t.Fatal(err)
	}

	props := commandProperties(cmd, "telegram", true)

	if got := props["command"]; got != "relay log" {
		t.Errorf("command = %v, want %q", got, "relay log")
	}
	if got := props["flags"]; got != "limit" {
		t.Errorf("flags = %v, want %q", got, "limit")
	}
	if got := props["destination"]; got != "telegram" {
		t.Errorf("destination = %v, want %q", got, "telegram")
	}
	if got := props["daemon_running"]; got != true {
		t.Errorf("daemon_running = %v, want true", got)
	}
}
