// Package settings provides configuration loading for relay.
// It is a leaf package so the daemon, hook commands and logging setup can
// all read settings without import cycles.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/entireio/relay/cmd/relay/cli/jsonutil"
	"github.com/entireio/relay/cmd/relay/cli/paths"
	"github.com/entireio/relay/cmd/relay/cli/validation"
)

// Default delivery tuning. These are the values the escalation ladder was
// calibrated with; every one of them can be overridden in settings.json.
const (
	DefaultRetryFastInterval  = 200 * time.Millisecond
	DefaultRetryFastAttempts  = 3
	DefaultRetrySlowInterval  = time.Second
	DefaultRetryCeiling       = 60 * time.Second
	DefaultPollInterval       = 5 * time.Second
	DefaultDedupTTL           = 5 * time.Minute
	DefaultRecentDeliverySkip = 90 * time.Second
	DefaultMaxLineBytes       = 256 * 1024
	DefaultMinPaneChars       = 20
	DefaultHashPrefixChars    = 200
	DefaultMaxLogEntries      = 1000
	DefaultTelegramTokenEnv   = "RELAY_TELEGRAM_TOKEN"
)

// RelaySettings represents ~/.relay/settings.json.
type RelaySettings struct {
	// Enabled indicates whether relay is active. When false, hook commands
	// exit silently and the daemon refuses to start. Defaults to true.
	Enabled bool `json:"enabled"`

	// LogLevel sets the logging verbosity (debug, info, warn, error).
	// Can be overridden by RELAY_LOG_LEVEL.
	LogLevel string `json:"log_level,omitempty"`

	// Telemetry controls anonymous usage analytics.
	// nil = not configured (disabled), true = opted in, false = opted out
	Telemetry *bool `json:"telemetry,omitempty"`

	// ProjectDir is the transcript directory to watch. Empty means the
	// Claude Code project directory for the current working tree.
	ProjectDir string `json:"project_dir,omitempty"`

	Delivery DeliverySettings `json:"delivery"`
	Telegram TelegramSettings `json:"telegram"`
	Tmux     TmuxSettings     `json:"tmux"`
}

// DeliverySettings tunes the escalation ladder. Zero values mean "use the default".
type DeliverySettings struct {
	RetryFastIntervalMs  int `json:"retry_fast_interval_ms,omitempty"`
	RetryFastAttempts    int `json:"retry_fast_attempts,omitempty"`
	RetrySlowIntervalMs  int `json:"retry_slow_interval_ms,omitempty"`
	RetryCeilingMs       int `json:"retry_ceiling_ms,omitempty"`
	PollIntervalMs       int `json:"poll_interval_ms,omitempty"`
	DedupTTLMs           int `json:"dedup_ttl_ms,omitempty"`
	RecentDeliverySkipMs int `json:"recent_delivery_skip_ms,omitempty"`
	MaxLineBytes         int `json:"max_line_bytes,omitempty"`
	MinPaneChars         int `json:"min_pane_chars,omitempty"`
	HashPrefixChars      int `json:"hash_prefix_chars,omitempty"`
	MaxLogEntries        int `json:"max_log_entries,omitempty"`
}

// TelegramSettings configures the Telegram destination. The bot token is
// read from the environment variable named by TokenEnv, never from disk.
type TelegramSettings struct {
	ChatID   int64  `json:"chat_id,omitempty"`
	TokenEnv string `json:"token_env,omitempty"`
}

// TmuxSettings configures the pane snapshot provider.
type TmuxSettings struct {
	// Target is a tmux target (session, session:window.pane or %pane-id).
	// Empty uses the pane the daemon runs in ($TMUX_PANE), if any.
	Target string `json:"target,omitempty"`
}

// Load loads settings from <relay home>/settings.json, then applies any
// overrides from settings.local.json. Returns defaults if neither exists.
func Load() (*RelaySettings, error) {
	settingsFile, err := paths.HomePath(paths.SettingsFileName)
	if err != nil {
		return nil, err
	}
	localFile, err := paths.HomePath(paths.LocalSettingsFileName)
	if err != nil {
		return nil, err
	}
	return LoadFrom(settingsFile, localFile)
}

// LoadFrom loads settings from explicit base and local override paths.
func LoadFrom(settingsFile, localFile string) (*RelaySettings, error) {
	settings, err := loadFromFile(settingsFile)
	if err != nil {
		return nil, fmt.Errorf("reading settings file: %w", err)
	}

	localData, err := os.ReadFile(localFile) //nolint:gosec // path is from relay home
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading local settings file: %w", err)
		}
	} else {
		if err := mergeJSON(settings, localData); err != nil {
			return nil, fmt.Errorf("merging local settings: %w", err)
		}
	}

	applyDefaults(settings)
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

func loadFromFile(filePath string) (*RelaySettings, error) {
	settings := &RelaySettings{Enabled: true}

	data, err := os.ReadFile(filePath) //nolint:gosec // path is from caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			applyDefaults(settings)
			return settings, nil
		}
		return nil, fmt.Errorf("%w", err)
	}

	if err := json.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("parsing settings file: %w", err)
	}
	applyDefaults(settings)

	return settings, nil
}

// mergeJSON merges local override JSON into existing settings. Keys present
// in the override win; nested objects merge field by field because
// json.Unmarshal only assigns fields that appear in the input.
func mergeJSON(settings *RelaySettings, data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing JSON: %w", err)
	}

	// An explicit empty log_level in the override should not clear the base value.
	if llRaw, ok := raw["log_level"]; ok {
		var ll string
		if err := json.Unmarshal(llRaw, &ll); err != nil {
			return fmt.Errorf("parsing log_level field: %w", err)
		}
		if ll == "" {
			delete(raw, "log_level")
		}
	}

	cleaned, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("re-encoding overrides: %w", err)
	}
	if err := json.Unmarshal(cleaned, settings); err != nil {
		return fmt.Errorf("applying overrides: %w", err)
	}
	return nil
}

func applyDefaults(settings *RelaySettings) {
	if settings.Telegram.TokenEnv == "" {
		settings.Telegram.TokenEnv = DefaultTelegramTokenEnv
	}
}

// Validate reports settings that would make the daemon misbehave.
func (s *RelaySettings) Validate() error {
	d := s.Delivery
	for name, v := range map[string]int{
		"retry_fast_interval_ms":  d.RetryFastIntervalMs,
		"retry_fast_attempts":     d.RetryFastAttempts,
		"retry_slow_interval_ms":  d.RetrySlowIntervalMs,
		"retry_ceiling_ms":        d.RetryCeilingMs,
		"poll_interval_ms":        d.PollIntervalMs,
		"dedup_ttl_ms":            d.DedupTTLMs,
		"recent_delivery_skip_ms": d.RecentDeliverySkipMs,
		"max_line_bytes":          d.MaxLineBytes,
		"min_pane_chars":          d.MinPaneChars,
		"hash_prefix_chars":       d.HashPrefixChars,
		"max_log_entries":         d.MaxLogEntries,
	} {
		if v < 0 {
			return fmt.Errorf("delivery.%s must not be negative", name)
		}
	}
	if err := validation.ValidateTmuxTarget(s.Tmux.Target); err != nil {
		return fmt.Errorf("tmux.target: %w", err)
	}
	return nil
}

// Save writes settings to <relay home>/settings.json.
func Save(s *RelaySettings) error {
	settingsFile, err := paths.HomePath(paths.SettingsFileName)
	if err != nil {
		return err
	}
	if err := jsonutil.WriteFile(settingsFile, s, 0o600); err != nil {
		return fmt.Errorf("writing settings file: %w", err)
	}
	return nil
}

func msOr(ms int, def time.Duration) time.Duration {
	if ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

func intOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// RetryFastInterval returns the delay between the first retry polls.
func (d DeliverySettings) RetryFastInterval() time.Duration {
	return msOr(d.RetryFastIntervalMs, DefaultRetryFastInterval)
}

// FastAttempts returns how many polls use the fast interval.
func (d DeliverySettings) FastAttempts() int {
	return intOr(d.RetryFastAttempts, DefaultRetryFastAttempts)
}

// RetrySlowInterval returns the delay between later retry polls.
func (d DeliverySettings) RetrySlowInterval() time.Duration {
	return msOr(d.RetrySlowIntervalMs, DefaultRetrySlowInterval)
}

// RetryCeiling returns how long a retry session may run before escalating.
func (d DeliverySettings) RetryCeiling() time.Duration {
	return msOr(d.RetryCeilingMs, DefaultRetryCeiling)
}

// PollInterval returns the background poller period.
func (d DeliverySettings) PollInterval() time.Duration {
	return msOr(d.PollIntervalMs, DefaultPollInterval)
}

// DedupTTL returns how long a content hash suppresses repeats.
func (d DeliverySettings) DedupTTL() time.Duration {
	return msOr(d.DedupTTLMs, DefaultDedupTTL)
}

// RecentDeliverySkip returns the window in which pane capture is skipped
// because a delivery already succeeded.
func (d DeliverySettings) RecentDeliverySkip() time.Duration {
	return msOr(d.RecentDeliverySkipMs, DefaultRecentDeliverySkip)
}

// LineLimit returns the transcript line size ceiling in bytes.
func (d DeliverySettings) LineLimit() int {
	return intOr(d.MaxLineBytes, DefaultMaxLineBytes)
}

// PaneMinChars returns the minimum length of an extracted pane block.
func (d DeliverySettings) PaneMinChars() int {
	return intOr(d.MinPaneChars, DefaultMinPaneChars)
}

// HashPrefix returns how many normalized characters feed the content hash.
func (d DeliverySettings) HashPrefix() int {
	return intOr(d.HashPrefixChars, DefaultHashPrefixChars)
}

// LogEntries returns the delivery log cap.
func (d DeliverySettings) LogEntries() int {
	return intOr(d.MaxLogEntries, DefaultMaxLogEntries)
}

// IsEnabled loads settings and reports whether relay is enabled.
// Missing or unreadable settings count as enabled.
func IsEnabled() bool {
	s, err := Load()
	if err != nil {
		return true
	}
	return s.Enabled
}

// GetLogLevel returns the configured log level, or "" if settings can't be read.
// Used as the logging package's level getter.
func GetLogLevel() string {
	s, err := Load()
	if err != nil {
		return ""
	}
	return s.LogLevel
}
