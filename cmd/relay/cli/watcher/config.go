package watcher

import (
	"time"

	"github.com/entireio/relay/cmd/relay/cli/settings"
)

// Config holds the tuning of one watcher.
type Config struct {
	SessionID string
	// Dir is the directory holding the session's transcript files.
	Dir string

	FastInterval       time.Duration
	FastAttempts       int
	SlowInterval       time.Duration
	Ceiling            time.Duration
	PollInterval       time.Duration
	DedupTTL           time.Duration
	RecentDeliverySkip time.Duration

	MaxLineBytes    int
	MinPaneChars    int
	HashPrefixChars int
}

// ConfigFromSettings builds a Config from user settings.
func ConfigFromSettings(s *settings.RelaySettings, sessionID, dir string) Config {
	d := s.Delivery
	return Config{
		SessionID:          sessionID,
		Dir:                dir,
		FastInterval:       d.RetryFastInterval(),
		FastAttempts:       d.FastAttempts(),
		SlowInterval:       d.RetrySlowInterval(),
		Ceiling:            d.RetryCeiling(),
		PollInterval:       d.PollInterval(),
		DedupTTL:           d.DedupTTL(),
		RecentDeliverySkip: d.RecentDeliverySkip(),
		MaxLineBytes:       d.LineLimit(),
		MinPaneChars:       d.PaneMinChars(),
		HashPrefixChars:    d.HashPrefix(),
	}
}

// DefaultConfig returns the built-in tuning for dir.
func DefaultConfig(sessionID, dir string) Config {
	return ConfigFromSettings(&settings.RelaySettings{}, sessionID, dir)
}
