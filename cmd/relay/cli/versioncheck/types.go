package versioncheck

import "time"

// cache is the on-disk record of the last release lookup.
type cache struct {
	LastCheckTime time.Time `json:"last_check_time"`
	Latest        string    `json:"latest,omitempty"`
}

// release is the part of the GitHub release response we read.
type release struct {
	TagName    string `json:"tag_name"`
	Prerelease bool   `json:"prerelease"`
}

// releaseURL is the GitHub API endpoint for the latest release.
// A var so tests can point it at a local server.
var releaseURL = "https://api.github.com/repos/entireio/relay/releases/latest"

const (
	checkInterval = 24 * time.Hour
	httpTimeout   = 2 * time.Second
	cacheFileName = "version_check.json"
)
