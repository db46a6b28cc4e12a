// Package versioncheck tells the user when a newer relay release exists.
// Lookups are cached for a day in the relay home and every failure is silent.
package versioncheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"

	"github.com/entireio/relay/cmd/relay/cli/jsonutil"
	"github.com/entireio/relay/cmd/relay/cli/logging"
	"github.com/entireio/relay/cmd/relay/cli/paths"
)

// CheckAndNotify prints an update notice after cmd when a newer release is
// available. Hidden commands (hook verbs) and dev builds are skipped.
func CheckAndNotify(cmd *cobra.Command, currentVersion string) {
	if cmd.Hidden || currentVersion == "dev" || currentVersion == "" {
		return
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	latest, err := Latest(ctx, time.Now())
	if err != nil {
		logging.Debug(ctx, "version check failed", "error", err.Error())
		return
	}
	if IsOutdated(currentVersion, latest) {
		fmt.Fprintf(cmd.ErrOrStderr(), "\nA newer version of relay is available: %s (current: %s)\nRun '%s' to update.\n",
			latest, currentVersion, updateCommand())
	}
}

// Latest returns the newest stable release tag, from the cache when it was
// refreshed within a day of now.
func Latest(ctx context.Context, now time.Time) (string, error) {
	path, err := paths.HomePath(cacheFileName)
	if err != nil {
		return "", err
	}

	c, err := loadCache(path)
	if err != nil {
		c = &cache{}
	}
	if now.Sub(c.LastCheckTime) < checkInterval {
		if c.Latest == "" {
			return "", errors.New("no release recorded")
		}
		return c.Latest, nil
	}

	latest, fetchErr := fetchLatest(ctx)

	// Record the attempt even on failure so an offline machine asks once a day.
	c.LastCheckTime = now
	if fetchErr == nil {
		c.Latest = latest
	}
	if _, err := paths.EnsureHome(); err == nil {
		if err := jsonutil.WriteFile(path, c, 0o600); err != nil {
			logging.Debug(ctx, "version check: failed to save cache", "error", err.Error())
		}
	}
	if fetchErr != nil {
		return "", fetchErr
	}
	return latest, nil
}

func loadCache(path string) (*cache, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is in relay home
	if err != nil {
		return nil, fmt.Errorf("reading cache file: %w", err)
	}
	var c cache
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing cache: %w", err)
	}
	return &c, nil
}

func fetchLatest(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, httpTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, releaseURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "relay-cli")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching release info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	return parseRelease(body)
}

func parseRelease(body []byte) (string, error) {
	var r release
	if err := json.Unmarshal(body, &r); err != nil {
		return "", fmt.Errorf("parsing release: %w", err)
	}
	if r.Prerelease {
		return "", errors.New("only prerelease versions available")
	}
	if r.TagName == "" {
		return "", errors.New("empty tag name")
	}
	return r.TagName, nil
}

// IsOutdated reports whether current is an older semantic version than latest.
func IsOutdated(current, latest string) bool {
	if !strings.HasPrefix(current, "v") {
		current = "v" + current
	}
	if !strings.HasPrefix(latest, "v") {
		latest = "v" + latest
	}
	if !semver.IsValid(current) || !semver.IsValid(latest) {
		return false
	}
	return semver.Compare(current, latest) < 0
}

func updateCommand() string {
	execPath, err := os.Executable()
	if err != nil {
		return "go install github.com/entireio/relay/cmd/relay@latest"
	}
	if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
		execPath = resolved
	}
	if strings.Contains(execPath, "/Cellar/") || strings.Contains(execPath, "/homebrew/") {
		return "brew upgrade relay"
	}
	return "go install github.com/entireio/relay/cmd/relay@latest"
}
