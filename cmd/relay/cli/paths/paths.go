// Package paths resolves the on-disk locations relay reads and writes.
package paths

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// HomeEnvVar overrides the relay state directory (defaults to ~/.relay).
const HomeEnvVar = "RELAY_HOME"

// ClaudeProjectDirEnvVar overrides the Claude Code transcript directory.
// Used by tests and by users running Claude Code with a custom config dir.
const ClaudeProjectDirEnvVar = "RELAY_CLAUDE_PROJECT_DIR"

// File and directory names under the relay home directory.
const (
	DefaultHomeDirName    = ".relay"
	SettingsFileName      = "settings.json"
	LocalSettingsFileName = "settings.local.json"
	LogsDirName           = "logs"
	ChannelStateFileName  = "channel.json"
	DeliveryDBFileName    = "deliveries.db"
	SocketFileName        = "relay.sock"
)

// Home returns the relay state directory. It is not created.
func Home() (string, error) {
	if override := os.Getenv(HomeEnvVar); override != "" {
		return override, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, DefaultHomeDirName), nil
}

// HomePath joins name onto the relay home directory.
func HomePath(name string) (string, error) {
	home, err := Home()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, name), nil
}

// EnsureHome creates the relay home directory if needed and returns it.
func EnsureHome() (string, error) {
	home, err := Home()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(home, 0o750); err != nil {
		return "", fmt.Errorf("creating %s: %w", home, err)
	}
	return home, nil
}

var (
	projectRootMu       sync.RWMutex
	projectRootCache    string
	projectRootCacheDir string
)

// ProjectRoot returns the git top-level directory of the working directory,
// or the working directory itself outside a repository. Claude Code keys its
// transcript directory on the path it was started from, which is the
// repository root in the common case.
func ProjectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}

	projectRootMu.RLock()
	if projectRootCache != "" && projectRootCacheDir == cwd {
		cached := projectRootCache
		projectRootMu.RUnlock()
		return cached, nil
	}
	projectRootMu.RUnlock()

	root := cwd
	cmd := exec.CommandContext(context.Background(), "git", "rev-parse", "--show-toplevel")
	if output, err := cmd.Output(); err == nil {
		if trimmed := strings.TrimSpace(string(output)); trimmed != "" {
			root = trimmed
		}
	}

	projectRootMu.Lock()
	projectRootCache = root
	projectRootCacheDir = cwd
	projectRootMu.Unlock()

	return root, nil
}

// ClearProjectRootCache clears the cached project root (for tests that chdir).
func ClearProjectRootCache() {
	projectRootMu.Lock()
	projectRootCache = ""
	projectRootCacheDir = ""
	projectRootMu.Unlock()
}

// nonAlphanumericRegex matches any non-alphanumeric character
var nonAlphanumericRegex = regexp.MustCompile(`[^a-zA-Z0-9]`)

// SanitizePathForClaude converts a path to Claude's project directory format.
// Claude replaces any non-alphanumeric character with a dash.
func SanitizePathForClaude(path string) string {
	return nonAlphanumericRegex.ReplaceAllString(path, "-")
}

// ClaudeProjectDir returns the directory where Claude Code writes session
// transcripts for the given project path.
func ClaudeProjectDir(projectPath string) (string, error) {
	if override := os.Getenv(ClaudeProjectDirEnvVar); override != "" {
		return override, nil
	}
	if projectPath == "" {
		return "", errors.New("project path is required")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".claude", "projects", SanitizePathForClaude(projectPath)), nil
}
