package claudecode

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSettingsFile(t *testing.T, dir, content string) {
	t.Helper()
	claudeDir := filepath.Join(dir, ".claude")
	require.NoError(t, os.MkdirAll(claudeDir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(claudeDir, ClaudeSettingsFileName), []byte(content), 0o600))
}

func readRaw(t *testing.T, dir string) map[string]json.RawMessage {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, ".claude", ClaudeSettingsFileName))
	require.NoError(t, err)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	return raw
}

func readHooks(t *testing.T, dir string) map[string][]ClaudeHookMatcher {
	t.Helper()
	raw := readRaw(t, dir)
	hooks := map[string][]ClaudeHookMatcher{}
	if h, ok := raw["hooks"]; ok {
		require.NoError(t, json.Unmarshal(h, &hooks))
	}
	return hooks
}

func commands(matchers []ClaudeHookMatcher) []string {
	var out []string
	for _, m := range matchers {
		for _, h := range m.Hooks {
			out = append(out, h.Command)
		}
	}
	return out
}

func TestInstallHooks_FreshInstall(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	c := &ClaudeCodeAgent{}

	n, err := c.InstallHooks(dir, false, false)
	require.NoError(t, err)
	assert.Equal(t, len(hookEvents), n)

	hooks := readHooks(t, dir)
	assert.Equal(t, []string{"relay hooks claude-code stop"}, commands(hooks["Stop"]))
	assert.Equal(t, []string{"relay hooks claude-code user-prompt-submit"}, commands(hooks["UserPromptSubmit"]))
	assert.Equal(t, []string{"relay hooks claude-code session-end"}, commands(hooks["SessionEnd"]))
	assert.True(t, c.AreHooksInstalled(dir))
}

func TestInstallHooks_Idempotent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	c := &ClaudeCodeAgent{}

	_, err := c.InstallHooks(dir, false, false)
	require.NoError(t, err)
	n, err := c.InstallHooks(dir, false, false)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Len(t, commands(readHooks(t, dir)["Stop"]), 1)
}

func TestInstallHooks_LocalDev(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	c := &ClaudeCodeAgent{}

	_, err := c.InstallHooks(dir, true, false)
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"go run ${CLAUDE_PROJECT_DIR}/cmd/relay/main.go hooks claude-code stop"},
		commands(readHooks(t, dir)["Stop"]))
	assert.True(t, c.AreHooksInstalled(dir))
}

func TestInstallHooks_ForceReplacesLocalDev(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	c := &ClaudeCodeAgent{}

	_, err := c.InstallHooks(dir, true, false)
	require.NoError(t, err)
	_, err = c.InstallHooks(dir, false, true)
	require.NoError(t, err)

	assert.Equal(t, []string{"relay hooks claude-code stop"}, commands(readHooks(t, dir)["Stop"]))
}

func TestInstallHooks_PreservesForeignSettings(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeSettingsFile(t, dir, `{
  "model": "opus",
  "permissions": {"deny": ["Bash(rm -rf *)"], "ask": ["Bash(git push)"]},
  "hooks": {
    "Stop": [{"matcher": "", "hooks": [{"type": "command", "command": "say done", "timeout": 5}]}],
    "PreToolUse": [{"matcher": "Bash", "hooks": [{"type": "command", "command": "audit"}]}]
  }
}`)

	c := &ClaudeCodeAgent{}
	_, err := c.InstallHooks(dir, false, false)
	require.NoError(t, err)

	raw := readRaw(t, dir)
	assert.JSONEq(t, `"opus"`, string(raw["model"]))
	assert.JSONEq(t, `{"deny": ["Bash(rm -rf *)"], "ask": ["Bash(git push)"]}`, string(raw["permissions"]))

	hooks := readHooks(t, dir)
	assert.Equal(t, []string{"say done", "relay hooks claude-code stop"}, commands(hooks["Stop"]))
	assert.Equal(t, 5, hooks["Stop"][0].Hooks[0].Timeout)
	assert.Equal(t, []string{"audit"}, commands(hooks["PreToolUse"]))
}

func TestInstallHooks_InvalidJSON(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeSettingsFile(t, dir, `{not json`)

	_, err := (&ClaudeCodeAgent{}).InstallHooks(dir, false, false)
	require.Error(t, err)
}

func TestUninstallHooks(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	c := &ClaudeCodeAgent{}

	_, err := c.InstallHooks(dir, false, false)
	require.NoError(t, err)

	n, err := c.UninstallHooks(dir)
	require.NoError(t, err)
	assert.Equal(t, len(hookEvents), n)
	assert.False(t, c.AreHooksInstalled(dir))

	_, hasHooks := readRaw(t, dir)["hooks"]
	assert.False(t, hasHooks, "empty hooks object is dropped")
}

func TestUninstallHooks_NoSettingsFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	n, err := (&ClaudeCodeAgent{}).UninstallHooks(dir)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = os.Stat(filepath.Join(dir, ".claude"))
	assert.True(t, os.IsNotExist(err), "uninstall must not create settings")
}

func TestUninstallHooks_PreservesUserHooks(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeSettingsFile(t, dir, `{
  "hooks": {
    "Stop": [{"matcher": "", "hooks": [
      {"type": "command", "command": "say done"},
      {"type": "command", "command": "relay hooks claude-code stop"}
    ]}],
    "Notification": [{"matcher": "", "hooks": [{"type": "command", "command": "relay hooks claude-code notification"}]}]
  }
}`)

	n, err := (&ClaudeCodeAgent{}).UninstallHooks(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	hooks := readHooks(t, dir)
	assert.Equal(t, []string{"say done"}, commands(hooks["Stop"]))
	_, ok := hooks["Notification"]
	assert.False(t, ok)
}

func TestGetHookNames(t *testing.T) {
	t.Parallel()
	names := (&ClaudeCodeAgent{}).GetHookNames()
	assert.Equal(t, []string{
		HookNameSessionStart, HookNameUserPromptSubmit, HookNameStop,
		HookNameSubagentStop, HookNameNotification, HookNameSessionEnd,
	}, names)
}
