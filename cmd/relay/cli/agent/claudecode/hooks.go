package claudecode

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/entireio/relay/cmd/relay/cli/agent"
	"github.com/entireio/relay/cmd/relay/cli/jsonutil"
)

var (
	_ agent.HookSupport = (*ClaudeCodeAgent)(nil)
	_ agent.HookHandler = (*ClaudeCodeAgent)(nil)
)

// Claude Code hook names - these become subcommands under `relay hooks claude-code`
const (
	HookNameSessionStart     = "session-start"
	HookNameUserPromptSubmit = "user-prompt-submit"
	HookNameStop             = "stop"
	HookNameSubagentStop     = "subagent-stop"
	HookNameNotification     = "notification"
	HookNameSessionEnd       = "session-end"
)

// ClaudeSettingsFileName is the settings file used by Claude Code.
const ClaudeSettingsFileName = "settings.json"

// hookEvents maps relay verbs to the Claude Code event they are installed under.
var hookEvents = []struct {
	verb  string
	event string
}{
	{HookNameSessionStart, "SessionStart"},
	{HookNameUserPromptSubmit, "UserPromptSubmit"},
	{HookNameStop, "Stop"},
	{HookNameSubagentStop, "SubagentStop"},
	{HookNameNotification, "Notification"},
	{HookNameSessionEnd, "SessionEnd"},
}

// GetHookNames returns the hook verbs Claude Code supports.
// These become subcommands: relay hooks claude-code <verb>
func (c *ClaudeCodeAgent) GetHookNames() []string {
	names := make([]string, 0, len(hookEvents))
	for _, h := range hookEvents {
		names = append(names, h.verb)
	}
	return names
}

// relayHookPrefixes identify relay hook commands, installed or local-dev.
var relayHookPrefixes = []string{
	"relay hooks ",
	"go run ${CLAUDE_PROJECT_DIR}/cmd/relay/main.go hooks ",
}

func hookCommand(verb string, localDev bool) string {
	if localDev {
		return "go run ${CLAUDE_PROJECT_DIR}/cmd/relay/main.go hooks claude-code " + verb
	}
	return "relay hooks claude-code " + verb
}

func settingsPath(projectDir string) string {
	return filepath.Join(projectDir, ".claude", ClaudeSettingsFileName)
}

// claudeSettings keeps every key of settings.json raw so foreign settings
// and hook events survive a rewrite untouched.
type claudeSettings struct {
	raw   map[string]json.RawMessage
	hooks map[string]json.RawMessage
}

func readSettings(path string) (*claudeSettings, error) {
	s := &claudeSettings{
		raw:   make(map[string]json.RawMessage),
		hooks: make(map[string]json.RawMessage),
	}
	data, err := os.ReadFile(path) //nolint:gosec // path is constructed from project dir + fixed path
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings.json: %w", err)
	}
	if err := json.Unmarshal(data, &s.raw); err != nil {
		return nil, fmt.Errorf("failed to parse existing settings.json: %w", err)
	}
	if s.raw == nil {
		s.raw = make(map[string]json.RawMessage)
	}
	if hooksRaw, ok := s.raw["hooks"]; ok {
		if err := json.Unmarshal(hooksRaw, &s.hooks); err != nil {
			return nil, fmt.Errorf("failed to parse hooks in settings.json: %w", err)
		}
		if s.hooks == nil {
			s.hooks = make(map[string]json.RawMessage)
		}
	}
	return s, nil
}

func (s *claudeSettings) matchers(event string) ([]ClaudeHookMatcher, error) {
	raw, ok := s.hooks[event]
	if !ok {
		return nil, nil
	}
	var m []ClaudeHookMatcher
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to parse %s hooks in settings.json: %w", event, err)
	}
	return m, nil
}

func (s *claudeSettings) setMatchers(event string, m []ClaudeHookMatcher) error {
	if len(m) == 0 {
		delete(s.hooks, event)
		return nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal %s hooks: %w", event, err)
	}
	s.hooks[event] = data
	return nil
}

func (s *claudeSettings) write(path string) error {
	if len(s.hooks) == 0 {
		delete(s.raw, "hooks")
	} else {
		data, err := json.Marshal(s.hooks)
		if err != nil {
			return fmt.Errorf("failed to marshal hooks: %w", err)
		}
		s.raw["hooks"] = data
	}
	if err := jsonutil.WriteFile(path, s.raw, 0o600); err != nil {
		return fmt.Errorf("failed to write settings.json: %w", err)
	}
	return nil
}

// InstallHooks installs relay hooks in <projectDir>/.claude/settings.json.
// If force is true, removes existing relay hooks before installing.
// Returns the number of hooks installed.
func (c *ClaudeCodeAgent) InstallHooks(projectDir string, localDev, force bool) (int, error) {
	path := settingsPath(projectDir)
	settings, err := readSettings(path)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, h := range hookEvents {
		matchers, err := settings.matchers(h.event)
		if err != nil {
			return 0, err
		}
		if force {
			matchers, _ = removeRelayHooks(matchers)
		}
		cmd := hookCommand(h.verb, localDev)
		if hookCommandExists(matchers, cmd) {
			continue
		}
		matchers = addHookToMatcher(matchers, "", cmd)
		if err := settings.setMatchers(h.event, matchers); err != nil {
			return 0, err
		}
		count++
	}

	if count == 0 {
		return 0, nil
	}
	if err := settings.write(path); err != nil {
		return 0, err
	}
	return count, nil
}

// UninstallHooks removes relay hooks from Claude Code settings, leaving
// every other hook in place.
func (c *ClaudeCodeAgent) UninstallHooks(projectDir string) (int, error) {
	path := settingsPath(projectDir)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	settings, err := readSettings(path)
	if err != nil {
		return 0, err
	}

	removed := 0
	for event := range settings.hooks {
		matchers, err := settings.matchers(event)
		if err != nil {
			return 0, err
		}
		kept, n := removeRelayHooks(matchers)
		if n == 0 {
			continue
		}
		removed += n
		if err := settings.setMatchers(event, kept); err != nil {
			return 0, err
		}
	}

	if removed == 0 {
		return 0, nil
	}
	if err := settings.write(path); err != nil {
		return 0, err
	}
	return removed, nil
}

// AreHooksInstalled checks whether the relay stop hook is installed.
func (c *ClaudeCodeAgent) AreHooksInstalled(projectDir string) bool {
	settings, err := readSettings(settingsPath(projectDir))
	if err != nil {
		return false
	}
	matchers, err := settings.matchers("Stop")
	if err != nil {
		return false
	}
	return hookCommandExists(matchers, hookCommand(HookNameStop, false)) ||
		hookCommandExists(matchers, hookCommand(HookNameStop, true))
}

// Helper functions for hook management

func hookCommandExists(matchers []ClaudeHookMatcher, command string) bool {
	for _, matcher := range matchers {
		for _, hook := range matcher.Hooks {
			if hook.Command == command {
				return true
			}
		}
	}
	return false
}

func addHookToMatcher(matchers []ClaudeHookMatcher, matcherName, command string) []ClaudeHookMatcher {
	entry := ClaudeHookEntry{
		Type:    "command",
		Command: command,
	}

	for i, matcher := range matchers {
		if matcher.Matcher == matcherName {
			matchers[i].Hooks = append(matchers[i].Hooks, entry)
			return matchers
		}
	}

	return append(matchers, ClaudeHookMatcher{
		Matcher: matcherName,
		Hooks:   []ClaudeHookEntry{entry},
	})
}

func isRelayHook(command string) bool {
	for _, prefix := range relayHookPrefixes {
		if strings.HasPrefix(command, prefix) {
			return true
		}
	}
	return false
}

// removeRelayHooks drops relay hooks and any matcher left empty. It returns
// the number of hooks removed.
func removeRelayHooks(matchers []ClaudeHookMatcher) ([]ClaudeHookMatcher, int) {
	removed := 0
	result := make([]ClaudeHookMatcher, 0, len(matchers))
	for _, matcher := range matchers {
		filtered := make([]ClaudeHookEntry, 0, len(matcher.Hooks))
		for _, hook := range matcher.Hooks {
			if isRelayHook(hook.Command) {
				removed++
				continue
			}
			filtered = append(filtered, hook)
		}
		if len(filtered) > 0 {
			matcher.Hooks = filtered
			result = append(result, matcher)
		}
	}
	return result, removed
}
