// Package claudecode implements the Agent interface for Claude Code.
package claudecode

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/entireio/relay/cmd/relay/cli/agent"
	"github.com/entireio/relay/cmd/relay/cli/paths"
)

//nolint:gochecknoinits // Agent self-registration is the intended pattern
func init() {
	agent.Register(agent.AgentNameClaudeCode, NewClaudeCodeAgent)
}

// ClaudeCodeAgent implements the Agent interface for Claude Code.
//
//nolint:revive // ClaudeCodeAgent is clearer than Agent in this context
type ClaudeCodeAgent struct{}

// NewClaudeCodeAgent creates a new Claude Code agent instance.
func NewClaudeCodeAgent() agent.Agent {
	return &ClaudeCodeAgent{}
}

// Name returns the agent identifier.
func (c *ClaudeCodeAgent) Name() string {
	return agent.AgentNameClaudeCode
}

// Description returns a human-readable description.
func (c *ClaudeCodeAgent) Description() string {
	return "Claude Code - Anthropic's CLI coding assistant"
}

// DetectPresence checks for a .claude directory in projectDir.
func (c *ClaudeCodeAgent) DetectPresence(projectDir string) (bool, error) {
	info, err := os.Stat(filepath.Join(projectDir, ".claude"))
	if err == nil {
		return info.IsDir(), nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("checking .claude directory: %w", err)
}

// ParseHookInput parses Claude Code hook input from stdin.
func (c *ClaudeCodeAgent) ParseHookInput(hook string, reader io.Reader) (*agent.HookInput, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("empty input")
	}

	var raw hookInputRaw
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse hook input: %w", err)
	}

	return &agent.HookInput{
		Hook:           hook,
		EventName:      raw.HookEventName,
		SessionID:      raw.SessionID,
		TranscriptPath: raw.TranscriptPath,
		Timestamp:      time.Now(),
	}, nil
}

// GetSessionDir returns ~/.claude/projects/<sanitized project path>.
func (c *ClaudeCodeAgent) GetSessionDir(projectDir string) (string, error) {
	return paths.ClaudeProjectDir(projectDir)
}
