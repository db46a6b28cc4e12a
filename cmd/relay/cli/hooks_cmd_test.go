package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entireio/relay/cmd/relay/cli/agent"
	"github.com/entireio/relay/cmd/relay/cli/agent/claudecode"
	"github.com/entireio/relay/cmd/relay/cli/paths"
)

const stopPayload = `{"session_id":"sess-1","transcript_path":"/tmp/project/sess-1.jsonl","hook_event_name":"Stop"}`

func runHook(t *testing.T, hook, payload string) error {
	t.Helper()
	root := NewRootCmd()
	root.SetArgs([]string{"hooks", agent.AgentNameClaudeCode, hook})
	root.SetIn(strings.NewReader(payload))
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	return root.ExecuteContext(t.Context())
}

func TestHookHandlersRegistered(t *testing.T) {
	t.Parallel()
	ag, err := agent.Get(agent.AgentNameClaudeCode)
	require.NoError(t, err)
	handler, ok := ag.(agent.HookHandler)
	require.True(t, ok)

	for _, name := range handler.GetHookNames() {
		assert.NotNil(t, GetHookHandler(agent.AgentNameClaudeCode, name), name)
	}
	assert.Nil(t, GetHookHandler(agent.AgentNameClaudeCode, "no-such-hook"))
}

func TestHookCommand_DaemonNotRunning(t *testing.T) {
	setupTestDir(t)
	require.NoError(t, runHook(t, claudecode.HookNameStop, stopPayload))
}

func TestHookCommand_InvalidPayload(t *testing.T) {
	setupTestDir(t)
	require.NoError(t, runHook(t, claudecode.HookNameStop, "{broken"), "hooks never fail the agent")
}

func TestHookCommand_ForwardsToDaemon(t *testing.T) {
	setupTestDir(t)
	_, err := paths.EnsureHome()
	require.NoError(t, err)
	socket, err := paths.HomePath(paths.SocketFileName)
	require.NoError(t, err)
	if len(socket) > 100 {
		t.Skip("temp dir too long for a unix socket path")
	}

	got := make(chan Notification, 1)
	serveNotify(t, socket, func(_ context.Context, n Notification) { got <- n })

	require.NoError(t, runHook(t, claudecode.HookNameStop, stopPayload))

	select {
	case n := <-got:
		assert.Equal(t, agent.AgentNameClaudeCode, n.Agent)
		assert.Equal(t, claudecode.HookNameStop, n.Hook)
		assert.Equal(t, "sess-1", n.SessionID)
		assert.Equal(t, "/tmp/project/sess-1.jsonl", n.TranscriptPath)
	case <-time.After(2 * time.Second):
		t.Fatal("hook was not forwarded")
	}
}

func TestHookCommand_DisabledSkipsForwarding(t *testing.T) {
	setupTestDir(t)
	require.NoError(t, runDisable(&bytes.Buffer{}))
	_, err := paths.EnsureHome()
	require.NoError(t, err)
	socket, err := paths.HomePath(paths.SocketFileName)
	require.NoError(t, err)
	if len(socket) > 100 {
		t.Skip("temp dir too long for a unix socket path")
	}

	got := make(chan Notification, 1)
	serveNotify(t, socket, func(_ context.Context, n Notification) { got <- n })

	require.NoError(t, runHook(t, claudecode.HookNameStop, stopPayload))
	select {
	case n := <-got:
		t.Fatalf("disabled relay forwarded %+v", n)
	case <-time.After(200 * time.Millisecond):
	}
}
