package cli

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// socketPath returns a socket path short enough for sun_path limits.
func socketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "relay")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return filepath.Join(dir, "r.sock")
}

func serveNotify(t *testing.T, socket string, handle func(context.Context, Notification)) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	ln, err := listenNotify(ctx, socket)
	require.NoError(t, err)

	srv := &http.Server{Handler: newNotifyHandler(ctx, handle), ReadHeaderTimeout: time.Second}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() {
		cancel()
		_ = srv.Close()
	})
}

func TestNotify_RoundTrip(t *testing.T) {
	t.Parallel()
	socket := socketPath(t)

	got := make(chan Notification, 1)
	serveNotify(t, socket, func(_ context.Context, n Notification) { got <- n })

	require.True(t, pingDaemon(t.Context(), socket, time.Second))

	want := Notification{
		Agent:          "claude-code",
		Hook:           "stop",
		EventName:      "Stop",
		SessionID:      "sess-1",
		TranscriptPath: "/tmp/project/sess-1.jsonl",
	}
	require.NoError(t, sendNotification(t.Context(), socket, want))

	select {
	case n := <-got:
		assert.Equal(t, want, n)
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered")
	}
}

func TestNotify_DaemonNotRunning(t *testing.T) {
	t.Parallel()
	socket := socketPath(t)

	err := sendNotification(t.Context(), socket, Notification{Hook: "stop"})
	require.ErrorIs(t, err, errDaemonNotRunning)
	assert.False(t, pingDaemon(t.Context(), socket, 100*time.Millisecond))
}

func TestListenNotify_LiveSocketRefused(t *testing.T) {
	t.Parallel()
	socket := socketPath(t)
	serveNotify(t, socket, func(context.Context, Notification) {})

	_, err := listenNotify(t.Context(), socket)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestListenNotify_RemovesStaleSocket(t *testing.T) {
	t.Parallel()
	socket := socketPath(t)
	require.NoError(t, os.WriteFile(socket, nil, 0o600))

	ln, err := listenNotify(t.Context(), socket)
	require.NoError(t, err)
	defer ln.Close()

	info, err := os.Stat(socket)
	require.NoError(t, err)
	assert.Equal(t, os.ModeSocket, info.Mode().Type())
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestNotifyHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{name: "valid", method: http.MethodPost, path: "/notify", body: `{"agent":"claude-code","hook":"stop"}`, want: http.StatusAccepted},
		{name: "invalid json", method: http.MethodPost, path: "/notify", body: `not json`, want: http.StatusBadRequest},
		{name: "missing hook", method: http.MethodPost, path: "/notify", body: `{"agent":"claude-code"}`, want: http.StatusBadRequest},
		{name: "oversized", method: http.MethodPost, path: "/notify", body: `{"hook":"` + strings.Repeat("x", maxNotifyBytes) + `"}`, want: http.StatusBadRequest},
		{name: "wrong method", method: http.MethodGet, path: "/notify", want: http.StatusMethodNotAllowed},
		{name: "health", method: http.MethodGet, path: "/healthz", want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			handled := make(chan Notification, 1)
			h := newNotifyHandler(t.Context(), func(_ context.Context, n Notification) { handled <- n })

			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusAccepted {
				select {
				case n := <-handled:
					assert.Equal(t, "stop", n.Hook)
				case <-time.After(time.Second):
					t.Fatal("handler not called")
				}
			}
		})
	}
}
