package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/entireio/relay/cmd/relay/cli/logging"
)

// Notification is a hook event forwarded from a hook command to the daemon.
type Notification struct {
	Agent          string `json:"agent"`
	Hook           string `json:"hook"`
	EventName      string `json:"event_name,omitempty"`
	SessionID      string `json:"session_id,omitempty"`
	TranscriptPath string `json:"transcript_path,omitempty"`
}

const (
	notifyTimeout   = 2 * time.Second
	maxNotifyBytes  = 64 << 10
	notifyURL       = "http://relay/notify"
	healthURL       = "http://relay/healthz"
	shutdownTimeout = 2 * time.Second
)

var errDaemonNotRunning = errors.New("relay daemon is not running")

// newSocketClient returns an HTTP client that dials the daemon socket.
func newSocketClient(socket string, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socket)
			},
		},
	}
}

func isDaemonDown(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, os.ErrNotExist)
}

// sendNotification posts n to the daemon. It returns errDaemonNotRunning
// when nothing listens on the socket.
func sendNotification(ctx context.Context, socket string, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, notifyURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := newSocketClient(socket, notifyTimeout).Do(req)
	if err != nil {
		if isDaemonDown(err) {
			return errDaemonNotRunning
		}
		return fmt.Errorf("notifying daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("daemon rejected notification: %s", resp.Status)
	}
	return nil
}

// pingDaemon reports whether a daemon answers on socket.
func pingDaemon(ctx context.Context, socket string, timeout time.Duration) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
	if err != nil {
		return false
	}
	resp, err := newSocketClient(socket, timeout).Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// newNotifyHandler accepts notifications and hands each to handle on its
// own goroutine, so the hook command returns immediately.
func newNotifyHandler(ctx context.Context, handle func(context.Context, Notification)) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /notify", func(w http.ResponseWriter, r *http.Request) {
		var n Notification
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxNotifyBytes))
		if err := dec.Decode(&n); err != nil {
			http.Error(w, "invalid notification", http.StatusBadRequest)
			return
		}
		if n.Hook == "" {
			http.Error(w, "missing hook", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		go handle(ctx, n)
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// listenNotify binds the daemon socket. A stale socket left by a crashed
// daemon is removed; a live one is an error.
func listenNotify(ctx context.Context, socket string) (net.Listener, error) {
	if _, err := os.Stat(socket); err == nil {
		if pingDaemon(ctx, socket, 200*time.Millisecond) {
			return nil, errors.New("another relay daemon is already running")
		}
		logging.Info(ctx, "removing stale daemon socket", "socket", socket)
		if err := os.Remove(socket); err != nil {
			return nil, fmt.Errorf("removing stale socket: %w", err)
		}
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "unix", socket)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", socket, err)
	}
	if err := os.Chmod(socket, 0o600); err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("restricting socket permissions: %w", err)
	}
	return ln, nil
}
