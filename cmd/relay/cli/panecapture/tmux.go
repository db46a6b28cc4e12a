package panecapture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/GianlucaP106/gotmux/gotmux"
)

// DefaultCaptureTimeout bounds one capture-pane call.
const DefaultCaptureTimeout = 2 * time.Second

// Tmux captures a tmux pane. Target is any tmux target; empty means the
// pane the daemon was started in ($TMUX_PANE).
type Tmux struct {
	Target  string
	Timeout time.Duration

	listSessions func() ([]string, error)
	run          func(ctx context.Context, args ...string) ([]byte, error)
}

// NewTmux returns a tmux snapshot provider for target.
func NewTmux(target string) *Tmux {
	return &Tmux{
		Target:       target,
		Timeout:      DefaultCaptureTimeout,
		listSessions: gotmuxSessions,
		run:          runTmux,
	}
}

func gotmuxSessions() ([]string, error) {
	t, err := gotmux.DefaultTmux()
	if err != nil {
		return nil, fmt.Errorf("failed to create tmux client: %w", err)
	}
	sessions, err := t.ListSessions()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	names := make([]string, 0, len(sessions))
	for _, s := range sessions {
		names = append(names, s.Name)
	}
	return names, nil
}

func runTmux(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "tmux", args...)
	out, err := cmd.Output()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("capture-pane: %w", ctx.Err())
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("capture-pane: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("capture-pane: %w", err)
	}
	return out, nil
}

func (t *Tmux) target() string {
	if t.Target != "" {
		return t.Target
	}
	return os.Getenv("TMUX_PANE")
}

// sessionName returns the session part of a target, or "" for pane and
// window ids that do not name a session.
func sessionName(target string) string {
	if strings.ContainsAny(target[:1], "%@$") {
		return ""
	}
	name, _, _ := strings.Cut(target, ":")
	name, _, _ = strings.Cut(name, ".")
	return name
}

// Capture returns the pane's visible text with wrapped lines joined.
func (t *Tmux) Capture(ctx context.Context) (string, error) {
	target := t.target()
	if target == "" {
		return "", fmt.Errorf("%w: no tmux target configured", ErrNoSnapshot)
	}

	if name := sessionName(target); name != "" {
		names, err := t.listSessions()
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrNoSnapshot, err)
		}
		found := false
		for _, n := range names {
			if n == name {
				found = true
				break
			}
		}
		if !found {
			return "", fmt.Errorf("%w: tmux session %q not found", ErrNoSnapshot, name)
		}
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = DefaultCaptureTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := t.run(ctx, "capture-pane", "-p", "-J", "-t", target)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoSnapshot, err)
	}
	return string(out), nil
}
