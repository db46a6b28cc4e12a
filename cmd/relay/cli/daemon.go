package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/entireio/relay/cmd/relay/cli/agent"
	"github.com/entireio/relay/cmd/relay/cli/channel"
	"github.com/entireio/relay/cmd/relay/cli/deliverylog"
	"github.com/entireio/relay/cmd/relay/cli/logging"
	"github.com/entireio/relay/cmd/relay/cli/panecapture"
	"github.com/entireio/relay/cmd/relay/cli/paths"
	"github.com/entireio/relay/cmd/relay/cli/settings"
	"github.com/entireio/relay/cmd/relay/cli/watcher"
)

func newDaemonCmd() *cobra.Command {
	var project string

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Watch the agent transcript and deliver its answers",
		Long: `Runs in the foreground, following the newest transcript of the project's
agent sessions. Hook commands notify the daemon over a local socket; a
background poller catches anything the hooks miss.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd.Context(), cmd.OutOrStdout(), project)
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "project directory (default: current git root)")
	return cmd
}

func runDaemon(ctx context.Context, w io.Writer, project string) error {
	s, err := settings.Load()
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	if !s.Enabled {
		fmt.Fprintln(w, DisabledMessage)
		return NewSilentError(errors.New("relay is disabled"))
	}

	if _, err := paths.EnsureHome(); err != nil {
		return err
	}
	logging.SetLogLevelGetter(settings.GetLogLevel)
	if err := logging.Init("daemon"); err != nil {
		fmt.Fprintf(w, "warning: logging to stderr: %v\n", err)
	}
	defer logging.Close()

	dir, err := resolveSessionDir(s, project)
	if err != nil {
		return err
	}
	ctx = logging.WithComponent(ctx, "daemon")

	dbPath, err := paths.HomePath(paths.DeliveryDBFileName)
	if err != nil {
		return err
	}
	store, err := deliverylog.OpenSQLite(ctx, dbPath, s.Delivery.LogEntries())
	if err != nil {
		return err
	}
	defer store.Close()
	recorder := deliverylog.NewLogger(store, s.Delivery.LogEntries(), time.Now)

	router, err := newRouter(ctx, s)
	if err != nil {
		return err
	}

	var opts []watcher.Option
	if p := newPaneProvider(s); p != nil {
		opts = append(opts, watcher.WithPaneProvider(p))
	}
	cfg := watcher.ConfigFromSettings(s, filepath.Base(dir), dir)
	wt := watcher.New(cfg, router, recorder, opts...)

	socket, err := paths.HomePath(paths.SocketFileName)
	if err != nil {
		return err
	}
	ln, err := listenNotify(ctx, socket)
	if err != nil {
		return err
	}
	defer os.Remove(socket) //nolint:errcheck // best effort cleanup

	wt.Start(ctx)
	defer wt.Stop()

	srv := &http.Server{
		Handler: newNotifyHandler(ctx, func(ctx context.Context, n Notification) {
			handleNotification(ctx, wt, dir, n)
		}),
		ReadHeaderTimeout: notifyTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("notification server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		// The poller covers new files when the directory can't be watched.
		if err := watcher.WatchDir(gctx, dir, wt.Nudge); err != nil {
			logging.Warn(gctx, "directory watch unavailable", slog.String("error", err.Error()))
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx) //nolint:contextcheck // parent is already cancelled
	})

	logging.Info(ctx, "daemon started", slog.String("dir", dir), slog.String("socket", socket))
	fmt.Fprintf(w, "relay daemon watching %s\n", dir)

	err = g.Wait()
	logging.Info(ctx, "daemon stopped")
	return err
}

// handleNotification feeds a hook event to the watcher. Events for
// transcripts outside the watched directory belong to another project.
func handleNotification(ctx context.Context, wt *watcher.Watcher, dir string, n Notification) {
	ctx = logging.WithAgent(logging.WithSession(ctx, n.SessionID), n.Agent)
	if n.TranscriptPath != "" && filepath.Dir(n.TranscriptPath) != filepath.Clean(dir) {
		logging.Debug(ctx, "ignoring hook for another project",
			slog.String("hook", n.Hook), slog.String("transcript", n.TranscriptPath))
		return
	}
	wt.OnHookNotification(ctx, n.TranscriptPath, n.Hook)
}

// resolveSessionDir picks the transcript directory: settings project_dir,
// else the default agent's session directory for the project.
func resolveSessionDir(s *settings.RelaySettings, project string) (string, error) {
	if project == "" && s.ProjectDir != "" {
		return s.ProjectDir, nil
	}
	if project == "" {
		root, err := paths.ProjectRoot()
		if err != nil {
			return "", err
		}
		project = root
	}
	abs, err := filepath.Abs(project)
	if err != nil {
		return "", fmt.Errorf("resolving project path: %w", err)
	}

	ag := agent.Default()
	if ag == nil {
		return "", errors.New("no agent registered")
	}
	dir, err := ag.GetSessionDir(abs)
	if err != nil {
		return "", fmt.Errorf("resolving %s session directory: %w", ag.Name(), err)
	}
	return dir, nil
}

func channelStatePath() (string, error) {
	return paths.HomePath(paths.ChannelStateFileName)
}

// newRouter builds the channel router and registers every destination
// whose credentials are configured.
func newRouter(ctx context.Context, s *settings.RelaySettings) (*channel.Router, error) {
	statePath, err := channelStatePath()
	if err != nil {
		return nil, err
	}
	router := channel.NewRouter(channel.FileModeStore{Path: statePath})

	if token := os.Getenv(s.Telegram.TokenEnv); token != "" {
		tg, err := channel.NewTelegram(token, s.Telegram.ChatID)
		if err != nil {
			logging.Warn(ctx, "telegram destination unavailable", slog.String("error", err.Error()))
		} else if err := router.Register(channel.TelegramDestination, tg); err != nil {
			return nil, err
		}
	} else {
		logging.Info(ctx, "telegram destination not configured", slog.String("token_env", s.Telegram.TokenEnv))
	}
	return router, nil
}

// newPaneProvider returns the tmux snapshot provider, or nil when there
// is no pane to capture.
//
//nolint:ireturn // nil means pane capture is disabled
func newPaneProvider(s *settings.RelaySettings) panecapture.SnapshotProvider {
	if s.Tmux.Target == "" && os.Getenv("TMUX_PANE") == "" {
		return nil
	}
	return panecapture.NewTmux(s.Tmux.Target)
}
