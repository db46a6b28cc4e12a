package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/entireio/relay/cmd/relay/cli/logging"
)

const nudgeDebounce = 100 * time.Millisecond

// WatchDir calls nudge shortly after a transcript file appears in dir, so a
// new session is picked up before the next background tick. It blocks until
// ctx is done.
func WatchDir(ctx context.Context, dir string, nudge func()) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fs watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	var (
		mu       sync.Mutex
		debounce *time.Timer
		closed   bool
	)
	defer func() {
		mu.Lock()
		closed = true
		if debounce != nil {
			debounce.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !isNewTranscript(event) {
				continue
			}
			logging.Debug(ctx, "transcript file appeared", "file", filepath.Base(event.Name))

			mu.Lock()
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(nudgeDebounce, func() {
				mu.Lock()
				done := closed
				mu.Unlock()
				if !done {
					nudge()
				}
			})
			mu.Unlock()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logging.Warn(ctx, "fs watcher error", "error", err.Error())
		}
	}
}

func isNewTranscript(event fsnotify.Event) bool {
	if !strings.HasSuffix(event.Name, ".jsonl") {
		return false
	}
	return event.Op&(fsnotify.Create|fsnotify.Rename) != 0
}
