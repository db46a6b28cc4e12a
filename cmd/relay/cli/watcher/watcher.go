// Package watcher runs the delivery pipeline for one session: it reads the
// transcript on hook notifications and background ticks, retries when a
// final answer has not been flushed yet, and falls back to pane capture.
package watcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/entireio/relay/cmd/relay/cli/agent/claudecode"
	"github.com/entireio/relay/cmd/relay/cli/dedup"
	"github.com/entireio/relay/cmd/relay/cli/deliverylog"
	"github.com/entireio/relay/cmd/relay/cli/filter"
	"github.com/entireio/relay/cmd/relay/cli/logging"
	"github.com/entireio/relay/cmd/relay/cli/panecapture"
	"github.com/entireio/relay/cmd/relay/cli/session"
	"github.com/entireio/relay/cmd/relay/cli/tailer"
)

// Hook names the watcher reacts to specially. They are the names the
// installed hooks send.
const (
	HookStop             = claudecode.HookNameStop
	HookUserPromptSubmit = claudecode.HookNameUserPromptSubmit
)

// IsFinalAnswer reports whether hook marks the end of an assistant turn.
// Only final-answer hooks start a retry session.
func IsFinalAnswer(hook string) bool {
	return hook == HookStop
}

// Deliverer is the outgoing side of the pipeline (a *channel.Router).
type Deliverer interface {
	Deliver(ctx context.Context, text, reasoning string) (string, error)
	BeginCycle(ctx context.Context)
	SignalComplete(ctx context.Context)
}

// Recorder stores delivery attempts (a *deliverylog.Logger).
type Recorder interface {
	Record(ctx context.Context, a deliverylog.Attempt) deliverylog.Attempt
	Stats(ctx context.Context) deliverylog.Stats
}

// Option customizes a Watcher.
type Option func(*Watcher)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(w *Watcher) { w.clock = c }
}

// WithPaneProvider enables the pane capture fallback.
func WithPaneProvider(p panecapture.SnapshotProvider) Option {
	return func(w *Watcher) { w.panes = p }
}

// Watcher owns the reader, dedup cache and escalation state of one session.
// All work runs under a single mutex.
type Watcher struct {
	cfg    Config
	clock  Clock
	out    Deliverer
	record Recorder
	panes  panecapture.SnapshotProvider

	mu               sync.Mutex
	ctx              context.Context
	reader           *tailer.Reader
	cache            *dedup.Cache
	state            session.State
	pendingReasoning string

	tickTimer  Timer
	tickGen    uint64
	retryTimer Timer
	retryGen   uint64
}

// New returns a stopped Watcher.
func New(cfg Config, out Deliverer, record Recorder, opts ...Option) *Watcher {
	w := &Watcher{
		cfg:    cfg,
		clock:  realClock{},
		out:    out,
		record: record,
		ctx:    context.Background(),
		state:  session.State{SessionID: cfg.SessionID, Phase: session.PhaseIdle},
	}
	for _, opt := range opts {
		opt(w)
	}
	w.reader = tailer.New(cfg.Dir, cfg.MaxLineBytes)
	w.cache = dedup.New(cfg.DedupTTL, cfg.HashPrefixChars, w.clock.Now)
	return w
}

// Start begins background polling and attaches to the newest transcript.
// ctx is the parent of every timer-driven pass; Stop must still be called.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state.Phase != session.PhaseIdle {
		return
	}
	w.ctx = logging.WithComponent(logging.WithSession(ctx, w.cfg.SessionID), "watcher")
	w.rescan(w.ctx)
	logging.Info(w.ctx, "watcher started", "dir", w.cfg.Dir)
	w.transition(w.ctx, session.EventStart, session.TransitionContext{}, session.RetryTrigger{})
}

// Stop cancels pending timers. The watcher can be started again.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state.Phase == session.PhaseIdle {
		return
	}
	w.transition(w.ctx, session.EventStop, session.TransitionContext{}, session.RetryTrigger{})
	w.stopTick()
	logging.Info(w.ctx, "watcher stopped")
}

// Phase returns the current escalation phase.
func (w *Watcher) Phase() session.Phase {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.Phase
}

// DeliveryStats aggregates the delivery log.
func (w *Watcher) DeliveryStats(ctx context.Context) deliverylog.Stats {
	return w.record.Stats(ctx)
}

// OnHookNotification handles a hook. A non-empty path different from the
// watched transcript switches to it first; the new file's backlog is not
// replayed. Only final-answer hooks start a retry when nothing is found.
func (w *Watcher) OnHookNotification(ctx context.Context, path, hook string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state.Phase == session.PhaseIdle {
		return
	}
	ctx = logging.WithHook(logging.WithSession(ctx, w.cfg.SessionID), hook)

	if hook == HookUserPromptSubmit {
		w.out.BeginCycle(ctx)
	}

	if path != "" {
		if cur, ok := w.reader.Current(); !ok || cur.Path != path {
			if err := w.reader.Switch(path); err != nil {
				logging.Warn(ctx, "cannot follow hook transcript", "path", path, "error", err.Error())
			} else {
				logging.Info(ctx, "switched transcript", "path", path, "reason", "hook")
			}
		}
	}

	found := w.readPass(ctx, deliverylog.LayerImmediate, hook)
	w.transition(ctx, session.EventHookRead, session.TransitionContext{
		Found:       found,
		FinalAnswer: IsFinalAnswer(hook),
	}, session.RetryTrigger{Path: w.currentPath(), Hook: hook})
}

// Nudge rescans the transcript directory immediately.
func (w *Watcher) Nudge() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state.Phase == session.PhaseIdle {
		return
	}
	w.rescan(w.ctx)
}

func (w *Watcher) currentPath() string {
	if cur, ok := w.reader.Current(); ok {
		return cur.Path
	}
	return ""
}

// transition runs the state machine and executes the resulting actions.
// Caller holds w.mu.
func (w *Watcher) transition(ctx context.Context, event session.Event, tctx session.TransitionContext, trigger session.RetryTrigger) {
	from := w.state.Phase
	result := session.Transition(from, event, tctx)
	actions := session.ApplyCommonActions(&w.state, result, w.clock.Now(), trigger)
	if from != result.NewPhase {
		logging.Debug(ctx, "phase transition",
			"event", event.String(), "from", string(from), "to", string(result.NewPhase))
	}

	// closed is the retry session ended by this transition, kept for the
	// exhaustion record and pane capture that follow.
	var closed *session.Retry
	for _, action := range actions {
		switch action {
		case session.ActionScheduleTick:
			w.scheduleTick()
		case session.ActionRescanFiles:
			w.rescan(ctx)
		case session.ActionReadBackground:
			found := w.readPass(ctx, deliverylog.LayerBackground, "")
			w.transition(ctx, session.EventBackgroundRead, session.TransitionContext{Found: found}, session.RetryTrigger{})
		case session.ActionStartRetry:
			logging.Info(ctx, "final answer not in transcript yet, retrying",
				"ceiling_ms", w.cfg.Ceiling.Milliseconds())
			w.scheduleRetryPoll()
		case session.ActionScheduleRetryPoll:
			w.scheduleRetryPoll()
		case session.ActionCancelRetry:
			w.stopRetryTimer()
			closed = w.state.EndRetry()
		case session.ActionRecordExhausted:
			w.recordExhausted(ctx, closed)
		case session.ActionPaneCapture:
			w.paneCapture(ctx, closed)
		case session.ActionSignalComplete:
			w.out.SignalComplete(ctx)
		}
	}
}

func (w *Watcher) scheduleTick() {
	w.stopTick()
	gen := w.tickGen
	w.tickTimer = w.clock.AfterFunc(w.cfg.PollInterval, func() { w.onTick(gen) })
}

func (w *Watcher) stopTick() {
	w.tickGen++
	if w.tickTimer != nil {
		w.tickTimer.Stop()
		w.tickTimer = nil
	}
}

func (w *Watcher) onTick(gen uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.tickGen {
		return
	}
	w.tickTimer = nil
	w.transition(w.ctx, session.EventTick, session.TransitionContext{}, session.RetryTrigger{})
}

// nextRetryDelay is FastInterval for the first FastAttempts polls and
// SlowInterval after, clamped so the last poll lands on the ceiling.
func (w *Watcher) nextRetryDelay(r *session.Retry) time.Duration {
	delay := w.cfg.SlowInterval
	if r.Attempts < w.cfg.FastAttempts {
		delay = w.cfg.FastInterval
	}
	remaining := w.cfg.Ceiling - r.Elapsed(w.clock.Now())
	return max(min(delay, remaining), 0)
}

func (w *Watcher) scheduleRetryPoll() {
	r := w.state.Retry
	if r == nil {
		return
	}
	w.stopRetryTimer()
	gen := w.retryGen
	w.retryTimer = w.clock.AfterFunc(w.nextRetryDelay(r), func() { w.onRetryPoll(gen) })
}

func (w *Watcher) stopRetryTimer() {
	w.retryGen++
	if w.retryTimer != nil {
		w.retryTimer.Stop()
		w.retryTimer = nil
	}
}

func (w *Watcher) onRetryPoll(gen uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.retryGen || !w.state.Phase.IsRetrying() || w.state.Retry == nil {
		return
	}
	w.retryTimer = nil

	r := w.state.Retry
	r.Attempts++
	ctx := logging.WithHook(w.ctx, r.Hook)
	found := w.readPass(ctx, deliverylog.LayerRetry, r.Hook)
	w.transition(ctx, session.EventRetryPoll, session.TransitionContext{
		Found:          found,
		CeilingReached: r.Elapsed(w.clock.Now()) >= w.cfg.Ceiling,
	}, session.RetryTrigger{})
}

// lastRotatedPath is the most recently retired transcript.
func (w *Watcher) lastRotatedPath() string {
	rotated := w.reader.Rotated()
	if len(rotated) == 0 {
		return ""
	}
	return rotated[len(rotated)-1].Path
}

// rescan follows a newer transcript file, if any.
func (w *Watcher) rescan(ctx context.Context) {
	switched, err := w.reader.Rescan()
	if err != nil {
		if !errors.Is(err, tailer.ErrNoTranscript) {
			logging.Warn(ctx, "transcript rescan failed", "error", err.Error())
		}
		return
	}
	if switched {
		logging.Info(ctx, "switched transcript", "path", w.currentPath(), "reason", "newer file",
			"rotated", len(w.reader.Rotated()))
	}
}

// readPass reads new records and delivers each message. It reports whether
// any message reached the dedup check. Caller holds w.mu.
func (w *Watcher) readPass(ctx context.Context, layer deliverylog.Layer, hook string) bool {
	batch, err := w.reader.ReadNew()
	switch {
	case errors.Is(err, tailer.ErrNoTranscript):
		w.rescan(ctx)
		return false
	case errors.Is(err, tailer.ErrVanished):
		logging.Info(ctx, "transcript vanished, waiting for rediscovery", "path", w.lastRotatedPath())
		return false
	case err != nil:
		logging.Warn(ctx, "transcript read failed", "error", err.Error())
		return false
	}
	if batch.Truncated {
		logging.Info(ctx, "transcript truncated, reading from start", "path", batch.Path)
	}
	if batch.Oversized > 0 || batch.Malformed > 0 {
		logging.Debug(ctx, "skipped transcript lines",
			"oversized", batch.Oversized, "malformed", batch.Malformed)
	}

	found := false
	for _, msg := range batch.Messages {
		if msg.Sidechain {
			continue
		}
		text, reasoning := msg.Text(), msg.Reasoning()
		if text == "" {
			if reasoning != "" {
				w.pendingReasoning = joinNonEmpty(w.pendingReasoning, reasoning)
			}
			continue
		}
		if filter.IsNoise(text) {
			logging.Debug(ctx, "dropped chrome-only message", "length", len(text))
			continue
		}
		found = true
		reasoning = joinNonEmpty(w.pendingReasoning, reasoning)
		w.pendingReasoning = ""
		w.deliver(ctx, text, reasoning, layer, hook, nil, false)
	}
	return found
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + "\n\n" + b
	}
}

// deliver runs the dedup check and forwards unique text. retry supplies
// elapsed and attempt count for retry and pane-capture attempts.
func (w *Watcher) deliver(ctx context.Context, text, reasoning string, layer deliverylog.Layer, hook string, retry *session.Retry, nearCheck bool) {
	now := w.clock.Now()
	a := deliverylog.Attempt{
		SessionID:     w.cfg.SessionID,
		ContentHash:   w.cache.Hash(text),
		Layer:         layer,
		Hook:          hook,
		MessageLength: len(text),
	}
	if retry == nil && layer == deliverylog.LayerRetry {
		retry = w.state.Retry
	}
	if retry != nil {
		a.ElapsedMs = retry.Elapsed(now).Milliseconds()
		a.RetryAttempt = retry.Attempts
	}

	if w.cache.IsDuplicate(text) {
		a.Outcome = deliverylog.OutcomeDedup
		w.record.Record(ctx, a)
		return
	}
	if nearCheck {
		if near, score := w.cache.NearDuplicate(text); near {
			logging.Info(ctx, "near-duplicate of a recent delivery", "similarity", score)
			a.Outcome = deliverylog.OutcomeDedup
			w.record.Record(ctx, a)
			return
		}
	}

	dest, err := w.out.Deliver(ctx, text, reasoning)
	a.Destination = dest
	a.Outcome = deliverylog.OutcomeDelivered
	if err != nil {
		a.Error = err.Error()
	} else {
		w.state.MarkDelivered(now)
	}
	w.cache.Remember(text)
	w.record.Record(ctx, a)
}

func (w *Watcher) recordExhausted(ctx context.Context, r *session.Retry) {
	a := deliverylog.Attempt{
		SessionID: w.cfg.SessionID,
		Layer:     deliverylog.LayerRetry,
		Outcome:   deliverylog.OutcomeRetryExhausted,
	}
	if r != nil {
		a.Hook = r.Hook
		a.ElapsedMs = r.Elapsed(w.clock.Now()).Milliseconds()
		a.RetryAttempt = r.Attempts
	}
	w.record.Record(ctx, a)
}

// paneCapture is the last resort after retry exhaustion.
func (w *Watcher) paneCapture(ctx context.Context, r *session.Retry) {
	if w.panes == nil {
		logging.Debug(ctx, "pane capture not configured")
		return
	}
	if w.state.DeliveredWithin(w.clock.Now(), w.cfg.RecentDeliverySkip) {
		logging.Info(ctx, "skipping pane capture, delivered recently")
		return
	}

	snapshot, err := w.panes.Capture(ctx)
	if err != nil {
		logging.Warn(ctx, "pane capture failed", "error", err.Error())
		return
	}
	text, err := panecapture.Extract(snapshot, w.cfg.MinPaneChars)
	if err != nil {
		logging.Info(ctx, "pane capture found no answer", "snapshot_length", len(snapshot))
		return
	}

	hook := ""
	if r != nil {
		hook = r.Hook
	}
	w.deliver(ctx, text, "", deliverylog.LayerPaneCapture, hook, r, true)
}
