// Package channel routes delivered assistant text to the destination the
// user selected: a chat handler, the local log, or nowhere.
package channel

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/entireio/relay/cmd/relay/cli/logging"
	"github.com/entireio/relay/cmd/relay/cli/redact"
	"github.com/entireio/relay/cmd/relay/cli/validation"
)

// Handler sends text to one destination.
type Handler interface {
	Send(ctx context.Context, text string) error
}

// Indicator is implemented by handlers that can show progress (such as a
// typing indicator) while the agent works.
type Indicator interface {
	StartIndicator(ctx context.Context)
	StopIndicator(ctx context.Context)
}

// ReasoningHeader prefixes the reasoning trace sent in verbose modes.
const ReasoningHeader = "Reasoning:\n"

// Router delivers text according to the current mode.
type Router struct {
	modes ModeStore

	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRouter returns a Router reading its mode from modes.
func NewRouter(modes ModeStore) *Router {
	return &Router{modes: modes, handlers: make(map[string]Handler)}
}

// Register adds or replaces the handler for a destination id.
func (r *Router) Register(id string, h Handler) error {
	if err := validation.ValidateDestinationID(id); err != nil {
		return err
	}
	if Mode(id) == ModeLocal || Mode(id) == ModeSilent {
		return fmt.Errorf("destination ID %q is reserved", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[id] = h
	return nil
}

// Destinations returns the registered destination ids, sorted.
func (r *Router) Destinations() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.handlers))
	for id := range r.handlers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Router) handler(id string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[id]
	return h, ok
}

// currentMode reads the mode; failures fall back to DefaultMode.
func (r *Router) currentMode(ctx context.Context) Mode {
	mode, err := r.modes.Mode(ctx)
	if err != nil {
		logging.Warn(ctx, "failed to read channel mode, using default",
			"error", err.Error(), "default", string(DefaultMode))
		return DefaultMode
	}
	return mode
}

// Deliver sends text (and, in verbose modes, the reasoning trace first) to
// the current destination. It returns the destination id used and the send
// error, if any. Handler errors and panics never escape as panics.
func (r *Router) Deliver(ctx context.Context, text, reasoning string) (string, error) {
	mode := r.currentMode(ctx)
	dest, verbose := mode.Destination()
	ctx = logging.WithDestination(ctx, dest)

	switch mode {
	case ModeSilent:
		logging.Debug(ctx, "channel silent, dropping message", "length", len(text))
		return string(ModeSilent), nil
	case ModeLocal:
		deliverLocal(ctx, text, reasoning)
		return string(ModeLocal), nil
	}

	h, ok := r.handler(dest)
	if !ok {
		logging.Warn(ctx, "no handler for channel mode, delivering locally", "mode", string(mode))
		deliverLocal(ctx, text, reasoning)
		return string(ModeLocal), fmt.Errorf("%w: %s", ErrUnknownMode, mode)
	}

	if verbose && reasoning != "" {
		if err := safeSend(ctx, h, ReasoningHeader+reasoning); err != nil {
			logging.Warn(ctx, "failed to send reasoning trace", "error", err.Error())
		}
	}
	if err := safeSend(ctx, h, text); err != nil {
		logging.Error(ctx, "failed to send message", "error", err.Error(), "length", len(text))
		return dest, err
	}
	return dest, nil
}

// safeSend redacts text and sends it, converting a handler panic into an error.
func safeSend(ctx context.Context, h Handler, text string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()

	clean, n := redact.Text(text)
	if n > 0 {
		logging.Info(ctx, "redacted secrets from outgoing message", "count", n)
	}
	if err := h.Send(ctx, clean); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

func deliverLocal(ctx context.Context, text, reasoning string) {
	attrs := []any{"length", len(text), "text", redact.String(text)}
	if reasoning != "" {
		attrs = append(attrs, "reasoning_length", len(reasoning))
	}
	logging.Info(ctx, "local delivery", attrs...)
}

// BeginCycle starts the current destination's indicator, if it has one.
func (r *Router) BeginCycle(ctx context.Context) {
	if ind, dest := r.indicator(ctx); ind != nil {
		r.safeIndicator(logging.WithDestination(ctx, dest), ind.StartIndicator)
	}
}

// SignalComplete stops the current destination's indicator, if it has one.
func (r *Router) SignalComplete(ctx context.Context) {
	if ind, dest := r.indicator(ctx); ind != nil {
		r.safeIndicator(logging.WithDestination(ctx, dest), ind.StopIndicator)
	}
}

func (r *Router) indicator(ctx context.Context) (Indicator, string) {
	dest, _ := r.currentMode(ctx).Destination()
	h, ok := r.handler(dest)
	if !ok {
		return nil, dest
	}
	ind, ok := h.(Indicator)
	if !ok {
		return nil, dest
	}
	return ind, dest
}

func (r *Router) safeIndicator(ctx context.Context, fn func(context.Context)) {
	defer func() {
		if p := recover(); p != nil {
			logging.Error(ctx, "indicator panic", "error", fmt.Sprint(p))
		}
	}()
	fn(ctx)
}
