package logging

import (
	"context"
)

type contextKey int

const (
	sessionIDKey contextKey = iota
	componentKey
	agentKey
	hookKey
	destinationKey
)

// WithSession adds an agent session ID to the context.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// WithComponent adds a component name to the context
// (e.g., "watcher", "router", "hooks").
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}

// WithAgent adds an agent name to the context.
func WithAgent(ctx context.Context, agent string) context.Context {
	return context.WithValue(ctx, agentKey, agent)
}

// WithHook adds the lifecycle hook name that triggered the work.
func WithHook(ctx context.Context, hook string) context.Context {
	return context.WithValue(ctx, hookKey, hook)
}

// WithDestination adds a channel destination ID to the context.
func WithDestination(ctx context.Context, destination string) context.Context {
	return context.WithValue(ctx, destinationKey, destination)
}

func stringFromContext(ctx context.Context, key contextKey) string {
	if v := ctx.Value(key); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// SessionIDFromContext extracts the session ID from the context.
func SessionIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, sessionIDKey)
}

// ComponentFromContext extracts the component name from the context.
func ComponentFromContext(ctx context.Context) string {
	return stringFromContext(ctx, componentKey)
}

// AgentFromContext extracts the agent name from the context.
func AgentFromContext(ctx context.Context) string {
	return stringFromContext(ctx, agentKey)
}

// HookFromContext extracts the hook name from the context.
func HookFromContext(ctx context.Context) string {
	return stringFromContext(ctx, hookKey)
}

// DestinationFromContext extracts the destination ID from the context.
func DestinationFromContext(ctx context.Context) string {
	return stringFromContext(ctx, destinationKey)
}
