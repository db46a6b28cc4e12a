// Package agent abstracts the coding agents relay can listen to: how their
// hooks are installed, how hook payloads are decoded, and where they write
// session transcripts.
package agent

import "io"

// Agent is a coding agent whose answers relay delivers.
type Agent interface {
	// Name returns the agent identifier (e.g., "claude-code").
	Name() string

	// Description returns a human-readable description for UI.
	Description() string

	// DetectPresence reports whether the agent is configured in projectDir.
	DetectPresence(projectDir string) (bool, error)

	// ParseHookInput decodes a hook payload read from stdin. hook is the
	// relay verb the agent invoked.
	ParseHookInput(hook string, reader io.Reader) (*HookInput, error)

	// GetSessionDir returns the directory holding the agent's transcripts
	// for projectDir.
	GetSessionDir(projectDir string) (string, error)
}

// HookSupport is implemented by agents with lifecycle hooks.
type HookSupport interface {
	Agent

	// InstallHooks adds relay hook commands to the agent configuration in
	// projectDir. If localDev is true, hooks run the local source tree.
	// If force is true, existing relay hooks are replaced. Returns the
	// number of hooks added.
	InstallHooks(projectDir string, localDev, force bool) (int, error)

	// UninstallHooks removes relay hook commands and returns how many
	// were removed.
	UninstallHooks(projectDir string) (int, error)

	// AreHooksInstalled reports whether any relay hook is installed.
	AreHooksInstalled(projectDir string) bool
}

// HookHandler is implemented by agents that define their own hook verbs.
// Each verb becomes a subcommand under `relay hooks <agent>`.
type HookHandler interface {
	Agent

	// GetHookNames returns the hook verbs this agent supports.
	GetHookNames() []string
}
