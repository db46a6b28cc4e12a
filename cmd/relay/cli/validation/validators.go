// Package validation provides input validation functions for relay.
// This package has no dependencies to avoid import cycles.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// pathSafeRegex matches alphanumeric characters, underscores, and hyphens only.
// Used to validate IDs that will be used in file paths.
var pathSafeRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// destinationRegex matches destination IDs: lowercase letters, digits and inner hyphens.
var destinationRegex = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// tmuxTargetRegex matches tmux target specifiers such as "main", "main:0.1" or "%12".
var tmuxTargetRegex = regexp.MustCompile(`^[A-Za-z0-9_.:%$@-]+$`)

// ValidateLogName validates that a log name doesn't contain path separators.
// This prevents path traversal attacks when log names are used in file paths.
func ValidateLogName(name string) error {
	if name == "" {
		return errors.New("log name cannot be empty")
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("invalid log name %q: contains path separators", name)
	}
	return nil
}

// ValidateAgentSessionID validates that an agent session ID contains only safe characters.
// Agent session IDs are UUIDs for Claude Code, but test identifiers are accepted too.
func ValidateAgentSessionID(id string) error {
	if id == "" {
		return errors.New("agent session ID cannot be empty")
	}
	if !pathSafeRegex.MatchString(id) {
		return fmt.Errorf("invalid agent session ID %q: must be alphanumeric with underscores/hyphens only", id)
	}
	return nil
}

// ValidateDestinationID validates a channel destination ID such as "telegram".
// The "-verbose" suffix is reserved for channel modes and is rejected here.
func ValidateDestinationID(id string) error {
	if id == "" {
		return errors.New("destination ID cannot be empty")
	}
	if !destinationRegex.MatchString(id) {
		return fmt.Errorf("invalid destination ID %q: must be lowercase alphanumeric with hyphens", id)
	}
	if strings.HasSuffix(id, "-verbose") {
		return fmt.Errorf("invalid destination ID %q: -verbose suffix is reserved", id)
	}
	return nil
}

// ValidateTmuxTarget validates a tmux target passed to capture-pane.
// Empty is allowed and means "no pane configured".
func ValidateTmuxTarget(target string) error {
	if target == "" {
		return nil
	}
	if !tmuxTargetRegex.MatchString(target) {
		return fmt.Errorf("invalid tmux target %q", target)
	}
	return nil
}
