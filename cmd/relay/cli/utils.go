package cli

import (
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// IsAccessibleMode returns true if accessibility mode should be enabled.
// Set ACCESSIBLE=1 (or any non-empty value) to get plain prompts that
// work better with screen readers.
func IsAccessibleMode() bool {
	return os.Getenv("ACCESSIBLE") != ""
}

// NewAccessibleForm creates a huh form, in accessible mode when ACCESSIBLE
// is set. WithAccessible is only available on forms, so every prompt is
// wrapped in one.
func NewAccessibleForm(groups ...*huh.Group) *huh.Form {
	form := huh.NewForm(groups...).WithTheme(huh.ThemeDracula())
	if IsAccessibleMode() {
		form = form.WithAccessible(true)
	}
	return form
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // Fd fits in int on supported platforms
}
