package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChromeRule(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line string
		want string
	}{
		{"────────────────────", "separator"},
		{"---", "separator"},
		{"╭──────────────────╮", "box"},
		{"│ > │", "box"},
		{"│", "gutter"},
		{"  ⎿  Read 42 lines (ctrl+r to expand)", "gutter"},
		{"✻ Thinking… (esc to interrupt)", "spinner"},
		{"· Pondering...", "spinner"},
		{"(esc to interrupt)", "interrupt"},
		{"ctrl+c to cancel", "interrupt"},
		{"Context left until auto-compact: 12%", "context"},
		{"Total cost: $0.42", "cost"},
		{"⏵⏵ accept edits on (shift+tab to cycle)", "mode"},
		{"⏸ plan mode on", "mode"},
		{"? for shortcuts", "mode"},
		{">", "input-prompt"},
		{"❯", "input-prompt"},
		{"Do you want to proceed?", "accept-prompt"},
		{"❯ 1. Yes", "accept-prompt"},
		{"2. No, and tell Claude what to do differently", "accept-prompt"},
		{"✓ Update installed", "update-banner"},
		{"※ Tip: use /clear to start fresh", "tip"},
		{"────what─is─2+2 ────────────", "prompt-bar"},
		{"ctrl+o to expand", "hint"},
		{"✦ Brewing…", "spinner"},
		{"", ""},
		{"The build is green.", ""},
		{"1. No problem here, moving on", ""},
		{"Plan mode is useful when working on features", ""},
		{"- first item", ""},
		{"Press Esc to interrupt Claude while it is working.", ""},
		{"Use shift+tab to cycle between the permission modes.", ""},
		{"* Deploying... the rollout is still in progress", ""},
		{"· Deploying... the rollout is still in progress", ""},
		{"* Thinking…", ""},
		{"12 tokens were trimmed from the prompt", ""},
		{"Total cost: $0.42 for the whole run, billed monthly", ""},
		{"Tip: rerun with -v to see each step", ""},
		{"Auto-update is disabled on this host", ""},
		{"Tab to expand the tree, then pick a node.", ""},
		{"Do you want to proceed with the migration tonight or wait?", ""},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ChromeRule(tt.line))
		})
	}
}

func TestIsPrompt(t *testing.T) {
	t.Parallel()

	assert.True(t, IsPrompt("> fix the flaky test"))
	assert.True(t, IsPrompt("❯ run it again"))
	assert.True(t, IsPrompt("│ > summarize │"))
	assert.False(t, IsPrompt(">"))
	assert.False(t, IsPrompt("❯ 1. Yes"))
	assert.False(t, IsPrompt("⏺ Done."))
	assert.False(t, IsPrompt("a > b"))
}

func TestIsNoise(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want bool
	}{
		{"blank", "  \n\n", true},
		{"only chrome", "✻ Thinking… (esc to interrupt)\n\n────────\n? for shortcuts", true},
		{"plain answer", "All 12 tests pass.", false},
		{"mixed keeps everything", "────────\nAll 12 tests pass.\n? for shortcuts", false},
		{"interrupt advice", "Press Esc to interrupt Claude while it is working.", false},
		{"mode advice", "Use shift+tab to cycle between the permission modes.", false},
		{"bulleted progress", "* Deploying... the rollout is still in progress", false},
		{"dotted progress", "· Deploying... the rollout is still in progress", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsNoise(tt.text))
		})
	}
}
