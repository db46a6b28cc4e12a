// Package panecapture recovers the last assistant answer from a terminal
// snapshot when the transcript never produced it.
package panecapture

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/charmbracelet/x/ansi"

	"github.com/entireio/relay/cmd/relay/cli/filter"
)

// answerMarkers prefix assistant output in the Claude Code view. Some
// terminals render the record glyph as a filled circle.
var answerMarkers = []string{"⏺", "●"}

// toolCall is a tool invocation header such as "⏺ Bash(go test ./...)".
var toolCall = regexp.MustCompile(`^\s*[⏺●]\s*[A-Z][A-Za-z]*\(.*\)$`)

var (
	// ErrNoSnapshot means the provider could not produce a snapshot.
	ErrNoSnapshot = errors.New("no pane snapshot available")
	// ErrNoAnswer means the snapshot held no usable answer block.
	ErrNoAnswer = errors.New("no answer block in pane snapshot")
)

// SnapshotProvider returns the visible text of the terminal running the
// session.
type SnapshotProvider interface {
	Capture(ctx context.Context) (string, error)
}

// Extract returns the last answer block in snapshot. ANSI sequences are
// stripped first. The block is bounded below by the last non-chrome line
// and above by the nearest submitted prompt. Chrome inside the block is
// dropped and the answer marker removed. Blocks shorter than minChars runes
// yield ErrNoAnswer.
func Extract(snapshot string, minChars int) (string, error) {
	lines := strings.Split(ansi.Strip(strings.ReplaceAll(snapshot, "\r\n", "\n")), "\n")

	end := len(lines) - 1
	for end >= 0 && (strings.TrimSpace(lines[end]) == "" || filter.IsChrome(lines[end])) {
		end--
	}
	if end < 0 || filter.IsPrompt(lines[end]) {
		return "", ErrNoAnswer
	}

	start := end
	for start > 0 && !filter.IsPrompt(lines[start-1]) {
		start--
	}

	var out []string
	for _, line := range lines[start : end+1] {
		if filter.IsChrome(line) || toolCall.MatchString(line) {
			continue
		}
		out = append(out, cleanLine(line))
	}

	text := strings.TrimSpace(collapseBlankRuns(out))
	if len([]rune(text)) < minChars {
		return "", ErrNoAnswer
	}
	return text, nil
}

// cleanLine removes the answer marker or the two-column indent under it.
func cleanLine(line string) string {
	line = strings.TrimRight(line, " \t")
	trimmed := strings.TrimLeft(line, " ")
	for _, m := range answerMarkers {
		if rest, ok := strings.CutPrefix(trimmed, m); ok {
			return strings.TrimLeft(rest, " ")
		}
	}
	return strings.TrimPrefix(line, "  ")
}

func collapseBlankRuns(lines []string) string {
	var b strings.Builder
	blank := false
	for _, l := range lines {
		if l == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return b.String()
}
