// Package filter classifies terminal chrome: the status banners, spinners,
// separators and prompts Claude Code draws around real output.
package filter

import (
	"regexp"
	"strings"
)

// rule is one named chrome pattern.
type rule struct {
	name string
	re   *regexp.Regexp
}

// chromeRules match whole trimmed lines. Every pattern is anchored at both
// ends so a sentence that merely mentions a key binding or a mode is kept.
var chromeRules = []rule{
	{"separator", regexp.MustCompile(`^[\s─━═╌╍┄┅\-_=~·•]+$`)},
	{"box", regexp.MustCompile(`^[╭╮╰╯│┃┌┐└┘├┤┬┴┼]+.*[╭╮╰╯│┃┌┐└┘├┤┬┴┼]$|^[╭╰┌└][─━═]+`)},
	{"gutter", regexp.MustCompile(`^[│┃|]\s*$|^⎿`)},
	{"spinner", regexp.MustCompile(`^[✻✶✳✢✽✦✧·◐◓◑◒⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏]\s*[A-Z][a-z]+(…|\.\.\.)\s*(\([^()]*\))?$`)},
	{"interrupt", regexp.MustCompile(`(?i)^\((esc|ctrl\+c) to (interrupt|cancel)[^()]*\)$|^(esc|ctrl\+c) to (interrupt|cancel)$`)},
	{"context", regexp.MustCompile(`(?i)^context left until auto-compact: \d+%$|^context low \(\d+% remaining\).*$|^\d+% context left$`)},
	{"cost", regexp.MustCompile(`(?i)^(total )?cost:\s*\$\d+(\.\d+)?$|^\$\d+\.\d+\s*(·|\|).*tokens?$|^\d+(\.\d+)?k? tokens$`)},
	{"mode", regexp.MustCompile(`(?i)^(⏵⏵|⏸|⇅)?\s*(accept edits|plan mode|bypass permissions|auto-accept edits) on\s*(\(shift\+tab to cycle\))?$|^\(?shift\+tab to cycle\)?$|^\? for shortcuts$`)},
	{"input-prompt", regexp.MustCompile(`^[│┃]?\s*[>❯]\s*[│┃]?$`)},
	{"accept-prompt", regexp.MustCompile(`(?i)^do you want to (proceed|make this edit to \S+|create \S+)\?$|^❯?\s*\d\.\s*(yes|no)(,.*)?$`)},
	{"update-banner", regexp.MustCompile(`(?i)^(✓\s*)?(auto-updating(…|\.\.\.)?|update installed( · restart to apply)?|new version available: v?[\d.]+.*)$`)},
	{"tip", regexp.MustCompile(`(?i)^※\s*tip:`)},
	{"hint", regexp.MustCompile(`(?i)^\(?(ctrl\+[a-z]|tab) to (amend|expand|edit|collapse)\)?$`)},
}

// separatorRunes draw rules and the prompt bar.
const separatorRunes = "─━═—╌╍┄┅┈┉"

// promptBar reports lines that are mostly separator runes with a few words
// embedded, as the input bar renders in some terminals.
func promptBar(s string) bool {
	var sep, total int
	for _, r := range s {
		if r == ' ' {
			continue
		}
		total++
		if strings.ContainsRune(separatorRunes, r) {
			sep++
		}
	}
	return total >= 10 && float64(sep)/float64(total) > 0.6
}

// promptLine is a user prompt echoed in the transcript view.
var promptLine = regexp.MustCompile(`^[│┃]?\s*[>❯]\s+\S`)

// ChromeRule returns the name of the chrome pattern line matches, or "".
func ChromeRule(line string) string {
	s := strings.TrimSpace(line)
	if s == "" {
		return ""
	}
	for _, r := range chromeRules {
		if r.re.MatchString(s) {
			return r.name
		}
	}
	if promptBar(s) {
		return "prompt-bar"
	}
	return ""
}

// IsChrome reports whether line is terminal chrome.
func IsChrome(line string) bool {
	return ChromeRule(line) != ""
}

// IsPrompt reports whether line is a submitted user prompt.
func IsPrompt(line string) bool {
	s := strings.TrimSpace(line)
	if ChromeRule(s) == "accept-prompt" {
		return false
	}
	return promptLine.MatchString(s)
}

// IsNoise reports whether every non-blank line of text is chrome. Blank
// text is noise. Mixed content is never noise.
func IsNoise(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !IsChrome(line) {
			return false
		}
	}
	return true
}
