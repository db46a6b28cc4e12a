// Package redact masks secrets in outgoing chat text before it leaves the
// host. Two detectors run over the text: Shannon entropy over token-like
// runs, and the gitleaks default rule set. A span flagged by either is
// replaced.
package redact

import (
	"math"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// Placeholder replaces every redacted span.
const Placeholder = "[REDACTED]"

// tokenPattern matches runs that could be keys or tokens.
var tokenPattern = regexp.MustCompile(`[A-Za-z0-9/+_=-]{10,}`)

// entropyThreshold is the minimum Shannon entropy (bits per byte) for a
// token run to count as a secret. Hex digests stay below it.
const entropyThreshold = 4.5

var (
	detector     *detect.Detector
	detectorOnce sync.Once
)

func rules() *detect.Detector {
	detectorOnce.Do(func() {
		d, err := detect.NewDetectorDefaultConfig()
		if err != nil {
			return
		}
		detector = d
	})
	return detector
}

// Span is a byte range [Start, End) holding a secret.
type Span struct {
	Start, End int
}

// Find returns the merged, ordered secret spans in s.
func Find(s string) []Span {
	var spans []Span

	for _, loc := range tokenPattern.FindAllStringIndex(s, -1) {
		if entropy(s[loc[0]:loc[1]]) > entropyThreshold {
			spans = append(spans, Span{loc[0], loc[1]})
		}
	}

	if d := rules(); d != nil {
		for _, f := range d.DetectString(s) {
			if f.Secret == "" {
				continue
			}
			for from := 0; ; {
				i := strings.Index(s[from:], f.Secret)
				if i < 0 {
					break
				}
				start := from + i
				spans = append(spans, Span{start, start + len(f.Secret)})
				from = start + len(f.Secret)
			}
		}
	}

	return merge(spans)
}

func merge(spans []Span) []Span {
	if len(spans) < 2 {
		return spans
	}
	slices.SortFunc(spans, func(a, b Span) int { return a.Start - b.Start })
	out := spans[:1]
	for _, sp := range spans[1:] {
		last := &out[len(out)-1]
		if sp.Start <= last.End {
			last.End = max(last.End, sp.End)
			continue
		}
		out = append(out, sp)
	}
	return out
}

// Text returns s with secrets replaced by Placeholder, and the number of
// spans replaced.
func Text(s string) (string, int) {
	spans := Find(s)
	if len(spans) == 0 {
		return s, 0
	}
	var b strings.Builder
	b.Grow(len(s))
	prev := 0
	for _, sp := range spans {
		b.WriteString(s[prev:sp.Start])
		b.WriteString(Placeholder)
		prev = sp.End
	}
	b.WriteString(s[prev:])
	return b.String(), len(spans)
}

// String is Text without the count.
func String(s string) string {
	out, _ := Text(s)
	return out
}

func entropy(s string) float64 {
	if s == "" {
		return 0
	}
	var freq [256]int
	for i := range len(s) {
		freq[s[i]]++
	}
	n := float64(len(s))
	var h float64
	for _, c := range freq {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		h -= p * math.Log2(p)
	}
	return h
}
