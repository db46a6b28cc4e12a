// Package dedup suppresses repeated deliveries of the same assistant text,
// whether it was observed in the transcript or scraped from the terminal.
package dedup

import (
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/cespare/xxhash/v2"
	"github.com/sergi/go-diff/diffmatchpatch"
)

const (
	// NearDuplicateThreshold is the similarity at or above which two texts
	// count as the same message rendered differently.
	NearDuplicateThreshold = 0.9

	recentLimit    = 8
	similarityRune = 2000
)

// markerGlyphs are stripped from the start of every line before hashing.
const markerGlyphs = "⏺●•◦▪▸►-*>#"

// Normalize reduces text to the form used for hashing: leading marker
// glyphs removed from every line, whitespace collapsed, and the result cut
// to prefixChars runes (zero means no cut).
func Normalize(text string, prefixChars int) string {
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimLeftFunc(line, func(r rune) bool {
			return unicode.IsSpace(r) || strings.ContainsRune(markerGlyphs, r)
		})
		for _, field := range strings.Fields(line) {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(field)
		}
	}
	s := b.String()
	if prefixChars > 0 {
		if r := []rune(s); len(r) > prefixChars {
			s = string(r[:prefixChars])
		}
	}
	return s
}

// ContentHash returns the hex xxhash64 of the normalized text.
func ContentHash(text string, prefixChars int) string {
	return strconv.FormatUint(xxhash.Sum64String(Normalize(text, prefixChars)), 16)
}

// Similarity returns 1 - levenshtein(a, b)/max(len) over normalized texts.
func Similarity(a, b string) float64 {
	a = Normalize(a, similarityRune)
	b = Normalize(b, similarityRune)
	if a == b {
		return 1
	}
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 1
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(a, b, false)
	return 1 - float64(dmp.DiffLevenshtein(diffs))/float64(longest)
}

// Cache remembers content hashes for a TTL. Entries are pruned lazily on
// lookup. A hit does not refresh the entry's timestamp.
type Cache struct {
	mu          sync.Mutex
	ttl         time.Duration
	prefixChars int
	now         func() time.Time
	seen        map[string]time.Time
	recent      []string
}

// New returns a Cache. A nil now uses time.Now.
func New(ttl time.Duration, prefixChars int, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{
		ttl:         ttl,
		prefixChars: prefixChars,
		now:         now,
		seen:        make(map[string]time.Time),
	}
}

// Hash returns the content hash of text under this cache's prefix length.
func (c *Cache) Hash(text string) string {
	return ContentHash(text, c.prefixChars)
}

// IsDuplicate reports whether text was seen within the TTL. Unique text is
// recorded.
func (c *Cache) IsDuplicate(text string) bool {
	h := c.Hash(text)
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for k, at := range c.seen {
		if now.Sub(at) > c.ttl {
			delete(c.seen, k)
		}
	}
	if _, ok := c.seen[h]; ok {
		return true
	}
	c.seen[h] = now
	return false
}

// Len returns the number of live entries, as of the last prune.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// Remember keeps text as a recently delivered message for NearDuplicate.
func (c *Cache) Remember(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recent = append(c.recent, text)
	if len(c.recent) > recentLimit {
		c.recent = c.recent[len(c.recent)-recentLimit:]
	}
}

// NearDuplicate reports whether text is at least NearDuplicateThreshold
// similar to a recently delivered message, and the best score seen.
func (c *Cache) NearDuplicate(text string) (bool, float64) {
	c.mu.Lock()
	recent := make([]string, len(c.recent))
	copy(recent, c.recent)
	c.mu.Unlock()

	best := 0.0
	for i := len(recent) - 1; i >= 0; i-- {
		if s := Similarity(text, recent[i]); s > best {
			best = s
		}
	}
	return best >= NearDuplicateThreshold, best
}
