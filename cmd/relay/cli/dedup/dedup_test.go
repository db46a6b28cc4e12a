package dedup

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNow struct{ t time.Time }

func (f *fakeNow) now() time.Time { return f.t }

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		in     string
		prefix int
		want   string
	}{
		{"marker stripped", "⏺ Done.", 0, "Done."},
		{"bullets per line", "- one\n* two\n• three", 0, "one two three"},
		{"whitespace collapsed", "a   b\t\tc\n\n\nd", 0, "a b c d"},
		{"prefix cut in runes", "héllo wörld", 5, "héllo"},
		{"blank", "  \n ", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Normalize(tt.in, tt.prefix))
		})
	}
}

func TestContentHash_CollidesAcrossSources(t *testing.T) {
	t.Parallel()

	fromLog := "All tests pass.\n\n- unit: 42\n- integration: 7"
	fromPane := "⏺ All tests pass.\n\n  • unit: 42\n  • integration: 7"
	assert.Equal(t, ContentHash(fromLog, 200), ContentHash(fromPane, 200))
	assert.NotEqual(t, ContentHash("a", 200), ContentHash("b", 200))
}

func TestContentHash_PrefixBoundsComparison(t *testing.T) {
	t.Parallel()

	head := strings.Repeat("x", 200)
	assert.Equal(t, ContentHash(head+" tail one", 200), ContentHash(head+" tail two", 200))
	assert.NotEqual(t, ContentHash(head+" tail one", 0), ContentHash(head+" tail two", 0))
}

func TestCache_IsDuplicate(t *testing.T) {
	t.Parallel()

	clock := &fakeNow{t: time.Unix(1000, 0)}
	c := New(5*time.Minute, 200, clock.now)

	assert.False(t, c.IsDuplicate("hello"))
	assert.True(t, c.IsDuplicate("hello"))
	assert.True(t, c.IsDuplicate("⏺ hello"))
	assert.False(t, c.IsDuplicate("goodbye"))
	assert.Equal(t, 2, c.Len())
}

func TestCache_TTLExpiryAndNoRefresh(t *testing.T) {
	t.Parallel()

	clock := &fakeNow{t: time.Unix(1000, 0)}
	c := New(5*time.Minute, 200, clock.now)

	require.False(t, c.IsDuplicate("hello"))

	clock.t = clock.t.Add(4 * time.Minute)
	require.True(t, c.IsDuplicate("hello"), "hit within TTL")

	// The hit above must not have extended the entry.
	clock.t = clock.t.Add(90 * time.Second)
	assert.False(t, c.IsDuplicate("hello"), "expired 5m30s after first sighting")
	assert.True(t, c.IsDuplicate("hello"))
}

func TestCache_PrunesOnLookup(t *testing.T) {
	t.Parallel()

	clock := &fakeNow{t: time.Unix(1000, 0)}
	c := New(time.Minute, 200, clock.now)

	c.IsDuplicate("a")
	c.IsDuplicate("b")
	clock.t = clock.t.Add(2 * time.Minute)
	c.IsDuplicate("c")
	assert.Equal(t, 1, c.Len())
}

func TestSimilarity(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.0, Similarity("same text", "⏺ same   text"), 0.0001)
	assert.InDelta(t, 1.0, Similarity("", ""), 0.0001)
	assert.Less(t, Similarity("completely different", "nothing alike here"), 0.5)

	rendered := "The fix is in parser.go. Run the tests again to confirm everything passes now."
	markdown := "The fix is in `parser.go`. Run the tests again to confirm everything passes now."
	assert.GreaterOrEqual(t, Similarity(rendered, markdown), NearDuplicateThreshold)
}

func TestCache_NearDuplicate(t *testing.T) {
	t.Parallel()

	c := New(time.Minute, 200, nil)
	ok, _ := c.NearDuplicate("anything")
	assert.False(t, ok, "nothing remembered yet")

	c.Remember("The deploy finished and **all** health checks are green across regions.")
	ok, score := c.NearDuplicate("The deploy finished and all health checks are green across regions.")
	assert.True(t, ok)
	assert.GreaterOrEqual(t, score, NearDuplicateThreshold)

	ok, _ = c.NearDuplicate("Unrelated answer about database migrations.")
	assert.False(t, ok)
}

func TestCache_RememberIsBounded(t *testing.T) {
	t.Parallel()

	c := New(time.Minute, 200, nil)
	for i := range recentLimit + 5 {
		c.Remember(strings.Repeat(string(rune('a'+i)), 10))
	}
	assert.Len(t, c.recent, recentLimit)
}
