package deliverylog

import (
	"context"
	"sync"
)

// MemoryStore keeps the newest attempts in memory.
type MemoryStore struct {
	mu       sync.Mutex
	max      int
	attempts []Attempt
}

// NewMemoryStore returns a store holding at most maxEntries attempts.
func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{max: maxEntries}
}

func (m *MemoryStore) Append(_ context.Context, a Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, a)
	if m.max > 0 && len(m.attempts) > m.max {
		m.attempts = append(m.attempts[:0:0], m.attempts[len(m.attempts)-m.max:]...)
	}
	return nil
}

func (m *MemoryStore) Recent(_ context.Context, n int) ([]Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n <= 0 || n > len(m.attempts) {
		n = len(m.attempts)
	}
	out := make([]Attempt, 0, n)
	for i := len(m.attempts) - 1; i >= len(m.attempts)-n; i-- {
		out = append(out, m.attempts[i])
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
