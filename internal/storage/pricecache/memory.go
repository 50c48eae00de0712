package pricecache

import (
	"context"
	"sync"
	"time"

	"github.com/newthinker/lookback/internal/core"
)

type memoryEntry struct {
	series   *core.PriceSeries
	storedAt time.Time
}

// Memory is a bounded in-process cache. Once full, the oldest insertion is
// evicted. A zero ttl never expires entries.
type Memory struct {
	entries map[string]memoryEntry
	order   []string
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	mu      sync.Mutex
}

// NewMemory creates a memory cache holding at most maxSize series
func NewMemory(maxSize int, ttl time.Duration) *Memory {
	if maxSize <= 0 {
		maxSize = 128
	}
	return &Memory{
		entries: make(map[string]memoryEntry),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *Memory) Get(ctx context.Context, key string) (*core.PriceSeries, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || m.expired(e) {
		return nil, nil
	}
	return e.series.Clone(), nil
}

func (m *Memory) Put(ctx context.Context, key string, series *core.PriceSeries) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists {
		m.order = append(m.order, key)
	}
	m.entries[key] = memoryEntry{series: series.Clone(), storedAt: m.now()}

	// Trim if over capacity (remove oldest)
	for len(m.order) > m.maxSize {
		delete(m.entries, m.order[0])
		m.order = m.order[1:]
	}
	return nil
}

func (m *Memory) Purge(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.order[:0]
	removed := 0
	for _, key := range m.order {
		if m.expired(m.entries[key]) {
			delete(m.entries, key)
			removed++
			continue
		}
		kept = append(kept, key)
	}
	m.order = kept
	return removed, nil
}

func (m *Memory) Len(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries), nil
}

func (m *Memory) expired(e memoryEntry) bool {
	return m.ttl > 0 && m.now().Sub(e.storedAt) > m.ttl
}
