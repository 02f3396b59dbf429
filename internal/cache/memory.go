package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dreamware/shipquote/internal/quote"
)

// Stats is a point-in-time snapshot of a Memory cache.
type Stats struct {
	Entries int    // Number of stored sets, fresh or not
	Hits    uint64 // Lookups answered from the cache
	Misses  uint64 // Lookups that found nothing fresh
}

// entry is one stored set and the instant its freshness window opened.
type entry struct {
	storedAt time.Time
	quotes   []quote.Quote
}

// Memory is a Cache held in process memory. A set is served until ttl has
// elapsed since it was stored; after that Lookup reports a miss and Purge
// reclaims it. Safe for concurrent use.
type Memory struct {
	now     func() time.Time // clock used for storedAt and expiry
	entries map[string]entry // keyed by request fingerprint
	ttl     time.Duration    // <= 0 never expires
	mu      sync.RWMutex     // guards entries
	hits    atomic.Uint64
	misses  atomic.Uint64
}

// NewMemory returns an empty cache whose sets stay fresh for ttl.
// ttl <= 0 keeps a set until the same fingerprint is stored again.
// A nil now uses time.Now.
func NewMemory(ttl time.Duration, now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     now,
	}
}

// Lookup returns the set stored under fingerprint while it is fresh. The
// caller owns the returned slice; an expired set counts as a miss.
func (m *Memory) Lookup(ctx context.Context, fingerprint string) ([]quote.Quote, bool, error) {
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	default:
	}

	m.mu.RLock()
	e, exists := m.entries[fingerprint]
	m.mu.RUnlock()

	if !exists || m.expired(e) {
		m.misses.Add(1)
		return nil, false, nil
	}

	m.hits.Add(1)
	return copyQuotes(e.quotes), true, nil
}

// Store saves quotes under the request fingerprint and restarts its
// freshness window. The cache keeps its own copy. An empty set is ignored.
func (m *Memory) Store(ctx context.Context, req quote.Request, quotes []quote.Quote) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if len(quotes) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[req.Fingerprint()] = entry{quotes: copyQuotes(quotes), storedAt: m.now()}
	return nil
}

// Purge drops every expired set and returns how many went.
func (m *Memory) Purge() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for fp, e := range m.entries {
		if m.expired(e) {
			delete(m.entries, fp)
			removed++
		}
	}
	return removed
}

// Len counts stored sets, including expired ones not yet purged.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Stats reports the entry count and the hit/miss counters since creation.
func (m *Memory) Stats() Stats {
	return Stats{
		Entries: m.Len(),
		Hits:    m.hits.Load(),
		Misses:  m.misses.Load(),
	}
}

func (m *Memory) expired(e entry) bool {
	return m.ttl > 0 && !m.now().Before(e.storedAt.Add(m.ttl))
}

func copyQuotes(quotes []quote.Quote) []quote.Quote {
	out := make([]quote.Quote, len(quotes))
	copy(out, quotes)
	return out
}
