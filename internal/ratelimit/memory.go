package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is a per-process sliding-window limiter.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	now     func() time.Time
}

// NewMemoryLimiter creates an empty in-memory limiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Allow records a hit for key if the sliding window has room.
func (m *MemoryLimiter) Allow(_ context.Context, key string, p Policy) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	hits := prune(m.windows[key], now.Add(-p.Window))

	if len(hits) >= p.Limit {
		m.windows[key] = hits
		resetAt := now.Add(p.Window)
		if len(hits) > 0 {
			resetAt = hits[0].Add(p.Window)
		}
		return &Result{Allowed: false, Limit: p.Limit, ResetAt: resetAt}, nil
	}

	hits = append(hits, now)
	m.windows[key] = hits
	return &Result{
		Allowed:   true,
		Limit:     p.Limit,
		Remaining: p.Limit - len(hits),
		ResetAt:   hits[0].Add(p.Window),
	}, nil
}

// Sweep drops keys whose windows have fully expired.
func (m *MemoryLimiter) Sweep(maxWindow time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-maxWindow)
	for key, hits := range m.windows {
		if len(prune(hits, cutoff)) == 0 {
			delete(m.windows, key)
		}
	}
}

// prune drops timestamps at or before cutoff. hits is ascending.
func prune(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(hits); i++ {
		if hits[i].After(cutoff) {
			break
		}
	}
	return hits[i:]
}
