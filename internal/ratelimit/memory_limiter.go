package ratelimit

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// MemoryLimiter keeps a sliding log of request times per key in process
// memory. It serves single instance deployments and is the fallback of
// AdaptiveLimiter.
type MemoryLimiter struct {
	mu   sync.Mutex
	hits map[string][]time.Time
	log  *slog.Logger
	now  func() time.Time
}

var (
	_ Limiter = (*MemoryLimiter)(nil)
	_ Sweeper = (*MemoryLimiter)(nil)
)

func NewMemoryLimiter(log *slog.Logger) *MemoryLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &MemoryLimiter{
		hits: make(map[string][]time.Time),
		log:  log,
		now:  time.Now,
	}
}

// Check admits the request when key saw fewer than limit requests within
// the last window. Rejected requests are not recorded.
func (m *MemoryLimiter) Check(_ context.Context, key string, limit int, window time.Duration) (*Result, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	hits := m.hits[key]
	// hits are appended in time order, so the expired ones form a prefix
	expired := sort.Search(len(hits), func(i int) bool { return hits[i].After(now.Add(-window)) })
	hits = append(hits[:0], hits[expired:]...)

	res := &Result{Allowed: len(hits) < limit}
	if res.Allowed {
		hits = append(hits, now)
	}
	m.hits[key] = hits

	res.Remaining = max(limit-len(hits), 0)
	res.ResetAt = now.Add(window)
	if len(hits) > 0 {
		res.ResetAt = hits[0].Add(window)
	}

	if !res.Allowed {
		return res, ErrLimitExceeded
	}
	return res, nil
}

// Sweep forgets keys whose latest request is older than maxAge.
func (m *MemoryLimiter) Sweep(_ context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}

	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, hits := range m.hits {
		if len(hits) == 0 || hits[len(hits)-1].Before(cutoff) {
			delete(m.hits, key)
			removed++
		}
	}
	return removed, nil
}
