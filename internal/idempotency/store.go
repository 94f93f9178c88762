package idempotency

import (
	"context"
	"sync"
	"time"
)

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
)

type Record struct {
	Status   string
	Response []byte
}

type Store interface {
	Lock(ctx context.Context, key string, lockTTL time.Duration) (bool, error)
	Get(ctx context.Context, key string) (*Record, error)
	Set(ctx context.Context, key string, record *Record, ttl time.Duration) error
	ReleaseLock(ctx context.Context, key string) error
}

// Sweeper removes expired or orphaned entries from a store.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

type memoryEntry struct {
	record    Record
	expiresAt time.Time
}

// MemoryStore is the single instance Store used when Redis is disabled.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]memoryEntry
	locks   map[string]time.Time
	now     func() time.Time
}

var (
	_ Store   = (*MemoryStore)(nil)
	_ Sweeper = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]memoryEntry),
		locks:   make(map[string]time.Time),
		now:     time.Now,
	}
}

func (s *MemoryStore) Lock(_ context.Context, key string, lockTTL time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if until, held := s.locks[key]; held && now.Before(until) {
		return false, nil
	}
	s.locks[key] = now.Add(lockTTL)
	return true, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.records[key]
	if !ok || !s.now().Before(entry.expiresAt) {
		return nil, nil
	}
	rec := entry.record
	return &rec, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, record *Record, ttl time.Duration) error {
	if record == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[key] = memoryEntry{record: *record, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) ReleaseLock(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.locks, key)
	return nil
}

func (s *MemoryStore) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, entry := range s.records {
		if !now.Before(entry.expiresAt) {
			delete(s.records, key)
			removed++
		}
	}
	for key, until := range s.locks {
		if !now.Before(until) {
			delete(s.locks, key)
		}
	}
	return removed, nil
}
