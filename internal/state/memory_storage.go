package state

import (
	"context"
	"sync"
	"time"
)

// MemoryStorage keeps sessions in process memory. It is the default backend
// since sessions are not expected to survive a restart.
type MemoryStorage struct {
	mu       sync.RWMutex
	sessions map[int64]UserState
	now      func() time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		sessions: make(map[int64]UserState),
		now:      time.Now,
	}
}

func (s *MemoryStorage) GetState(_ context.Context, userID int64) (*UserState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.sessions[userID]
	if !ok {
		return nil, ErrStateNotFound
	}
	st.Context = cloneContext(st.Context)
	return &st, nil
}

func (s *MemoryStorage) SetState(_ context.Context, userID int64, state *UserState) error {
	state.UpdatedAt = s.now().UTC()

	stored := *state
	stored.Context = cloneContext(state.Context)

	s.mu.Lock()
	s.sessions[userID] = stored
	s.mu.Unlock()
	return nil
}

func (s *MemoryStorage) ClearState(_ context.Context, userID int64) error {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStorage) GetAllStates(_ context.Context) ([]*UserState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*UserState, 0, len(s.sessions))
	for _, st := range s.sessions {
		copied := st
		copied.Context = cloneContext(st.Context)
		result = append(result, &copied)
	}
	return result, nil
}

func cloneContext(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
