package state

import (
	"context"
	"log/slog"
	"time"

	"github.com/Proton-105/minibank/internal/lifecycle"
)

// Cleaner drops sessions that have been idle longer than ttl. Redis expires
// its keys on its own; the cleaner is what bounds the memory backend.
type Cleaner struct {
	storage  Storage
	log      *slog.Logger
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
}

func NewCleaner(storage Storage, log *slog.Logger, ttl, interval time.Duration) *Cleaner {
	if log == nil {
		log = slog.Default()
	}

	return &Cleaner{
		storage:  storage,
		log:      log,
		ttl:      ttl,
		interval: interval,
		now:      time.Now,
	}
}

// Run clears expired sessions every interval until ctx is done.
func (c *Cleaner) Run(ctx context.Context) {
	if c == nil || c.storage == nil {
		return
	}
	lifecycle.Every(ctx, c.interval, false, func(ctx context.Context) { c.cleanup(ctx) })
}

func (c *Cleaner) cleanup(ctx context.Context) int {
	states, err := c.storage.GetAllStates(ctx)
	if err != nil {
		c.log.Error("state cleaner failed to list sessions", slog.Any("error", err))
		return 0
	}

	cleared := 0
	for _, st := range states {
		if st == nil || c.now().Sub(st.UpdatedAt) <= c.ttl {
			continue
		}
		if err := c.storage.ClearState(ctx, st.UserID); err != nil {
			c.log.Error("state cleaner failed to clear session", slog.Int64("user_id", st.UserID), slog.Any("error", err))
			continue
		}
		cleared++
	}

	if cleared > 0 {
		c.log.Info("expired sessions cleared", slog.Int("count", cleared))
	}
	return cleared
}
