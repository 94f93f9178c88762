package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/Proton-105/minibank/internal/lifecycle"
)

// Cleaner forgets keys that stayed idle longer than maxAge.
type Cleaner struct {
	sweeper  Sweeper
	log      *slog.Logger
	interval time.Duration
	maxAge   time.Duration
}

func NewCleaner(sweeper Sweeper, log *slog.Logger, interval, maxAge time.Duration) *Cleaner {
	if log == nil {
		log = slog.Default()
	}

	return &Cleaner{
		sweeper:  sweeper,
		log:      log.With(slog.String("component", "ratelimit_cleaner")),
		interval: interval,
		maxAge:   maxAge,
	}
}

func (c *Cleaner) Run(ctx context.Context) {
	if c.sweeper == nil {
		return
	}
	lifecycle.Every(ctx, c.interval, false, c.sweep)
}

func (c *Cleaner) sweep(ctx context.Context) {
	removed, err := c.sweeper.Sweep(ctx, c.maxAge)
	switch {
	case err != nil:
		c.log.WarnContext(ctx, "sweep failed", slog.Any("error", err))
	case removed > 0:
		c.log.DebugContext(ctx, "idle keys removed", slog.Int("count", removed))
	}
}
