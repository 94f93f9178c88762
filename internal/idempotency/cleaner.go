package idempotency

import (
	"context"
	"log/slog"
	"time"

	"github.com/Proton-105/minibank/internal/lifecycle"
)

// Cleaner periodically drops expired results and stale locks.
type Cleaner struct {
	sweeper  Sweeper
	log      *slog.Logger
	interval time.Duration
}

func NewCleaner(sweeper Sweeper, log *slog.Logger, interval time.Duration) *Cleaner {
	if log == nil {
		log = slog.Default()
	}

	return &Cleaner{
		sweeper:  sweeper,
		log:      log.With(slog.String("component", "idempotency_cleaner")),
		interval: interval,
	}
}

// Run sweeps once right away, then every interval until ctx is done.
func (c *Cleaner) Run(ctx context.Context) {
	if c == nil || c.sweeper == nil || c.interval <= 0 {
		return
	}

	lifecycle.Every(ctx, c.interval, true, func(ctx context.Context) { c.SweepOnce(ctx) })
}

// SweepOnce returns the number of results removed; failures are logged.
func (c *Cleaner) SweepOnce(ctx context.Context) int {
	started := time.Now()

	removed, err := c.sweeper.Sweep(ctx)
	if err != nil {
		c.log.ErrorContext(ctx, "sweep failed", slog.Any("error", err))
		return 0
	}

	if removed > 0 {
		c.log.DebugContext(ctx, "expired results removed",
			slog.Int("count", removed),
			slog.Duration("took", time.Since(started)),
		)
	}
	return removed
}
