package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "minibank",
		Name:      "ratelimit_checks_total",
		Help:      "Rate limit checks by backend and result.",
	}, []string{"backend", "result"})

	backendErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "minibank",
		Name:      "ratelimit_backend_errors_total",
		Help:      "Errors of the primary rate limit backend.",
	})
)

// AdaptiveLimiter delegates to a primary (Redis) limiter and falls back to
// a stricter in-memory limiter while the primary fails.
type AdaptiveLimiter struct {
	primary  Limiter
	fallback Limiter
	log      *slog.Logger
}

func NewAdaptiveLimiter(primary, fallback Limiter, log *slog.Logger) *AdaptiveLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &AdaptiveLimiter{
		primary:  primary,
		fallback: fallback,
		log:      log,
	}
}

// Check returns ErrLimitExceeded alongside the result when the key is over
// its limit.
func (a *AdaptiveLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	result, err := a.primary.Check(ctx, key, limit, window)
	if err == nil || errors.Is(err, ErrLimitExceeded) {
		return record("primary", result)
	}

	backendErrorsTotal.Inc()
	a.log.WarnContext(ctx, "primary limiter failed, falling back to memory", slog.String("key", key), slog.Any("error", err))

	// Each instance only sees its own traffic, so the fallback halves the limit.
	result, err = a.fallback.Check(ctx, key, max(limit/2, 1), window)
	if err != nil && !errors.Is(err, ErrLimitExceeded) {
		return result, err
	}
	return record("fallback", result)
}

func record(backend string, result *Result) (*Result, error) {
	if result == nil || !result.Allowed {
		checksTotal.WithLabelValues(backend, "rejected").Inc()
		return result, ErrLimitExceeded
	}
	checksTotal.WithLabelValues(backend, "allowed").Inc()
	return result, nil
}
