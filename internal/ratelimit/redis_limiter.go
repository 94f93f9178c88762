package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "minibank:ratelimit:"

// RedisLimiter implements Limiter using Redis sorted sets, so several
// instances share one window per key.
type RedisLimiter struct {
	client *redis.Client
	log    *slog.Logger
}

var (
	_ Limiter = (*RedisLimiter)(nil)
	_ Sweeper = (*RedisLimiter)(nil)
)

func NewRedisLimiter(client *redis.Client, log *slog.Logger) *RedisLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &RedisLimiter{
		client: client,
		log:    log,
	}
}

// Check evaluates the rate limit for a given key using a sliding window.
// Rejected attempts are recorded too, so a client hammering the limit
// stays blocked until it slows down.
func (l *RedisLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	if l.client == nil {
		return nil, errors.New("redis client is not configured for rate limiting")
	}

	now := time.Now()
	if limit <= 0 {
		return &Result{Allowed: false, ResetAt: now.Add(window)}, nil
	}

	windowStart := now.Add(-window)
	redisKey := keyPrefix + key

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", fmt.Sprintf("(%d", windowStart.UnixMilli()))
	pipe.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: uuid.NewString(),
	})
	countCmd := pipe.ZCard(ctx, redisKey)
	oldestCmd := pipe.ZRangeWithScores(ctx, redisKey, 0, 0)
	pipe.Expire(ctx, redisKey, window*2)

	if _, err := pipe.Exec(ctx); err != nil {
		l.log.Error("rate limiter pipeline failed", slog.String("key", key), slog.Any("error", err))
		return nil, err
	}

	count := countCmd.Val()
	resetAt := now.Add(window)
	if oldest := oldestCmd.Val(); len(oldest) > 0 {
		resetAt = time.UnixMilli(int64(oldest[0].Score)).Add(window)
	}

	return &Result{
		Allowed:   count <= int64(limit),
		Remaining: max(limit-int(count), 0),
		ResetAt:   resetAt,
	}, nil
}

// Sweep trims entries older than maxAge and deletes emptied keys.
func (l *RedisLimiter) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge).UnixMilli()
	var cursor uint64
	removed := 0

	for {
		keys, next, err := l.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return removed, fmt.Errorf("scan rate limit keys: %w", err)
		}

		for _, key := range keys {
			pipe := l.client.TxPipeline()
			pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("(%d", cutoff))
			card := pipe.ZCard(ctx, key)
			if _, err := pipe.Exec(ctx); err != nil {
				l.log.Warn("rate limit sweep failed", slog.String("key", key), slog.Any("error", err))
				continue
			}

			if card.Val() == 0 {
				if err := l.client.Del(ctx, key).Err(); err != nil {
					l.log.Warn("failed to delete empty rate limit key", slog.String("key", key), slog.Any("error", err))
					continue
				}
				removed++
			}
		}

		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}
