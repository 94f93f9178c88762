package idempotency

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "minibank:idempotency:"

// RedisStore shares idempotency records between instances.
type RedisStore struct {
	client *redis.Client
	log    *slog.Logger
}

var (
	_ Store   = (*RedisStore)(nil)
	_ Sweeper = (*RedisStore)(nil)
)

func NewRedisStore(client *redis.Client, log *slog.Logger) *RedisStore {
	if log == nil {
		log = slog.Default()
	}

	return &RedisStore{
		client: client,
		log:    log,
	}
}

func (s *RedisStore) Lock(ctx context.Context, key string, lockTTL time.Duration) (bool, error) {
	acquired, err := s.client.SetNX(ctx, lockKey(key), StatusProcessing, lockTTL).Result()
	if err != nil {
		s.log.Error("failed to acquire idempotency lock", slog.String("key", key), slog.Any("error", err))
		return false, err
	}

	return acquired, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Record, error) {
	result, err := s.client.HGetAll(ctx, recordKey(key)).Result()
	if err != nil {
		s.log.Error("failed to fetch idempotency record", slog.String("key", key), slog.Any("error", err))
		return nil, err
	}

	if len(result) == 0 {
		return nil, nil
	}

	return &Record{
		Status:   result["status"],
		Response: []byte(result["response"]),
	}, nil
}

// Set writes the record and its expiry in one transaction so a crash cannot
// leave a record without TTL.
func (s *RedisStore) Set(ctx context.Context, key string, record *Record, ttl time.Duration) error {
	if record == nil {
		return nil
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, recordKey(key), map[string]interface{}{
		"status":   record.Status,
		"response": string(record.Response),
	})
	pipe.Expire(ctx, recordKey(key), ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Error("failed to store idempotency record", slog.String("key", key), slog.Any("error", err))
		return err
	}

	return nil
}

func (s *RedisStore) ReleaseLock(ctx context.Context, key string) error {
	return s.client.Del(ctx, lockKey(key)).Err()
}

// Sweep deletes keys that lost their TTL, for example records written by an
// older release.
func (s *RedisStore) Sweep(ctx context.Context) (int, error) {
	var cursor uint64
	removed := 0

	for {
		keys, next, err := s.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return removed, fmt.Errorf("scan idempotency keys: %w", err)
		}

		for _, key := range keys {
			ttl, err := s.client.TTL(ctx, key).Result()
			if err != nil {
				s.log.Warn("failed to get key ttl", slog.String("key", key), slog.Any("error", err))
				continue
			}
			if ttl != -1 {
				continue
			}
			if err := s.client.Del(ctx, key).Err(); err != nil {
				s.log.Warn("failed to delete stale idempotency key", slog.String("key", key), slog.Any("error", err))
				continue
			}
			removed++
		}

		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}

func recordKey(key string) string {
	return keyPrefix + key
}

func lockKey(key string) string {
	return keyPrefix + key + ":lock"
}
