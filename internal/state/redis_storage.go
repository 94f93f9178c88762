package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 100

// RedisStorage persists sessions in Redis. Keys are namespaced by a boot id
// so a restarted process never resumes a session started by a previous one.
type RedisStorage struct {
	client *redis.Client
	log    *slog.Logger
	prefix string
	ttl    time.Duration
}

var _ Storage = (*RedisStorage)(nil)

func NewRedisStorage(client *redis.Client, log *slog.Logger, bootID string, ttl time.Duration) *RedisStorage {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &RedisStorage{
		client: client,
		log:    log.With(slog.String("component", "session_store")),
		prefix: fmt.Sprintf("minibank:session:%s:", bootID),
		ttl:    ttl,
	}
}

// GetState returns the stored session or ErrStateNotFound when absent.
func (s *RedisStorage) GetState(ctx context.Context, userID int64) (*UserState, error) {
	data, err := s.client.Get(ctx, s.key(userID)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, ErrStateNotFound
	case err != nil:
		return nil, fmt.Errorf("get session %d: %w", userID, err)
	}

	var st UserState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode session %d: %w", userID, err)
	}
	return &st, nil
}

// SetState saves the session and refreshes its TTL.
func (s *RedisStorage) SetState(ctx context.Context, userID int64, st *UserState) error {
	st.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode session %d: %w", userID, err)
	}
	if err := s.client.Set(ctx, s.key(userID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session %d: %w", userID, err)
	}
	return nil
}

func (s *RedisStorage) ClearState(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("clear session %d: %w", userID, err)
	}
	return nil
}

// GetAllStates lists the sessions of the current boot. Keys are scanned in
// batches and fetched with one MGET per batch; entries that expire or fail
// to decode in between are skipped.
func (s *RedisStorage) GetAllStates(ctx context.Context) ([]*UserState, error) {
	var result []*UserState

	iter := s.client.Scan(ctx, 0, s.prefix+"*", scanBatch).Iterator()
	batch := make([]string, 0, scanBatch)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		values, err := s.client.MGet(ctx, batch...).Result()
		if err != nil {
			return fmt.Errorf("fetch sessions: %w", err)
		}
		for i, v := range values {
			raw, ok := v.(string)
			if !ok {
				continue
			}
			var st UserState
			if err := json.Unmarshal([]byte(raw), &st); err != nil {
				s.log.WarnContext(ctx, "skipping undecodable session", slog.String("key", batch[i]), slog.Any("error", err))
				continue
			}
			result = append(result, &st)
		}
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan sessions: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *RedisStorage) key(userID int64) string {
	return s.prefix + fmt.Sprint(userID)
}
