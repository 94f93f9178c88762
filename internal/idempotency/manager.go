// Package idempotency makes chat updates and API requests take effect at
// most once per key. Telegram redelivers updates after timeouts and API
// clients retry transfers; both reuse the key of the first attempt.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

var ErrRequestInProgress = errors.New("request with this key is already in progress")

// lockTTL bounds how long a crashed attempt can hold a key.
const lockTTL = 5 * time.Minute

type Operation func(ctx context.Context) (interface{}, error)

// Result is the outcome of Execute. Response holds the operation's value on
// the first run and its JSON encoding on a replay.
type Result struct {
	Response  interface{}
	FromCache bool
}

type Manager interface {
	Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error)
}

type manager struct {
	store Store
	log   *slog.Logger
}

func NewManager(store Store, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}

	return &manager{
		store: store,
		log:   log.With(slog.String("component", "idempotency")),
	}
}

// Execute runs fn unless key already completed within ttl. A failed fn
// leaves no record, so the caller may retry with the same key.
func (m *manager) Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error) {
	if fn == nil {
		return nil, errors.New("operation fn cannot be nil")
	}

	if record, err := m.store.Get(ctx, key); err != nil {
		return nil, err
	} else if record != nil && record.Status == StatusCompleted {
		return replay(record), nil
	}

	locked, err := m.store.Lock(ctx, key, lockTTL)
	if err != nil {
		return nil, err
	}
	if !locked {
		// The holder may have finished between Get and Lock.
		record, err := m.store.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if record != nil && record.Status == StatusCompleted {
			return replay(record), nil
		}
		return nil, ErrRequestInProgress
	}
	defer func() {
		if err := m.store.ReleaseLock(context.WithoutCancel(ctx), key); err != nil {
			m.log.Warn("failed to release idempotency lock", slog.String("key", key), slog.Any("error", err))
		}
	}()

	result, err := fn(ctx)
	if err != nil {
		return nil, err
	}

	responseBytes, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}

	if err := m.store.Set(ctx, key, &Record{Status: StatusCompleted, Response: responseBytes}, ttl); err != nil {
		// The operation took effect; only the replay protection is lost.
		m.log.Error("failed to store idempotency record", slog.String("key", key), slog.Any("error", err))
	}

	return &Result{Response: result}, nil
}

func replay(record *Record) *Result {
	return &Result{Response: json.RawMessage(record.Response), FromCache: true}
}
