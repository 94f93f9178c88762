package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func stores(t *testing.T) map[string]Store {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  NewRedisStore(client, testLogger()),
	}
}

func TestManager_ExecutesOncePerKey(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			m := NewManager(store, testLogger())
			ctx := context.Background()
			calls := 0
			op := func(context.Context) (interface{}, error) {
				calls++
				return map[string]string{"status": "ok"}, nil
			}

			first, err := m.Execute(ctx, "k1", time.Hour, op)
			require.NoError(t, err)
			assert.False(t, first.FromCache)

			second, err := m.Execute(ctx, "k1", time.Hour, op)
			require.NoError(t, err)
			assert.True(t, second.FromCache)
			assert.Equal(t, 1, calls)

			raw, ok := second.Response.(json.RawMessage)
			require.True(t, ok)
			assert.JSONEq(t, `{"status":"ok"}`, string(raw))
		})
	}
}

func TestManager_FailedOperationCanBeRetried(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			m := NewManager(store, testLogger())
			ctx := context.Background()
			boom := errors.New("boom")

			_, err := m.Execute(ctx, "k2", time.Hour, func(context.Context) (interface{}, error) {
				return nil, boom
			})
			assert.ErrorIs(t, err, boom)

			res, err := m.Execute(ctx, "k2", time.Hour, func(context.Context) (interface{}, error) {
				return 1, nil
			})
			require.NoError(t, err)
			assert.False(t, res.FromCache)
		})
	}
}

func TestManager_ConcurrentAttemptIsRejected(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(store, testLogger())
	ctx := context.Background()

	locked, err := store.Lock(ctx, "k3", time.Minute)
	require.NoError(t, err)
	require.True(t, locked)

	_, err = m.Execute(ctx, "k3", time.Hour, func(context.Context) (interface{}, error) {
		t.Fatal("operation must not run while the key is locked")
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrRequestInProgress)
}

func TestMemoryStore_Sweep(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", &Record{Status: StatusCompleted}, time.Minute))
	require.NoError(t, store.Set(ctx, "b", &Record{Status: StatusCompleted}, time.Hour))

	now = now.Add(2 * time.Minute)
	rec, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, rec, "expired records are invisible before the sweep")

	removed, err := store.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestRedisStore_SweepRemovesKeysWithoutTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client, testLogger())
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "kept", &Record{Status: StatusCompleted}, time.Hour))
	require.NoError(t, client.HSet(ctx, recordKey("orphan"), "status", StatusCompleted).Err())

	removed, err := store.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.True(t, mr.Exists(recordKey("kept")))
	assert.False(t, mr.Exists(recordKey("orphan")))
}

func TestTransferKey(t *testing.T) {
	assert.Equal(t, TransferKey("+992900000001", "abc"), TransferKey("+992900000001", "abc"))
	assert.NotEqual(t, TransferKey("+992900000001", "abc"), TransferKey("+992900000002", "abc"))
	assert.NotEqual(t, scopedKey("a:b", "c"), scopedKey("a", "b:c"))
}

func TestCleaner_SweepOnce(t *testing.T) {
	store := NewMemoryStore()
	now := time.Unix(1000, 0)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "old", &Record{Status: StatusCompleted}, time.Minute))
	require.NoError(t, store.Set(ctx, "fresh", &Record{Status: StatusCompleted}, time.Hour))
	now = now.Add(2 * time.Minute)

	c := NewCleaner(store, testLogger(), time.Minute)
	assert.Equal(t, 1, c.SweepOnce(ctx))
	assert.Equal(t, 0, c.SweepOnce(ctx))

	rec, err := store.Get(ctx, "fresh")
	require.NoError(t, err)
	require.NotNil(t, rec)
}
