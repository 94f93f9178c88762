package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleaner_RemovesExpiredSessions(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	storage := NewMemoryStorage()
	storage.now = func() time.Time { return now.Add(-2 * time.Hour) }
	require.NoError(t, storage.SetState(ctx, 1, &UserState{UserID: 1, CurrentState: StateTransferAmount}))

	storage.now = func() time.Time { return now.Add(-time.Minute) }
	require.NoError(t, storage.SetState(ctx, 2, &UserState{UserID: 2, CurrentState: StateRegisteringName}))

	cleaner := NewCleaner(storage, testLogger(), time.Hour, time.Minute)
	cleaner.now = func() time.Time { return now }

	assert.Equal(t, 1, cleaner.cleanup(ctx))

	_, err := storage.GetState(ctx, 1)
	assert.ErrorIs(t, err, ErrStateNotFound)

	st, err := storage.GetState(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, StateRegisteringName, st.CurrentState)
}

func TestMemoryStorage_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()

	require.NoError(t, storage.SetState(ctx, 5, &UserState{UserID: 5, CurrentState: StateTransferAmount, Context: map[string]string{KeyAmount: "1.00"}}))

	st, err := storage.GetState(ctx, 5)
	require.NoError(t, err)
	st.Context[KeyAmount] = "999.00"

	again, err := storage.GetState(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "1.00", again.Value(KeyAmount))
}
