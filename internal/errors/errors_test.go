package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_IsMatchesByCode(t *testing.T) {
	cause := stderrors.New("disk full")
	err := fmt.Errorf("save: %w", NewStorageError(cause))

	assert.True(t, Is(err, ErrStorageFault))
	assert.True(t, Is(err, cause))
	assert.False(t, Is(err, ErrValidation))
	assert.Equal(t, "save: storage fault: disk full", err.Error())

	detailed := Wrapf(ErrPhoneTaken, "%s", "+15551234567")
	assert.True(t, Is(detailed, ErrPhoneTaken))
	assert.Equal(t, "phone already registered: +15551234567", detailed.Error())
	assert.Equal(t, "phone already registered", ErrPhoneTaken.Error(), "sentinel must stay untouched")

	assert.True(t, Is(NewValidationError("bad pin"), ErrValidation))
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "Insufficient funds", UserMessage(fmt.Errorf("x: %w", ErrInsufficientFunds)))
	assert.Equal(t, defaultUserMessage, UserMessage(stderrors.New("plain")))
	assert.Equal(t, "Too many requests. Try again in 3 seconds", UserMessage(NewRateLimitError(3)))
}

func TestHandler_Handle(t *testing.T) {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), false)

	msg, retry := h.Handle(context.Background(), nil)
	assert.Empty(t, msg)
	assert.False(t, retry)

	msg, retry = h.Handle(context.Background(), NewExternalAPIError("telegram", stderrors.New("timeout")))
	assert.Equal(t, ErrNotificationFault.UserMessage, msg)
	assert.True(t, retry)

	msg, retry = h.Handle(context.Background(), stderrors.New("boom"))
	assert.Equal(t, defaultUserMessage, msg)
	assert.False(t, retry)
}

var fastRetry = RetryPolicy{Attempts: 3, Initial: time.Millisecond, Max: 2 * time.Millisecond, Multiplier: 2}

func TestRetry_StopsOnSuccess(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry, func() error {
		calls++
		if calls < 2 {
			return ErrNotificationFault
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetry_GivesUp(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry, func() error {
		calls++
		return ErrNotificationFault
	})
	assert.ErrorIs(t, err, ErrNotificationFault)
	assert.Equal(t, 3, calls)

	calls = 0
	err = Retry(context.Background(), fastRetry, func() error {
		calls++
		return ErrValidation
	})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 1, calls, "non retryable errors are returned at once")
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Retry(ctx, RetryPolicy{Attempts: 5, Initial: time.Hour}, func() error {
		calls++
		return ErrNotificationFault
	})
	assert.ErrorIs(t, err, ErrNotificationFault)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := RetryPolicy{Initial: 100 * time.Millisecond, Max: time.Second, Multiplier: 2}
	assert.Equal(t, 100*time.Millisecond, p.backoff(1))
	assert.Equal(t, 400*time.Millisecond, p.backoff(3))
	assert.Equal(t, time.Second, p.backoff(10))
}

func TestCircuitBreaker_Lifecycle(t *testing.T) {
	now := time.Unix(0, 0)
	var changes []string

	cb := NewCircuitBreaker(BreakerSettings{
		MinRequests:      4,
		FailureRatio:     0.5,
		OpenTimeout:      time.Minute,
		HalfOpenRequests: 2,
		OnStateChange: func(from, to State) {
			changes = append(changes, from.String()+"->"+to.String())
		},
	})
	cb.now = func() time.Time { return now }

	fail := func() error { return ErrNotificationFault }
	ok := func() error { return nil }

	require.NoError(t, cb.Call(ok))
	require.NoError(t, cb.Call(ok))
	_ = cb.Call(fail)
	assert.Equal(t, StateClosed, cb.State())
	_ = cb.Call(fail)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Call(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
	assert.False(t, IsRetryable(err))

	now = now.Add(time.Minute)
	require.NoError(t, cb.Call(ok))
	assert.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Call(ok))
	assert.Equal(t, StateClosed, cb.State())

	assert.Equal(t, []string{"closed->open", "open->half_open", "half_open->closed"}, changes)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker(BreakerSettings{MinRequests: 1, OpenTimeout: time.Second})
	cb.now = func() time.Time { return now }

	_ = cb.Call(func() error { return ErrNotificationFault })
	require.Equal(t, StateOpen, cb.State())

	now = now.Add(time.Second)
	_ = cb.Call(func() error { return ErrNotificationFault })
	assert.Equal(t, StateOpen, cb.State())
}
