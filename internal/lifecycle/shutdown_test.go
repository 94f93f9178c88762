package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/minibank/internal/health"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestShutdown_RunsPhasesInOrder(t *testing.T) {
	s := NewShutdown(testLogger())

	var mu sync.Mutex
	var order []string
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	s.Register(PhaseRelease, "redis", record("redis"))
	s.Register(PhaseIntake, "http", record("http"))
	s.Register(PhaseDrain, "queue", record("queue"))
	s.Register(PhaseIntake, "nil", nil)

	require.NoError(t, s.Execute(context.Background()))
	assert.Equal(t, []string{"http", "queue", "redis"}, order)
}

func TestShutdown_JoinsErrorsAndContinues(t *testing.T) {
	s := NewShutdown(testLogger())
	boom := errors.New("boom")

	released := false
	s.Register(PhaseIntake, "bot", func(context.Context) error { return boom })
	s.Register(PhaseRelease, "redis", func(context.Context) error {
		released = true
		return nil
	})

	err := s.Execute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "bot")
	assert.True(t, released)
}

func TestProbes_Readiness(t *testing.T) {
	checker := health.NewChecker(testLogger())
	ok := true
	checker.AddCheck("store", health.CheckFunc(func(context.Context) error {
		if ok {
			return nil
		}
		return errors.New("unreadable")
	}))

	p := NewProbes(checker, testLogger())
	ctx := context.Background()

	assert.NoError(t, p.Liveness(ctx))
	assert.NoError(t, p.Readiness(ctx))

	ok = false
	err := p.Readiness(ctx)
	require.Error(t, err)
	assert.Equal(t, "store: unreadable", err.Error())
	assert.Equal(t, map[string]string{"store": "unreadable"}, p.Report(ctx))

	ok = true
	require.NoError(t, p.Drain(ctx))
	assert.ErrorIs(t, p.Readiness(ctx), ErrShuttingDown)
	assert.NoError(t, p.Liveness(ctx))
}
