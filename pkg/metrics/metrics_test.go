package metrics

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/minibank/internal/state"
)

func TestStateCollector_Collect(t *testing.T) {
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	fsm := state.NewStateMachine(state.NewMemoryStorage(), log, nil)

	require.NoError(t, fsm.SetState(ctx, 1, state.StateTransferAmount, nil))
	require.NoError(t, fsm.SetState(ctx, 2, state.StateTransferAmount, nil))
	require.NoError(t, fsm.SetState(ctx, 3, state.StateRegisteringPIN, nil))

	c := NewStateCollector(fsm, time.Minute, log)
	require.NoError(t, c.Collect(ctx))

	assert.Equal(t, 2.0, testutil.ToFloat64(sessionsGauge.WithLabelValues(string(state.StateTransferAmount))))
	assert.Equal(t, 1.0, testutil.ToFloat64(sessionsGauge.WithLabelValues(string(state.StateRegisteringPIN))))

	require.NoError(t, fsm.ClearState(ctx, 3))
	require.NoError(t, c.Collect(ctx))
	assert.Equal(t, 0.0, testutil.ToFloat64(sessionsGauge.WithLabelValues(string(state.StateRegisteringPIN))))
}

func TestTransitionsAreRecorded(t *testing.T) {
	ctx := context.Background()
	fsm := state.NewStateMachine(state.NewMemoryStorage(), slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	counter := stateTransitionsTotal.WithLabelValues("idle", string(state.StateTransferRecipient))
	before := testutil.ToFloat64(counter)

	require.NoError(t, fsm.TransitionTo(ctx, 9, state.StateTransferRecipient, nil))
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestRecordCommand_EmptyLabels(t *testing.T) {
	before := testutil.ToFloat64(botUpdatesTotal.WithLabelValues("unknown", "ok"))
	RecordCommand("", "ok", time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(botUpdatesTotal.WithLabelValues("unknown", "ok")))
}
