package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Proton-105/minibank/internal/lifecycle"
	"github.com/Proton-105/minibank/internal/state"
)

var sessionsGauge = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "minibank",
		Name:      "sessions",
		Help:      "Open conversation sessions per state",
	},
	[]string{"state"},
)

// StateCollector samples the session store and publishes how many actors
// sit in each state. Idle actors have no session and are not counted.
type StateCollector struct {
	fsm      state.StateMachine
	interval time.Duration
	log      *slog.Logger
}

func NewStateCollector(fsm state.StateMachine, interval time.Duration, log *slog.Logger) *StateCollector {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &StateCollector{fsm: fsm, interval: interval, log: log}
}

func (c *StateCollector) Run(ctx context.Context) {
	if c == nil || c.fsm == nil {
		return
	}
	lifecycle.Every(ctx, c.interval, true, func(ctx context.Context) {
		if err := c.Collect(ctx); err != nil {
			c.log.WarnContext(ctx, "session metrics not collected", slog.Any("error", err))
		}
	})
}

// Collect takes one sample. Every known state is reported, zero included,
// so a drained state does not keep its last value.
func (c *StateCollector) Collect(ctx context.Context) error {
	sessions, err := c.fsm.GetAllStates(ctx)
	if err != nil {
		return err
	}

	counts := make(map[state.State]int)
	for _, st := range state.Active() {
		counts[st] = 0
	}
	for _, s := range sessions {
		if s != nil && s.CurrentState != "" {
			counts[s.CurrentState]++
		}
	}

	for st, n := range counts {
		sessionsGauge.WithLabelValues(string(st)).Set(float64(n))
	}
	return nil
}
