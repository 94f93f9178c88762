package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Proton-105/minibank/internal/state"
)

var (
	botUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "minibank",
			Name:      "bot_updates_total",
			Help:      "Chat updates handled, labeled by command or action and status",
		},
		[]string{"command", "status"},
	)
	botUpdateDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "minibank",
			Name:      "bot_update_duration_seconds",
			Help:      "Time spent handling one chat update",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"command"},
	)
	stateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "minibank",
			Name:      "session_transitions_total",
			Help:      "Accepted conversation state transitions",
		},
		[]string{"from", "to"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "minibank",
			Name:      "errors_total",
			Help:      "Errors that reached a front-end, labeled by code and severity",
		},
		[]string{"code", "severity"},
	)
)

func init() {
	state.RegisterTransitionRecorder(RecordStateTransition)
}

// RecordCommand observes one handled chat update.
func RecordCommand(command, status string, duration time.Duration) {
	botUpdatesTotal.WithLabelValues(orUnknown(command), orUnknown(status)).Inc()
	botUpdateDuration.WithLabelValues(orUnknown(command)).Observe(duration.Seconds())
}

func RecordStateTransition(from, to string) {
	stateTransitionsTotal.WithLabelValues(orUnknown(from), orUnknown(to)).Inc()
}

// RecordError counts an error by its stable code.
func RecordError(code, severity string) {
	errorsTotal.WithLabelValues(orUnknown(code), orUnknown(severity)).Inc()
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
