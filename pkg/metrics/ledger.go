package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_transfers_total",
			Help: "Transfers attempted, labeled by outcome",
		},
		[]string{"status"},
	)
	transferredAmount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_transferred_amount_total",
			Help: "Sum of committed transfer amounts",
		},
	)
	registrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_registrations_total",
			Help: "Registrations attempted, labeled by outcome",
		},
		[]string{"status"},
	)
	accountsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledger_accounts",
			Help: "Number of accounts in the store",
		},
	)
	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Receiver notifications, labeled by result",
		},
		[]string{"result"},
	)
)

// RecordTransfer counts one transfer attempt. amount is only added for
// successful transfers.
func RecordTransfer(status string, amount float64) {
	transfersTotal.WithLabelValues(orUnknown(status)).Inc()
	if status == "success" {
		transferredAmount.Add(amount)
	}
}

func RecordRegistration(status string) {
	registrationsTotal.WithLabelValues(orUnknown(status)).Inc()
}

func SetAccounts(count int) {
	accountsGauge.Set(float64(count))
}

// RecordNotification counts notices by outcome: delivered, skipped, failed,
// dropped, or exhausted once the durable queue gives up on a task.
func RecordNotification(result string) {
	notificationsTotal.WithLabelValues(orUnknown(result)).Inc()
}
