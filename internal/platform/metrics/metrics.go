package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	TransactionsCreated   *prometheus.CounterVec
	TransactionsCompleted prometheus.Counter
	TransactionsFailed    prometheus.Counter
	ValidationsRun        *prometheus.CounterVec
	LedgerApplies         prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		TransactionsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stratum_transactions_created_total",
			Help: "Total transactions created, labeled by initial status",
		}, []string{"status"}),
		TransactionsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stratum_transactions_completed_total",
			Help: "Total transactions that reached COMPLETED",
		}),
		TransactionsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stratum_transactions_failed_total",
			Help: "Total transactions that reached FAILED",
		}),
		ValidationsRun: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stratum_validations_total",
			Help: "Validation pipeline runs, labeled by outcome",
		}, []string{"outcome"}),
		LedgerApplies: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stratum_ledger_applies_total",
			Help: "Successful atomic ledger delta applications",
		}),
	}
}
