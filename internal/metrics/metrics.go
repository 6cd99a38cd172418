package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "savings_goals"

var (
	ReconciliationPasses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconciliation_passes_total",
		Help:      "Derivation passes run over a goal snapshot.",
	})

	CorrectiveWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "corrective_writes_total",
			Help:      "Status/archived fix-ups issued by reconciliation, by result.",
		},
		[]string{"source", "result"},
	)

	ArchiveNotifications = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "archive_notifications_total",
		Help:      "Goal archived notifications emitted.",
	})

	SubscriptionErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "subscription_errors_total",
		Help:      "Live goal subscriptions that ended with an error.",
	})

	LiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "live_sessions",
		Help:      "Goal sync sessions currently registered for scheduled refresh.",
	})
)

// Corrective write results.
const (
	ResultOK       = "ok"
	ResultConflict = "conflict"
	ResultError    = "error"
)

// Corrective write sources.
const (
	SourceSession = "session"
	SourceSweeper = "sweeper"
)
