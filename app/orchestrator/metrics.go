package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_ticks_total",
			Help: "Campaign ticks by outcome",
		},
		[]string{"outcome"},
	)

	attemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_attempts_total",
			Help: "Ledger transitions by resulting status",
		},
		[]string{"status"},
	)

	blockedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_blocked_total",
			Help: "Contacts stopped by the compliance registry",
		},
		[]string{"reason"},
	)

	dispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orchestrator_dispatch_duration_seconds",
			Help:    "Channel adapter call duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel"},
	)

	decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_decisions_total",
			Help: "Decision loop verdicts",
		},
		[]string{"action"},
	)
)
