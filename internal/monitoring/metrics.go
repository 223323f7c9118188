package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mintDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ticket_mint_duration_seconds",
			Help:    "Time from purchase to persisted ticket",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"mode", "outcome"},
	)

	resolverResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_tokenid_resolver_total",
			Help: "Token id resolution attempts per strategy",
		},
		[]string{"strategy", "result"},
	)

	scanResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_scan_total",
			Help: "Gate scans by result",
		},
		[]string{"result"},
	)

	reconcileTasks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_reconcile_total",
			Help: "Reconciliation tasks by stage and status",
		},
		[]string{"stage", "status"},
	)
)

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }

// TrackMint records one issuance attempt.
func TrackMint(mode, outcome string, d time.Duration) {
	mintDuration.WithLabelValues(mode, outcome).Observe(d.Seconds())
}

// TrackResolver records one token id strategy attempt; result is "hit",
// "miss" or "error".
func TrackResolver(strategy, result string) {
	resolverResults.WithLabelValues(strategy, result).Inc()
}

// TrackScan records the outcome of one redemption attempt.
func TrackScan(result string) {
	scanResults.WithLabelValues(result).Inc()
}

// TrackReconcile records a publish or replay of a reconciliation task.
func TrackReconcile(stage, status string) {
	reconcileTasks.WithLabelValues(stage, status).Inc()
}
