package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Store metrics
	PastesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "localpaste_pastes_total",
			Help: "Total number of pastes in the canonical table",
		},
	)

	FoldersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "localpaste_folders_total",
			Help: "Total number of folders",
		},
	)

	ReconcileRuns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "localpaste_reconcile_runs_total",
			Help: "Derived index rebuilds performed",
		},
	)

	// Coordinator metrics
	MoveRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "localpaste_move_retries_total",
			Help: "Compare-and-swap retries inside the move flow",
		},
	)

	MoveConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "localpaste_move_conflicts_total",
			Help: "Moves abandoned after exhausting the retry cap",
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "localpaste_api_requests_total",
			Help: "API requests by method, route and status code",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "localpaste_api_request_duration_seconds",
			Help:    "API request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

// Register registers all metrics with the default registry. Call once at
// startup.
func Register() {
	prometheus.MustRegister(
		PastesTotal,
		FoldersTotal,
		ReconcileRuns,
		MoveRetries,
		MoveConflicts,
		APIRequestsTotal,
		APIRequestDuration,
	)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
