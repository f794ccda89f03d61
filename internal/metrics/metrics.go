// Package metrics registers the Prometheus metrics used by the gateway.
// Import this package (via blank import) from the server entry point to
// register all metrics before the /metrics handler is mounted.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts dispatched requests labelled by endpoint ("chat",
	// "embeddings") and outcome ("success", "terminal", "exhausted",
	// "no_backends").
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relaymux_requests_total",
			Help: "Total number of requests dispatched by the gateway.",
		},
		[]string{"endpoint", "outcome"},
	)

	// UpstreamDuration observes the latency of individual upstream attempts.
	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relaymux_upstream_duration_seconds",
			Help:    "Duration of individual upstream backend attempts.",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider", "model"},
	)

	// FailoverTotal counts candidate attempts abandoned for the next backend,
	// labelled by reason ("transport", "rate_limited", "server_error").
	FailoverTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relaymux_failover_total",
			Help: "Total failovers to the next candidate backend.",
		},
		[]string{"provider", "model", "reason"},
	)

	// CooldownsScheduled counts cooldown windows written to the state store.
	CooldownsScheduled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relaymux_cooldowns_scheduled_total",
			Help: "Total cooldown windows scheduled after rate-limit signals.",
		},
		[]string{"provider", "model"},
	)

	// CandidatesSelected observes how many backends were eligible per request.
	CandidatesSelected = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relaymux_candidates_selected",
			Help:    "Number of eligible backends per dispatch decision.",
			Buckets: []float64{0, 1, 2, 3, 4, 5, 8, 12},
		},
	)
)
