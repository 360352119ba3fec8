package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Verifications records payment verification attempts by outcome
	// (verified|tx_not_found|tx_failed|sender_mismatch|recipient_mismatch|
	// insufficient_payment|already_consumed|error).
	Verifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelgate_verifications_total",
			Help: "Total number of payment verification attempts",
		},
		[]string{"resource_type", "result"},
	)

	// AccessChecks counts paywall decisions and their outcome (allow|deny|error).
	AccessChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelgate_access_checks_total",
			Help: "Total number of paywall access checks",
		},
		[]string{"resource_type", "result"},
	)

	// GrantsCreated counts persisted access grants.
	GrantsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "modelgate_grants_created_total",
			Help: "Total number of access grants persisted",
		},
	)

	// FeeFallbacks counts fee lookups served by the default rule, so that
	// unrecognised resource types stay observable.
	FeeFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelgate_fee_fallbacks_total",
			Help: "Fee schedule lookups answered by the default rule",
		},
		[]string{"resource_type"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "modelgate_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
