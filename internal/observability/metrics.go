package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "swiftride", Name: "booking_transitions_total", Help: "Successful booking status transitions"},
		[]string{"from", "to"},
	)
	TransitionsRejected = promauto.NewCounter(prometheus.CounterOpts{Namespace: "swiftride", Name: "booking_transitions_rejected_total", Help: "Transition attempts outside the legal graph"})

	HandoverOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "swiftride", Name: "handover_outcomes_total", Help: "Handover verification and evidence outcomes"},
		[]string{"step", "outcome"},
	)

	SamplesForwarded = promauto.NewCounter(prometheus.CounterOpts{Namespace: "swiftride", Name: "tracking_samples_forwarded_total", Help: "Location samples forwarded to the transport channel"})
	SamplesDropped   = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "swiftride", Name: "tracking_samples_dropped_total", Help: "Location samples dropped before delivery"},
		[]string{"reason"},
	)
	FallbackPushes = promauto.NewCounter(prometheus.CounterOpts{Namespace: "swiftride", Name: "tracking_fallback_pushes_total", Help: "Samples pushed over the HTTP fallback"})
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "swiftride", Name: "tracking_active_sessions", Help: "Active tracking sessions on this device"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "swiftride", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "swiftride",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
