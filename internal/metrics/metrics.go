package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion metrics
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_relay_requests_total",
			Help: "Total number of ingestion API requests",
		},
		[]string{"endpoint", "status"},
	)

	EventsPersisted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "event_relay_events_persisted_total",
			Help: "Total number of events committed to storage",
		},
	)

	ValidationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_relay_validation_errors_total",
			Help: "Total number of rejected submissions by failure category",
		},
		[]string{"reason"},
	)

	// Storage metrics
	StorageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "event_relay_storage_duration_seconds",
			Help:    "Duration of storage operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	StorageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_relay_storage_errors_total",
			Help: "Total number of failed storage operations",
		},
		[]string{"operation"},
	)

	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "event_relay_rate_limit_hits_total",
			Help: "Total number of submissions rejected by the rate limiter",
		},
	)

	PublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "event_relay_publish_errors_total",
			Help: "Total number of committed events that could not be published",
		},
	)

	// Propagator metrics
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_relay_propagator_deliveries_total",
			Help: "Total number of propagator delivery attempts by outcome",
		},
		[]string{"outcome"},
	)
)
