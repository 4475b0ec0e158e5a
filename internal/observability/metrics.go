package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ride_dispatch"

var (
	BookingsCreated = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "bookings_created_total", Help: "Bookings created"})
	OffersSent      = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "offers_sent_total", Help: "ride:new offers addressed to driver rooms"})

	AcceptOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "accept_outcomes_total", Help: "Accept attempts by outcome"},
		[]string{"outcome"},
	)
	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "status_transitions_total", Help: "Applied status transitions by target status"},
		[]string{"to"},
	)
	BookingsExpired = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "bookings_expired_total", Help: "Pending bookings expired by the sweeper"})

	RealtimeConnections = promauto.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "realtime_connections", Help: "Open websocket connections"})
	EventsPublished     = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "events_published_total", Help: "Realtime events published by name"},
		[]string{"event"},
	)
	EmitFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "emit_failures_total", Help: "Realtime emissions that failed after commit"},
		[]string{"event"},
	)
	SlowClientsDropped   = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "slow_clients_dropped_total", Help: "Connections closed because their send buffer filled"})
	NotificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "notification_failures_total", Help: "Notification sink failures by sink"},
		[]string{"sink"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Accept outcome labels.
const (
	OutcomeWon      = "won"
	OutcomeConflict = "conflict"
)
