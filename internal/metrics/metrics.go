package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "prolink_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	PresenceChannels = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "prolink_presence_channels",
			Help: "Realtime channels currently registered on this node",
		},
	)

	// result is one of delivered, offline, dropped, forwarded
	RealtimePushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prolink_realtime_pushes_total",
			Help: "Realtime pushes by event and result",
		},
		[]string{"event", "result"},
	)

	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prolink_notifications_created_total",
			Help: "Notifications written by type",
		},
		[]string{"type"},
	)

	OutboxDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "prolink_outbox_delivered_total",
			Help: "Outbox events acknowledged by the relay",
		},
	)

	OutboxFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "prolink_outbox_failures_total",
			Help: "Relay passes that stopped on a delivery error",
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "prolink_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

func ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
