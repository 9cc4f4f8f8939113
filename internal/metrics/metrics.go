package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fireguard_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fireguard_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)

	// Ingestion metrics
	ReadingsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fireguard_readings_ingested_total",
			Help: "Total number of sensor readings ingested",
		},
		[]string{"status"}, // status: accepted, rejected
	)

	// Alert pipeline metrics
	BreachesEvaluatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fireguard_breaches_evaluated_total",
			Help: "Total number of candidate breaches produced by evaluation",
		},
		[]string{"metric", "level"},
	)

	AlertsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fireguard_alerts_created_total",
			Help: "Total number of alerts persisted after suppression",
		},
		[]string{"metric", "level"},
	)

	AlertsSuppressedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fireguard_alerts_suppressed_total",
			Help: "Total number of candidate breaches suppressed",
		},
		[]string{"metric", "reason"}, // reason: muted, dedup
	)

	// Notification metrics
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fireguard_notifications_total",
			Help: "Total number of external notification outcomes",
		},
		[]string{"status"}, // status: sent, failed
	)

	NotificationRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fireguard_notification_retries_total",
			Help: "Total number of external notification retry attempts",
		},
	)

	NotificationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fireguard_notification_duration_seconds",
			Help:    "Wall time per alert spent on the external channel",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	// Movement metrics
	MovementsDetectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fireguard_movements_detected_total",
			Help: "Total number of device movements detected",
		},
	)

	// Live channel metrics
	LiveSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fireguard_live_subscribers",
			Help: "Current number of connected live subscribers",
		},
	)

	LiveEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fireguard_live_events_total",
			Help: "Total number of events published to the live channel",
		},
		[]string{"event"},
	)

	// Audit sink metrics
	AuditRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fireguard_audit_records_total",
			Help: "Total number of audit records written",
		},
		[]string{"kind"},
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fireguard_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
