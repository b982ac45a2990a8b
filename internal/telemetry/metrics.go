// Package telemetry provides application-level observability for the booking
// backend.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// automatically available on the side-channel HTTP server started by main.go:
//
//	GET http(s)://<host>:<AROHA_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090. The endpoint returns data in the Prometheus text
// exposition format and is intended to be scraped every 15–60 seconds. It is
// NOT served by the Gin router.
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (route template such as
// /api/v1/orgs/:id/appointments) rather than the raw request URL to prevent
// unbounded label cardinality from user-supplied path segments.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics — labelled by method, route template, and status code.
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window):  rate(http_requests_total[5m])
//   - Error rate (%):                    sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//   - p99 latency per route:             histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Booking domain metrics.
//
// AppointmentsCreatedTotal counts appointment creations. CallsForwardedTotal
// is labelled by result ("sent", "failed") and incremented by the forward
// queue processor for each item it handles. An alert on
// rate(calls_forwarded_total{result="failed"}[30m]) > 0 catches Twilio
// delivery problems early.
var (
	AppointmentsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "appointments_created_total",
			Help: "Total number of appointments created.",
		},
	)

	CallsForwardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calls_forwarded_total",
			Help: "Total number of forward-queue items processed, by result.",
		},
		[]string{"result"},
	)

	SummaryRewritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "call_summary_rewrites_total",
			Help: "Total number of AI call-summary rewrites attempted, by result.",
		},
		[]string{"result"},
	)
)

// Integration metrics.
//
// IntegrationDisconnectsTotal is labelled by provider ("gmail",
// "google_calendar") and incremented once per completed disconnect workflow.
var IntegrationDisconnectsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "integration_disconnects_total",
		Help: "Total number of completed integration disconnect workflows, by provider.",
	},
	[]string{"provider"},
)

// ReminderNotificationsSentTotal is labelled by channel ("sms", "email") and
// incremented once per reminder successfully delivered by the appointment
// reminder job. A stalled counter combined with upcoming appointments is a
// useful alert signal for delivery failures.
var ReminderNotificationsSentTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "reminder_notifications_sent_total",
		Help: "Total number of appointment reminders successfully sent, by channel.",
	},
	[]string{"channel"},
)

// DBOpenConnections tracks the number of open connections currently held by
// the sql.DB pool. It is sampled every 30 seconds by StartDBStatsCollector
// rather than per-request to avoid the overhead of sql.DB.Stats().
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector launches a background goroutine that samples sql.DB
// connection pool statistics every 30 seconds and updates the
// DBOpenConnections gauge. The goroutine exits cleanly when the database
// becomes unreachable (db.Ping fails), which happens automatically when the
// application shuts down and defers db.Close().
//
// Call this once, immediately after db.Connect() succeeds in main.go.
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}
