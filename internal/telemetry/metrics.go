// Package telemetry provides application-level observability for the feedback service.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// served by the side-channel HTTP server started by main.go:
//
//	GET http://<host>:<FBS_TELEMETRY_METRICS_PORT>/metrics
//
// Default port: 9090. The endpoint is not served by the Gin router.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - Moderation counters: status transitions and deletions
//   - Audit write outcomes
//   - Notification delivery outcomes
//   - Login attempt outcomes
//   - Background worker queue depth
//   - Database connection pool gauge (polled every 30 s)
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (route template such as /api/feedback/:id) rather than
// the raw request URL so feedback IDs never become label values.
package telemetry

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics, labelled by method, route template, and status code.
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

// Moderation metrics.
//
// FeedbackStatusTransitionsTotal counts committed status changes by target status.
// FeedbackDeletionsTotal counts committed deletions.
//
// Example PromQL queries:
//   - Approvals per hour:  increase(feedback_status_transitions_total{status="approved"}[1h])
var (
	FeedbackStatusTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedback_status_transitions_total",
			Help: "Total number of committed feedback status changes, by target status.",
		},
		[]string{"status"},
	)

	FeedbackDeletionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feedback_deletions_total",
			Help: "Total number of committed feedback deletions.",
		},
	)

	FeedbackSubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedback_submissions_total",
			Help: "Total number of accepted public feedback submissions, by category.",
		},
		[]string{"category"},
	)
)

// AuditWritesTotal counts audit appends by result ("success" or "failure"). A moderation
// action whose audit write failed still succeeds, so alert on the failure series:
//
//	increase(audit_writes_total{result="failure"}[15m]) > 0
var AuditWritesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "audit_writes_total",
		Help: "Total number of audit record writes, by result.",
	},
	[]string{"result"},
)

// NotificationsSentTotal counts notification attempts by kind (new_feedback, approved,
// rejected) and result (success, failure, dropped).
var NotificationsSentTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Total number of notification attempts, by kind and result.",
	},
	[]string{"kind", "result"},
)

// AuthLoginAttemptsTotal counts login attempts by result (success, invalid_credentials,
// validation_error, error).
var AuthLoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_login_attempts_total",
		Help: "Total number of administrator login attempts, by result.",
	},
	[]string{"result"},
)

// WorkerPoolQueueDepth is the number of background tasks waiting for a worker.
var WorkerPoolQueueDepth = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "worker_pool_queue_depth",
		Help: "Current number of queued background tasks.",
	},
)

// ExportArchivesTotal counts export archive uploads by backend and result.
var ExportArchivesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "export_archives_total",
		Help: "Total number of CSV export archive uploads, by storage backend and result.",
	},
	[]string{"backend", "result"},
)

// DBOpenConnections is a Gauge that tracks the number of open connections currently
// held by the sql.DB connection pool. It is sampled every 30 seconds by
// StartDBStatsCollector rather than per-request to avoid the overhead of sql.DB.Stats().
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector samples pool statistics every interval until ctx is cancelled
// or the database becomes unreachable.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := db.PingContext(ctx); err != nil {
					slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
					return
				}
				DBOpenConnections.Set(float64(db.Stats().OpenConnections))
			}
		}
	}()
}
