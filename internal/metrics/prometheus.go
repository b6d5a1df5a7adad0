package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rolegrant_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rolegrant_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rolegrant_notifications_total",
			Help: "Approval notifications by delivery result",
		},
		[]string{"result"},
	)

	decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rolegrant_decisions_total",
			Help: "Approve/reject decisions by outcome",
		},
		[]string{"action", "outcome"},
	)

	cleanupOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rolegrant_cleanup_operations_total",
			Help: "Cleanup cascade calls by step and outcome",
		},
		[]string{"step", "outcome"},
	)

	cleanupRolesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rolegrant_cleanup_roles_total",
			Help: "Roles processed by the cleanup cascade",
		},
		[]string{"result"},
	)
)

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, route string, statusCode int, durationSeconds float64) {
	httpRequestsTotal.WithLabelValues(method, route, statusClass(statusCode)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(durationSeconds)
}

func RecordNotification(delivered bool) {
	result := "delivered"
	if !delivered {
		result = "failed"
	}
	notificationsTotal.WithLabelValues(result).Inc()
}

func RecordDecision(action, outcome string) {
	decisionsTotal.WithLabelValues(action, outcome).Inc()
}

func RecordCleanupOp(step, outcome string) {
	cleanupOpsTotal.WithLabelValues(step, outcome).Inc()
}

func RecordCleanupRole(failed bool) {
	result := "clean"
	if failed {
		result = "partial_failure"
	}
	cleanupRolesTotal.WithLabelValues(result).Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return "unknown"
	}
}
