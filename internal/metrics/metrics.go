// Package metrics provides Prometheus instrumentation for escrowd.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SubmissionsTotal counts finished submissions by type and ledger result.
	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "escrowd",
			Name:      "submissions_total",
			Help:      "Transactions submitted, by type and final result code.",
		},
		[]string{"tx_type", "result"},
	)

	// AmbiguousSubmissionsTotal counts submissions whose outcome is unknown.
	AmbiguousSubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "escrowd",
			Name:      "ambiguous_submissions_total",
			Help:      "Submissions that timed out after reaching the network.",
		},
		[]string{"tx_type"},
	)

	// SubmitDuration observes submit-to-validation latency.
	SubmitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "escrowd",
			Name:      "submit_duration_seconds",
			Help:      "Time from submit to a final answer in seconds.",
			Buckets:   []float64{1, 2, 4, 8, 15, 30, 60, 120},
		},
		[]string{"tx_type"},
	)

	// GatewayRequestsTotal counts ledger RPC requests by command and status.
	GatewayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "escrowd",
			Name:      "gateway_requests_total",
			Help:      "Ledger gateway requests by command and status.",
		},
		[]string{"command", "status"},
	)

	// HTTPRequestsTotal counts HTTP requests by method, path and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "escrowd",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// JournalPending tracks submissions awaiting reconciliation.
	JournalPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "escrowd",
			Name:      "journal_pending",
			Help:      "Journal entries whose outcome is not yet known.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		SubmissionsTotal,
		AmbiguousSubmissionsTotal,
		SubmitDuration,
		GatewayRequestsTotal,
		HTTPRequestsTotal,
		JournalPending,
	)
}

// Middleware records HTTP request counts by route pattern.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler serves the Prometheus exposition format.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
