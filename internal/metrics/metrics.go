// Package metrics provides Prometheus instrumentation for the Amorce marketplace.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "amorce",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "amorce",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// DirectoryRegistrationsTotal counts directory registrations by result
	// ("created" for new agents, "updated" for re-registrations).
	DirectoryRegistrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "amorce",
			Name:      "directory_registrations_total",
			Help:      "Total directory registrations by result.",
		},
		[]string{"result"},
	)

	// SessionsTotal counts negotiation sessions by terminal outcome.
	SessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "amorce",
			Name:      "negotiation_sessions_total",
			Help:      "Total negotiation sessions by terminal outcome.",
		},
		[]string{"outcome"},
	)

	// OffersTotal counts offers processed by verdict.
	OffersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "amorce",
			Name:      "offers_total",
			Help:      "Total offers evaluated by verdict.",
		},
		[]string{"verdict"},
	)

	// ApprovalsTotal counts human approval decisions by action and result.
	ApprovalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "amorce",
			Name:      "approvals_total",
			Help:      "Total human approval decisions by action and result.",
		},
		[]string{"action", "result"},
	)

	// ReceiptsIssuedTotal counts double-signed receipts issued.
	ReceiptsIssuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "amorce",
		Name:      "receipts_issued_total",
		Help:      "Total double-signed receipts issued.",
	})

	// SignatureFailuresTotal counts rejected signatures by surface.
	SignatureFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "amorce",
			Name:      "signature_failures_total",
			Help:      "Total signature verification failures by surface.",
		},
		[]string{"surface"},
	)

	// ActiveSessions tracks currently open negotiation sessions.
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "amorce",
			Name:      "active_negotiation_sessions",
			Help:      "Number of currently open negotiation sessions.",
		},
	)

	// PendingApprovals tracks approval requests waiting on a human.
	PendingApprovals = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "amorce",
			Name:      "pending_approvals",
			Help:      "Number of approval requests waiting on a human decision.",
		},
	)

	// ActiveWebSocketClients tracks connected WebSocket clients.
	ActiveWebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "amorce",
			Name:      "active_websocket_clients",
			Help:      "Number of currently connected WebSocket clients.",
		},
	)

	// NegotiationDuration observes time from session open to terminal state.
	NegotiationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "amorce",
		Name:      "negotiation_duration_seconds",
		Help:      "Time from session open to terminal state in seconds.",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "amorce", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "amorce", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "amorce", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "amorce", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		DirectoryRegistrationsTotal,
		SessionsTotal,
		OffersTotal,
		ApprovalsTotal,
		ReceiptsIssuedTotal,
		SignatureFailuresTotal,
		ActiveSessions,
		PendingApprovals,
		ActiveWebSocketClients,
		NegotiationDuration,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and runtime goroutine
// count into Prometheus gauges. Call in a goroutine; exits when ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBIdleConnections.Set(float64(stats.Idle))
			DBInUseConnections.Set(float64(stats.InUse))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
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
