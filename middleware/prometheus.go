package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests by method, route and status.",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	// UpstreamRequestsTotal counts identity service calls by operation and
	// outcome (success, upstream_error, unreachable, timeout).
	UpstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_upstream_requests_total",
		Help: "Identity service calls by operation and outcome.",
	}, []string{"operation", "outcome"})

	UpstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_upstream_request_duration_seconds",
		Help:    "Identity service call latency by operation.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	SessionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_sessions_created_total",
		Help: "Sessions created after a successful login.",
	})

	SessionsDestroyedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_sessions_destroyed_total",
		Help: "Sessions destroyed by logout or re-login.",
	})

	// VerificationsTotal counts verification callbacks by result
	// (success, failure).
	VerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_verifications_total",
		Help: "Verification callbacks by result.",
	}, []string{"result"})

	OriginRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_origin_rejections_total",
		Help: "Requests rejected because their Origin is not allowed.",
	})
)

// PrometheusMiddleware records request count and latency per matched route.
// Unmatched routes share a single label to keep cardinality bounded.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method

		httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
