package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	cvRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cv_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	cvRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cv_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	ledgerAppendsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cv_ledger_appends_total",
		Help: "Total transactions appended across all domains.",
	})

	ledgerBroadcastsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cv_ledger_broadcasts_total",
		Help: "Total broadcast replications by outcome.",
	}, []string{"status"})

	ledgerVerifyFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cv_ledger_verify_failures_total",
		Help: "Total chain verifications that found corruption.",
	})
)

// PrometheusMiddleware returns a Gin middleware that records per-request
// metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		cvRequestsTotal.WithLabelValues(method, path, status).Inc()
		cvRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns the Prometheus scrape endpoint as a Gin handler.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
