package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes application-level instruments.
type Metrics struct {
	provisionTotal *prometheus.CounterVec
	branchFailures *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// New registers the application instruments on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		provisionTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tindahan_branch_provision_total",
			Help: "Branch database provisioning outcomes.",
		}, []string{"result"}),
		branchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tindahan_branch_query_failures_total",
			Help: "Per-branch failures skipped during cross-branch aggregation.",
		}, []string{"operation"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tindahan_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tindahan_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// RecordProvision counts a provisioning outcome (created, skipped, failed).
func (m *Metrics) RecordProvision(result string) {
	if m == nil {
		return
	}
	m.provisionTotal.WithLabelValues(result).Inc()
}

// RecordBranchFailure counts a branch skipped during aggregation.
func (m *Metrics) RecordBranchFailure(operation string) {
	if m == nil {
		return
	}
	m.branchFailures.WithLabelValues(operation).Inc()
}

// GinMiddleware instruments inbound HTTP requests.
func GinMiddleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
