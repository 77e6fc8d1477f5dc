package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/arklim/social-login-auth/internal/infra/telemetry"
)

const unmatchedRoute = "unmatched"

// Login latency is dominated by the provider round trip, so buckets reach 5s.
var defaultHTTPBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// HTTPMetricsOptions configures the HTTP metrics middleware.
type HTTPMetricsOptions struct {
	Registerer prometheus.Registerer
	Namespace  string
	Buckets    []float64
}

// HTTPMetrics holds the request collectors. Labels are the gin route template,
// the method and the status class (2xx, 4xx, ...).
type HTTPMetrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	InFlight prometheus.Gauge
}

// NewHTTPMetrics registers the collectors under <namespace>_http_*, reusing existing ones.
func NewHTTPMetrics(opts HTTPMetricsOptions) (*HTTPMetrics, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "auth"
	}
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	buckets := opts.Buckets
	if len(buckets) == 0 {
		buckets = defaultHTTPBuckets
	}

	labels := []string{"method", "route", "status_class"}
	m := &HTTPMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route template, method and status class.",
		}, labels),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route template, method and status class.",
			Buckets:   buckets,
		}, labels),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "HTTP requests currently being served.",
		}),
	}

	if err := telemetry.RegisterOrReuse(reg, &m.Requests); err != nil {
		return nil, err
	}
	if err := telemetry.RegisterOrReuse(reg, &m.Duration); err != nil {
		return nil, err
	}
	if err := telemetry.RegisterOrReuse(reg, &m.InFlight); err != nil {
		return nil, err
	}
	return m, nil
}

// Handler records every request. Paths with no matching route share the
// "unmatched" label, which keeps scanner traffic from creating new series.
func (m *HTTPMetrics) Handler() gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		m.InFlight.Inc()
		start := time.Now()

		c.Next()

		m.InFlight.Dec()
		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		values := []string{c.Request.Method, route, statusClass(c.Writer.Status())}
		m.Requests.WithLabelValues(values...).Inc()
		m.Duration.WithLabelValues(values...).Observe(time.Since(start).Seconds())
	}
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}
