package interceptors

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/arklim/social-login-auth/internal/infra/telemetry"
)

const unknownLabel = "unknown"

// Introspection is a signature check plus one Redis GET; buckets stop at 1s.
var defaultGRPCBuckets = []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// GRPCMetricsOptions controls construction of gRPC metrics collectors.
type GRPCMetricsOptions struct {
	Registerer prometheus.Registerer
	Namespace  string
	Buckets    []float64
}

// GRPCMetrics counts unary calls by status code and times them per method.
type GRPCMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// NewGRPCMetrics registers the collectors under <namespace>_grpc_*, reusing existing ones.
func NewGRPCMetrics(opts GRPCMetricsOptions) (*GRPCMetrics, error) {
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
		buckets = defaultGRPCBuckets
	}

	m := &GRPCMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grpc",
			Name:      "requests_total",
			Help:      "Unary gRPC calls by service, method and status code.",
		}, []string{"service", "method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "grpc",
			Name:      "request_duration_seconds",
			Help:      "Unary gRPC call latency by service and method.",
			Buckets:   buckets,
		}, []string{"service", "method"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "grpc",
			Name:      "in_flight_requests",
			Help:      "Unary gRPC calls currently being served.",
		}),
	}

	if err := telemetry.RegisterOrReuse(reg, &m.requests); err != nil {
		return nil, err
	}
	if err := telemetry.RegisterOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	if err := telemetry.RegisterOrReuse(reg, &m.inFlight); err != nil {
		return nil, err
	}
	return m, nil
}

// UnaryServerInterceptor records every call, including ones the auth interceptor rejects.
// A nil receiver yields a pass-through interceptor.
func (m *GRPCMetrics) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if m == nil {
			return handler(ctx, req)
		}

		m.inFlight.Inc()
		start := time.Now()
		resp, err := handler(ctx, req)
		m.inFlight.Dec()

		service, method := splitFullMethod(info.FullMethod)
		m.requests.WithLabelValues(service, method, status.Code(err).String()).Inc()
		m.duration.WithLabelValues(service, method).Observe(time.Since(start).Seconds())

		return resp, err
	}
}

// splitFullMethod turns "/pkg.Service/Method" into its parts.
func splitFullMethod(full string) (string, string) {
	service, method, ok := strings.Cut(strings.TrimPrefix(full, "/"), "/")
	if !ok || service == "" || method == "" || strings.Contains(method, "/") {
		return unknownLabel, unknownLabel
	}
	return service, method
}
