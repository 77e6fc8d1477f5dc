package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels recorded for session operations.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// MetricsOptions configures the session metrics collectors.
type MetricsOptions struct {
	Registerer prometheus.Registerer
	Namespace  string
}

// Metrics holds domain collectors for the session core and its identity providers.
type Metrics struct {
	sessionOps       *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	rateLimited      *prometheus.CounterVec
}

// NewMetrics registers the session collectors, reusing any already registered under the same name.
func NewMetrics(opts MetricsOptions) (*Metrics, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "auth"
	}

	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	sessionOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_operations_total",
		Help:      "Session operations partitioned by operation and outcome.",
	}, []string{"operation", "outcome"})
	if err := RegisterOrReuse(reg, &sessionOps); err != nil {
		return nil, err
	}

	providerDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "provider_request_duration_seconds",
		Help:      "Latency of calls to external identity providers.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"provider", "outcome"})
	if err := RegisterOrReuse(reg, &providerDuration); err != nil {
		return nil, err
	}

	rateLimited := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limit_rejections_total",
		Help:      "Requests rejected by a rate limit rule.",
	}, []string{"rule"})
	if err := RegisterOrReuse(reg, &rateLimited); err != nil {
		return nil, err
	}

	return &Metrics{
		sessionOps:       sessionOps,
		providerDuration: providerDuration,
		rateLimited:      rateLimited,
	}, nil
}

// RegisterOrReuse registers collector, swapping in the existing instance when one with the
// same descriptor is already registered.
func RegisterOrReuse[T prometheus.Collector](reg prometheus.Registerer, collector *T) error {
	if err := reg.Register(*collector); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return fmt.Errorf("register collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(T)
		if !ok {
			return fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
		}
		*collector = existing
	}
	return nil
}

// SessionOperation counts one login, logout, refresh or authenticate call.
func (m *Metrics) SessionOperation(operation string, err error) {
	if m == nil {
		return
	}
	m.sessionOps.WithLabelValues(operation, outcome(err)).Inc()
}

// ProviderRequest observes the latency of a provider round trip.
func (m *Metrics) ProviderRequest(provider string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.providerDuration.WithLabelValues(provider, outcome(err)).Observe(seconds)
}

// RateLimited counts one request rejected by rule.
func (m *Metrics) RateLimited(rule string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(rule).Inc()
}

// RateLimitRejections exposes the rejection counter for scraping in tests.
func (m *Metrics) RateLimitRejections() *prometheus.CounterVec {
	return m.rateLimited
}

// SessionOperations exposes the counter for scraping in tests.
func (m *Metrics) SessionOperations() *prometheus.CounterVec {
	return m.sessionOps
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
