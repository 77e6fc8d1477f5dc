package interceptors

import (
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/stats"
)

const healthServicePrefix = "/grpc.health.v1.Health/"

// TracingOptions customises server-side tracing. Zero values fall back to the
// global provider and propagator.
type TracingOptions struct {
	TracerProvider trace.TracerProvider
	Propagators    propagation.TextMapPropagator
	// TraceHealth keeps spans for health probes, which are dropped by default.
	TraceHealth bool
}

// TracingServerOption installs otelgrpc as a stats handler. Spans start before
// any interceptor runs, so rejected calls are traced too.
func TracingServerOption(opts TracingOptions) grpc.ServerOption {
	var options []otelgrpc.Option
	if opts.TracerProvider != nil {
		options = append(options, otelgrpc.WithTracerProvider(opts.TracerProvider))
	}
	if opts.Propagators != nil {
		options = append(options, otelgrpc.WithPropagators(opts.Propagators))
	}
	if !opts.TraceHealth {
		options = append(options, otelgrpc.WithFilter(notHealthProbe))
	}
	return grpc.StatsHandler(otelgrpc.NewServerHandler(options...))
}

func notHealthProbe(info *stats.RPCTagInfo) bool {
	return !strings.HasPrefix(info.FullMethodName, healthServicePrefix)
}
