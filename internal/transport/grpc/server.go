package transportgrpc

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcinterceptors "github.com/arklim/social-login-auth/internal/transport/grpc/interceptors"
)

const defaultReadinessInterval = 10 * time.Second

// ReadinessProbe reports whether one dependency can serve traffic.
type ReadinessProbe func(ctx context.Context) error

// ServerDependencies encapsulates services required by the gRPC server layer.
type ServerDependencies struct {
	Sessions       grpcinterceptors.Authenticator
	Logger         *zap.Logger
	Metrics        *grpcinterceptors.GRPCMetrics
	TracerProvider trace.TracerProvider
	PublicMethods  []string
}

// Server is the gRPC endpoint: token introspection, health and reflection.
type Server struct {
	*grpc.Server
	health *health.Server
	logger *zap.Logger
}

// NewServer wires gRPC services with authentication enforced through interceptors.
func NewServer(deps ServerDependencies) (*Server, error) {
	if deps.Sessions == nil {
		return nil, errors.New("session authenticator is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	public := append([]string{
		healthpb.Health_Check_FullMethodName,
		"/grpc.health.v1.Health/List",
	}, deps.PublicMethods...)

	server := grpc.NewServer(
		grpcinterceptors.TracingServerOption(grpcinterceptors.TracingOptions{TracerProvider: deps.TracerProvider}),
		grpc.ChainUnaryInterceptor(
			deps.Metrics.UnaryServerInterceptor(),
			grpcinterceptors.UnaryAuth(deps.Sessions, logger, public...),
		),
	)

	registerSessionService(server, SessionServer{})

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus(SessionServiceName, healthpb.HealthCheckResponse_SERVING)

	reflection.Register(server)

	return &Server{Server: server, health: healthServer, logger: logger}, nil
}

// SetServing flips the overall and per-service health status.
func (s *Server) SetServing(serving bool) {
	state := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		state = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", state)
	s.health.SetServingStatus(SessionServiceName, state)
}

// MonitorReadiness mirrors the HTTP readiness probes onto the health service until ctx ends.
func (s *Server) MonitorReadiness(ctx context.Context, interval time.Duration, probes ...ReadinessProbe) {
	if interval <= 0 {
		interval = defaultReadinessInterval
	}

	check := func() {
		probeCtx, cancel := context.WithTimeout(ctx, interval/2)
		defer cancel()

		serving := true
		for _, probe := range probes {
			if err := probe(probeCtx); err != nil {
				s.logger.Warn("readiness probe failed", zap.Error(err))
				serving = false
				break
			}
		}
		s.SetServing(serving)
	}

	check()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}

// Shutdown marks the server as not serving and drains in-flight calls.
func (s *Server) Shutdown() {
	s.health.Shutdown()
	s.GracefulStop()
}
