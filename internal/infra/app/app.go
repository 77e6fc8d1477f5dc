package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/arklim/social-login-auth/internal/core/port"
	"github.com/arklim/social-login-auth/internal/infra/config"
	"github.com/arklim/social-login-auth/internal/infra/database"
	kafkainfra "github.com/arklim/social-login-auth/internal/infra/kafka"
	"github.com/arklim/social-login-auth/internal/infra/logger"
	"github.com/arklim/social-login-auth/internal/infra/oauth"
	redisinfra "github.com/arklim/social-login-auth/internal/infra/redis"
	"github.com/arklim/social-login-auth/internal/infra/security"
	"github.com/arklim/social-login-auth/internal/infra/telemetry"
	postgresrepo "github.com/arklim/social-login-auth/internal/repository/postgres"
	redisrepo "github.com/arklim/social-login-auth/internal/repository/redis"
	transportgrpc "github.com/arklim/social-login-auth/internal/transport/grpc"
	grpcinterceptors "github.com/arklim/social-login-auth/internal/transport/grpc/interceptors"
	"github.com/arklim/social-login-auth/internal/transport/http/middleware"
	"github.com/arklim/social-login-auth/internal/transport/http/routes"
	"github.com/arklim/social-login-auth/internal/usecase"
)

const (
	shutdownTimeout        = 10 * time.Second
	grpcReadinessInterval  = 10 * time.Second
	defaultRateLimitWindow = time.Minute
)

// Application owns every long-lived dependency of the service.
type Application struct {
	cfg        *config.AppConfig
	engine     *gin.Engine
	logger     *zap.Logger
	pool       *pgxpool.Pool
	redis      *redisinfra.Client
	producer   *kafkainfra.Producer
	tracer     *telemetry.TracerProvider
	grpcServer *transportgrpc.Server
	grpcAddr   string
}

// New builds the dependency graph. Resources opened before a failure are released.
func New(ctx context.Context, cfg *config.AppConfig) (_ *Application, err error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{
		cfg:      cfg,
		logger:   log,
		grpcAddr: fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port),
	}
	defer func() {
		if err != nil {
			a.release(context.Background())
		}
	}()

	a.tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := telemetry.NewMetrics(telemetry.MetricsOptions{Registerer: registry})
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}
	grpcMetrics, err := grpcinterceptors.NewGRPCMetrics(grpcinterceptors.GRPCMetricsOptions{Registerer: registry})
	if err != nil {
		return nil, fmt.Errorf("init grpc metrics: %w", err)
	}

	a.pool, err = database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if cfg.Postgres.MigrateOnStart {
		if err = database.Migrate(ctx, a.pool, database.SchemaName(cfg.Postgres), log); err != nil {
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
	}

	a.redis, err = redisinfra.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}

	registry.MustRegister(redisinfra.NewPoolCollector("", a.redis))

	repos := postgresrepo.NewRepositories(a.pool)
	revocations := redisrepo.NewRevocationRepository(a.redis.Client(), cfg.Redis.RevocationPrefix)
	refreshes := redisrepo.NewRefreshRepository(a.redis.Client(), cfg.Redis.RefreshPrefix)

	window := cfg.RateLimit.WindowDuration
	if window <= 0 {
		window = defaultRateLimitWindow
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(a.redis.Client(), cfg.Redis.RateLimitPrefix, window*2)
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log).WithMetrics(metrics)

	events := a.eventPublisher()

	signer, err := security.NewSigner(security.SignerConfig{
		Secret:     cfg.JWT.Secret,
		Issuer:     cfg.JWT.Issuer,
		AccessTTL:  cfg.JWT.AccessTokenTTL,
		RefreshTTL: cfg.JWT.RefreshTokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("init token signer: %w", err)
	}

	kakao := oauth.NewKakaoProvider(cfg.OAuth.Kakao, cfg.OAuth.HTTPTimeout)
	identities := usecase.NewIdentityResolver(repos.Users, log, kakao).WithMetrics(metrics)
	log.Info("identity providers registered", zap.Strings("providers", identities.Providers()))
	sessions := usecase.NewSessionService(signer, identities, revocations, refreshes, events, cfg.OAuth.AllowedRedirectURIs, log).
		WithMetrics(metrics)
	platforms := usecase.NewPlatformService(repos.Platforms, log)

	a.grpcServer, err = transportgrpc.NewServer(transportgrpc.ServerDependencies{
		Sessions:       sessions,
		Logger:         log,
		Metrics:        grpcMetrics,
		TracerProvider: a.tracer.TracerProvider(),
	})
	if err != nil {
		return nil, fmt.Errorf("init grpc server: %w", err)
	}

	a.engine = routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		HTTPMetrics: httpMetrics,
		Gatherer:    registry,
		Sessions:    sessions,
		Platforms:   platforms,
		Database:    a.pool,
		Cache:       a.redis,
	})

	return a, nil
}

func (a *Application) eventPublisher() port.EventPublisher {
	if !a.cfg.Kafka.Enabled || len(a.cfg.Kafka.Brokers) == 0 {
		a.logger.Info("kafka disabled, using stub publisher")
		return kafkainfra.NewStubPublisher(a.logger)
	}

	producer, err := kafkainfra.NewProducer(a.cfg.Kafka, a.logger)
	if err != nil {
		a.logger.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
		return kafkainfra.NewStubPublisher(a.logger)
	}
	a.producer = producer
	return kafkainfra.NewEventPublisher(producer, a.cfg.App, a.logger)
}

// Run serves HTTP and gRPC until ctx is cancelled or either server fails.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.release(context.Background())

	lis, err := net.Listen("tcp", a.grpcAddr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	monitorCtx, stopMonitor := context.WithCancel(ctx)
	defer stopMonitor()
	go a.grpcServer.MonitorReadiness(monitorCtx, grpcReadinessInterval, a.pool.Ping, a.redis.HealthCheck)

	errCh := make(chan error, 2)
	go func() {
		a.logger.Info("starting gRPC server", zap.String("address", a.grpcAddr))
		if err := a.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- fmt.Errorf("run grpc server: %w", err)
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		a.logger.Info("starting auth API",
			zap.String("env", a.cfg.App.Env),
			zap.String("address", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("run http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
		a.logger.Error("server stopped unexpectedly", zap.Error(runErr))
	}

	stopMonitor()
	a.grpcServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("shutdown http server: %w", err))
	}
	return runErr
}

// release closes whatever New managed to open, in reverse order.
func (a *Application) release(ctx context.Context) {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
		a.producer = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
		a.redis = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("shutdown tracer provider", zap.Error(err))
		}
		a.tracer = nil
	}
}
