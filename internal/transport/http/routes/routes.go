package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/arklim/social-login-auth/internal/infra/config"
	"github.com/arklim/social-login-auth/internal/transport/http/handlers"
	"github.com/arklim/social-login-auth/internal/transport/http/middleware"
)

const (
	defaultServiceName     = "social-login-auth"
	defaultRateLimitWindow = time.Minute
)

// operationalPaths are scraped and probed constantly; they stay out of traces.
var operationalPaths = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

// SessionService is the session surface the HTTP layer depends on.
type SessionService interface {
	handlers.SessionManager
	middleware.Authenticator
}

// DatabaseChecker is satisfied by *pgxpool.Pool.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker is satisfied by the redis client wrapper.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies is everything Register wires. Nil Sessions or Platforms leave the
// matching API routes unregistered.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	HTTPMetrics *middleware.HTTPMetrics
	Gatherer    prometheus.Gatherer
	Sessions    SessionService
	Platforms   handlers.PlatformManager
	Database    DatabaseChecker
	Cache       CacheChecker
}

// Register builds the engine: global middleware, operational endpoints and /api.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	handlers.UseRequestValidator()

	r := gin.New()
	r.Use(
		gin.Recovery(),
		otelgin.Middleware(serviceName(deps.Config), otelgin.WithFilter(func(req *http.Request) bool {
			return !operationalPaths[req.URL.Path]
		})),
		middleware.EnrichContext(),
		middleware.RequestID(),
		middleware.Logger(deps.Logger),
		deps.HTTPMetrics.Handler(),
	)
	if origins := deps.Config.App.CORSOrigins; len(origins) > 0 {
		r.Use(middleware.CORS(origins))
	}
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handlers.NewErrorResponse(c, "route not found"))
	})

	registerOperational(r, deps)
	registerAPI(r.Group("/api"), deps)
	return r
}

func registerOperational(r *gin.Engine, deps Dependencies) {
	var checks []handlers.HealthOption
	if deps.Database != nil {
		checks = append(checks, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		checks = append(checks, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	health := handlers.NewHealthHandler(checks...)
	r.GET("/healthz", health.Status)
	r.GET("/readyz", health.Readiness)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{EnableOpenMetrics: true})))
}

func registerAPI(api *gin.RouterGroup, deps Dependencies) {
	if deps.Sessions == nil {
		return
	}

	limits := deps.Config.RateLimit
	handlers.NewAuthHandler(deps.Sessions).RegisterRoutes(api.Group("/auth"),
		perIPLimit(deps, "auth_login_ip", limits.LoginMaxAttempts),
		perIPLimit(deps, "auth_refresh_ip", limits.RefreshMaxAttempts),
	)

	if deps.Platforms != nil {
		platforms := api.Group("/users/platforms", middleware.RequireAuth(deps.Sessions))
		handlers.NewPlatformHandler(deps.Platforms).RegisterRoutes(platforms)
	}
}

func serviceName(cfg *config.AppConfig) string {
	for _, name := range []string{cfg.Telemetry.ServiceName, cfg.App.Name} {
		if name != "" {
			return name
		}
	}
	return defaultServiceName
}

// perIPLimit returns the middleware chain enforcing limit hits per client IP,
// or nil when limiting is disabled for the route.
func perIPLimit(deps Dependencies, name string, limit int) []gin.HandlerFunc {
	if deps.RateLimiter == nil || limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = defaultRateLimitWindow
	}
	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	})}
}
