package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	red "github.com/redis/go-redis/v9"
	"go.uber.org/zap/zaptest"

	"github.com/arklim/social-login-auth/internal/core/port"
	"github.com/arklim/social-login-auth/internal/infra/telemetry"
	redisrepo "github.com/arklim/social-login-auth/internal/repository/redis"
)

type fakeRateLimitStore struct {
	usage port.WindowUsage
	err   error

	hitKey   string
	hitLimit int
	hits     int
}

func (f *fakeRateLimitStore) Hit(ctx context.Context, identifier string, limit int, window time.Duration, at time.Time) (port.WindowUsage, error) {
	f.hitKey = identifier
	f.hitLimit = limit
	f.hits++
	return f.usage, f.err
}

func newRateLimitedRouter(limiter *RateLimiter, limit int) *gin.Engine {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.POST("/api/auth/:provider", limiter.RateLimit(RateLimitRule{
		Name:   "auth_login_ip",
		Limit:  limit,
		Window: time.Minute,
		Identifier: func(c *gin.Context) (string, bool) {
			return "192.0.2.1", true
		},
	}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func serveLogin(router *gin.Engine) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/auth/kakao", nil))
	return rr
}

func TestRateLimiterAllowsWhenBelowLimit(t *testing.T) {
	now := time.Date(2025, 10, 12, 10, 0, 0, 0, time.UTC)
	oldest := now.Add(-30 * time.Second)

	store := &fakeRateLimitStore{usage: port.WindowUsage{Admitted: true, Count: 3, Oldest: oldest}}
	limiter := NewRateLimiter(store, zaptest.NewLogger(t)).WithClock(func() time.Time { return now })

	rr := serveLogin(newRateLimitedRouter(limiter, 5))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if store.hits != 1 || store.hitLimit != 5 {
		t.Fatalf("expected one hit against limit 5, got %d hits with limit %d", store.hits, store.hitLimit)
	}
	if store.hitKey != "auth_login_ip:192.0.2.1" {
		t.Fatalf("unexpected storage key %q", store.hitKey)
	}
	if got := rr.Header().Get("X-RateLimit-Limit"); got != "5" {
		t.Fatalf("expected limit header 5, got %q", got)
	}
	if got := rr.Header().Get("X-RateLimit-Remaining"); got != "2" {
		t.Fatalf("expected remaining header 2, got %q", got)
	}
	expectedReset := oldest.Add(time.Minute).Unix()
	if got := rr.Header().Get("X-RateLimit-Reset"); got != strconv.FormatInt(expectedReset, 10) {
		t.Fatalf("expected reset header %d, got %q", expectedReset, got)
	}
	if got := rr.Header().Get("Retry-After"); got != "" {
		t.Fatalf("expected no retry-after header, got %q", got)
	}
}

func TestRateLimiterBlocksWhenLimitExceeded(t *testing.T) {
	now := time.Date(2025, 10, 12, 10, 0, 0, 0, time.UTC)

	metrics, err := telemetry.NewMetrics(telemetry.MetricsOptions{Registerer: prometheus.NewRegistry()})
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}

	store := &fakeRateLimitStore{usage: port.WindowUsage{Count: 5, Oldest: now.Add(-30 * time.Second)}}
	limiter := NewRateLimiter(store, zaptest.NewLogger(t)).
		WithClock(func() time.Time { return now }).
		WithMetrics(metrics)

	rr := serveLogin(newRateLimitedRouter(limiter, 5))

	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if got := rr.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Fatalf("expected remaining header 0, got %q", got)
	}
	if got := rr.Header().Get("Retry-After"); got != "30" {
		t.Fatalf("expected retry-after 30, got %q", got)
	}

	var problem ProblemDetails
	if err := json.Unmarshal(rr.Body.Bytes(), &problem); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if problem.Status != http.StatusTooManyRequests || problem.RetryAfter != 30 {
		t.Fatalf("unexpected problem %+v", problem)
	}
	if problem.Instance != "/api/auth/:provider" {
		t.Fatalf("expected route template as instance, got %q", problem.Instance)
	}

	if got := testutil.ToFloat64(metrics.RateLimitRejections().WithLabelValues("auth_login_ip")); got != 1 {
		t.Fatalf("expected one rejection recorded, got %f", got)
	}
}

func TestRateLimiterFailsOpenOnStoreError(t *testing.T) {
	store := &fakeRateLimitStore{err: errors.New("redis down")}
	limiter := NewRateLimiter(store, zaptest.NewLogger(t))

	rr := serveLogin(newRateLimitedRouter(limiter, 5))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 when failing open, got %d", rr.Code)
	}
	if got := rr.Header().Get("X-RateLimit-Limit"); got != "" {
		t.Fatalf("expected no rate limit headers when the store fails, got %q", got)
	}
}

func TestRateLimiterSlidingWindowWithRedis(t *testing.T) {
	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := red.NewClient(&red.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	store := redisrepo.NewRateLimitRepository(client, "auth:rate_limit", 2*time.Minute)

	now := time.Date(2025, 10, 12, 10, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(store, zaptest.NewLogger(t)).WithClock(func() time.Time { return now })
	router := newRateLimitedRouter(limiter, 2)

	for i := 0; i < 2; i++ {
		if rr := serveLogin(router); rr.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200, got %d", i+1, rr.Code)
		}
		now = now.Add(10 * time.Second)
	}

	if rr := serveLogin(router); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected third attempt to be limited, got %d", rr.Code)
	}

	now = now.Add(time.Minute)
	if rr := serveLogin(router); rr.Code != http.StatusOK {
		t.Fatalf("expected attempt after the window to pass, got %d", rr.Code)
	}
}
