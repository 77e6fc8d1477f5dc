package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/social-login-auth/internal/core/port"
	"github.com/arklim/social-login-auth/internal/infra/logger"
	"github.com/arklim/social-login-auth/internal/infra/telemetry"
)

const (
	rateLimitProblemType  = "https://social-login-auth.dev/problems/rate-limited"
	rateLimitProblemTitle = "Rate Limit Exceeded"
)

// IdentifierFunc extracts the identifier used to scope rate limits (e.g., client IP).
type IdentifierFunc func(*gin.Context) (string, bool)

// RateLimitRule configures a sliding-window limit for a particular identifier.
type RateLimitRule struct {
	Name       string
	Limit      int
	Window     time.Duration
	Identifier IdentifierFunc
}

// RateLimiter enforces sliding-window limits backed by a shared store.
// Store failures fail open: the request proceeds and the error is logged.
type RateLimiter struct {
	store   port.RateLimitStore
	logger  *zap.Logger
	metrics *telemetry.Metrics
	now     func() time.Time
}

// verdict is the outcome of one rule for one request.
type verdict struct {
	rule      string
	allowed   bool
	limit     int
	remaining int
	reset     time.Time
	wait      time.Duration
}

// tighterThan orders verdicts by remaining budget, then by earliest reset.
func (v verdict) tighterThan(other *verdict) bool {
	if other == nil || v.remaining != other.remaining {
		return other == nil || v.remaining < other.remaining
	}
	return v.reset.Before(other.reset)
}

// retryAfterSeconds rounds the wait up so clients never retry early.
func (v verdict) retryAfterSeconds() int {
	return max(int(math.Ceil(v.wait.Seconds())), 0)
}

func (v verdict) writeHeaders(h http.Header) {
	h.Set("X-RateLimit-Limit", strconv.Itoa(v.limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(v.remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(v.reset.Unix(), 10))
	if !v.allowed {
		h.Set("Retry-After", strconv.Itoa(v.retryAfterSeconds()))
	}
}

// ProblemDetails represents an RFC 9457 compatible error payload for rate limits.
type ProblemDetails struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Status     int    `json:"status"`
	Detail     string `json:"detail"`
	Instance   string `json:"instance"`
	RetryAfter int    `json:"retry_after"`
	TraceID    string `json:"trace_id,omitempty"`
}

// NewRateLimiter builds a reusable rate limiter middleware helper.
func NewRateLimiter(store port.RateLimitStore, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock allows injection of a custom clock (primarily for testing).
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// WithMetrics counts rejections per rule.
func (rl *RateLimiter) WithMetrics(metrics *telemetry.Metrics) *RateLimiter {
	rl.metrics = metrics
	return rl
}

// ClientIPIdentifier builds an IdentifierFunc using the request's client IP.
func ClientIPIdentifier() IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		ip := c.ClientIP()
		return ip, ip != ""
	}
}

// RateLimit returns a Gin middleware enforcing the provided rules.
// The first rule that is exhausted rejects the request; otherwise headers describe the tightest rule.
func (rl *RateLimiter) RateLimit(rules ...RateLimitRule) gin.HandlerFunc {
	active := make([]RateLimitRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Identifier == nil || rule.Limit <= 0 || rule.Window <= 0 {
			continue
		}
		if rule.Name == "" {
			rule.Name = "default"
		}
		active = append(active, rule)
	}

	return func(c *gin.Context) {
		if len(active) == 0 || rl.store == nil {
			c.Next()
			return
		}

		now := rl.now()
		var tightest *verdict
		for _, rule := range active {
			identifier, ok := rule.Identifier(c)
			if !ok || identifier == "" {
				continue
			}

			v, err := rl.evaluate(c, rule, identifier, now)
			if err != nil {
				logger.FromContext(c.Request.Context(), rl.logger).Warn("rate limit check failed, allowing request",
					zap.String("rule", rule.Name), zap.Error(err))
				continue
			}
			if !v.allowed {
				rl.metrics.RateLimited(rule.Name)
				v.writeHeaders(c.Writer.Header())
				rejectRateLimited(c, v)
				return
			}
			if v.tighterThan(tightest) {
				tightest = &v
			}
		}

		if tightest != nil {
			tightest.writeHeaders(c.Writer.Header())
		}
		c.Next()
	}
}

func (rl *RateLimiter) evaluate(c *gin.Context, rule RateLimitRule, identifier string, now time.Time) (verdict, error) {
	usage, err := rl.store.Hit(c.Request.Context(), rule.Name+":"+identifier, rule.Limit, rule.Window, now)
	if err != nil {
		return verdict{}, err
	}

	// The window frees a slot once its oldest hit ages out.
	reset := now.Add(rule.Window)
	if !usage.Oldest.IsZero() {
		reset = usage.Oldest.Add(rule.Window)
	}
	return verdict{
		rule:      rule.Name,
		allowed:   usage.Admitted,
		limit:     rule.Limit,
		remaining: max(rule.Limit-usage.Count, 0),
		reset:     reset,
		wait:      max(reset.Sub(now), 0),
	}, nil
}

func rejectRateLimited(c *gin.Context, v verdict) {
	seconds := v.retryAfterSeconds()
	instance := c.FullPath()
	if instance == "" {
		instance = c.Request.URL.Path
	}

	c.AbortWithStatusJSON(http.StatusTooManyRequests, ProblemDetails{
		Type:       rateLimitProblemType,
		Title:      rateLimitProblemTitle,
		Status:     http.StatusTooManyRequests,
		Detail:     fmt.Sprintf("Too many requests. Try again in %d seconds.", seconds),
		Instance:   instance,
		RetryAfter: seconds,
		TraceID:    GetTraceID(c),
	})
}
