package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const corsPreflightMaxAge = 24 * time.Hour

var (
	corsAllowMethods = strings.Join([]string{
		http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
	}, ",")
	corsAllowHeaders = strings.Join([]string{
		"Origin", "Content-Type", "Accept", "Authorization", requestIDHeader, TraceIDHeader,
	}, ",")
	corsExposeHeaders = strings.Join([]string{
		requestIDHeader, TraceIDHeader,
		"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After",
	}, ",")
)

// corsPolicy holds the normalised origin allowlist. A "*" entry admits any origin,
// but only listed origins may send credentials.
type corsPolicy struct {
	listed   map[string]bool
	wildcard bool
}

func newCORSPolicy(origins []string) corsPolicy {
	p := corsPolicy{listed: make(map[string]bool, len(origins))}
	for _, origin := range origins {
		switch origin = strings.TrimRight(strings.TrimSpace(origin), "/"); origin {
		case "":
		case "*":
			p.wildcard = true
		default:
			p.listed[origin] = true
		}
	}
	return p
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, if any.
func (p corsPolicy) allowOrigin(origin string) (value string, credentials, ok bool) {
	switch {
	case p.listed[origin]:
		return origin, true, true
	case p.wildcard:
		return "*", false, true
	default:
		return "", false, false
	}
}

// CORS answers preflights and decorates cross-origin responses. Preflights from
// unknown origins are refused with 403; simple requests pass without CORS headers.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	policy := newCORSPolicy(allowedOrigins)
	maxAge := strconv.Itoa(int(corsPreflightMaxAge.Seconds()))

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}
		preflight := c.Request.Method == http.MethodOptions

		h := c.Writer.Header()
		h.Add("Vary", "Origin")

		allowed, credentials, ok := policy.allowOrigin(origin)
		if !ok {
			if preflight {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			c.Next()
			return
		}

		h.Set("Access-Control-Allow-Origin", allowed)
		if credentials {
			h.Set("Access-Control-Allow-Credentials", "true")
		}
		h.Set("Access-Control-Expose-Headers", corsExposeHeaders)

		if preflight {
			h.Set("Access-Control-Allow-Methods", corsAllowMethods)
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			h.Set("Access-Control-Max-Age", maxAge)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
