package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appLogger "github.com/arklim/social-login-auth/internal/infra/logger"
)

// Logger writes one access log line per request. The level follows the outcome:
// handler errors and 5xx log at error, other 4xx at warn, the rest at info.
func Logger(log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		corr := GetCorrelation(c)
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("trace_id", corr.TraceID),
			zap.String("request_id", corr.RequestID),
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", appLogger.MaskIP(corr.ClientIP)),
		}
		if corr.UserID != "" {
			fields = append(fields, zap.String("user_id", corr.UserID))
		}

		switch {
		case len(c.Errors) > 0:
			log.Error("request failed", append(fields, zap.Strings("errors", c.Errors.Errors()))...)
		case status >= 500:
			log.Error("request failed", fields...)
		case status >= 400:
			log.Warn("request rejected", fields...)
		default:
			log.Info("request completed", fields...)
		}
	}
}
