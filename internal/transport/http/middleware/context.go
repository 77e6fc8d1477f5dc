package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// Gin context keys shared with the handlers package.
const (
	TraceIDHeader = "X-Trace-ID"
	TraceIDKey    = "trace_id"
	UserIDKey     = "user_id"
	ClaimsKey     = "claims"

	correlationKey = "correlation"
)

// Correlation collects the identifiers that tie an access log line, an error body
// and a trace together. Later middleware fills in what it learns.
type Correlation struct {
	TraceID   string
	RequestID string
	UserID    string
	ClientIP  string
}

// EnrichContext assigns the trace id: an incoming X-Trace-ID, else the otelgin span, else a UUID.
func EnrichContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" {
			if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
				traceID = sc.TraceID().String()
			} else {
				traceID = uuid.NewString()
			}
		}

		c.Set(TraceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)
		c.Set(correlationKey, &Correlation{TraceID: traceID, ClientIP: c.ClientIP()})

		c.Next()
	}
}

// GetTraceID returns the id assigned by EnrichContext.
func GetTraceID(c *gin.Context) string {
	return c.GetString(TraceIDKey)
}

// GetCorrelation returns the request's Correlation. Outside EnrichContext it is a
// detached value, so callers may write to it unconditionally.
func GetCorrelation(c *gin.Context) *Correlation {
	if v, ok := c.Get(correlationKey); ok {
		if corr, ok := v.(*Correlation); ok {
			return corr
		}
	}
	return &Correlation{TraceID: GetTraceID(c), ClientIP: c.ClientIP()}
}
