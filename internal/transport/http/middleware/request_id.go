package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/arklim/social-login-auth/internal/infra/logger"
)

const (
	requestIDHeader = "X-Request-ID"
	// RequestIDKey is the gin context key for the request identifier.
	RequestIDKey = "request_id"

	maxRequestIDLength = 128
)

// RequestID echoes a client X-Request-ID when it is short printable ASCII and
// mints a UUID otherwise. The id lands on the gin context, the request context
// (for logger.FromContext in the use cases) and the response header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if !validRequestID(id) {
			id = uuid.NewString()
		}

		c.Set(RequestIDKey, id)
		GetCorrelation(c).RequestID = id
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), id))
		c.Header(requestIDHeader, id)

		c.Next()
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for _, b := range []byte(id) {
		if b < '!' || b > '~' {
			return false
		}
	}
	return true
}
