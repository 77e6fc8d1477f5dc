package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/social-login-auth/internal/infra/security"
	"github.com/arklim/social-login-auth/internal/usecase"
)

// ErrorResponse mirrors handlers.ErrorResponse; middleware cannot import handlers.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// Authenticator gates protected calls on a raw Authorization header.
type Authenticator interface {
	Authenticate(ctx context.Context, authorization string) (*security.Claims, error)
}

type credentialRejection struct {
	err     error
	code    string
	message string
}

var credentialRejections = []credentialRejection{
	{usecase.ErrMalformedCredential, "MALFORMED_CREDENTIAL", "credential is malformed or invalid"},
	{usecase.ErrExpiredCredential, "EXPIRED_CREDENTIAL", "access token expired"},
	{usecase.ErrLoggedOutCredential, "LOGGED_OUT_CREDENTIAL", "access token has been logged out"},
}

// RequireAuth rejects the request unless Authenticate accepts its Authorization header.
// Credential failures answer 401; store failures answer 500 and are attached to the context.
func RequireAuth(authenticator Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := authenticator.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			abortUnauthenticated(c, err)
			return
		}

		userID := claims.UserID()
		c.Set(UserIDKey, userID)
		c.Set(ClaimsKey, claims)
		GetCorrelation(c).UserID = userID

		c.Next()
	}
}

func abortUnauthenticated(c *gin.Context, err error) {
	for _, r := range credentialRejections {
		if errors.Is(err, r.err) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: r.message, Code: r.code, TraceID: GetTraceID(c)})
			return
		}
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: "INTERNAL_ERROR", TraceID: GetTraceID(c)})
}

// GetAuthenticatedUserID returns the subject stored by RequireAuth.
func GetAuthenticatedUserID(c *gin.Context) (string, bool) {
	id := c.GetString(UserIDKey)
	return id, id != ""
}

// GetClaims returns the verified access-token claims stored by RequireAuth.
func GetClaims(c *gin.Context) (*security.Claims, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*security.Claims)
	return claims, ok
}
