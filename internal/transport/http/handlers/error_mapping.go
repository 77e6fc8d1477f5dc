package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/social-login-auth/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Code    string
	Message string
}

// Fallback used for anything not covered by a case. Internals never reach the client.
const (
	internalErrorCode    = "INTERNAL_ERROR"
	internalErrorMessage = "internal error"
)

// credentialErrorCases covers every 401 outcome of the session flows.
var credentialErrorCases = []ErrorCase{
	{Err: usecase.ErrMalformedCredential, Status: http.StatusUnauthorized, Code: "MALFORMED_CREDENTIAL", Message: "credential is malformed or invalid"},
	{Err: usecase.ErrExpiredCredential, Status: http.StatusUnauthorized, Code: "EXPIRED_CREDENTIAL", Message: "access token expired"},
	{Err: usecase.ErrLoggedOutCredential, Status: http.StatusUnauthorized, Code: "LOGGED_OUT_CREDENTIAL", Message: "access token has been logged out"},
	{Err: usecase.ErrAlreadyLoggedOut, Status: http.StatusUnauthorized, Code: "ALREADY_LOGGED_OUT", Message: "already logged out"},
	{Err: usecase.ErrNoActiveSession, Status: http.StatusUnauthorized, Code: "NO_ACTIVE_SESSION", Message: "no active session"},
	{Err: usecase.ErrRefreshMismatch, Status: http.StatusUnauthorized, Code: "REFRESH_MISMATCH", Message: "refresh token does not match the active session"},
}

// sessionErrorCases extends the credential cases with the login and redirect failures.
var sessionErrorCases = append(append([]ErrorCase{}, credentialErrorCases...),
	ErrorCase{Err: usecase.ErrInvalidRedirect, Status: http.StatusBadRequest, Code: "INVALID_REDIRECT", Message: "redirect uri is not allowed"},
	ErrorCase{Err: usecase.ErrInvalidRequest, Status: http.StatusBadRequest, Code: "INVALID_REQUEST", Message: "invalid request"},
	ErrorCase{Err: usecase.ErrUnsupportedProvider, Status: http.StatusNotFound, Code: "UNSUPPORTED_PROVIDER", Message: "unsupported provider"},
	ErrorCase{Err: usecase.ErrUpstreamAuth, Status: http.StatusInternalServerError, Code: "UPSTREAM_AUTH_FAILED", Message: "identity provider request failed"},
)

var platformErrorCases = []ErrorCase{
	{Err: usecase.ErrInvalidRequest, Status: http.StatusBadRequest, Code: "INVALID_REQUEST", Message: "invalid request"},
	{Err: usecase.ErrPlatformNotFound, Status: http.StatusNotFound, Code: "PLATFORM_NOT_FOUND", Message: "platform not found"},
	{Err: usecase.ErrPlatformAlreadyExists, Status: http.StatusConflict, Code: "PLATFORM_ALREADY_EXISTS", Message: "platform already linked"},
}

// RespondWithMappedError resolves the provided error against known cases or falls back to a generic response.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			resp := NewErrorResponse(c, cs.Message)
			resp.Code = cs.Code
			c.AbortWithStatusJSON(cs.Status, resp)
			return
		}
	}

	_ = c.Error(err)
	resp := NewErrorResponse(c, fallbackMessage)
	resp.Code = internalErrorCode
	c.AbortWithStatusJSON(fallbackStatus, resp)
}

func respondBadRequest(c *gin.Context, message string) {
	resp := NewErrorResponse(c, message)
	resp.Code = "INVALID_REQUEST"
	c.AbortWithStatusJSON(http.StatusBadRequest, resp)
}
