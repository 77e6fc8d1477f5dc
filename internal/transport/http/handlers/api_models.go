package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/social-login-auth/internal/core/domain"
	"github.com/arklim/social-login-auth/internal/usecase"
)

// tokenTypeBearer is the token type reported with every issued pair.
const tokenTypeBearer = "Bearer"

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// LoginRequest carries the authorization code returned by the provider callback.
type LoginRequest struct {
	AuthorizationCode string `json:"authorizationCode" binding:"required,notblank"`
	RedirectURI       string `json:"redirectUri" binding:"required,notblank"`
}

// RefreshRequest carries the refresh token issued with the current pair.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required,notblank"`
}

// UserSummary describes the user returned with a login.
type UserSummary struct {
	ID           string          `json:"id"`
	Nickname     string          `json:"nickname"`
	Email        string          `json:"email,omitempty"`
	ProfileImage string          `json:"profileImage,omitempty"`
	Role         domain.UserRole `json:"role"`
}

// LoginResponse is returned after a successful provider login.
type LoginResponse struct {
	LoginType    domain.LoginType `json:"loginType"`
	AccessToken  string           `json:"accessToken"`
	RefreshToken string           `json:"refreshToken"`
	TokenType    string           `json:"tokenType"`
	ExpiresIn    int              `json:"expiresIn"`
	User         UserSummary      `json:"user"`
}

// TokenRefreshResponse is returned after a successful rotation.
type TokenRefreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int    `json:"expiresIn"`
}

// CreatePlatformRequest links a new SNS account.
type CreatePlatformRequest struct {
	PlatformType string `json:"platformType" binding:"required,notblank,platformtype"`
	AccountURL   string `json:"accountUrl" binding:"required,notblank,url"`
	AccountName  string `json:"accountName" binding:"max=100"`
}

// UpdatePlatformRequest changes the mutable fields of a linked account.
type UpdatePlatformRequest struct {
	AccountURL  string `json:"accountUrl" binding:"omitempty,url"`
	AccountName string `json:"accountName" binding:"max=100"`
}

// PlatformResponse describes one linked SNS account.
type PlatformResponse struct {
	ID           int64     `json:"id"`
	PlatformType string    `json:"platformType"`
	AccountURL   string    `json:"accountUrl"`
	AccountName  string    `json:"accountName,omitempty"`
	Verified     bool      `json:"verified"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// PlatformListResponse wraps the platforms linked by the caller.
type PlatformListResponse struct {
	Platforms []PlatformResponse `json:"platforms"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse describes readiness probe results with dependency checks.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

func newUserSummary(user domain.User) UserSummary {
	role := user.Role
	if role == "" {
		role = domain.UserRoleUser
	}
	return UserSummary{
		ID:           user.ID,
		Nickname:     user.Nickname,
		Email:        user.Email,
		ProfileImage: user.ProfileImage,
		Role:         role,
	}
}

func newLoginResponse(result *usecase.LoginResult) LoginResponse {
	return LoginResponse{
		LoginType:    result.LoginType,
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    result.ExpiresIn,
		User:         newUserSummary(result.User),
	}
}

func newTokenRefreshResponse(result *usecase.RefreshResult) TokenRefreshResponse {
	return TokenRefreshResponse{
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    result.ExpiresIn,
	}
}

func newPlatformResponse(platform domain.SnsPlatform) PlatformResponse {
	return PlatformResponse{
		ID:           platform.ID,
		PlatformType: platform.PlatformType,
		AccountURL:   platform.AccountURL,
		AccountName:  platform.AccountName,
		Verified:     platform.Verified,
		CreatedAt:    platform.CreatedAt,
		UpdatedAt:    platform.UpdatedAt,
	}
}
