package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/social-login-auth/internal/infra/oauth"
	"github.com/arklim/social-login-auth/internal/usecase"
)

// SessionManager is the session lifecycle the auth endpoints drive.
type SessionManager interface {
	Login(ctx context.Context, input usecase.LoginInput) (*usecase.LoginResult, error)
	Logout(ctx context.Context, authorization string) error
	Refresh(ctx context.Context, authorization, refreshToken string) (*usecase.RefreshResult, error)
	LoginRedirect(providerName, redirectURI string) (string, error)
}

// AuthHandler exposes the social login endpoints.
type AuthHandler struct {
	sessions        SessionManager
	defaultProvider string
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(sessions SessionManager) *AuthHandler {
	return &AuthHandler{
		sessions:        sessions,
		defaultProvider: oauth.ProviderKakao,
	}
}

// RegisterRoutes binds authentication routes. Static segments take precedence over
// the provider parameter, so logout, refresh and login-redirect never reach login.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, loginMiddlewares []gin.HandlerFunc, refreshMiddlewares []gin.HandlerFunc) {
	r.POST("/logout", h.logout)
	r.POST("/refresh", chain(refreshMiddlewares, h.refresh)...)
	r.GET("/login-redirect", h.loginRedirect)
	r.POST("/:provider", chain(loginMiddlewares, h.login)...)
}

func chain(middlewares []gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	handlers := make([]gin.HandlerFunc, 0, len(middlewares)+1)
	handlers = append(handlers, middlewares...)
	return append(handlers, handler)
}

// Login godoc
// @Summary Log in with a social provider
// @Description Exchanges the provider authorization code for a token pair. A first login registers the user.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param provider path string true "Provider name" example(kakao)
// @Param request body LoginRequest true "Provider callback parameters"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 429 {object} middleware.ProblemDetails
// @Failure 500 {object} ErrorResponse
// @Router /api/auth/{provider} [post]
func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, bindingErrorMessage(err))
		return
	}

	result, err := h.sessions.Login(c.Request.Context(), usecase.LoginInput{
		Provider:    c.Param("provider"),
		Code:        strings.TrimSpace(req.AuthorizationCode),
		RedirectURI: req.RedirectURI,
	})
	if err != nil {
		RespondWithMappedError(c, err, sessionErrorCases, http.StatusInternalServerError, internalErrorMessage)
		return
	}

	c.JSON(http.StatusOK, newLoginResponse(result))
}

// Logout godoc
// @Summary Log out the current session
// @Description Revokes the presented access token until it expires and clears the refresh token.
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} MessageResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/auth/logout [post]
func (h *AuthHandler) logout(c *gin.Context) {
	if err := h.sessions.Logout(c.Request.Context(), c.GetHeader("Authorization")); err != nil {
		RespondWithMappedError(c, err, sessionErrorCases, http.StatusInternalServerError, internalErrorMessage)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "logged out"})
}

// Refresh godoc
// @Summary Rotate the token pair
// @Description Accepts an expired but genuine access token together with the current refresh token.
// @Tags Authentication
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body RefreshRequest true "Current refresh token"
// @Success 200 {object} TokenRefreshResponse
// @Failure 401 {object} ErrorResponse
// @Failure 429 {object} middleware.ProblemDetails
// @Failure 500 {object} ErrorResponse
// @Router /api/auth/refresh [post]
func (h *AuthHandler) refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, bindingErrorMessage(err))
		return
	}

	result, err := h.sessions.Refresh(c.Request.Context(), c.GetHeader("Authorization"), req.RefreshToken)
	if err != nil {
		RespondWithMappedError(c, err, sessionErrorCases, http.StatusInternalServerError, internalErrorMessage)
		return
	}

	c.JSON(http.StatusOK, newTokenRefreshResponse(result))
}

// LoginRedirect godoc
// @Summary Redirect to the provider authorization page
// @Tags Authentication
// @Param redirectUri query string true "Allowlisted callback URI"
// @Param provider query string false "Provider name" default(kakao)
// @Success 302
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/auth/login-redirect [get]
func (h *AuthHandler) loginRedirect(c *gin.Context) {
	redirectURI := c.Query("redirectUri")
	if redirectURI == "" {
		respondBadRequest(c, "redirectUri is required")
		return
	}
	provider := c.DefaultQuery("provider", h.defaultProvider)

	location, err := h.sessions.LoginRedirect(provider, redirectURI)
	if err != nil {
		RespondWithMappedError(c, err, sessionErrorCases, http.StatusInternalServerError, internalErrorMessage)
		return
	}

	c.Redirect(http.StatusFound, location)
}
