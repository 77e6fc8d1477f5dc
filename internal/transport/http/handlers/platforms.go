package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/arklim/social-login-auth/internal/core/domain"
	"github.com/arklim/social-login-auth/internal/transport/http/middleware"
	"github.com/arklim/social-login-auth/internal/usecase"
)

// PlatformManager manages the SNS accounts linked to the caller.
type PlatformManager interface {
	List(ctx context.Context, userID string) ([]domain.SnsPlatform, error)
	Create(ctx context.Context, userID string, input usecase.CreatePlatformInput) (*domain.SnsPlatform, error)
	Get(ctx context.Context, userID string, platformID int64) (*domain.SnsPlatform, error)
	Update(ctx context.Context, userID string, platformID int64, input usecase.UpdatePlatformInput) (*domain.SnsPlatform, error)
	Delete(ctx context.Context, userID string, platformID int64) error
}

// PlatformHandler exposes the SNS platform registry. Every route expects RequireAuth upstream.
type PlatformHandler struct {
	platforms PlatformManager
}

// NewPlatformHandler constructs PlatformHandler.
func NewPlatformHandler(platforms PlatformManager) *PlatformHandler {
	return &PlatformHandler{platforms: platforms}
}

// RegisterRoutes binds the platform routes.
func (h *PlatformHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("", h.list)
	r.POST("", h.create)
	r.GET("/:platformId", h.get)
	r.PUT("/:platformId", h.update)
	r.DELETE("/:platformId", h.delete)
}

// ListPlatforms godoc
// @Summary List linked SNS platforms
// @Tags Platforms
// @Produce json
// @Security BearerAuth
// @Success 200 {object} PlatformListResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/users/platforms [get]
func (h *PlatformHandler) list(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	platforms, err := h.platforms.List(c.Request.Context(), userID)
	if err != nil {
		RespondWithMappedError(c, err, platformErrorCases, http.StatusInternalServerError, internalErrorMessage)
		return
	}

	resp := PlatformListResponse{Platforms: make([]PlatformResponse, 0, len(platforms))}
	for _, platform := range platforms {
		resp.Platforms = append(resp.Platforms, newPlatformResponse(platform))
	}
	c.JSON(http.StatusOK, resp)
}

// CreatePlatform godoc
// @Summary Link an SNS platform
// @Description New links start unverified. The same account may be linked once per user.
// @Tags Platforms
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreatePlatformRequest true "Platform to link"
// @Success 201 {object} PlatformResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/users/platforms [post]
func (h *PlatformHandler) create(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var req CreatePlatformRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, bindingErrorMessage(err))
		return
	}

	platform, err := h.platforms.Create(c.Request.Context(), userID, usecase.CreatePlatformInput{
		PlatformType: req.PlatformType,
		AccountURL:   req.AccountURL,
		AccountName:  req.AccountName,
	})
	if err != nil {
		RespondWithMappedError(c, err, platformErrorCases, http.StatusInternalServerError, internalErrorMessage)
		return
	}

	c.JSON(http.StatusCreated, newPlatformResponse(*platform))
}

// GetPlatform godoc
// @Summary Get a linked SNS platform
// @Tags Platforms
// @Produce json
// @Security BearerAuth
// @Param platformId path int true "Platform ID"
// @Success 200 {object} PlatformResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/users/platforms/{platformId} [get]
func (h *PlatformHandler) get(c *gin.Context) {
	userID, platformID, ok := platformTarget(c)
	if !ok {
		return
	}

	platform, err := h.platforms.Get(c.Request.Context(), userID, platformID)
	if err != nil {
		RespondWithMappedError(c, err, platformErrorCases, http.StatusInternalServerError, internalErrorMessage)
		return
	}

	c.JSON(http.StatusOK, newPlatformResponse(*platform))
}

// UpdatePlatform godoc
// @Summary Update a linked SNS platform
// @Description Changes the account name or url. Verification status cannot be changed.
// @Tags Platforms
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param platformId path int true "Platform ID"
// @Param request body UpdatePlatformRequest true "Fields to change"
// @Success 200 {object} PlatformResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/users/platforms/{platformId} [put]
func (h *PlatformHandler) update(c *gin.Context) {
	userID, platformID, ok := platformTarget(c)
	if !ok {
		return
	}

	var req UpdatePlatformRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, bindingErrorMessage(err))
		return
	}

	platform, err := h.platforms.Update(c.Request.Context(), userID, platformID, usecase.UpdatePlatformInput{
		AccountURL:  req.AccountURL,
		AccountName: req.AccountName,
	})
	if err != nil {
		RespondWithMappedError(c, err, platformErrorCases, http.StatusInternalServerError, internalErrorMessage)
		return
	}

	c.JSON(http.StatusOK, newPlatformResponse(*platform))
}

// DeletePlatform godoc
// @Summary Unlink an SNS platform
// @Tags Platforms
// @Produce json
// @Security BearerAuth
// @Param platformId path int true "Platform ID"
// @Success 200 {object} MessageResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/users/platforms/{platformId} [delete]
func (h *PlatformHandler) delete(c *gin.Context) {
	userID, platformID, ok := platformTarget(c)
	if !ok {
		return
	}

	if err := h.platforms.Delete(c.Request.Context(), userID, platformID); err != nil {
		RespondWithMappedError(c, err, platformErrorCases, http.StatusInternalServerError, internalErrorMessage)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "platform unlinked"})
}

func callerID(c *gin.Context) (string, bool) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return "", false
	}
	return userID, true
}

func platformTarget(c *gin.Context) (string, int64, bool) {
	userID, ok := callerID(c)
	if !ok {
		return "", 0, false
	}

	platformID, err := strconv.ParseInt(c.Param("platformId"), 10, 64)
	if err != nil || platformID <= 0 {
		respondBadRequest(c, "platformId must be a positive integer")
		return "", 0, false
	}
	return userID, platformID, true
}
