package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"pantry-recipes/internal/api/handlers"
	"pantry-recipes/internal/api/middleware"
	authService "pantry-recipes/internal/core/auth"
	"pantry-recipes/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CredentialsRequest 註冊與登入共用
type CredentialsRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest 登入不檢查密碼長度
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest 換發憑證
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required,notblank"`
}

// Service 驗證服務介面
type Service interface {
	Signup(ctx context.Context, email, password string) (*authService.Result, error)
	Login(ctx context.Context, email, password string) (*authService.Result, error)
	Logout(ctx context.Context, claims *authService.Claims) error
	Refresh(ctx context.Context, refreshToken string) (*authService.Result, error)
}

// Handler 驗證處理程序
type Handler struct {
	service Service
}

// NewHandler 創建驗證處理程序
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Signup POST /api/auth/signup
func (h *Handler) Signup(c *gin.Context) {
	var req CredentialsRequest
	if !handlers.BindJSON(c, &req) {
		return
	}

	result, err := h.service.Signup(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, authService.ErrEmailTaken) {
			common.AbortWithError(c, common.ErrConflict.WithMessage("Email is already registered"))
			return
		}
		common.LogError("Signup failed", zap.Error(err))
		common.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// Login POST /api/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if !handlers.BindJSON(c, &req) {
		return
	}

	result, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, authService.ErrInvalidCredentials) {
			common.AbortWithError(c, common.ErrUnauthorized.WithMessage("Invalid email or password"))
			return
		}
		common.LogError("Login failed", zap.Error(err))
		common.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Refresh POST /api/auth/refresh
func (h *Handler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if !handlers.BindJSON(c, &req) {
		return
	}

	result, err := h.service.Refresh(c.Request.Context(), strings.TrimSpace(req.RefreshToken))
	if err != nil {
		if errors.Is(err, authService.ErrInvalidToken) || errors.Is(err, authService.ErrSessionRevoked) {
			common.AbortWithError(c, common.ErrUnauthorized.WithMessage("Invalid or expired refresh token"))
			return
		}
		common.LogError("Refresh failed", zap.Error(err))
		common.AbortWithError(c, common.ErrServiceUnavailable.WithMessage("Failed to refresh session"))
		return
	}

	c.JSON(http.StatusOK, result)
}

// Logout POST /api/auth/logout，需經過 Auth 中間件
func (h *Handler) Logout(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		common.AbortWithError(c, common.ErrUnauthorized)
		return
	}

	if err := h.service.Logout(c.Request.Context(), claims); err != nil {
		common.LogError("Logout failed", zap.Error(err))
		common.AbortWithError(c, common.ErrServiceUnavailable.WithMessage("Failed to log out"))
		return
	}

	c.Status(http.StatusNoContent)
}
