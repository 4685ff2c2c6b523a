package middleware

import (
	"context"
	"errors"
	"strings"

	"pantry-recipes/internal/core/auth"
	"pantry-recipes/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	contextKeyClaims = "auth_claims"
	contextKeyUserID = "user_id"
)

// TokenValidator 驗證存取 token
type TokenValidator interface {
	ValidateAccessToken(ctx context.Context, token string) (*auth.Claims, error)
}

// Auth 要求 Bearer token，通過後將使用者放入 context
func Auth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			common.AbortWithError(c, common.ErrUnauthorized)
			return
		}

		claims, err := validator.ValidateAccessToken(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrSessionRevoked) {
				common.AbortWithError(c, common.ErrUnauthorized)
				return
			}
			common.LogError("Failed to validate token", zap.Error(err))
			common.AbortWithError(c, common.ErrServiceUnavailable)
			return
		}

		c.Set(contextKeyClaims, claims)
		c.Set(contextKeyUserID, claims.UserID)
		c.Next()
	}
}

// UserID 目前請求的使用者 ID，未驗證時為空字串
func UserID(c *gin.Context) string {
	return c.GetString(contextKeyUserID)
}

// Claims 目前請求的 token claims
func Claims(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(contextKeyClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}

func bearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
