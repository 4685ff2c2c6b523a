package middleware

import (
	"errors"
	"net/http"

	"pantry-recipes/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BodySizeLimit 限制請求體大小的中間件
func BodySizeLimit(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 檢查 Content-Length
		if c.Request.ContentLength > maxSize {
			common.LogWarn("Request body too large",
				zap.Int64("content_length", c.Request.ContentLength),
				zap.Int64("max_size", maxSize),
				zap.String("client_ip", c.ClientIP()),
				zap.String("path", c.Request.URL.Path),
			)
			writeTooLarge(c, maxSize)
			return
		}

		// 未宣告長度的請求在讀取時才會被截斷
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)

		c.Next()
	}
}

// IsBodyTooLarge 判斷讀取錯誤是否來自 BodySizeLimit
func IsBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// AbortBodyTooLarge 供 handler 在讀取本文失敗時回應 413
func AbortBodyTooLarge(c *gin.Context, err error) {
	var maxErr *http.MaxBytesError
	limit := int64(0)
	if errors.As(err, &maxErr) {
		limit = maxErr.Limit
	}
	writeTooLarge(c, limit)
}

func writeTooLarge(c *gin.Context, maxSize int64) {
	common.WriteError(c, http.StatusRequestEntityTooLarge, common.ErrCodeTooLarge, "Request body too large",
		map[string]interface{}{"max_size": maxSize})
}
