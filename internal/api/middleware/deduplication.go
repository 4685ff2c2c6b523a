package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"pantry-recipes/internal/infrastructure/cache"
	"pantry-recipes/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// defaultDedupWindow 未設定時的去重時間窗
const defaultDedupWindow = time.Second

// Deduplication 拒絕時間窗內重複送出的相同 POST 請求
func Deduplication(store cache.Store, window time.Duration) gin.HandlerFunc {
	if window <= 0 {
		window = defaultDedupWindow
	}

	return func(c *gin.Context) {
		// 只處理 POST 請求
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		// 計算請求體哈希
		bodyHash := ""
		if c.Request.Body != nil {
			body, err := io.ReadAll(c.Request.Body)
			if err != nil {
				if IsBodyTooLarge(err) {
					AbortBodyTooLarge(c, err)
					return
				}
				common.LogError("Failed to read request body", zap.Error(err))
				common.AbortWithError(c, common.ErrInvalidRequest)
				return
			}

			hash := sha256.Sum256(body)
			bodyHash = hex.EncodeToString(hash[:])

			// 恢復請求體
			c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
		}

		// 生成請求指紋
		fingerprint := "dedup:" + UserID(c) + ":" + c.Request.Method + ":" + c.Request.URL.Path
		if bodyHash != "" {
			fingerprint += ":" + bodyHash
		}

		fresh, err := store.SetNX(c.Request.Context(), fingerprint, "1", window)
		if err != nil {
			// 快取故障時不阻擋請求
			common.LogWarn("Deduplication store unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !fresh {
			common.LogInfo("Duplicate request rejected",
				zap.String("path", c.Request.URL.Path),
				zap.String("user_id", UserID(c)),
			)
			common.WriteError(c, http.StatusTooManyRequests, common.ErrCodeTooManyRequests, "Request too frequent", nil)
			return
		}

		c.Next()
	}
}
