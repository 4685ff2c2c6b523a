package health

import (
	"context"
	"net/http"
	"runtime"
	"sync"
	"time"

	"pantry-recipes/internal/core/ai/queue"
	"pantry-recipes/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// readyTimeout 單一依賴檢查的等待上限
const readyTimeout = 2 * time.Second

// HealthResponse 健康檢查響應
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime"`
	Queue     *queue.Status          `json:"queue,omitempty"`
}

// Check 依賴檢查
type Check func(ctx context.Context) error

// QueueStatus 隊列狀態來源
type QueueStatus interface {
	GetQueueStatus() *queue.Status
}

// Handler 健康檢查處理程序
type Handler struct {
	version string
	checks  map[string]Check
	queue   QueueStatus
}

// NewHandler 創建健康檢查處理程序；checks 用於 /ready
func NewHandler(version string, checks map[string]Check, q QueueStatus) *Handler {
	return &Handler{
		version: version,
		checks:  checks,
		queue:   q,
	}
}

// HealthCheck 健康檢查處理器
func (h *Handler) HealthCheck(c *gin.Context) {
	// 獲取運行時信息
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
		Runtime: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]interface{}{
				"alloc":       m.Alloc,
				"total_alloc": m.TotalAlloc,
				"sys":         m.Sys,
				"num_gc":      m.NumGC,
			},
		},
	}
	if h.queue != nil {
		response.Queue = h.queue.GetQueueStatus()
	}

	common.LogDebug("Health check request",
		zap.String("client_ip", c.ClientIP()),
		zap.String("path", c.Request.URL.Path),
	)

	c.JSON(http.StatusOK, response)
}

// ReadinessCheck 就緒檢查處理器；依賴並行檢查，任一失敗回傳 503
func (h *Handler) ReadinessCheck(c *gin.Context) {
	var (
		mu      sync.Mutex
		results = make(map[string]string, len(h.checks))
		ready   = true
	)

	var g errgroup.Group
	for name, check := range h.checks {
		name, check := name, check
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
			err := check(ctx)
			cancel()

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				ready = false
				results[name] = "unavailable"
				common.LogWarn("Readiness check failed",
					zap.String("dependency", name),
					zap.Error(err),
				)
				return nil
			}
			results[name] = "ok"
			return nil
		})
	}
	_ = g.Wait()

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"checks": results,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"checks": results,
	})
}

// LivenessCheck 存活檢查處理器
func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}
