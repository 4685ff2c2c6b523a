package cache

import (
	"context"
	"errors"
	"time"

	"pantry-recipes/internal/infrastructure/config"
	"pantry-recipes/internal/pkg/common"

	"go.uber.org/zap"
)

// ErrMiss 鍵不存在或已過期
var ErrMiss = errors.New("cache miss")

// ErrFull 記憶體快取已滿且無法淘汰
var ErrFull = errors.New("cache is full")

// Store 帶 TTL 的鍵值儲存，用於撤銷的 session 與請求去重
type Store interface {
	// Set 寫入鍵值，ttl <= 0 表示不過期
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX 鍵不存在時才寫入，回傳是否寫入成功
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// Get 取值，不存在時回傳 ErrMiss
	Get(ctx context.Context, key string) (string, error)
	// Exists 檢查鍵是否存在
	Exists(ctx context.Context, key string) (bool, error)
	// Delete 刪除鍵
	Delete(ctx context.Context, key string) error
	// Ping 檢查後端可用性
	Ping(ctx context.Context) error
	// Close 釋放資源
	Close() error
}

// NewStore 依設定選擇 Redis 或記憶體快取
func NewStore(ctx context.Context, cfg config.CacheConfig) (Store, error) {
	if !cfg.Enabled {
		common.LogInfo("Redis cache disabled, using in-memory store",
			zap.Int("max_size", cfg.MaxSize),
		)
		return NewMemoryStore(cfg.MaxSize, cfg.CleanupInterval), nil
	}
	return NewRedisStore(ctx, cfg)
}
