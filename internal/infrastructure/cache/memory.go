package cache

import (
	"context"
	"sync"
	"time"

	"pantry-recipes/internal/pkg/common"

	"go.uber.org/zap"
)

// MemoryStore 行程內快取，過期清理加上 LRU 淘汰
type MemoryStore struct {
	mu      sync.Mutex
	store   map[string]cacheEntry
	stats   cacheStats
	maxSize int
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

// cacheEntry 緩存條目
type cacheEntry struct {
	value       string
	expiresAt   time.Time // 零值表示不過期
	createdAt   time.Time
	lastAccess  time.Time
	accessCount int
}

func (e cacheEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// cacheStats 緩存統計
type cacheStats struct {
	hits      int64
	misses    int64
	evictions int64
	errors    int64
}

// NewMemoryStore 創建記憶體快取；cleanupInterval > 0 時啟動背景清理
func NewMemoryStore(maxSize int, cleanupInterval time.Duration) *MemoryStore {
	m := &MemoryStore{
		store:   make(map[string]cacheEntry),
		maxSize: maxSize,
		now:     time.Now,
		done:    make(chan struct{}),
	}

	if cleanupInterval > 0 {
		go m.startCleanup(cleanupInterval)
	}

	common.LogInfo("快取管理員已初始化",
		zap.Int("最大容量", maxSize),
		zap.Duration("清理間隔", cleanupInterval),
	)

	return m
}

// Set 設置緩存值
func (m *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.store[key]; !exists {
		if err := m.ensureCapacity(); err != nil {
			return err
		}
	}
	m.put(key, value, ttl)
	return nil
}

// SetNX 鍵不存在（或已過期）時才寫入
func (m *MemoryStore) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, exists := m.store[key]; exists {
		if !entry.expired(m.now()) {
			return false, nil
		}
		delete(m.store, key)
		m.stats.evictions++
	}

	if err := m.ensureCapacity(); err != nil {
		return false, err
	}
	m.put(key, value, ttl)
	return true, nil
}

// Get 獲取緩存值
func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.store[key]
	if !exists {
		m.stats.misses++
		return "", ErrMiss
	}

	now := m.now()
	if entry.expired(now) {
		delete(m.store, key)
		m.stats.evictions++
		m.stats.misses++
		return "", ErrMiss
	}

	entry.lastAccess = now
	entry.accessCount++
	m.store[key] = entry
	m.stats.hits++
	return entry.value, nil
}

// Exists 檢查鍵是否存在
func (m *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := m.Get(ctx, key)
	if err == ErrMiss {
		return false, nil
	}
	return err == nil, err
}

// Delete 刪除鍵
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.store, key)
	return nil
}

// Ping 記憶體快取永遠可用
func (m *MemoryStore) Ping(context.Context) error {
	return nil
}

// put 呼叫端需持有鎖
func (m *MemoryStore) put(key, value string, ttl time.Duration) {
	now := m.now()
	entry := cacheEntry{
		value:      value,
		createdAt:  now,
		lastAccess: now,
	}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}
	m.store[key] = entry
}

// ensureCapacity 呼叫端需持有鎖
func (m *MemoryStore) ensureCapacity() error {
	if len(m.store) < m.maxSize {
		return nil
	}

	// 清理過期項目
	evicted := m.cleanup()
	common.LogDebug("快取清理執行",
		zap.Int("清理數量", evicted),
	)

	// 如果仍然超過大小限制，執行 LRU 清理
	if len(m.store) >= m.maxSize {
		m.evictLRU()
	}

	if len(m.store) >= m.maxSize {
		m.stats.errors++
		common.LogWarn("快取已滿",
			zap.Int("目前容量", len(m.store)),
		)
		return ErrFull
	}
	return nil
}

// startCleanup 定期清理過期緩存，直到 Close
func (m *MemoryStore) startCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.mu.Lock()
			m.cleanup()
			m.mu.Unlock()
		case <-m.done:
			return
		}
	}
}

// cleanup 清理過期的緩存；呼叫端需持有鎖
func (m *MemoryStore) cleanup() int {
	now := m.now()
	count := 0

	for key, entry := range m.store {
		if entry.expired(now) {
			delete(m.store, key)
			count++
			m.stats.evictions++
		}
	}

	if count > 0 {
		common.LogDebug("Cleaned up expired cache entries",
			zap.Int("count", count),
			zap.Int64("total_evictions", m.stats.evictions),
			zap.Int("remaining_size", len(m.store)),
		)
	}

	return count
}

// evictLRU 淘汰訪問次數最少、最久未使用的項目
func (m *MemoryStore) evictLRU() {
	var oldestKey string
	var oldestAccess time.Time
	var lowestAccessCount int

	for key, entry := range m.store {
		if oldestKey == "" ||
			entry.accessCount < lowestAccessCount ||
			(entry.accessCount == lowestAccessCount && entry.lastAccess.Before(oldestAccess)) {
			oldestKey = key
			oldestAccess = entry.lastAccess
			lowestAccessCount = entry.accessCount
		}
	}

	if oldestKey != "" {
		delete(m.store, oldestKey)
		m.stats.evictions++
		common.LogDebug("快取已淘汰(LRU)",
			zap.String("鍵", oldestKey),
		)
	}
}

// Stats 獲取緩存統計信息
func (m *MemoryStore) Stats() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	ratio := 0.0
	if total := m.stats.hits + m.stats.misses; total > 0 {
		ratio = float64(m.stats.hits) / float64(total)
	}

	return map[string]interface{}{
		"size":      len(m.store),
		"max_size":  m.maxSize,
		"hits":      m.stats.hits,
		"misses":    m.stats.misses,
		"evictions": m.stats.evictions,
		"errors":    m.stats.errors,
		"hit_ratio": ratio,
	}
}

// Close 停止背景清理並清空快取
func (m *MemoryStore) Close() error {
	m.once.Do(func() { close(m.done) })

	m.mu.Lock()
	defer m.mu.Unlock()

	m.store = make(map[string]cacheEntry)
	common.LogInfo("快取管理員已關閉",
		zap.Int64("命中次數", m.stats.hits),
		zap.Int64("未命中次數", m.stats.misses),
		zap.Int64("淘汰次數", m.stats.evictions),
	)
	return nil
}
