package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"pantry-recipes/internal/infrastructure/config"
	"pantry-recipes/internal/pkg/common"

	"go.uber.org/zap"
)

var (
	// ErrQueueFull 等待中的請求已達上限
	ErrQueueFull = errors.New("queue is full")
	// ErrClosed 隊列管理器已關閉
	ErrClosed = errors.New("queue manager is closed")
)

// Status 隊列狀態
type Status struct {
	QueueLength    int   `json:"queue_length"`
	Active         int   `json:"active"`
	ProcessedCount int64 `json:"processed_count"`
	MaxQueueSize   int   `json:"max_queue_size"`
	Workers        int   `json:"workers"`
}

// Manager 限制同時進行的生成請求數；超過 workers 的請求排隊等待
type Manager struct {
	slots     chan struct{}
	maxSize   int
	waiting   int64
	processed int64
	done      chan struct{}
	closeOnce sync.Once
}

// NewManager 創建新的隊列管理器
func NewManager(cfg config.QueueConfig) *Manager {
	common.LogInfo("Generation queue initialized",
		zap.Int("workers", cfg.Workers),
		zap.Int("max_queue_size", cfg.MaxSize),
	)
	return &Manager{
		slots:   make(chan struct{}, cfg.Workers),
		maxSize: cfg.MaxSize,
		done:    make(chan struct{}),
	}
}

// Acquire 取得執行名額，回傳的 release 必須且只能呼叫一次
func (m *Manager) Acquire(ctx context.Context) (release func(), err error) {
	select {
	case <-m.done:
		return nil, ErrClosed
	default:
	}

	// 有空位時不排隊
	select {
	case m.slots <- struct{}{}:
		return m.releaseFunc(), nil
	default:
	}

	if atomic.AddInt64(&m.waiting, 1) > int64(m.maxSize) {
		atomic.AddInt64(&m.waiting, -1)
		common.LogWarn("Generation queue is full",
			zap.Int("max_queue_size", m.maxSize),
		)
		return nil, ErrQueueFull
	}
	defer atomic.AddInt64(&m.waiting, -1)

	select {
	case m.slots <- struct{}{}:
		return m.releaseFunc(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.done:
		return nil, ErrClosed
	}
}

func (m *Manager) releaseFunc() func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-m.slots
			atomic.AddInt64(&m.processed, 1)
		})
	}
}

// GetQueueStatus 獲取隊列狀態
func (m *Manager) GetQueueStatus() *Status {
	return &Status{
		QueueLength:    int(atomic.LoadInt64(&m.waiting)),
		Active:         len(m.slots),
		ProcessedCount: atomic.LoadInt64(&m.processed),
		MaxQueueSize:   m.maxSize,
		Workers:        cap(m.slots),
	}
}

// Close 喚醒所有等待者；已取得名額的請求不受影響
func (m *Manager) Close() {
	m.closeOnce.Do(func() { close(m.done) })
}
