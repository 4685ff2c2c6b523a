package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pantry-recipes/internal/api"
	"pantry-recipes/internal/core/ai/queue"
	"pantry-recipes/internal/infrastructure/cache"
	"pantry-recipes/internal/infrastructure/config"
	"pantry-recipes/internal/infrastructure/metrics"
	"pantry-recipes/internal/infrastructure/persistence"
	"pantry-recipes/internal/infrastructure/tracing"
	"pantry-recipes/internal/pkg/common"

	"go.uber.org/zap"
)

func main() {
	// 載入設定（含 .env）
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化 logger（需在載入 config 後）
	if err := common.InitLogger(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	common.LogInfo("載入設定",
		zap.String("openrouter_api_key", common.MaskSecret(cfg.OpenRouter.APIKey)),
		zap.String("openrouter_model", cfg.OpenRouter.Model),
		zap.String("database_driver", cfg.Database.Driver),
	)
	if cfg.OpenRouter.APIKey == "" {
		common.LogWarn("OPENROUTER_API_KEY is not set, recipe generation will fail with CONFIG_ERROR")
	}

	// 初始化追蹤
	shutdownTracing, err := tracing.Init(context.Background(), cfg.Tracing, cfg.App)
	if err != nil {
		common.LogWarn("Tracing disabled", zap.Error(err))
	}

	// 初始化資料庫
	db, err := persistence.Open(cfg.Database)
	if err != nil {
		common.LogFatal("Failed to initialize database", zap.Error(err))
	}
	defer persistence.Close(db)

	// 初始化快取
	startCtx, cancelStart := context.WithTimeout(context.Background(), 10*time.Second)
	store, err := cache.NewStore(startCtx, cfg.Cache)
	cancelStart()
	if err != nil {
		common.LogFatal("Failed to initialize cache", zap.Error(err))
	}
	defer store.Close()

	queueManager := queue.NewManager(cfg.Queue)
	defer queueManager.Close()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	// 設置路由
	router, err := api.SetupRouter(api.Dependencies{
		Config:  cfg,
		DB:      db,
		Cache:   store,
		Queue:   queueManager,
		Metrics: m,
	})
	if err != nil {
		common.LogError("Failed to setup router", zap.Error(err))
		os.Exit(1)
	}

	// 設置 HTTP 服務器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// 啟動服務器
	go func() {
		common.LogInfo("啟動應用",
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Bool("debug", cfg.App.Debug),
			zap.Int("port", cfg.Server.Port),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			common.LogFatal("Failed to start server",
				zap.Error(err),
			)
		}
	}()

	// 等待中斷信號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	common.LogInfo("Shutting down server...")

	// 設置關閉超時
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		common.LogError("Server forced to shutdown",
			zap.Error(err),
		)
	}
	if err := shutdownTracing(ctx); err != nil {
		common.LogWarn("Failed to flush traces", zap.Error(err))
	}

	common.LogInfo("Server exited")
}
