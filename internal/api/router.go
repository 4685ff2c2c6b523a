package api

import (
	"context"
	"fmt"
	"time"

	"pantry-recipes/internal/api/handlers"
	authHandler "pantry-recipes/internal/api/handlers/auth"
	"pantry-recipes/internal/api/handlers/health"
	recipeHandler "pantry-recipes/internal/api/handlers/recipe"
	"pantry-recipes/internal/api/middleware"
	"pantry-recipes/internal/core/ai"
	"pantry-recipes/internal/core/ai/openrouter"
	"pantry-recipes/internal/core/ai/queue"
	"pantry-recipes/internal/core/auth"
	recipeService "pantry-recipes/internal/core/recipe"
	"pantry-recipes/internal/infrastructure/cache"
	"pantry-recipes/internal/infrastructure/config"
	"pantry-recipes/internal/infrastructure/metrics"
	"pantry-recipes/internal/infrastructure/persistence"
	"pantry-recipes/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Dependencies 路由所需的基礎設施
type Dependencies struct {
	Config  *config.Config
	DB      *gorm.DB
	Cache   cache.Store
	Queue   *queue.Manager
	Metrics *metrics.Metrics // nil 時不記錄指標

	// Completer 為 nil 時使用 OpenRouter
	Completer ai.Completer
}

// newCompleter 未注入時使用 OpenRouter
func newCompleter(deps Dependencies) ai.Completer {
	if deps.Completer != nil {
		return deps.Completer
	}
	return openrouter.NewClient(config.ProviderURL, config.ProviderTimeout)
}

// SetupRouter 設置路由
func SetupRouter(deps Dependencies) (*gin.Engine, error) {
	cfg := deps.Config
	if cfg == nil || deps.DB == nil || deps.Cache == nil || deps.Queue == nil {
		return nil, fmt.Errorf("missing router dependencies")
	}

	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	// 設置 gin 模式
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	handlers.RegisterValidators()

	router := gin.New()

	// 註冊基礎中間件
	router.Use(middleware.Recovery())
	router.Use(requestid.New())
	if cfg.Tracing.Enabled {
		router.Use(otelgin.Middleware(cfg.App.Name))
	}
	router.Use(middleware.Logger())
	if deps.Metrics != nil {
		router.Use(middleware.Metrics(deps.Metrics))
	}

	// CORS 設置
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	// 請求體大小限制
	router.Use(middleware.BodySizeLimit(cfg.Server.MaxBodyBytes))

	// 請求總時限
	router.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), config.RequestTimeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	completer := newCompleter(deps)

	users := persistence.NewUserRepository(deps.DB)
	recipes := persistence.NewRecipeRepository(deps.DB)
	authSvc := auth.NewService(cfg.Auth, users, deps.Cache)
	generator := recipeService.NewGenerator(recipeService.GeneratorConfig{
		APIKey: cfg.OpenRouter.APIKey,
		Model:  cfg.OpenRouter.Model,
	}, completer)

	common.LogInfo("Initializing services",
		zap.String("database_driver", cfg.Database.Driver),
		zap.Bool("redis_enabled", cfg.Cache.Enabled),
		zap.Int("queue_workers", cfg.Queue.Workers),
		zap.String("model", generator.Model()),
		zap.Bool("api_key_configured", cfg.OpenRouter.APIKey != ""),
	)

	// 健康檢查路由
	healthH := health.NewHandler(cfg.App.Version, map[string]health.Check{
		"database": func(ctx context.Context) error { return persistence.Ping(ctx, deps.DB) },
		"cache":    deps.Cache.Ping,
	}, deps.Queue)
	router.GET("/health", healthH.HealthCheck)
	router.GET("/ready", healthH.ReadinessCheck)
	router.GET("/live", healthH.LivenessCheck)

	if deps.Metrics != nil && cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(deps.Metrics.Handler()))
	}

	requireAuth := middleware.Auth(authSvc)

	api := router.Group("/api")
	{
		authH := authHandler.NewHandler(authSvc)
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/signup", authH.Signup)
			authGroup.POST("/login", authH.Login)
			authGroup.POST("/refresh", authH.Refresh)
			authGroup.POST("/logout", requireAuth, authH.Logout)
		}

		recipeH := recipeHandler.NewHandler(recipes, generator, deps.Queue, deps.Metrics)
		recipeGroup := api.Group("/recipes", requireAuth)
		{
			recipeGroup.GET("", recipeH.List)
			recipeGroup.POST("", recipeH.Create)
			recipeGroup.PATCH("/:id", recipeH.UpdateLiked)

			generate := []gin.HandlerFunc{}
			if cfg.RateLimit.Enabled {
				generate = append(generate, middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))
			}
			generate = append(generate, middleware.Deduplication(deps.Cache, cfg.DedupWindow), recipeH.Generate)
			recipeGroup.POST("/generate", generate...)
		}
	}

	common.LogInfo("Router setup completed successfully",
		zap.String("version", cfg.App.Version),
		zap.Duration("timeout", config.RequestTimeout),
		zap.Int64("max_body_size", cfg.Server.MaxBodyBytes),
		zap.Bool("rate_limit_enabled", cfg.RateLimit.Enabled),
		zap.Bool("metrics_enabled", deps.Metrics != nil && cfg.Metrics.Enabled),
		zap.Bool("tracing_enabled", cfg.Tracing.Enabled),
	)

	return router, nil
}
