package recipe

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pantry-recipes/internal/api/handlers"
	"pantry-recipes/internal/api/middleware"
	"pantry-recipes/internal/core/ai"
	"pantry-recipes/internal/core/ai/queue"
	recipeService "pantry-recipes/internal/core/recipe"
	"pantry-recipes/internal/infrastructure/metrics"
	"pantry-recipes/internal/infrastructure/persistence"
	"pantry-recipes/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// CreateRecipeRequest 手動新增食譜
type CreateRecipeRequest struct {
	Title       string `json:"title" binding:"required,notblank"`
	Ingredients string `json:"ingredients" binding:"required,notblank"`
	Steps       string `json:"steps" binding:"required,notblank"`
}

// UpdateLikedRequest 更新喜愛狀態
type UpdateLikedRequest struct {
	Liked *bool `json:"liked" binding:"required"`
}

// GenerateRecipeRequest 依食材生成食譜；至少三項食材
type GenerateRecipeRequest struct {
	Ingredients   string `json:"ingredients" binding:"required,notblank,trimmed_max=2000,ingredients_min=3"`
	IncludeBasics *bool  `json:"include_basics" binding:"required"`
}

// RecipeResponse 食譜資料
type RecipeResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Ingredients string    `json:"ingredients"`
	Steps       string    `json:"steps"`
	Liked       bool      `json:"liked"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListResponse 分頁結果；沒有下一頁時 next_cursor 為 null
type ListResponse struct {
	Data       []RecipeResponse `json:"data"`
	NextCursor *string          `json:"next_cursor"`
}

// GenerateResponse 生成並儲存後的食譜
type GenerateResponse struct {
	Recipe           RecipeResponse `json:"recipe"`
	GenerationTimeMs int64          `json:"generation_time_ms"`
}

// Store 食譜存取介面
type Store interface {
	Create(ctx context.Context, userID string, in persistence.NewRecipe) (*persistence.RecipeModel, error)
	List(ctx context.Context, userID string, q persistence.ListQuery) (*persistence.RecipePage, error)
	UpdateLiked(ctx context.Context, userID, id string, liked bool) (*persistence.RecipeModel, error)
}

// Generator 食譜生成介面
type Generator interface {
	Generate(ctx context.Context, cmd recipeService.GenerateCommand) (*recipeService.GenerationResult, error)
}

// Queue 生成名額
type Queue interface {
	Acquire(ctx context.Context) (func(), error)
}

// Handler 食譜處理程序
type Handler struct {
	store     Store
	generator Generator
	queue     Queue
	metrics   *metrics.Metrics
}

// NewHandler 創建新的食譜處理程序；m 可為 nil
func NewHandler(store Store, generator Generator, q Queue, m *metrics.Metrics) *Handler {
	return &Handler{
		store:     store,
		generator: generator,
		queue:     q,
		metrics:   m,
	}
}

// List GET /api/recipes
func (h *Handler) List(c *gin.Context) {
	query, err := parseListQuery(c)
	if err != nil {
		common.AbortWithError(c, err)
		return
	}

	page, err := h.store.List(c.Request.Context(), middleware.UserID(c), query)
	if err != nil {
		_ = c.Error(err)
		common.AbortWithError(c, common.ErrDatabaseError.WithMessage("Failed to fetch recipes"))
		return
	}

	resp := ListResponse{Data: make([]RecipeResponse, 0, len(page.Items))}
	for i := range page.Items {
		resp.Data = append(resp.Data, toResponse(&page.Items[i]))
	}
	if page.NextCursor != nil {
		cursor := page.NextCursor.UTC().Format(time.RFC3339Nano)
		resp.NextCursor = &cursor
	}

	c.JSON(http.StatusOK, resp)
}

// Create POST /api/recipes
func (h *Handler) Create(c *gin.Context) {
	var req CreateRecipeRequest
	if !handlers.BindJSON(c, &req) {
		return
	}

	model, err := h.store.Create(c.Request.Context(), middleware.UserID(c), persistence.NewRecipe{
		Title:       strings.TrimSpace(req.Title),
		Ingredients: strings.TrimSpace(req.Ingredients),
		Steps:       strings.TrimSpace(req.Steps),
	})
	if err != nil {
		_ = c.Error(err)
		common.AbortWithError(c, common.ErrDatabaseError.WithMessage("Failed to create recipe"))
		return
	}

	c.JSON(http.StatusCreated, toResponse(model))
}

// UpdateLiked PATCH /api/recipes/:id
func (h *Handler) UpdateLiked(c *gin.Context) {
	id := c.Param("id")
	if !common.IsUUID(id) {
		common.AbortWithError(c, common.ErrInvalidRequest.WithMessage("Recipe id must be a valid UUID"))
		return
	}

	var req UpdateLikedRequest
	if !handlers.BindJSON(c, &req) {
		return
	}

	model, err := h.store.UpdateLiked(c.Request.Context(), middleware.UserID(c), id, *req.Liked)
	if err != nil {
		if errors.Is(err, persistence.ErrRecipeNotFound) {
			common.AbortWithError(c, common.ErrNotFound.WithMessage("Recipe not found"))
			return
		}
		_ = c.Error(err)
		common.AbortWithError(c, common.ErrDatabaseError.WithMessage("Failed to update recipe"))
		return
	}

	c.JSON(http.StatusOK, toResponse(model))
}

// Generate POST /api/recipes/generate
func (h *Handler) Generate(c *gin.Context) {
	requestID := requestid.Get(c)

	var req GenerateRecipeRequest
	if !handlers.BindJSON(c, &req) {
		return
	}

	common.LogInfo("開始處理食譜生成請求",
		zap.String("request_id", requestID),
		zap.String("user_id", middleware.UserID(c)),
		zap.Int("ingredients_length", len(req.Ingredients)),
		zap.Bool("include_basics", *req.IncludeBasics),
	)

	ctx := recipeService.WithRequestID(c.Request.Context(), requestID)

	result, err := h.generate(ctx, recipeService.GenerateCommand{
		Ingredients:   req.Ingredients,
		IncludeBasics: *req.IncludeBasics,
	})
	if err != nil {
		if genErr, ok := ai.AsGenerationError(err); ok {
			_ = c.Error(err)
			common.WriteError(c, genErr.Status, string(genErr.Kind), genErr.Message, genErr.Details)
			return
		}
		common.AbortWithError(c, err)
		return
	}

	model, err := h.store.Create(c.Request.Context(), middleware.UserID(c), persistence.NewRecipe{
		Title:       result.Recipe.Title,
		Ingredients: result.Recipe.Ingredients,
		Steps:       result.Recipe.Steps,
	})
	if err != nil {
		common.LogError("Failed to insert recipe",
			zap.Error(err),
			zap.String("request_id", requestID),
		)
		common.AbortWithError(c, common.ErrDatabaseError.WithMessage("Failed to save generated recipe"))
		return
	}

	c.JSON(http.StatusCreated, GenerateResponse{
		Recipe:           toResponse(model),
		GenerationTimeMs: result.GenerationTimeMs,
	})
}

// generate 取得隊列名額後呼叫生成器並記錄指標
func (h *Handler) generate(ctx context.Context, cmd recipeService.GenerateCommand) (*recipeService.GenerationResult, error) {
	if h.queue != nil {
		release, err := h.queue.Acquire(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrQueueFull) || errors.Is(err, queue.ErrClosed) {
				return nil, common.ErrServiceUnavailable.WithMessage("Recipe generation is busy, please try again")
			}
			return nil, ai.NewTimeoutError(err)
		}
		defer release()
	}

	if h.metrics != nil {
		done := h.metrics.GenerationStarted()
		defer done()
	}

	start := time.Now()
	result, err := h.generator.Generate(ctx, cmd)

	if h.metrics != nil {
		outcome := metrics.OutcomeSuccess
		if genErr, ok := ai.AsGenerationError(err); ok {
			outcome = string(genErr.Kind)
		} else if err != nil {
			outcome = "error"
		}
		h.metrics.ObserveGeneration(outcome, time.Since(start))
	}

	return result, err
}

func parseListQuery(c *gin.Context) (persistence.ListQuery, error) {
	q := persistence.ListQuery{Limit: defaultLimit}

	if raw := c.Query("limit"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		switch {
		case err != nil || math.IsNaN(f) || math.IsInf(f, 0):
			return q, common.ErrInvalidRequest.WithMessage("Limit must be a number")
		case f != math.Trunc(f):
			return q, common.ErrInvalidRequest.WithMessage("Limit must be an integer")
		case f < 1:
			return q, common.ErrInvalidRequest.WithMessage("Limit must be at least 1")
		case f > maxLimit:
			return q, common.ErrInvalidRequest.WithMessage("Limit must be at most 100")
		}
		q.Limit = int(f)
	}

	if raw := c.Query("cursor"); raw != "" {
		cursor, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return q, common.ErrInvalidRequest.WithMessage("Cursor must be a valid ISO8601 timestamp")
		}
		q.Cursor = &cursor
	}

	switch c.Query("liked") {
	case "":
	case "true":
		liked := true
		q.Liked = &liked
	case "false":
		liked := false
		q.Liked = &liked
	default:
		return q, common.ErrInvalidRequest.WithMessage("Liked must be a boolean")
	}

	return q, nil
}

func toResponse(m *persistence.RecipeModel) RecipeResponse {
	return RecipeResponse{
		ID:          m.ID,
		Title:       m.Title,
		Ingredients: m.Ingredients,
		Steps:       m.Steps,
		Liked:       m.Liked,
		CreatedAt:   m.CreatedAt.UTC(),
	}
}
