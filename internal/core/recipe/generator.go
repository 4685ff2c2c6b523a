package recipe

import (
	"context"
	"time"

	"pantry-recipes/internal/core/ai"
	"pantry-recipes/internal/pkg/common"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("pantry-recipes/internal/core/recipe")

// Stage 生成流程所處階段
type Stage string

const (
	StageIdle             Stage = "idle"
	StageBuildingPrompt   Stage = "building-prompt"
	StageAwaitingProvider Stage = "awaiting-provider"
	StageParsing          Stage = "parsing"
	StageDone             Stage = "done"
)

// GenerateCommand 生成請求
type GenerateCommand struct {
	Ingredients   string
	IncludeBasics bool
}

// GenerationResult 生成結果
type GenerationResult struct {
	Recipe           GeneratedRecipe `json:"recipe"`
	GenerationTimeMs int64           `json:"generation_time_ms"`
}

// GeneratorConfig 建構時注入的設定
type GeneratorConfig struct {
	APIKey string
	Model  string
}

// Generator 食譜生成流程：提示 → 供應商 → 解析，不重試
type Generator struct {
	config   GeneratorConfig
	provider ai.Completer
	now      func() time.Time
}

// NewGenerator 創建新的食譜生成器
func NewGenerator(cfg GeneratorConfig, provider ai.Completer) *Generator {
	return &Generator{
		config:   cfg,
		provider: provider,
		now:      time.Now,
	}
}

// Model 目前使用的模型
func (g *Generator) Model() string {
	return g.config.Model
}

// Generate 產生一份食譜；子步驟的錯誤原樣回傳
func (g *Generator) Generate(ctx context.Context, cmd GenerateCommand) (*GenerationResult, error) {
	ctx, span := tracer.Start(ctx, "recipe.Generate", trace.WithAttributes(
		attribute.String("ai.model", g.config.Model),
		attribute.Bool("recipe.include_basics", cmd.IncludeBasics),
	))
	defer span.End()

	stage := StageIdle
	start := g.now()
	requestID := requestIDFrom(ctx)

	fail := func(err error) (*GenerationResult, error) {
		span.RecordError(err)
		span.SetAttributes(attribute.String("recipe.stage", string(stage)))
		if genErr, ok := ai.AsGenerationError(err); ok {
			span.SetStatus(codes.Error, string(genErr.Kind))
		} else {
			span.SetStatus(codes.Error, err.Error())
		}
		common.LogWarn("Recipe generation failed",
			zap.String("stage", string(stage)),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return nil, err
	}

	if g.config.APIKey == "" {
		return fail(ai.NewConfigError("Missing OpenRouter API key"))
	}

	stage = StageBuildingPrompt
	prompts := BuildPrompts(BuildPromptIngredients(cmd.Ingredients, cmd.IncludeBasics))

	stage = StageAwaitingProvider
	content, err := g.provider.Complete(ctx, ai.CompletionRequest{
		APIKey:       g.config.APIKey,
		Model:        g.config.Model,
		SystemPrompt: prompts.System,
		UserPrompt:   prompts.User,
	})
	common.LogAICall(g.config.Model, g.now().Sub(start), err, requestID)
	if err != nil {
		return fail(err)
	}

	stage = StageParsing
	recipe, err := ParseRecipeContent(content)
	if err != nil {
		return fail(err)
	}

	elapsed := g.now().Sub(start).Milliseconds()
	if elapsed < 0 {
		elapsed = 0
	}

	span.SetAttributes(attribute.Int64("recipe.generation_time_ms", elapsed))
	common.LogDebug("Recipe generated",
		zap.String("stage", string(StageDone)),
		zap.String("title", recipe.Title),
		zap.Int64("generation_time_ms", elapsed),
		zap.String("request_id", requestID),
	)

	return &GenerationResult{
		Recipe:           *recipe,
		GenerationTimeMs: elapsed,
	}, nil
}

type requestIDKey struct{}

// WithRequestID 將請求 ID 放入 context 供日誌使用
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
