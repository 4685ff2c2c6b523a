package recipe

import (
	"context"
	"net/http"
	"testing"
	"time"

	"pantry-recipes/internal/core/ai"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type fakeCompleter struct {
	content string
	err     error
	calls   int
	last    ai.CompletionRequest
}

func (f *fakeCompleter) Complete(_ context.Context, req ai.CompletionRequest) (string, error) {
	f.calls++
	f.last = req
	return f.content, f.err
}

func newTestGenerator(provider ai.Completer) *Generator {
	return NewGenerator(GeneratorConfig{APIKey: "test-key", Model: "test/model"}, provider)
}

func TestGenerateSuccess(t *testing.T) {
	provider := &fakeCompleter{content: `{"title":" Tomato Soup ","ingredients":"tomato, onion","steps":"Simmer"}`}

	result, err := newTestGenerator(provider).Generate(context.Background(), GenerateCommand{
		Ingredients:   "tomato; onion",
		IncludeBasics: true,
	})

	require.NoError(t, err)
	assert.Equal(t, GeneratedRecipe{Title: "Tomato Soup", Ingredients: "tomato, onion", Steps: "Simmer"}, result.Recipe)
	assert.GreaterOrEqual(t, result.GenerationTimeMs, int64(0))

	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, "test-key", provider.last.APIKey)
	assert.Equal(t, "test/model", provider.last.Model)
	assert.Contains(t, provider.last.UserPrompt, "tomato, onion, salt, black pepper, neutral oil, water")
}

func TestGenerateMeasuresElapsedTime(t *testing.T) {
	provider := &fakeCompleter{content: `{"title":"A","ingredients":"b","steps":"c"}`}
	gen := newTestGenerator(provider)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ticks := []time.Time{base, base.Add(100 * time.Millisecond), base.Add(250 * time.Millisecond)}
	gen.now = func() time.Time {
		next := ticks[0]
		if len(ticks) > 1 {
			ticks = ticks[1:]
		}
		return next
	}

	result, err := gen.Generate(context.Background(), GenerateCommand{Ingredients: "a, b, c"})

	require.NoError(t, err)
	assert.Equal(t, int64(250), result.GenerationTimeMs)
}

func TestGenerateMissingAPIKey(t *testing.T) {
	provider := &fakeCompleter{}
	gen := NewGenerator(GeneratorConfig{Model: "test/model"}, provider)

	result, err := gen.Generate(context.Background(), GenerateCommand{Ingredients: "egg"})

	assert.Nil(t, result)
	genErr, ok := ai.AsGenerationError(err)
	require.True(t, ok)
	assert.Equal(t, ai.KindConfig, genErr.Kind)
	assert.Equal(t, http.StatusInternalServerError, genErr.Status)
	assert.False(t, genErr.Retryable())
	assert.Equal(t, 0, provider.calls)
}

func TestGeneratePropagatesProviderErrors(t *testing.T) {
	errs := []*ai.GenerationError{
		ai.NewProviderError("AI provider error", map[string]interface{}{"status": 500}, nil),
		ai.NewTimeoutError(context.DeadlineExceeded),
		ai.NewInvalidResponseError("AI response missing content", nil, nil),
	}

	for _, want := range errs {
		t.Run(string(want.Kind), func(t *testing.T) {
			provider := &fakeCompleter{err: want}

			_, err := newTestGenerator(provider).Generate(context.Background(), GenerateCommand{Ingredients: "egg"})

			genErr, ok := ai.AsGenerationError(err)
			require.True(t, ok)
			assert.Same(t, want, genErr)
		})
	}
}

func TestGenerateInvalidContent(t *testing.T) {
	cases := map[string]string{
		"no json":     "I cannot help with that.",
		"empty title": `{"title":"","ingredients":"salt","steps":"Mix"}`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			provider := &fakeCompleter{content: content}

			result, err := newTestGenerator(provider).Generate(context.Background(), GenerateCommand{Ingredients: "salt"})

			assert.Nil(t, result)
			genErr, ok := ai.AsGenerationError(err)
			require.True(t, ok)
			assert.Equal(t, ai.KindInvalidResponse, genErr.Kind)
			assert.Equal(t, http.StatusBadGateway, genErr.Status)
		})
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", requestIDFrom(ctx))
	assert.Equal(t, "", requestIDFrom(context.Background()))
}

func TestGenerateRecordsSpan(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp)))

	gen := NewGenerator(GeneratorConfig{Model: "test/model"}, &fakeCompleter{})
	_, err := gen.Generate(context.Background(), GenerateCommand{Ingredients: "a, b, c"})
	require.Error(t, err)

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "recipe.Generate", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, string(ai.KindConfig), spans[0].Status.Description)
}
