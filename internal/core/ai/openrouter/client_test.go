package openrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pantry-recipes/internal/core/ai"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequest() ai.CompletionRequest {
	return ai.CompletionRequest{
		APIKey:       "test-key",
		Model:        "openai/gpt-3.5-turbo",
		SystemPrompt: "system",
		UserPrompt:   "user",
	}
}

func TestCompleteSendsChatRequest(t *testing.T) {
	var got ai.ChatRequest
	var auth, contentType string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		contentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello"}}]}`))
	}))
	defer srv.Close()

	content, err := NewClient(srv.URL, time.Second).Complete(context.Background(), testRequest())

	require.NoError(t, err)
	assert.Equal(t, "hello", content)
	assert.Equal(t, "Bearer test-key", auth)
	assert.Contains(t, contentType, "application/json")
	assert.Equal(t, "openai/gpt-3.5-turbo", got.Model)
	assert.Equal(t, 0.7, got.Temperature)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, ai.Message{Role: "system", Content: "system"}, got.Messages[0])
	assert.Equal(t, ai.Message{Role: "user", Content: "user"}, got.Messages[1])
}

func TestCompleteProviderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Complete(context.Background(), testRequest())

	genErr, ok := ai.AsGenerationError(err)
	require.True(t, ok)
	assert.Equal(t, ai.KindProvider, genErr.Kind)
	assert.Equal(t, http.StatusBadGateway, genErr.Status)
	assert.Equal(t, http.StatusInternalServerError, genErr.Details["status"])
	assert.Equal(t, map[string]interface{}{"error": "boom"}, genErr.Details["payload"])
}

func TestCompleteMissingContent(t *testing.T) {
	bodies := map[string]string{
		"no choices":     `{"choices":[]}`,
		"numeric":        `{"choices":[{"message":{"content":42}}]}`,
		"null content":   `{"choices":[{"message":{"content":null}}]}`,
		"not json":       `<html>oops</html>`,
		"missing object": `{}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, time.Second).Complete(context.Background(), testRequest())

			genErr, ok := ai.AsGenerationError(err)
			require.True(t, ok)
			assert.Equal(t, ai.KindInvalidResponse, genErr.Kind)
			assert.Equal(t, http.StatusBadGateway, genErr.Status)
		})
	}
}

func TestCompleteTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	_, err := NewClient(srv.URL, 50*time.Millisecond).Complete(context.Background(), testRequest())

	genErr, ok := ai.AsGenerationError(err)
	require.True(t, ok)
	assert.Equal(t, ai.KindTimeout, genErr.Kind)
	assert.Equal(t, http.StatusRequestTimeout, genErr.Status)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestCompleteTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, time.Second).Complete(context.Background(), testRequest())

	genErr, ok := ai.AsGenerationError(err)
	require.True(t, ok)
	assert.Equal(t, ai.KindProvider, genErr.Kind)
	assert.Equal(t, "Unexpected AI provider error", genErr.Message)
	assert.NotEmpty(t, genErr.Details["error_message"])
}
