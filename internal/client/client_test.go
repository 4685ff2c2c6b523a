package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func token(v string) func() string { return func() string { return v } }

func newTestClient(t *testing.T, h http.HandlerFunc, onUnauthorized func()) *APIClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Options{
		BaseURL:        srv.URL,
		AccessToken:    token("tok"),
		OnUnauthorized: onUnauthorized,
	})
}

func TestFetchRecipesPageSendsQuery(t *testing.T) {
	var gotQuery, gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"r1","title":"Soup","ingredients":"x","steps":"y","liked":true,"created_at":"2024-05-01T10:00:00Z"}],"next_cursor":null}`))
	}, nil)

	liked := true
	page, err := c.FetchRecipesPage(context.Background(), PageQuery{Limit: 5, Cursor: "2024-05-02T00:00:00Z", Liked: &liked})

	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "cursor=2024-05-02T00%3A00%3A00Z&liked=true&limit=5", gotQuery)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "Soup", page.Data[0].Title)
	assert.True(t, page.Data[0].Liked)
	assert.Nil(t, page.NextCursor)
}

func TestFetchAllRecipesFollowsCursor(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("cursor") {
		case "":
			_, _ = fmt.Fprintf(w, `{"data":[{"id":"a"},{"id":"b"}],"next_cursor":"c1"}`)
		case "c1":
			_, _ = fmt.Fprintf(w, `{"data":[{"id":"c"}],"next_cursor":null}`)
		default:
			t.Errorf("unexpected call %d", n)
		}
	}, nil)

	recipes, err := c.FetchAllRecipes(context.Background())

	require.NoError(t, err)
	require.Len(t, recipes, 3)
	assert.Equal(t, "c", recipes[2].ID)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchAllRecipesStopsOnRepeatedCursor(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"data":[{"id":"a"}],"next_cursor":"same"}`))
	}, nil)

	recipes, err := c.FetchAllRecipes(context.Background())

	require.NoError(t, err)
	assert.Len(t, recipes, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchAllRecipesPageCap(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		_, _ = fmt.Fprintf(w, `{"data":[],"next_cursor":"cursor-%d"}`, n)
	}, nil)

	_, err := c.FetchAllRecipes(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int32(MaxPages), atomic.LoadInt32(&calls))
}

func TestPatchRecipeLiked(t *testing.T) {
	var method, path string
	var body map[string]bool
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"id":"r1","title":"Soup","liked":true}`))
	}, nil)

	recipe, err := c.PatchRecipeLiked(context.Background(), "r1", true)

	require.NoError(t, err)
	assert.Equal(t, http.MethodPatch, method)
	assert.Equal(t, "/api/recipes/r1", path)
	assert.Equal(t, map[string]bool{"liked": true}, body)
	assert.True(t, recipe.Liked)
}

func TestGenerateRecipe(t *testing.T) {
	var body map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"recipe":{"id":"r9","title":"Omelette"},"generation_time_ms":1234}`))
	}, nil)

	result, err := c.GenerateRecipe(context.Background(), "egg, milk, cheese", true)

	require.NoError(t, err)
	assert.Equal(t, "egg, milk, cheese", body["ingredients"])
	assert.Equal(t, true, body["include_basics"])
	assert.Equal(t, "Omelette", result.Recipe.Title)
	assert.Equal(t, int64(1234), result.GenerationTimeMs)
}

func TestErrorEnvelopeDecoded(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":{"code":"AI_PROVIDER_ERROR","message":"AI provider error","details":{"status":500}}}`))
	}, nil)

	_, err := c.GenerateRecipe(context.Background(), "a, b, c", false)

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "AI_PROVIDER_ERROR", apiErr.Code)
	assert.Equal(t, "AI provider error", apiErr.Message)
	assert.Contains(t, apiErr.Details, "status")
}

func TestErrorWithoutEnvelope(t *testing.T) {
	bodies := map[string]string{
		"empty":        ``,
		"other shape":  `{"message":"nope"}`,
		"string error": `{"error":"nope"}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(body))
			}, nil)

			_, err := c.PatchRecipeLiked(context.Background(), "r1", false)

			apiErr, ok := AsAPIError(err)
			require.True(t, ok)
			assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
			assert.Equal(t, "UNKNOWN", apiErr.Code)
			assert.Equal(t, "Internal Server Error", apiErr.Message)
		})
	}
}

func TestErrorBodyNotJSON(t *testing.T) {
	var notified int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`<html>expired</html>`))
	}, func() { notified++ })

	_, err := c.PatchRecipeLiked(context.Background(), "r1", false)

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "INVALID_JSON", apiErr.Code)
	assert.Equal(t, "Response body is not valid JSON", apiErr.Message)
	assert.Equal(t, 1, notified)
}

func TestUnauthorizedResponseNotifies(t *testing.T) {
	var notified int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"Invalid or expired token"}}`))
	}, func() { notified++ })

	_, err := c.FetchRecipesPage(context.Background(), PageQuery{})

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, 1, notified)
}

func TestMissingTokenSkipsRequest(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	var notified int
	c := New(Options{
		BaseURL:        srv.URL,
		AccessToken:    token(""),
		OnUnauthorized: func() { notified++ },
	})

	_, err := c.PatchRecipeLiked(context.Background(), "r1", true)

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, 1, notified)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(Options{BaseURL: url, AccessToken: token("tok")})
	_, err := c.FetchRecipesPage(context.Background(), PageQuery{})

	assert.ErrorIs(t, err, ErrNetwork)
	_, ok := AsAPIError(err)
	assert.False(t, ok)
}

func TestInvalidJSONResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}, nil)

	_, err := c.PatchRecipeLiked(context.Background(), "r1", true)

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "INVALID_JSON", apiErr.Code)
}
