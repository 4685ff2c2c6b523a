package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pantry-recipes/internal/core/auth"
	"pantry-recipes/internal/infrastructure/cache"
	"pantry-recipes/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) common.ErrorBody {
	t.Helper()
	var resp common.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func perform(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRecoveryWritesEnvelope(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	rec := perform(r, http.MethodGet, "/panic", "", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, common.ErrCodeInternalError, decodeError(t, rec).Code)
}

func TestBodySizeLimit(t *testing.T) {
	r := gin.New()
	r.Use(BodySizeLimit(8))
	r.POST("/echo", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	rec := perform(r, http.MethodPost, "/echo", "0123456789", nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, common.ErrCodeTooLarge, decodeError(t, rec).Code)

	rec = perform(r, http.MethodPost, "/echo", "small", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRateLimiterPerClient(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	ok, _ := rl.Allow("a")
	assert.True(t, ok)
	ok, _ = rl.Allow("a")
	assert.True(t, ok)
	ok, wait := rl.Allow("a")
	assert.False(t, ok)
	assert.Greater(t, wait, time.Duration(0))

	ok, _ = rl.Allow("b")
	assert.True(t, ok)

	now = now.Add(31 * time.Second)
	ok, _ = rl.Allow("a")
	assert.True(t, ok)
}

func TestRateLimitMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(1, time.Minute))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/x", "", nil).Code)

	rec := perform(r, http.MethodGet, "/x", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, common.ErrCodeTooManyRequests, decodeError(t, rec).Code)
}

func TestDeduplication(t *testing.T) {
	store := cache.NewMemoryStore(100, 0)
	defer store.Close()

	calls := 0
	r := gin.New()
	r.Use(Deduplication(store, time.Minute))
	r.POST("/generate", func(c *gin.Context) {
		calls++
		c.Status(http.StatusCreated)
	})

	assert.Equal(t, http.StatusCreated, perform(r, http.MethodPost, "/generate", `{"a":1}`, nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, perform(r, http.MethodPost, "/generate", `{"a":1}`, nil).Code)
	assert.Equal(t, http.StatusCreated, perform(r, http.MethodPost, "/generate", `{"a":2}`, nil).Code)
	assert.Equal(t, 2, calls)
}

type stubValidator struct {
	claims *auth.Claims
	err    error
}

func (s stubValidator) ValidateAccessToken(_ context.Context, token string) (*auth.Claims, error) {
	if token != "good" {
		return nil, auth.ErrInvalidToken
	}
	return s.claims, s.err
}

func TestAuthMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(Auth(stubValidator{claims: &auth.Claims{UserID: "user-1", SessionID: "s"}}))
	r.GET("/me", func(c *gin.Context) {
		claims, ok := Claims(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"user_id": UserID(c), "session": claims.SessionID})
	})

	rec := perform(r, http.MethodGet, "/me", "", map[string]string{"Authorization": "Bearer good"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":"user-1","session":"s"}`, rec.Body.String())

	for name, header := range map[string]string{
		"missing":   "",
		"wrong":     "Bearer bad",
		"no scheme": "good",
		"empty":     "Bearer ",
	} {
		t.Run(name, func(t *testing.T) {
			rec := perform(r, http.MethodGet, "/me", "", map[string]string{"Authorization": header})
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, common.ErrCodeUnauthorized, decodeError(t, rec).Code)
		})
	}
}

func TestAuthMiddlewareStoreFailure(t *testing.T) {
	r := gin.New()
	r.Use(Auth(stubValidator{err: assert.AnError}))
	r.GET("/me", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := perform(r, http.MethodGet, "/me", "", map[string]string{"Authorization": "Bearer good"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
