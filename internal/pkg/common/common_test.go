package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAbortWithCustomError(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	AbortWithError(c, ErrNotFound.WithMessage("Recipe not found"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.True(t, c.IsAborted())
	assert.JSONEq(t, `{"error":{"code":"NOT_FOUND","message":"Recipe not found"}}`, rec.Body.String())
	assert.Equal(t, "Resource not found", ErrNotFound.Message)
}

func TestAbortWithPlainErrorHidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	AbortWithError(c, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
	require.Len(t, c.Errors, 1)
}

func TestWriteErrorWithDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	WriteError(c, http.StatusBadGateway, "AI_PROVIDER_ERROR", "AI provider error", map[string]interface{}{"status": 500})

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "AI_PROVIDER_ERROR", resp.Error.Code)
	assert.Equal(t, float64(500), resp.Error.Details["status"])
}

func TestCustomErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := NewError(ErrCodeDatabaseError, "Failed", http.StatusInternalServerError, cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "disk full", err.Error())
	assert.Equal(t, "Failed", ErrDatabaseError.WithMessage("Failed").Error())
}

func TestParseJSONRejectsTrailingData(t *testing.T) {
	var v map[string]interface{}
	assert.NoError(t, ParseJSON(`{"a":1}`, &v))
	assert.Error(t, ParseJSON(`{"a":1} {"b":2}`, &v))
	assert.Error(t, ParseJSONBytes([]byte(`{"a":`), &v))

	var n map[string]interface{}
	require.NoError(t, ParseJSONBytes([]byte(`{"n":12345678901234567890}`), &n))
	assert.Equal(t, json.Number("12345678901234567890"), n["n"])
}

func TestIsUUID(t *testing.T) {
	assert.True(t, IsUUID(GenerateUUID()))
	assert.True(t, IsUUID("123e4567-e89b-12d3-a456-426614174000"))
	assert.False(t, IsUUID("123e4567e89b12d3a456426614174000"))
	assert.False(t, IsUUID("urn:uuid:123e4567-e89b-12d3-a456-426614174000"))
	assert.False(t, IsUUID("not-a-uuid"))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "****", MaskSecret("short"))
	assert.Equal(t, "sk-o...cdef", MaskSecret("sk-or-v1-abcdef"))
}

func TestFilterFieldsDropsSecrets(t *testing.T) {
	fields := filterFields([]zap.Field{
		zap.String("api_key", "secret"),
		zap.String("model", "gpt"),
	})
	require.Len(t, fields, 1)
	assert.Equal(t, "model", fields[0].Key)
}
