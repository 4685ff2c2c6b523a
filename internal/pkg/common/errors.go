package common

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorBody 定義 API 錯誤內容
type ErrorBody struct {
	Code    string                 `json:"code"`              // 錯誤代碼
	Message string                 `json:"message"`           // 錯誤信息
	Details map[string]interface{} `json:"details,omitempty"` // 詳細信息
}

// ErrorResponse 定義 API 錯誤響應結構
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// CustomError 定義自定義錯誤類型
type CustomError struct {
	Code    string                 // 錯誤代碼
	Message string                 // 錯誤信息
	Err     error                  // 原始錯誤
	Status  int                    // HTTP 狀態碼
	Details map[string]interface{} // 附加資訊
}

func (e *CustomError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *CustomError) Unwrap() error {
	return e.Err
}

// WithDetails 回傳附帶詳細信息的副本，不修改預定義錯誤
func (e *CustomError) WithDetails(details map[string]interface{}) *CustomError {
	clone := *e
	clone.Details = details
	return &clone
}

// WithMessage 回傳替換訊息的副本
func (e *CustomError) WithMessage(message string) *CustomError {
	clone := *e
	clone.Message = message
	return &clone
}

// NewError 創建新的自定義錯誤
func NewError(code string, message string, status int, err error) *CustomError {
	return &CustomError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// 預定義錯誤代碼
const (
	// 客戶端錯誤 (4xx)
	ErrCodeBadRequest      = "BAD_REQUEST"       // 400
	ErrCodeUnauthorized    = "UNAUTHORIZED"      // 401
	ErrCodeNotFound        = "NOT_FOUND"         // 404
	ErrCodeConflict        = "CONFLICT"          // 409
	ErrCodeTooLarge        = "PAYLOAD_TOO_LARGE" // 413
	ErrCodeTooManyRequests = "TOO_MANY_REQUESTS" // 429

	// 服務器錯誤 (5xx)
	ErrCodeInternalError      = "INTERNAL_SERVER_ERROR" // 500
	ErrCodeDatabaseError      = "DATABASE_ERROR"        // 500
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"   // 503
)

// 預定義錯誤
var (
	ErrInvalidJSON        = NewError(ErrCodeBadRequest, "Request body must be valid JSON", http.StatusBadRequest, nil)
	ErrInvalidRequest     = NewError(ErrCodeBadRequest, "Invalid request payload", http.StatusBadRequest, nil)
	ErrUnauthorized       = NewError(ErrCodeUnauthorized, "Authentication required", http.StatusUnauthorized, nil)
	ErrNotFound           = NewError(ErrCodeNotFound, "Resource not found", http.StatusNotFound, nil)
	ErrConflict           = NewError(ErrCodeConflict, "Resource already exists", http.StatusConflict, nil)
	ErrTooManyRequests    = NewError(ErrCodeTooManyRequests, "Too many requests", http.StatusTooManyRequests, nil)
	ErrInternalError      = NewError(ErrCodeInternalError, "An unexpected error occurred", http.StatusInternalServerError, nil)
	ErrDatabaseError      = NewError(ErrCodeDatabaseError, "Database operation failed", http.StatusInternalServerError, nil)
	ErrServiceUnavailable = NewError(ErrCodeServiceUnavailable, "Service temporarily unavailable", http.StatusServiceUnavailable, nil)
)

// WriteError 以統一格式寫入錯誤並中止後續處理
func WriteError(c *gin.Context, status int, code, message string, details map[string]interface{}) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// AbortWithError 將錯誤轉換為 API 錯誤響應；非 CustomError 一律視為 500
func AbortWithError(c *gin.Context, err error) {
	var custom *CustomError
	if errors.As(err, &custom) {
		if err != custom {
			_ = c.Error(err)
		}
		WriteError(c, custom.Status, custom.Code, custom.Message, custom.Details)
		return
	}

	_ = c.Error(err)
	WriteError(c, ErrInternalError.Status, ErrInternalError.Code, ErrInternalError.Message, nil)
}
