package ai

import (
	"errors"
	"net/http"
)

// ErrorKind 生成流程的錯誤種類，四者互斥
type ErrorKind string

const (
	KindConfig          ErrorKind = "CONFIG_ERROR"
	KindProvider        ErrorKind = "AI_PROVIDER_ERROR"
	KindInvalidResponse ErrorKind = "INVALID_RESPONSE"
	KindTimeout         ErrorKind = "TIMEOUT"
)

// GenerationError 生成流程錯誤
type GenerationError struct {
	Kind    ErrorKind
	Message string
	Status  int
	Details map[string]interface{}
	Err     error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Retryable 除設定錯誤外，重送同一請求都有機會成功
func (e *GenerationError) Retryable() bool {
	return e.Kind != KindConfig
}

// Presentation 給使用者看的標題與訊息
type Presentation struct {
	Title     string `json:"title"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// Present 將錯誤轉為使用者可讀的內容
func (e *GenerationError) Present() Presentation {
	p := Presentation{Retryable: e.Retryable()}
	switch e.Kind {
	case KindConfig:
		p.Title = "Service misconfigured"
		p.Message = "Recipe generation is not configured on this server."
	case KindTimeout:
		p.Title = "Request timed out"
		p.Message = "Generating the recipe took too long. Please try again."
	case KindInvalidResponse:
		p.Title = "Unreadable recipe"
		p.Message = "The assistant returned an incomplete recipe. Please try again."
	default:
		p.Title = "Service unavailable"
		p.Message = "The recipe service is temporarily unavailable. Please try again."
	}
	return p
}

// NewConfigError 缺少設定
func NewConfigError(message string) *GenerationError {
	return &GenerationError{Kind: KindConfig, Message: message, Status: http.StatusInternalServerError}
}

// NewProviderError 供應商回傳失敗或不可預期錯誤
func NewProviderError(message string, details map[string]interface{}, err error) *GenerationError {
	return &GenerationError{Kind: KindProvider, Message: message, Status: http.StatusBadGateway, Details: details, Err: err}
}

// NewInvalidResponseError 內容無法解析或欄位不完整
func NewInvalidResponseError(message string, details map[string]interface{}, err error) *GenerationError {
	return &GenerationError{Kind: KindInvalidResponse, Message: message, Status: http.StatusBadGateway, Details: details, Err: err}
}

// NewTimeoutError 超過等待上限
func NewTimeoutError(err error) *GenerationError {
	return &GenerationError{Kind: KindTimeout, Message: "AI request timed out", Status: http.StatusRequestTimeout, Err: err}
}

// AsGenerationError 取出錯誤鏈中的 GenerationError
func AsGenerationError(err error) (*GenerationError, bool) {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr, true
	}
	return nil, false
}
