package ai

import "context"

// 對話角色
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message 對話消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest chat completion 請求本文
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

// CompletionRequest 一次補全所需的全部輸入
type CompletionRequest struct {
	APIKey       string
	Model        string
	SystemPrompt string
	UserPrompt   string
}

// Completer 回傳模型輸出的文字內容，失敗時回傳 *GenerationError
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
