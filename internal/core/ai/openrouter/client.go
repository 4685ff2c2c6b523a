package openrouter

import (
	"context"
	"errors"
	"net/http"
	"time"

	"pantry-recipes/internal/core/ai"
	"pantry-recipes/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// temperature 固定取樣溫度
const temperature = 0.7

// Client OpenRouter chat completions 客戶端
type Client struct {
	http    *resty.Client
	url     string
	timeout time.Duration
}

// NewClient 創建新的 OpenRouter 客戶端；timeout 為單次請求的總等待上限
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		http: resty.New().
			SetTransport(otelhttp.NewTransport(http.DefaultTransport)).
			SetHeader("HTTP-Referer", "https://pantry-recipes.app").
			SetHeader("X-Title", "Pantry Recipes"),
		url:     url,
		timeout: timeout,
	}
}

// Timeout 單次請求的等待上限
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Complete 發送 system/user 兩則訊息並回傳模型輸出內容
func (c *Client) Complete(ctx context.Context, req ai.CompletionRequest) (string, error) {
	// 計時器在所有路徑上都會被釋放
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body := ai.ChatRequest{
		Model: req.Model,
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Content: req.SystemPrompt},
			{Role: ai.RoleUser, Content: req.UserPrompt},
		},
		Temperature: temperature,
	}

	common.LogDebug("Sending request to OpenRouter",
		zap.String("model", req.Model),
		zap.Int("messages", len(body.Messages)),
	)

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+req.APIKey).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(c.url)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			common.LogWarn("OpenRouter request aborted",
				zap.String("model", req.Model),
				zap.Duration("elapsed", time.Since(start)),
				zap.Duration("timeout", c.timeout),
			)
			return "", ai.NewTimeoutError(err)
		}
		common.LogError("Failed to send request to AI service",
			zap.Error(err),
			zap.String("model", req.Model),
		)
		return "", ai.NewProviderError("Unexpected AI provider error", map[string]interface{}{
			"error_message": err.Error(),
		}, err)
	}

	payload := decodePayload(resp.Body())

	if !resp.IsSuccess() {
		common.LogError("AI service returned error status",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("model", req.Model),
			zap.Duration("elapsed", time.Since(start)),
		)
		return "", ai.NewProviderError("AI provider error", map[string]interface{}{
			"status":  resp.StatusCode(),
			"payload": payload,
		}, nil)
	}

	content, ok := extractContent(payload)
	if !ok {
		common.LogError("AI response missing content",
			zap.String("model", req.Model),
			zap.Int("body_length", len(resp.Body())),
		)
		return "", ai.NewInvalidResponseError("AI response missing content", map[string]interface{}{
			"payload": payload,
		}, nil)
	}

	common.LogInfo("Successfully generated response from AI service",
		zap.String("model", req.Model),
		zap.Int("content_length", len(content)),
		zap.Duration("elapsed", time.Since(start)),
	)

	return content, nil
}

// decodePayload 解析回應本文；非 JSON 時回傳 nil
func decodePayload(body []byte) interface{} {
	if len(body) == 0 {
		return nil
	}
	var payload interface{}
	if err := common.ParseJSONBytes(body, &payload); err != nil {
		return nil
	}
	return payload
}

// extractContent 取出 choices[0].message.content，僅接受字串
func extractContent(payload interface{}) (string, bool) {
	root, ok := payload.(map[string]interface{})
	if !ok {
		return "", false
	}
	choices, ok := root["choices"].([]interface{})
	if !ok || len(choices) == 0 {
		return "", false
	}
	choice, ok := choices[0].(map[string]interface{})
	if !ok {
		return "", false
	}
	message, ok := choice["message"].(map[string]interface{})
	if !ok {
		return "", false
	}
	content, ok := message["content"].(string)
	return content, ok
}

// Close 關閉閒置連線
func (c *Client) Close() error {
	c.http.GetClient().CloseIdleConnections()
	return nil
}
