package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"pantry-recipes/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	// PageLimit FetchAllRecipes 每頁筆數
	PageLimit = 100
	// MaxPages FetchAllRecipes 最多讀取頁數
	MaxPages = 50

	defaultTimeout = 90 * time.Second
)

// ErrNetwork 請求未取得任何回應
var ErrNetwork = errors.New("network error")

// APIError 伺服器回傳的錯誤
type APIError struct {
	Status  int
	Code    string
	Message string
	Details map[string]interface{}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// AsAPIError 取出錯誤鏈中的 APIError
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// Recipe 食譜資料
type Recipe struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Ingredients string    `json:"ingredients"`
	Steps       string    `json:"steps"`
	Liked       bool      `json:"liked"`
	CreatedAt   time.Time `json:"created_at"`
}

// PageQuery 分頁查詢；零值欄位不送出
type PageQuery struct {
	Limit  int
	Cursor string
	Liked  *bool
}

// RecipePage 單頁結果
type RecipePage struct {
	Data       []Recipe `json:"data"`
	NextCursor *string  `json:"next_cursor"`
}

// GenerateResult 生成結果
type GenerateResult struct {
	Recipe           Recipe `json:"recipe"`
	GenerationTimeMs int64  `json:"generation_time_ms"`
}

// Options 客戶端設定
type Options struct {
	BaseURL string
	// AccessToken 每次請求前讀取；空字串視為未登入
	AccessToken func() string
	// OnUnauthorized 缺少憑證或收到 401 時呼叫
	OnUnauthorized func()
	Timeout        time.Duration
}

// APIClient 食譜 API 客戶端
type APIClient struct {
	http           *resty.Client
	accessToken    func() string
	onUnauthorized func()
}

// New 創建 API 客戶端
func New(opts Options) *APIClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &APIClient{
		http: resty.New().
			SetTransport(otelhttp.NewTransport(http.DefaultTransport)).
			SetBaseURL(opts.BaseURL).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
		accessToken:    opts.AccessToken,
		onUnauthorized: opts.OnUnauthorized,
	}
}

// FetchRecipesPage GET /api/recipes
func (c *APIClient) FetchRecipesPage(ctx context.Context, q PageQuery) (*RecipePage, error) {
	params := url.Values{}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Cursor != "" {
		params.Set("cursor", q.Cursor)
	}
	if q.Liked != nil {
		params.Set("liked", strconv.FormatBool(*q.Liked))
	}

	var page RecipePage
	if err := c.do(ctx, http.MethodGet, "/api/recipes", params, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// FetchAllRecipes 依序讀取所有分頁；遇到空或重複的 cursor 即停止
func (c *APIClient) FetchAllRecipes(ctx context.Context) ([]Recipe, error) {
	recipes := make([]Recipe, 0)
	cursor := ""

	for page := 0; page < MaxPages; page++ {
		resp, err := c.FetchRecipesPage(ctx, PageQuery{Limit: PageLimit, Cursor: cursor})
		if err != nil {
			return nil, err
		}
		recipes = append(recipes, resp.Data...)

		if resp.NextCursor == nil || *resp.NextCursor == "" || *resp.NextCursor == cursor {
			break
		}
		cursor = *resp.NextCursor
	}

	return recipes, nil
}

// PatchRecipeLiked PATCH /api/recipes/:id
func (c *APIClient) PatchRecipeLiked(ctx context.Context, id string, liked bool) (*Recipe, error) {
	var recipe Recipe
	body := map[string]bool{"liked": liked}
	if err := c.do(ctx, http.MethodPatch, "/api/recipes/"+url.PathEscape(id), nil, body, &recipe); err != nil {
		return nil, err
	}
	return &recipe, nil
}

// GenerateRecipe POST /api/recipes/generate
func (c *APIClient) GenerateRecipe(ctx context.Context, ingredients string, includeBasics bool) (*GenerateResult, error) {
	var result GenerateResult
	body := map[string]interface{}{
		"ingredients":    ingredients,
		"include_basics": includeBasics,
	}
	if err := c.do(ctx, http.MethodPost, "/api/recipes/generate", nil, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *APIClient) do(ctx context.Context, method, path string, params url.Values, body, out interface{}) error {
	token := ""
	if c.accessToken != nil {
		token = c.accessToken()
	}
	if token == "" {
		c.unauthorized()
		return &APIError{
			Status:  http.StatusUnauthorized,
			Code:    common.ErrCodeUnauthorized,
			Message: "Authentication required",
		}
	}

	req := c.http.R().
		SetContext(ctx).
		SetAuthToken(token)
	if len(params) > 0 {
		req.SetQueryParamsFromValues(params)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		common.LogWarn("API request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}

	if resp.IsSuccess() {
		if out == nil || len(resp.Body()) == 0 {
			return nil
		}
		if err := common.ParseJSONBytes(resp.Body(), out); err != nil {
			return &APIError{
				Status:  resp.StatusCode(),
				Code:    "INVALID_JSON",
				Message: "Response body is not valid JSON",
			}
		}
		return nil
	}

	apiErr := decodeError(resp)
	if apiErr.Status == http.StatusUnauthorized {
		c.unauthorized()
	}
	return apiErr
}

func (c *APIClient) unauthorized() {
	if c.onUnauthorized != nil {
		c.onUnauthorized()
	}
}

// decodeError 解析錯誤信封；本文不是 JSON 時回傳 INVALID_JSON，格式不符時保留狀態碼
func decodeError(resp *resty.Response) *APIError {
	apiErr := &APIError{
		Status:  resp.StatusCode(),
		Code:    "UNKNOWN",
		Message: http.StatusText(resp.StatusCode()),
	}
	if apiErr.Message == "" {
		apiErr.Message = "Request failed"
	}
	if len(resp.Body()) == 0 {
		return apiErr
	}

	if !json.Valid(resp.Body()) {
		apiErr.Code = "INVALID_JSON"
		apiErr.Message = "Response body is not valid JSON"
		return apiErr
	}

	var envelope common.ErrorResponse
	if err := common.ParseJSONBytes(resp.Body(), &envelope); err == nil &&
		envelope.Error.Code != "" && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
		apiErr.Details = envelope.Error.Details
	}
	return apiErr
}
