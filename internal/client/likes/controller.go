package likes

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"pantry-recipes/internal/client"
	"pantry-recipes/internal/pkg/common"

	"go.uber.org/zap"
)

// ErrorKind 切換失敗分類
type ErrorKind string

const (
	KindUnauthorized ErrorKind = "UNAUTHORIZED"
	KindNotFound     ErrorKind = "NOT_FOUND"
	KindBadRequest   ErrorKind = "BAD_REQUEST"
	KindServer       ErrorKind = "SERVER"
	KindNetwork      ErrorKind = "NETWORK"
	KindUnknown      ErrorKind = "UNKNOWN"
)

const (
	msgNotFound     = "This recipe is no longer available. The list has been refreshed."
	msgUnauthorized = "Your session has expired. Please sign in again."
	msgNetwork      = "No connection. Please try again."
	msgSaveFailed   = "Could not save your like. Please try again."
)

// ToggleError 單一食譜的切換錯誤
type ToggleError struct {
	Kind     ErrorKind
	Message  string
	Status   int    // 沒有回應時為 0
	Code     string // 伺服器錯誤代碼
	RecipeID string
	Err      error
}

func (e *ToggleError) Error() string {
	return fmt.Sprintf("toggle %s: %s: %s", e.RecipeID, e.Kind, e.Message)
}

func (e *ToggleError) Unwrap() error {
	return e.Err
}

// Patcher 送出喜愛狀態更新
type Patcher interface {
	PatchRecipeLiked(ctx context.Context, id string, liked bool) (*client.Recipe, error)
}

// Options 控制器回呼
type Options struct {
	AccessToken    func() string
	OnUnauthorized func()
	// OnNotFound 本地資料已過期，應重新載入列表
	OnNotFound func()
}

// Controller 樂觀更新的喜愛切換控制器
//
// 同一食譜同時最多一個進行中的請求；網路呼叫在鎖外進行，不同食譜可並行。
type Controller struct {
	patcher Patcher
	opts    Options

	mu      sync.Mutex
	recipes []client.Recipe
	pending map[string]struct{}
	lastErr *ToggleError
}

// NewController 創建控制器
func NewController(patcher Patcher, opts Options, recipes []client.Recipe) *Controller {
	c := &Controller{
		patcher: patcher,
		opts:    opts,
		pending: make(map[string]struct{}),
	}
	c.recipes = cloneRecipes(recipes)
	return c
}

// Toggle 先更新本地狀態再送出請求，失敗時還原
//
// 已在進行中的 id 直接略過並回傳 nil。回呼一律在鎖外執行。
func (c *Controller) Toggle(ctx context.Context, id string, liked bool) error {
	hasToken := c.token() != ""

	c.mu.Lock()
	if _, busy := c.pending[id]; busy {
		c.mu.Unlock()
		return nil
	}
	if !hasToken {
		c.mu.Unlock()
		c.notifyUnauthorized()
		return &ToggleError{
			Kind:     KindUnauthorized,
			Message:  msgUnauthorized,
			Status:   http.StatusUnauthorized,
			Code:     common.ErrCodeUnauthorized,
			RecipeID: id,
		}
	}

	c.pending[id] = struct{}{}
	c.lastErr = nil
	previous, found := c.setLiked(id, liked)
	c.mu.Unlock()

	updated, err := c.patcher.PatchRecipeLiked(ctx, id, liked)

	c.mu.Lock()
	delete(c.pending, id)
	if err == nil {
		c.replace(*updated)
		c.mu.Unlock()
		return nil
	}

	toggleErr := classify(err, id)
	if found {
		c.setLiked(id, previous)
	}
	if toggleErr.Kind != KindUnauthorized {
		c.lastErr = toggleErr
	}
	c.mu.Unlock()

	common.LogWarn("Like toggle failed",
		zap.String("recipe_id", id),
		zap.String("kind", string(toggleErr.Kind)),
		zap.Int("status", toggleErr.Status),
		zap.Error(err),
	)

	switch toggleErr.Kind {
	case KindUnauthorized:
		c.notifyUnauthorized()
	case KindNotFound:
		if c.opts.OnNotFound != nil {
			c.opts.OnNotFound()
		}
	}

	return toggleErr
}

// IsPending 是否有進行中的請求
func (c *Controller) IsPending(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[id]
	return ok
}

// Pending 進行中的 id
func (c *Controller) Pending() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.pending))
	for id := range c.pending {
		ids = append(ids, id)
	}
	return ids
}

// LastError 最近一次切換錯誤
func (c *Controller) LastError() *ToggleError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// ClearError 清除錯誤
func (c *Controller) ClearError() {
	c.mu.Lock()
	c.lastErr = nil
	c.mu.Unlock()
}

// Recipes 目前的食譜副本
func (c *Controller) Recipes() []client.Recipe {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneRecipes(c.recipes)
}

// SetRecipes 以重新載入的列表取代本地資料
func (c *Controller) SetRecipes(recipes []client.Recipe) {
	c.mu.Lock()
	c.recipes = cloneRecipes(recipes)
	c.mu.Unlock()
}

func (c *Controller) token() string {
	if c.opts.AccessToken == nil {
		return ""
	}
	return c.opts.AccessToken()
}

func (c *Controller) notifyUnauthorized() {
	if c.opts.OnUnauthorized != nil {
		c.opts.OnUnauthorized()
	}
}

// setLiked 呼叫前需持有鎖
func (c *Controller) setLiked(id string, liked bool) (previous bool, found bool) {
	for i := range c.recipes {
		if c.recipes[i].ID == id {
			previous = c.recipes[i].Liked
			c.recipes[i].Liked = liked
			return previous, true
		}
	}
	return false, false
}

// replace 呼叫前需持有鎖
func (c *Controller) replace(recipe client.Recipe) {
	for i := range c.recipes {
		if c.recipes[i].ID == recipe.ID {
			c.recipes[i] = recipe
			return
		}
	}
}

func classify(err error, id string) *ToggleError {
	out := &ToggleError{
		Kind:     KindUnknown,
		Message:  msgSaveFailed,
		RecipeID: id,
		Err:      err,
	}

	if apiErr, ok := client.AsAPIError(err); ok {
		out.Status = apiErr.Status
		out.Code = apiErr.Code
		switch {
		case apiErr.Status == http.StatusNotFound:
			out.Kind, out.Message = KindNotFound, msgNotFound
		case apiErr.Status == http.StatusUnauthorized:
			out.Kind, out.Message = KindUnauthorized, msgUnauthorized
		case apiErr.Status == http.StatusBadRequest:
			out.Kind = KindBadRequest
		case apiErr.Status >= http.StatusInternalServerError:
			out.Kind = KindServer
		}
		return out
	}

	if errors.Is(err, client.ErrNetwork) {
		out.Kind, out.Message = KindNetwork, msgNetwork
	}
	return out
}

func cloneRecipes(in []client.Recipe) []client.Recipe {
	out := make([]client.Recipe, len(in))
	copy(out, in)
	return out
}
