package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pantry-recipes/internal/pkg/common"

	"gorm.io/gorm"
)

// ErrRecipeNotFound 食譜不存在或不屬於該使用者
var ErrRecipeNotFound = errors.New("recipe not found")

// ListQuery 列表查詢條件
type ListQuery struct {
	Limit  int
	Cursor *time.Time // 只回傳早於此時間的食譜
	Liked  *bool
}

// RecipePage 一頁食譜
type RecipePage struct {
	Items      []RecipeModel
	NextCursor *time.Time
}

// NewRecipe 新增食譜所需欄位
type NewRecipe struct {
	Title       string
	Ingredients string
	Steps       string
}

// RecipeRepository 食譜存取
type RecipeRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRecipeRepository 創建食譜存取層
func NewRecipeRepository(db *gorm.DB) *RecipeRepository {
	return &RecipeRepository{db: db, now: time.Now}
}

// Create 新增食譜，liked 固定為 false
func (r *RecipeRepository) Create(ctx context.Context, userID string, in NewRecipe) (*RecipeModel, error) {
	model := &RecipeModel{
		ID:          common.GenerateUUID(),
		UserID:      userID,
		Title:       in.Title,
		Ingredients: in.Ingredients,
		Steps:       in.Steps,
		Liked:       false,
		CreatedAt:   r.timestamp(),
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return nil, fmt.Errorf("failed to create recipe: %w", err)
	}
	return model, nil
}

// List 依建立時間由新到舊分頁；頁面已滿時 NextCursor 為最後一筆的建立時間
func (r *RecipeRepository) List(ctx context.Context, userID string, q ListQuery) (*RecipePage, error) {
	tx := r.db.WithContext(ctx).
		Where("user_id = ?", userID)

	if q.Cursor != nil {
		tx = tx.Where("created_at < ?", q.Cursor.UTC())
	}
	if q.Liked != nil {
		tx = tx.Where("liked = ?", *q.Liked)
	}

	var models []RecipeModel
	if err := tx.Order("created_at DESC").Order("id DESC").Limit(q.Limit).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch recipes: %w", err)
	}

	page := &RecipePage{Items: models}
	if q.Limit > 0 && len(models) == q.Limit {
		last := models[len(models)-1].CreatedAt
		page.NextCursor = &last
	}
	return page, nil
}

// UpdateLiked 更新喜愛狀態並回傳最新資料
func (r *RecipeRepository) UpdateLiked(ctx context.Context, userID, id string, liked bool) (*RecipeModel, error) {
	var model RecipeModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&RecipeModel{}).
			Where("id = ? AND user_id = ?", id, userID).
			Update("liked", liked)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRecipeNotFound
		}
		return tx.Where("id = ? AND user_id = ?", id, userID).First(&model).Error
	})
	if err != nil {
		if errors.Is(err, ErrRecipeNotFound) || errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecipeNotFound
		}
		return nil, fmt.Errorf("failed to update recipe: %w", err)
	}
	return &model, nil
}

// timestamp 以 UTC 微秒精度儲存，與 postgres timestamptz 一致
func (r *RecipeRepository) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Microsecond)
}
