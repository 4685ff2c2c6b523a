package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pantry-recipes/internal/pkg/common"

	"gorm.io/gorm"
)

var (
	// ErrUserNotFound 使用者不存在
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken email 已被註冊
	ErrEmailTaken = errors.New("email already registered")
)

// UserRepository 使用者存取
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository 創建使用者存取層
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create 新增使用者；email 以小寫儲存
func (r *UserRepository) Create(ctx context.Context, email, passwordHash string) (*UserModel, error) {
	model := &UserModel{
		ID:           common.GenerateUUID(),
		Email:        normalizeEmail(email),
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return model, nil
}

// GetByEmail 依 email 查詢
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*UserModel, error) {
	var model UserModel
	err := r.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	return &model, nil
}

// GetByID 依 ID 查詢
func (r *UserRepository) GetByID(ctx context.Context, id string) (*UserModel, error) {
	var model UserModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	return &model, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// isDuplicateKey TranslateError 未涵蓋的驅動仍以訊息判斷
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key")
}
