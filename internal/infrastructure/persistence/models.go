package persistence

import "time"

// UserModel 使用者資料表
type UserModel struct {
	ID           string    `gorm:"type:char(36);primaryKey"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string    `gorm:"type:varchar(255);not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

// TableName 資料表名稱
func (UserModel) TableName() string {
	return "users"
}

// RecipeModel 食譜資料表；列表依 (user_id, created_at) 查詢
type RecipeModel struct {
	ID          string    `gorm:"type:char(36);primaryKey"`
	UserID      string    `gorm:"type:char(36);not null;index:idx_recipes_user_created,priority:1"`
	Title       string    `gorm:"type:text;not null"`
	Ingredients string    `gorm:"type:text;not null"`
	Steps       string    `gorm:"type:text;not null"`
	Liked       bool      `gorm:"not null;default:false"`
	CreatedAt   time.Time `gorm:"not null;index:idx_recipes_user_created,priority:2"`
	UpdatedAt   time.Time
}

// TableName 資料表名稱
func (RecipeModel) TableName() string {
	return "recipes"
}
