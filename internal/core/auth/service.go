package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pantry-recipes/internal/infrastructure/cache"
	"pantry-recipes/internal/infrastructure/config"
	"pantry-recipes/internal/infrastructure/persistence"
	"pantry-recipes/internal/pkg/common"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const issuer = "pantry-recipes"

var (
	// ErrInvalidCredentials email 或密碼錯誤
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailTaken email 已被註冊
	ErrEmailTaken = persistence.ErrEmailTaken
	// ErrInvalidToken token 無效、過期或類型不符
	ErrInvalidToken = errors.New("invalid token")
	// ErrSessionRevoked session 已登出
	ErrSessionRevoked = errors.New("session revoked")
)

// TokenType token 類型
type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

// Claims JWT claims
type Claims struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	TokenType TokenType `json:"token_type"`
	SessionID string    `json:"session_id"`
	jwt.RegisteredClaims
}

// User 回傳給客戶端的使用者資訊
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session 一組登入憑證
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Result 註冊或登入結果
type Result struct {
	User    User    `json:"user"`
	Session Session `json:"session"`
}

// UserStore 使用者存取介面
type UserStore interface {
	Create(ctx context.Context, email, passwordHash string) (*persistence.UserModel, error)
	GetByEmail(ctx context.Context, email string) (*persistence.UserModel, error)
}

// Service 驗證服務
type Service struct {
	users      UserStore
	store      cache.Store
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	cost       int
	now        func() time.Time
}

// NewService 創建驗證服務
func NewService(cfg config.AuthConfig, users UserStore, store cache.Store) *Service {
	cost := cfg.BCryptCost
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	return &Service{
		users:      users,
		store:      store,
		secret:     []byte(cfg.JWTSecret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		cost:       cost,
		now:        time.Now,
	}
}

// Signup 註冊並直接登入
func (s *Service) Signup(ctx context.Context, email, password string) (*Result, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.Create(ctx, email, string(hash))
	if err != nil {
		return nil, err
	}

	common.LogInfo("User signed up", zap.String("user_id", user.ID))
	return s.issue(user, uuid.NewString())
}

// Login 驗證密碼並簽發新 session
func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, persistence.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		common.LogDebug("Login rejected", zap.String("user_id", user.ID))
		return nil, ErrInvalidCredentials
	}

	return s.issue(user, uuid.NewString())
}

// Refresh 以刷新 token 換發同一 session 的新憑證；每個刷新 token 只能使用一次
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Result, error) {
	claims, err := s.parse(refreshToken, RefreshToken)
	if err != nil {
		return nil, err
	}

	revoked, err := s.store.Exists(ctx, revokedKey(claims.SessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to check session: %w", err)
	}
	if revoked {
		return nil, ErrSessionRevoked
	}

	first, err := s.store.SetNX(ctx, usedRefreshKey(claims.ID), claims.SessionID, s.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to record refresh token: %w", err)
	}
	if !first {
		common.LogWarn("Refresh token reused",
			zap.String("user_id", claims.UserID),
			zap.String("session_id", claims.SessionID),
		)
		return nil, ErrInvalidToken
	}

	return s.issue(&persistence.UserModel{ID: claims.UserID, Email: claims.Email}, claims.SessionID)
}

// Logout 撤銷整個 session，存取與刷新 token 同時失效
func (s *Service) Logout(ctx context.Context, claims *Claims) error {
	if err := s.store.Set(ctx, revokedKey(claims.SessionID), claims.UserID, s.refreshTTL); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	common.LogInfo("User logged out",
		zap.String("user_id", claims.UserID),
		zap.String("session_id", claims.SessionID),
	)
	return nil
}

// ValidateAccessToken 驗證存取 token 並確認 session 未被撤銷
func (s *Service) ValidateAccessToken(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString, AccessToken)
	if err != nil {
		return nil, err
	}

	revoked, err := s.store.Exists(ctx, revokedKey(claims.SessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to check session: %w", err)
	}
	if revoked {
		return nil, ErrSessionRevoked
	}
	return claims, nil
}

func (s *Service) issue(user *persistence.UserModel, sessionID string) (*Result, error) {
	now := s.now()

	access, err := s.sign(user, AccessToken, sessionID, now, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(user, RefreshToken, sessionID, now, s.refreshTTL)
	if err != nil {
		return nil, err
	}

	return &Result{
		User: User{ID: user.ID, Email: user.Email},
		Session: Session{
			AccessToken:  access,
			RefreshToken: refresh,
			ExpiresAt:    now.Add(s.accessTTL).UTC(),
		},
	}, nil
}

func (s *Service) sign(user *persistence.UserModel, typ TokenType, sessionID string, now time.Time, ttl time.Duration) (string, error) {
	claims := &Claims{
		UserID:    user.ID,
		Email:     user.Email,
		TokenType: typ,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

func (s *Service) parse(tokenString string, expected TokenType) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != expected || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func revokedKey(sessionID string) string {
	return "session:revoked:" + sessionID
}

func usedRefreshKey(tokenID string) string {
	return "session:refresh_used:" + tokenID
}
