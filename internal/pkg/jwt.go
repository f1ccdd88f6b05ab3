package pkg

import (
	"errors"
	"time"

	"Albumy/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenInvalid      = errors.New("token invalid")
	ErrRefreshExpired    = errors.New("refresh expired")
	ErrRefreshInvalid    = errors.New("refresh invalid")
	ErrTokenParseFailure = errors.New("token parse failure")
)

// 一次性操作令牌的用途
const (
	OpConfirm       = "confirm"
	OpResetPassword = "reset-password"
	OpChangeEmail   = "change-email"
)

type Claims struct {
	UserID uint64 `json:"user_id"`
	jwt.RegisteredClaims
}

// ActionClaims 邮件链接里的签名载荷
type ActionClaims struct {
	UserID    uint64 `json:"id"`
	Operation string `json:"operation"`
	NewEmail  string `json:"new_email,omitempty"`
	jwt.RegisteredClaims
}

type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// TokenIssuer 三类令牌使用不同密钥
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	actionSecret  []byte

	AccessTTL  time.Duration
	RefreshTTL time.Duration
	ActionTTL  time.Duration
}

func NewTokenIssuer(cfg config.JWTConfig) *TokenIssuer {
	return &TokenIssuer{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		actionSecret:  []byte(cfg.ActionSecret),
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
		ActionTTL:     cfg.ActionTTL,
	}
}

func (t *TokenIssuer) GeneratePair(userID uint64) (*Pair, error) {
	now := time.Now()

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.AccessTTL)),
			Subject:   "access",
			ID:        uuid.NewString(),
		},
	})
	accessToken, err := access.SignedString(t.accessSecret)
	if err != nil {
		return nil, err
	}

	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.RefreshTTL)),
			Subject:   "refresh",
			ID:        uuid.NewString(),
		},
	})
	refreshToken, err := refresh.SignedString(t.refreshSecret)
	if err != nil {
		return nil, err
	}

	return &Pair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// ParseAccess 解析 access
func (t *TokenIssuer) ParseAccess(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (any, error) {
		return t.accessSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		default:
			return nil, ErrTokenInvalid
		}
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject != "access" {
		return nil, ErrTokenParseFailure
	}
	return claims, nil
}

// Refresh 校验 refresh 并签发新的一对，返回所属用户
func (t *TokenIssuer) Refresh(refreshToken string) (*Pair, uint64, error) {
	token, err := jwt.ParseWithClaims(refreshToken, &Claims{}, func(*jwt.Token) (any, error) {
		return t.refreshSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, 0, ErrRefreshExpired
		}
		return nil, 0, ErrRefreshInvalid
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject != "refresh" {
		return nil, 0, ErrRefreshInvalid
	}
	pair, err := t.GeneratePair(claims.UserID)
	if err != nil {
		return nil, 0, err
	}
	return pair, claims.UserID, nil
}

// GenerateActionToken 生成邮件确认、重置密码、修改邮箱用的令牌
func (t *TokenIssuer) GenerateActionToken(userID uint64, operation, newEmail string) (string, error) {
	return t.generateAction(userID, operation, newEmail, t.ActionTTL)
}

func (t *TokenIssuer) generateAction(userID uint64, operation, newEmail string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, ActionClaims{
		UserID:    userID,
		Operation: operation,
		NewEmail:  newEmail,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(t.actionSecret)
}

// ParseActionToken 签名错误、过期、格式错误统一返回 ErrTokenInvalid
func (t *TokenIssuer) ParseActionToken(tokenStr string) (*ActionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &ActionClaims{}, func(*jwt.Token) (any, error) {
		return t.actionSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, ErrTokenInvalid
	}
	claims, ok := token.Claims.(*ActionClaims)
	if !ok || claims.Operation == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
