package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrTokenNotFound    = errors.New("token not found")
	ErrRedisUnavailable = errors.New("redis unavailable")
	ErrExtendFailed     = errors.New("token extend failed")
	ErrTokenDeleted     = errors.New("token delete failed")
)

const UserTokenPrefix = "login:user:token"

// UserRepository 登录态 token 存储，每个用户只保留最新的 access token
type UserRepository struct {
	Client *redis.Client
	Prefix string
}

func (r *UserRepository) tokenKey(userID uint64) string {
	return key(r.Prefix, UserTokenPrefix, strconv.FormatUint(userID, 10))
}

func (r *UserRepository) AddUserToken(ctx context.Context, userID uint64, token string, ttl time.Duration) error {
	if err := r.Client.Set(ctx, r.tokenKey(userID), token, ttl).Err(); err != nil {
		return ErrRedisUnavailable
	}
	return nil
}

func (r *UserRepository) GetUserToken(ctx context.Context, userID uint64) (string, error) {
	token, err := r.Client.Get(ctx, r.tokenKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", ErrRedisUnavailable
	}
	return token, nil
}

func (r *UserRepository) ExtendUserToken(ctx context.Context, userID uint64, ttl time.Duration) error {
	if err := r.Client.Expire(ctx, r.tokenKey(userID), ttl).Err(); err != nil {
		return ErrExtendFailed
	}
	return nil
}

func (r *UserRepository) DeleteUserToken(ctx context.Context, userID uint64) error {
	if err := r.Client.Del(ctx, r.tokenKey(userID)).Err(); err != nil {
		return ErrTokenDeleted
	}
	return nil
}
