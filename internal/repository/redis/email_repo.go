package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const MailThrottlePrefix = "mail:throttle"

var ErrThrottleFailed = errors.New("mail throttle failed")

// EmailRepository 邮件发送冷却，同一 scope+邮箱 在 TTL 内只允许发一次
type EmailRepository struct {
	Client *redis.Client
	Prefix string
}

func (e *EmailRepository) throttleKey(scope, email string) string {
	return key(e.Prefix, MailThrottlePrefix, scope, strings.ToLower(email))
}

// Acquire 使用 SET NX PX 抢占发送窗口，返回 false 表示仍在冷却
func (e *EmailRepository) Acquire(ctx context.Context, scope, email string, ttl time.Duration) (bool, error) {
	ok, err := e.Client.SetNX(ctx, e.throttleKey(scope, email), time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, ErrThrottleFailed
	}
	return ok, nil
}

// Release 发送失败时释放窗口（幂等）
func (e *EmailRepository) Release(ctx context.Context, scope, email string) error {
	err := e.Client.Del(ctx, e.throttleKey(scope, email)).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return ErrThrottleFailed
	}
	return nil
}
