package service

import (
	"context"
	"log"
	"net/url"
	"strings"
	"time"

	"Albumy/internal/model"
	"Albumy/internal/pkg"
)

// 邮件冷却的 scope
const (
	scopeConfirm = "confirm"
	scopeReset   = "reset"
	scopeChange  = "change-email"
)

// MailThrottle 同一地址的邮件发送冷却
type MailThrottle interface {
	Acquire(ctx context.Context, scope, email string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, scope, email string) error
}

// EmailService 生成带签名链接的邮件并交给队列
type EmailService struct {
	queue    MailQueue
	throttle MailThrottle
	tokens   *pkg.TokenIssuer
	baseURL  string
	cooldown time.Duration
}

func NewEmailService(queue MailQueue, throttle MailThrottle, tokens *pkg.TokenIssuer, baseURL string, cooldown time.Duration) *EmailService {
	return &EmailService{
		queue:    queue,
		throttle: throttle,
		tokens:   tokens,
		baseURL:  strings.TrimRight(baseURL, "/"),
		cooldown: cooldown,
	}
}

func (s *EmailService) link(path, token string) string {
	return s.baseURL + path + "?token=" + url.QueryEscape(token)
}

// acquire 冷却中返回 RateLimited；redis 故障时放行
func (s *EmailService) acquire(ctx context.Context, scope, email string) error {
	if s.throttle == nil || s.cooldown <= 0 {
		return nil
	}
	ok, err := s.throttle.Acquire(ctx, scope, email, s.cooldown)
	if err != nil {
		log.Printf("mail throttle unavailable: %v", err)
		return nil
	}
	if !ok {
		return NewRateLimitedError("email already sent, please wait a moment before retrying")
	}
	return nil
}

func (s *EmailService) send(ctx context.Context, scope string, msg pkg.Message) {
	if !s.queue.Enqueue(msg) && s.throttle != nil {
		_ = s.throttle.Release(ctx, scope, msg.To)
	}
}

// SendConfirm 发送邮箱确认邮件
func (s *EmailService) SendConfirm(ctx context.Context, user *model.User) error {
	if err := s.acquire(ctx, scopeConfirm, user.Email); err != nil {
		return err
	}
	token, err := s.tokens.GenerateActionToken(user.ID, pkg.OpConfirm, "")
	if err != nil {
		return err
	}
	s.send(ctx, scopeConfirm, pkg.ConfirmEmail(user.Email, user.Username, s.link("/auth/confirm", token)))
	return nil
}

// SendResetPassword 发送重置密码邮件
func (s *EmailService) SendResetPassword(ctx context.Context, user *model.User) error {
	if err := s.acquire(ctx, scopeReset, user.Email); err != nil {
		return err
	}
	token, err := s.tokens.GenerateActionToken(user.ID, pkg.OpResetPassword, "")
	if err != nil {
		return err
	}
	s.send(ctx, scopeReset, pkg.ResetPasswordEmail(user.Email, user.Username, s.link("/auth/reset-password", token)))
	return nil
}

// SendChangeEmail 发往新邮箱
func (s *EmailService) SendChangeEmail(ctx context.Context, user *model.User, newEmail string) error {
	if err := s.acquire(ctx, scopeChange, newEmail); err != nil {
		return err
	}
	token, err := s.tokens.GenerateActionToken(user.ID, pkg.OpChangeEmail, newEmail)
	if err != nil {
		return err
	}
	s.send(ctx, scopeChange, pkg.ChangeEmailEmail(newEmail, user.Username, s.link("/user/change-email", token)))
	return nil
}
