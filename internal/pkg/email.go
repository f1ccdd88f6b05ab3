package pkg

import (
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"log"

	"Albumy/internal/config"

	"gopkg.in/gomail.v2"
)

// Message 已渲染好的邮件
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Mailer 邮件发送器
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer 基于 gomail 的 SMTP 发送
type SMTPMailer struct {
	cfg config.SMTPConfig
}

func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (s *SMTPMailer) Send(_ context.Context, msg Message) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)

	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: s.cfg.Host}
	return d.DialAndSend(m)
}

// LogMailer 未配置 SMTP 时只打印
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, msg Message) error {
	log.Printf("MAIL to=%s subject=%q", msg.To, msg.Subject)
	return nil
}

const subjectPrefix = "[Albumy] "

func ConfirmEmail(to, username, link string) Message {
	return Message{
		To:      to,
		Subject: subjectPrefix + "Email Confirm",
		HTML: fmt.Sprintf(`<p>Hello %s,</p><p>Welcome to Albumy! Please confirm your email:</p><p><a href="%s">%s</a></p>`,
			html.EscapeString(username), link, link),
	}
}

func ResetPasswordEmail(to, username, link string) Message {
	return Message{
		To:      to,
		Subject: subjectPrefix + "Password Reset",
		HTML: fmt.Sprintf(`<p>Hello %s,</p><p>Here is your password reset link:</p><p><a href="%s">%s</a></p><p>Ignore this mail if you did not ask for it.</p>`,
			html.EscapeString(username), link, link),
	}
}

func ChangeEmailEmail(to, username, link string) Message {
	return Message{
		To:      to,
		Subject: subjectPrefix + "Change Email Confirm",
		HTML: fmt.Sprintf(`<p>Hello %s,</p><p>Please confirm your new email address:</p><p><a href="%s">%s</a></p>`,
			html.EscapeString(username), link, link),
	}
}
