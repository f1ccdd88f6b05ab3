package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"Albumy/internal/config"
	"Albumy/internal/model"
	"Albumy/internal/pkg"

	qt "github.com/frankban/quicktest"
)

type countingMailer struct {
	mu   sync.Mutex
	sent []pkg.Message
	err  error
}

func (m *countingMailer) Send(_ context.Context, msg pkg.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.err
}

func (m *countingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func TestMailDispatcherDeliversAndStops(t *testing.T) {
	c := qt.New(t)
	mailer := &countingMailer{err: errors.New("smtp down")}
	d := NewMailDispatcher(mailer, 2, 8)
	d.Start(context.Background())

	for i := 0; i < 5; i++ {
		c.Assert(d.Enqueue(pkg.Message{To: "a@example.com"}), qt.IsTrue)
	}
	d.Stop()
	c.Assert(mailer.count(), qt.Equals, 5)
	c.Assert(d.Enqueue(pkg.Message{To: "late@example.com"}), qt.IsFalse)
	d.Stop()
}

func TestMailDispatcherDropsWhenFull(t *testing.T) {
	c := qt.New(t)
	d := NewMailDispatcher(&countingMailer{}, 1, 1)
	// 未启动 worker，队列只能放一封
	c.Assert(d.Enqueue(pkg.Message{To: "a@example.com"}), qt.IsTrue)
	c.Assert(d.Enqueue(pkg.Message{To: "b@example.com"}), qt.IsFalse)
}

type rejectingQueue struct{}

func (rejectingQueue) Enqueue(pkg.Message) bool { return false }

func TestEmailServiceThrottle(t *testing.T) {
	c := qt.New(t)
	cfg := config.Default()
	tokens := pkg.NewTokenIssuer(cfg.JWT)
	user := &model.User{ID: 7, Email: "a@example.com", Username: "a"}
	ctx := context.Background()

	queue := &recordingQueue{}
	throttle := NewMemoryThrottle()
	svc := NewEmailService(queue, throttle, tokens, "http://albumy.test/", time.Minute)
	c.Assert(svc.SendConfirm(ctx, user), qt.IsNil)
	c.Assert(IsCode(svc.SendConfirm(ctx, user), ErrorCodeRateLimited), qt.IsTrue)
	// 不同用途互不影响
	c.Assert(svc.SendResetPassword(ctx, user), qt.IsNil)
	c.Assert(queue.sent(), qt.HasLen, 2)
	c.Assert(queue.sent()[0].HTML, qt.Contains, "http://albumy.test/auth/confirm?token=")

	// 入队失败时释放冷却，允许立即重试
	dropping := NewEmailService(rejectingQueue{}, throttle, tokens, "http://albumy.test", time.Minute)
	c.Assert(dropping.SendChangeEmail(ctx, user, "b@example.com"), qt.IsNil)
	c.Assert(dropping.SendChangeEmail(ctx, user, "b@example.com"), qt.IsNil)
}
