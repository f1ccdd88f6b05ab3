package service

import (
	"context"
	"log"
	"sync"
	"time"

	"Albumy/internal/pkg"
)

// MailQueue 异步投递邮件，调用方不等待结果
type MailQueue interface {
	Enqueue(msg pkg.Message) bool
}

// MailDispatcher channel + worker 的邮件队列
type MailDispatcher struct {
	mailer  pkg.Mailer
	queue   chan pkg.Message
	workers int
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewMailDispatcher(mailer pkg.Mailer, workers, size int) *MailDispatcher {
	if workers <= 0 {
		workers = 1
	}
	if size <= 0 {
		size = 64
	}
	return &MailDispatcher{
		mailer:  mailer,
		queue:   make(chan pkg.Message, size),
		workers: workers,
		timeout: 30 * time.Second,
	}
}

// Start 启动 worker，ctx 结束后 worker 退出
func (d *MailDispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work(ctx)
	}
}

func (d *MailDispatcher) work(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-d.queue:
			if !ok {
				return
			}
			d.deliver(ctx, msg)
		}
	}
}

func (d *MailDispatcher) deliver(ctx context.Context, msg pkg.Message) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()
	if err := d.mailer.Send(sendCtx, msg); err != nil {
		log.Printf("mail send to %s failed: %v", msg.To, err)
	}
}

// Enqueue 队列满或已关闭时丢弃并返回 false
func (d *MailDispatcher) Enqueue(msg pkg.Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	select {
	case d.queue <- msg:
		return true
	default:
		log.Printf("mail queue full, drop mail to %s", msg.To)
		return false
	}
}

// Stop 关闭队列并等待剩余邮件发完
func (d *MailDispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}
