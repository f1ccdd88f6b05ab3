package service

import (
	"context"
	"log"
	"time"

	"Albumy/internal/model"
	"Albumy/internal/pkg"
	"Albumy/internal/repository/mysql"

	"gorm.io/gorm"
)

type Sender func(ctx context.Context, ob *model.SocialOutbox) error

// OutboxRelayer 从 outbox 表读取社交事件并投递
type OutboxRelayer struct {
	repo      *mysql.OutboxRepository
	batchSize int
	maxRetry  int
	interval  time.Duration
	sender    Sender
}

func NewOutboxRelayer(db *gorm.DB, sender Sender, batchSize int, interval time.Duration) *OutboxRelayer {
	if batchSize <= 0 {
		batchSize = 200
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &OutboxRelayer{
		repo:      &mysql.OutboxRepository{DB: db},
		batchSize: batchSize,
		maxRetry:  5,
		interval:  interval,
		sender:    sender,
	}
}

// Run outbox启动器
func (r *OutboxRelayer) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.DrainOnce(ctx)
		}
	}
}

// DrainOnce 投递一批，返回成功条数
func (r *OutboxRelayer) DrainOnce(ctx context.Context) int {
	rows, err := r.repo.List(ctx, r.batchSize, r.maxRetry)
	if err != nil {
		log.Printf("outbox query err: %v", err)
		return 0
	}
	sent := 0
	for i := range rows {
		ob := rows[i]
		if err = r.sender(ctx, &ob); err != nil {
			log.Printf("outbox send id=%d err: %v", ob.ID, err)
			if err = r.repo.RetryUpdate(ctx, ob.ID); err != nil {
				log.Printf("outbox retry update id=%d err: %v", ob.ID, err)
			}
			continue
		}
		if err = r.repo.SuccessUpdate(ctx, ob.ID); err != nil {
			log.Printf("outbox success update id=%d err: %v", ob.ID, err)
			continue
		}
		sent++
	}
	return sent
}

// LogSender 未配置 kafka 时使用
func LogSender(_ context.Context, ob *model.SocialOutbox) error {
	log.Printf("OUTBOX SEND type=%s actor=%d target=%d payload=%s", ob.EventType, ob.Actor, ob.Target, ob.Payload)
	return nil
}

// KafkaSender 以发起人 id 作为分区 key
func KafkaSender(p *pkg.KafkaProducer) Sender {
	return func(ctx context.Context, ob *model.SocialOutbox) error {
		return p.Send(ctx, pkg.MakeKeyFromID(ob.Actor), []byte(ob.Payload), map[string]string{"event": ob.EventType})
	}
}
