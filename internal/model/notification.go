package model

import "time"

const (
	NotifyFollow  = "follow"
	NotifyComment = "comment"
	NotifyCollect = "collect"
)

type Notification struct {
	ID         uint64    `gorm:"primaryKey" json:"id"`
	Kind       string    `gorm:"size:16;not null" json:"kind"`
	Message    string    `gorm:"type:text;not null" json:"message"`
	IsRead     bool      `gorm:"not null;index" json:"is_read"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
	ReceiverID uint64    `gorm:"not null;index" json:"receiver_id"`
}

func (Notification) TableName() string { return "notifications" }

// All 所有需要建表的模型
func All() []any {
	return []any{
		&Role{},
		&User{},
		&Follow{},
		&Collect{},
		&Photo{},
		&Tag{},
		&PhotoTag{},
		&Comment{},
		&Notification{},
		&SocialOutbox{},
	}
}
