package model

import "time"

// Follow 关注关系，(follower_id, followed_id) 联合主键
type Follow struct {
	FollowerID uint64    `gorm:"primaryKey;autoIncrement:false" json:"follower_id"`
	FollowedID uint64    `gorm:"primaryKey;autoIncrement:false;index:idx_followed_id" json:"followed_id"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

// TableName sets table name for Follow
func (Follow) TableName() string {
	return "follows"
}

// Collect 收藏关系，(collector_id, collected_id) 联合主键
type Collect struct {
	CollectorID uint64    `gorm:"primaryKey;autoIncrement:false" json:"collector_id"`
	CollectedID uint64    `gorm:"primaryKey;autoIncrement:false;index:idx_collected_id" json:"collected_id"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

func (Collect) TableName() string { return "collects" }

const (
	OutboxPending int8 = 0
	OutboxSent    int8 = 1
	OutboxFailed  int8 = 2
)

const (
	EventFollow    = "follow"
	EventUnfollow  = "unfollow"
	EventCollect   = "collect"
	EventUncollect = "uncollect"
	EventComment   = "comment"
)

// SocialOutbox 社交事件 outbox 表，Actor 发起方，Target 为用户或图片 id
type SocialOutbox struct {
	ID        uint64 `gorm:"primaryKey"`
	EventType string `gorm:"size:16;not null"`
	Actor     uint64 `gorm:"not null"`
	Target    uint64 `gorm:"not null"`
	Payload   string `gorm:"type:text;not null"`
	Status    int8   `gorm:"not null;default:0;index;comment:'0=pending,1=sent,2=failed'"`
	Retry     int    `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (SocialOutbox) TableName() string { return "social_outbox" }
