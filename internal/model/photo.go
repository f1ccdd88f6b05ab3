package model

import "time"

type Photo struct {
	ID          uint64    `gorm:"primaryKey" json:"id"`
	Description string    `gorm:"size:500" json:"description"`
	Filename    string    `gorm:"size:64;not null" json:"filename"`
	FilenameM   string    `gorm:"size:64;not null" json:"filename_m"`
	FilenameS   string    `gorm:"size:64;not null" json:"filename_s"`
	Flag        int       `gorm:"not null;default:0" json:"flag"`
	CanComment  bool      `gorm:"not null" json:"can_comment"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
	AuthorID    uint64    `gorm:"not null;index" json:"author_id"`
}

func (Photo) TableName() string { return "photos" }

// Files 三个尺寸对应的存储 key，可能重复
func (p *Photo) Files() []string {
	return []string{p.Filename, p.FilenameM, p.FilenameS}
}

type Tag struct {
	ID   uint64 `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:64;not null;index" json:"name"`
}

func (Tag) TableName() string { return "tags" }

// PhotoTag 图片-标签关联表
type PhotoTag struct {
	PhotoID uint64 `gorm:"primaryKey;autoIncrement:false"`
	TagID   uint64 `gorm:"primaryKey;autoIncrement:false;index"`
}

func (PhotoTag) TableName() string { return "photo_tags" }

type Comment struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	Flag      int       `gorm:"not null;default:0" json:"flag"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	PhotoID   uint64    `gorm:"not null;index" json:"photo_id"`
	AuthorID  uint64    `gorm:"not null;index" json:"author_id"`
	RepliedID *uint64   `gorm:"index" json:"replied_id,omitempty"`
}

func (Comment) TableName() string { return "comments" }
