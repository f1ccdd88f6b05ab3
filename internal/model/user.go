package model

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID           uint64    `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:30" json:"name"`
	Email        string    `gorm:"uniqueIndex;size:254;not null" json:"email"`
	Username     string    `gorm:"uniqueIndex;size:20;not null" json:"username"`
	PasswordHash string    `gorm:"column:password_hash;size:128" json:"-"`
	Website      string    `gorm:"size:255" json:"website"`
	Bio          string    `gorm:"size:120" json:"bio"`
	Location     string    `gorm:"size:50" json:"location"`
	MemberSince  time.Time `gorm:"index" json:"member_since"`
	Confirmed    bool      `gorm:"not null" json:"confirmed"`
	Active       bool      `gorm:"not null" json:"active"`
	Locked       bool      `gorm:"not null" json:"locked"`

	AvatarS   string `gorm:"size:64" json:"avatar_s"`
	AvatarM   string `gorm:"size:64" json:"avatar_m"`
	AvatarL   string `gorm:"size:64" json:"avatar_l"`
	AvatarRaw string `gorm:"size:64" json:"-"`

	ReceiveFollowNotification  bool `gorm:"not null" json:"receive_follow_notification"`
	ReceiveCommentNotification bool `gorm:"not null" json:"receive_comment_notification"`
	ReceiveCollectNotification bool `gorm:"not null" json:"receive_collect_notification"`
	PublicCollections          bool `gorm:"not null" json:"public_collections"`

	RoleID uint64 `gorm:"not null;index" json:"role_id"`
	Role   *Role  `gorm:"foreignKey:RoleID" json:"role,omitempty"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (User) TableName() string { return "users" }

// NewUser 按默认值构造用户；布尔列不走 gorm default，避免 false 被吞掉
func NewUser(name, email, username string) *User {
	return &User{
		Name:                       name,
		Email:                      strings.ToLower(strings.TrimSpace(email)),
		Username:                   strings.TrimSpace(username),
		MemberSince:                time.Now(),
		Active:                     true,
		ReceiveFollowNotification:  true,
		ReceiveCommentNotification: true,
		ReceiveCollectNotification: true,
		PublicCollections:          true,
	}
}

func (u *User) SetPassword(plain string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

func (u *User) ValidatePassword(plain string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(plain)) == nil
}

// Can 需要先 Preload Role
func (u *User) Can(p Permission) bool {
	return u != nil && u.Role.Has(p)
}

// CanNamed 未知权限名返回 false
func (u *User) CanNamed(name string) bool {
	p, ok := ParsePermission(name)
	if !ok {
		return false
	}
	return u.Can(p)
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role != nil && u.Role.Name == RoleAdministrator
}

// Level 无角色时为 -1，低于任何角色
func (u *User) Level() int {
	if u == nil || u.Role == nil {
		return -1
	}
	return u.Role.Level
}
