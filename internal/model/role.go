package model

import "strings"

// Permission 权限位
type Permission uint32

const (
	PermFollow Permission = 1 << iota
	PermCollect
	PermComment
	PermUpload
	PermModerate
	PermAdminister
)

var permissionNames = map[string]Permission{
	"FOLLOW":     PermFollow,
	"COLLECT":    PermCollect,
	"COMMENT":    PermComment,
	"UPLOAD":     PermUpload,
	"MODERATE":   PermModerate,
	"ADMINISTER": PermAdminister,
}

// ParsePermission 名称转权限位，未知名称返回 false
func ParsePermission(name string) (Permission, bool) {
	p, ok := permissionNames[strings.ToUpper(name)]
	return p, ok
}

func (p Permission) String() string {
	var names []string
	for _, n := range []string{"FOLLOW", "COLLECT", "COMMENT", "UPLOAD", "MODERATE", "ADMINISTER"} {
		if p&permissionNames[n] != 0 {
			names = append(names, n)
		}
	}
	return strings.Join(names, "|")
}

const (
	RoleLocked        = "Locked"
	RoleUser          = "User"
	RoleModerator     = "Moderator"
	RoleAdministrator = "Administrator"
)

// RoleSpec 角色种子定义，Level 取自下标
type RoleSpec struct {
	Name        string
	Permissions Permission
}

// CanonicalRoles 按等级从低到高排列
var CanonicalRoles = []RoleSpec{
	{Name: RoleLocked, Permissions: PermFollow | PermCollect},
	{Name: RoleUser, Permissions: PermFollow | PermCollect | PermComment | PermUpload},
	{Name: RoleModerator, Permissions: PermFollow | PermCollect | PermComment | PermUpload | PermModerate},
	{Name: RoleAdministrator, Permissions: PermFollow | PermCollect | PermComment | PermUpload | PermModerate | PermAdminister},
}

type Role struct {
	ID          uint64     `gorm:"primaryKey" json:"id"`
	Name        string     `gorm:"uniqueIndex;size:30;not null" json:"name"`
	Level       int        `gorm:"not null;default:0" json:"level"`
	Permissions Permission `gorm:"not null;default:0" json:"permissions"`
}

func (Role) TableName() string { return "roles" }

func (r *Role) Has(p Permission) bool {
	return r != nil && p != 0 && r.Permissions&p == p
}
