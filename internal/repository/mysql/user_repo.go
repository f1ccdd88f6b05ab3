package mysql

import (
	"context"
	"strings"

	"Albumy/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository struct {
	DB *gorm.DB
}

type RoleRepository struct {
	DB *gorm.DB
}

// 用户列表过滤条件
const (
	UserFilterAll           = "all"
	UserFilterLocked        = "locked"
	UserFilterBlocked       = "blocked"
	UserFilterAdministrator = "administrator"
	UserFilterModerator     = "moderator"
)

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.DB.WithContext(ctx).Omit(clause.Associations).Create(user).Error
}

// Save 全字段更新，零值也会写入
func (r *UserRepository) Save(ctx context.Context, user *model.User) error {
	return r.DB.WithContext(ctx).Omit(clause.Associations).Save(user).Error
}

func (r *UserRepository) FindByID(ctx context.Context, id uint64) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).Preload("Role").First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).Preload("Role").
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).Preload("Role").Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// EmailTaken exceptID 为 0 时不排除任何用户
func (r *UserRepository) EmailTaken(ctx context.Context, email string, exceptID uint64) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.User{}).
		Where("email = ? AND id <> ?", strings.ToLower(strings.TrimSpace(email)), exceptID).
		Count(&n).Error
	return n > 0, err
}

func (r *UserRepository) UsernameTaken(ctx context.Context, username string, exceptID uint64) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.User{}).
		Where("username = ? AND id <> ?", username, exceptID).
		Count(&n).Error
	return n > 0, err
}

func (r *UserRepository) Delete(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Delete(&model.User{}, id).Error
}

// List 后台用户列表，按注册时间倒序，id 兜底
func (r *UserRepository) List(ctx context.Context, filter string, offset, limit int) ([]model.User, int64, error) {
	q := r.DB.WithContext(ctx).Model(&model.User{})
	switch filter {
	case UserFilterLocked:
		q = q.Where("users.locked = ?", true)
	case UserFilterBlocked:
		q = q.Where("users.active = ?", false)
	case UserFilterAdministrator:
		q = q.Joins("JOIN roles ON roles.id = users.role_id").Where("roles.name = ?", model.RoleAdministrator)
	case UserFilterModerator:
		q = q.Joins("JOIN roles ON roles.id = users.role_id").Where("roles.name = ?", model.RoleModerator)
	}
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []model.User
	err := q.Preload("Role").
		Order("users.member_since DESC").Order("users.id DESC").
		Offset(offset).Limit(limit).
		Find(&list).Error
	return list, total, err
}

// CountWhere 统计满足条件的用户数
func (r *UserRepository) CountWhere(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	q := r.DB.WithContext(ctx).Model(&model.User{})
	if query != "" {
		q = q.Where(query, args...)
	}
	err := q.Count(&n).Error
	return n, err
}

// FindByName 按角色名查找
func (r *RoleRepository) FindByName(ctx context.Context, name string) (*model.Role, error) {
	var role model.Role
	if err := r.DB.WithContext(ctx).Where("name = ?", name).First(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *RoleRepository) FindByID(ctx context.Context, id uint64) (*model.Role, error) {
	var role model.Role
	if err := r.DB.WithContext(ctx).First(&role, id).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

// Upsert 按名称找或建，并把等级与权限重置为给定值
func (r *RoleRepository) Upsert(ctx context.Context, name string, level int, perms model.Permission) (*model.Role, error) {
	var role model.Role
	if err := r.DB.WithContext(ctx).Where(model.Role{Name: name}).FirstOrCreate(&role).Error; err != nil {
		return nil, err
	}
	role.Level = level
	role.Permissions = perms
	if err := r.DB.WithContext(ctx).Save(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *RoleRepository) List(ctx context.Context) ([]model.Role, error) {
	var list []model.Role
	err := r.DB.WithContext(ctx).Order("level ASC").Find(&list).Error
	return list, err
}
