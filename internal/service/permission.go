package service

import (
	"context"
	"fmt"

	"Albumy/internal/model"
	"Albumy/internal/repository/mysql"
)

// InitRoles 幂等初始化角色，并把每个角色的权限重置为标准集合
func InitRoles(ctx context.Context, uow *mysql.UnitOfWork) error {
	repo := uow.Roles()
	for level, spec := range model.CanonicalRoles {
		if _, err := repo.Upsert(ctx, spec.Name, level, spec.Permissions); err != nil {
			return fmt.Errorf("init role %s: %w", spec.Name, err)
		}
	}
	return nil
}

// Can 按权限名判断，未知权限返回 false
func Can(user *model.User, permission string) bool {
	return user.CanNamed(permission)
}

// require 缺少权限时返回 ForbiddenError
func require(user *model.User, p model.Permission) error {
	if !user.Can(p) {
		return NewForbiddenError("permission denied")
	}
	return nil
}

// roleByName 角色不存在说明没有执行 init
func roleByName(ctx context.Context, uow *mysql.UnitOfWork, name string) (*model.Role, error) {
	role, err := uow.Roles().FindByName(ctx, name)
	if err != nil {
		if mysql.IsNotFound(err) {
			return nil, fmt.Errorf("role %s missing, run init first: %w", name, err)
		}
		return nil, err
	}
	return role, nil
}
