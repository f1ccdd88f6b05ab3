package service

import (
	"context"
	"log"
	"strings"

	"Albumy/internal/config"
	"Albumy/internal/model"
	"Albumy/internal/repository/mysql"
)

type AdminService struct {
	sessions SessionStore
	perPage  config.PerPageConfig
}

func NewAdminService(sessions SessionStore, perPage config.PerPageConfig) *AdminService {
	return &AdminService{sessions: sessions, perPage: perPage}
}

// AdminProfileInput 管理员编辑用户资料，空字符串和 nil 表示不修改
type AdminProfileInput struct {
	Name      *string
	Username  *string
	Email     *string
	Website   *string
	Location  *string
	Bio       *string
	Role      string
	Active    *bool
	Confirmed *bool
}

// Dashboard 后台首页计数
type Dashboard struct {
	Users            int64 `json:"users"`
	Photos           int64 `json:"photos"`
	Tags             int64 `json:"tags"`
	Comments         int64 `json:"comments"`
	LockedUsers      int64 `json:"locked_users"`
	BlockedUsers     int64 `json:"blocked_users"`
	ReportedPhotos   int64 `json:"reported_photos"`
	ReportedComments int64 `json:"reported_comments"`
}

// outrank 操作者等级必须高于目标
func outrank(actor, target *model.User) error {
	if actor.Level() <= target.Level() {
		return NewForbiddenError("permission denied")
	}
	return nil
}

// GetUser 按 id 取目标用户
func (s *AdminService) GetUser(ctx context.Context, uow *mysql.UnitOfWork, id uint64) (*model.User, error) {
	user, err := uow.Users().FindByID(ctx, id)
	if err != nil {
		if mysql.IsNotFound(err) {
			return nil, NewNotFoundError("user not found")
		}
		return nil, err
	}
	return user, nil
}

// Lock 角色改为 Locked
func (s *AdminService) Lock(ctx context.Context, uow *mysql.UnitOfWork, actor, target *model.User) (Status, error) {
	if err := require(actor, model.PermModerate); err != nil {
		return Status{}, err
	}
	if err := outrank(actor, target); err != nil {
		return Status{}, err
	}
	if target.Locked && target.Role != nil && target.Role.Name == model.RoleLocked {
		return unchanged("account already locked"), nil
	}
	if err := s.lock(ctx, uow, target); err != nil {
		return Status{}, err
	}
	return changed("account locked"), nil
}

func (s *AdminService) lock(ctx context.Context, uow *mysql.UnitOfWork, target *model.User) error {
	role, err := roleByName(ctx, uow, model.RoleLocked)
	if err != nil {
		return err
	}
	target.RoleID, target.Role = role.ID, role
	target.Locked = true
	return uow.Users().Save(ctx, target)
}

// Unlock 恢复为普通用户
func (s *AdminService) Unlock(ctx context.Context, uow *mysql.UnitOfWork, actor, target *model.User) (Status, error) {
	if err := require(actor, model.PermModerate); err != nil {
		return Status{}, err
	}
	if !target.Locked {
		return unchanged("account not locked"), nil
	}
	role, err := roleByName(ctx, uow, model.RoleUser)
	if err != nil {
		return Status{}, err
	}
	target.RoleID, target.Role = role.ID, role
	target.Locked = false
	if err = uow.Users().Save(ctx, target); err != nil {
		return Status{}, err
	}
	return changed("lock canceled"), nil
}

// Block 封禁后提交时清除会话
func (s *AdminService) Block(ctx context.Context, uow *mysql.UnitOfWork, actor, target *model.User) (Status, error) {
	if err := require(actor, model.PermModerate); err != nil {
		return Status{}, err
	}
	if err := outrank(actor, target); err != nil {
		return Status{}, err
	}
	if !target.Active {
		return unchanged("account already blocked"), nil
	}
	target.Active = false
	if err := uow.Users().Save(ctx, target); err != nil {
		return Status{}, err
	}
	uid := target.ID
	uow.AfterCommit(func() {
		if err := s.sessions.DeleteUserToken(context.Background(), uid); err != nil {
			log.Printf("revoke sessions of blocked user %d: %v", uid, err)
		}
	})
	return changed("account blocked"), nil
}

func (s *AdminService) Unblock(ctx context.Context, uow *mysql.UnitOfWork, actor, target *model.User) (Status, error) {
	if err := require(actor, model.PermModerate); err != nil {
		return Status{}, err
	}
	if target.Active {
		return unchanged("account not blocked"), nil
	}
	target.Active = true
	if err := uow.Users().Save(ctx, target); err != nil {
		return Status{}, err
	}
	return changed("block canceled"), nil
}

// EditProfileAdmin 不能授予 Administrator，也不能改管理员的角色
func (s *AdminService) EditProfileAdmin(ctx context.Context, uow *mysql.UnitOfWork, actor, target *model.User, in AdminProfileInput) error {
	if err := require(actor, model.PermAdminister); err != nil {
		return err
	}

	var newRole *model.Role
	if in.Role != "" && (target.Role == nil || in.Role != target.Role.Name) {
		if in.Role == model.RoleAdministrator {
			return NewValidationError("the Administrator role cannot be assigned")
		}
		if target.IsAdmin() {
			return NewForbiddenError("the role of an administrator cannot be changed")
		}
		if !knownRole(in.Role) {
			return NewValidationError("unknown role")
		}
		role, err := roleByName(ctx, uow, in.Role)
		if err != nil {
			return err
		}
		newRole = role
	}

	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if username == "" {
			return NewValidationError("username is required")
		}
		taken, err := uow.Users().UsernameTaken(ctx, username, target.ID)
		if err != nil {
			return err
		}
		if taken {
			return NewValidationError("the username is already in use")
		}
		target.Username = username
	}
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if email == "" {
			return NewValidationError("email is required")
		}
		taken, err := uow.Users().EmailTaken(ctx, email, target.ID)
		if err != nil {
			return err
		}
		if taken {
			return NewValidationError("the email is already in use")
		}
		target.Email = email
	}
	if in.Name != nil {
		target.Name = strings.TrimSpace(*in.Name)
	}
	if in.Website != nil {
		target.Website = strings.TrimSpace(*in.Website)
	}
	if in.Location != nil {
		target.Location = strings.TrimSpace(*in.Location)
	}
	if in.Bio != nil {
		target.Bio = strings.TrimSpace(*in.Bio)
	}
	if in.Active != nil {
		target.Active = *in.Active
	}
	if in.Confirmed != nil {
		target.Confirmed = *in.Confirmed
	}

	if newRole != nil {
		if newRole.Name == model.RoleLocked {
			return s.lock(ctx, uow, target)
		}
		target.RoleID, target.Role = newRole.ID, newRole
		target.Locked = false
	}
	return uow.Users().Save(ctx, target)
}

func knownRole(name string) bool {
	for _, r := range model.CanonicalRoles {
		if r.Name == name {
			return true
		}
	}
	return false
}

// DeleteTag 删除标签及其全部关联
func (s *AdminService) DeleteTag(ctx context.Context, uow *mysql.UnitOfWork, actor *model.User, tagID uint64) error {
	if err := require(actor, model.PermModerate); err != nil {
		return err
	}
	if _, err := uow.Tags().FindByID(ctx, tagID); err != nil {
		if mysql.IsNotFound(err) {
			return NewNotFoundError("tag not found")
		}
		return err
	}
	return uow.Tags().Delete(ctx, tagID)
}

func (s *AdminService) ManageUsers(ctx context.Context, uow *mysql.UnitOfWork, actor *model.User, filter string, page int) (*Page[model.User], error) {
	if err := require(actor, model.PermModerate); err != nil {
		return nil, err
	}
	switch filter {
	case mysql.UserFilterLocked, mysql.UserFilterBlocked, mysql.UserFilterAdministrator, mysql.UserFilterModerator:
	default:
		filter = mysql.UserFilterAll
	}
	page, offset, limit := paginate(page, s.perPage.ManageUser)
	list, total, err := uow.Users().List(ctx, filter, offset, limit)
	if err != nil {
		return nil, err
	}
	return newPage(list, total, page, limit), nil
}

// ManagePhotos order 为 by_flag 时按举报数倒序，否则按时间倒序
func (s *AdminService) ManagePhotos(ctx context.Context, uow *mysql.UnitOfWork, actor *model.User, order string, page int) (*Page[model.Photo], error) {
	if err := require(actor, model.PermModerate); err != nil {
		return nil, err
	}
	page, offset, limit := paginate(page, s.perPage.ManagePhoto)
	list, total, err := uow.Photos().ListManage(ctx, order, offset, limit)
	if err != nil {
		return nil, err
	}
	return newPage(list, total, page, limit), nil
}

func (s *AdminService) ManageComments(ctx context.Context, uow *mysql.UnitOfWork, actor *model.User, order string, page int) (*Page[model.Comment], error) {
	if err := require(actor, model.PermModerate); err != nil {
		return nil, err
	}
	page, offset, limit := paginate(page, s.perPage.ManageComment)
	list, total, err := uow.Comments().ListManage(ctx, order, offset, limit)
	if err != nil {
		return nil, err
	}
	return newPage(list, total, page, limit), nil
}

func (s *AdminService) ManageTags(ctx context.Context, uow *mysql.UnitOfWork, actor *model.User, page int) (*Page[model.Tag], error) {
	if err := require(actor, model.PermModerate); err != nil {
		return nil, err
	}
	page, offset, limit := paginate(page, s.perPage.ManageTag)
	list, total, err := uow.Tags().List(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	return newPage(list, total, page, limit), nil
}

func (s *AdminService) Dashboard(ctx context.Context, uow *mysql.UnitOfWork, actor *model.User) (*Dashboard, error) {
	if err := require(actor, model.PermModerate); err != nil {
		return nil, err
	}
	var (
		d   Dashboard
		err error
	)
	if d.Users, err = uow.Users().CountWhere(ctx, ""); err != nil {
		return nil, err
	}
	if d.LockedUsers, err = uow.Users().CountWhere(ctx, "locked = ?", true); err != nil {
		return nil, err
	}
	if d.BlockedUsers, err = uow.Users().CountWhere(ctx, "active = ?", false); err != nil {
		return nil, err
	}
	if d.Photos, err = uow.Photos().Count(ctx, false); err != nil {
		return nil, err
	}
	if d.ReportedPhotos, err = uow.Photos().Count(ctx, true); err != nil {
		return nil, err
	}
	if d.Comments, err = uow.Comments().Count(ctx, false); err != nil {
		return nil, err
	}
	if d.ReportedComments, err = uow.Comments().Count(ctx, true); err != nil {
		return nil, err
	}
	if d.Tags, err = uow.Tags().Count(ctx); err != nil {
		return nil, err
	}
	return &d, nil
}
