package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"Albumy/internal/config"
	"Albumy/internal/model"
	"Albumy/internal/pkg"
	"Albumy/internal/repository/mysql"
	"Albumy/internal/storage"

	"github.com/google/uuid"
)

var defaultAvatarSizes = []int{30, 100, 200}

type AccountService struct {
	tokens      *pkg.TokenIssuer
	email       *EmailService
	sessions    SessionStore
	images      *storage.ImagePipeline
	photos      *PhotoService
	adminEmail  string
	avatarSizes []int
}

func NewAccountService(cfg config.AlbumyConfig, tokens *pkg.TokenIssuer, email *EmailService, sessions SessionStore, images *storage.ImagePipeline, photos *PhotoService) *AccountService {
	sizes := cfg.AvatarSizes
	if len(sizes) != 3 {
		sizes = defaultAvatarSizes
	}
	return &AccountService{
		tokens:      tokens,
		email:       email,
		sessions:    sessions,
		images:      images,
		photos:      photos,
		adminEmail:  strings.ToLower(cfg.AdminEmail),
		avatarSizes: sizes,
	}
}

// RegisterInput 注册参数，格式校验在 handler 绑定时完成
type RegisterInput struct {
	Name     string
	Email    string
	Username string
	Password string
}

// LoginResult 登录结果，Locked 账号可以登录但需要提示
type LoginResult struct {
	Pair    *pkg.Pair   `json:"token"`
	User    *model.User `json:"user"`
	Warning string      `json:"warning,omitempty"`
}

// ProfileInput 个人资料
type ProfileInput struct {
	Name     string
	Username string
	Website  string
	Location string
	Bio      string
}

// NotificationSettings 三类通知开关
type NotificationSettings struct {
	Follow  bool `json:"receive_follow_notification"`
	Comment bool `json:"receive_comment_notification"`
	Collect bool `json:"receive_collect_notification"`
}

// Profile 用户主页
type Profile struct {
	User   *model.User  `json:"user"`
	Counts FollowCounts `json:"counts"`
}

// CreateUser 分配角色、生成默认头像并插入自关注
func (s *AccountService) CreateUser(ctx context.Context, uow *mysql.UnitOfWork, in RegisterInput, confirmed bool) (*model.User, error) {
	user := model.NewUser(strings.TrimSpace(in.Name), in.Email, in.Username)
	if user.Email == "" || user.Username == "" {
		return nil, NewValidationError("email and username are required")
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	taken, err := uow.Users().EmailTaken(ctx, user.Email, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, NewValidationError("the email is already in use")
	}
	if taken, err = uow.Users().UsernameTaken(ctx, user.Username, 0); err != nil {
		return nil, err
	}
	if taken {
		return nil, NewValidationError("the username is already in use")
	}
	if err = user.SetPassword(in.Password); err != nil {
		return nil, err
	}
	user.Confirmed = confirmed

	roleName := model.RoleUser
	if s.adminEmail != "" && user.Email == s.adminEmail {
		roleName = model.RoleAdministrator
	}
	role, err := roleByName(ctx, uow, roleName)
	if err != nil {
		return nil, err
	}
	user.RoleID = role.ID
	user.Role = role

	if err = s.generateAvatar(ctx, user); err != nil {
		return nil, err
	}
	if err = uow.Users().Create(ctx, user); err != nil {
		return nil, err
	}
	if _, err = uow.Follows().Follow(ctx, user.ID, user.ID); err != nil {
		return nil, err
	}
	return user, nil
}

// generateAvatar 图案由用户名决定，存储 key 每个账号独立
func (s *AccountService) generateAvatar(ctx context.Context, user *model.User) error {
	pngs, err := pkg.IdenticonPNGs(user.Username, s.avatarSizes)
	if err != nil {
		return fmt.Errorf("generate avatar: %w", err)
	}
	base := "avatars/" + strings.ReplaceAll(uuid.NewString(), "-", "")
	keys := []string{base + "_s.png", base + "_m.png", base + "_l.png"}
	for i, data := range pngs {
		if err = s.images.Store.Save(ctx, keys[i], bytes.NewReader(data), "image/png"); err != nil {
			return fmt.Errorf("save avatar: %w", err)
		}
	}
	user.AvatarS, user.AvatarM, user.AvatarL = keys[0], keys[1], keys[2]
	return nil
}

// Register 创建未确认用户，提交后发送确认邮件
func (s *AccountService) Register(ctx context.Context, uow *mysql.UnitOfWork, in RegisterInput) (*model.User, error) {
	user, err := s.CreateUser(ctx, uow, in, false)
	if err != nil {
		return nil, err
	}
	uow.AfterCommit(func() {
		if err := s.email.SendConfirm(context.Background(), user); err != nil {
			log.Printf("send confirm email to user %d: %v", user.ID, err)
		}
	})
	return user, nil
}

// validateToken 校验令牌并执行对应操作，任何不匹配都返回 false 且不修改数据
func (s *AccountService) validateToken(ctx context.Context, uow *mysql.UnitOfWork, user *model.User, token, operation, newPassword string) (bool, error) {
	claims, err := s.tokens.ParseActionToken(token)
	if err != nil {
		return false, nil
	}
	if claims.Operation != operation || claims.UserID != user.ID {
		return false, nil
	}
	switch operation {
	case pkg.OpConfirm:
		user.Confirmed = true
	case pkg.OpResetPassword:
		if err = user.SetPassword(newPassword); err != nil {
			return false, err
		}
	case pkg.OpChangeEmail:
		newEmail := strings.ToLower(claims.NewEmail)
		if newEmail == "" {
			return false, nil
		}
		taken, err := uow.Users().EmailTaken(ctx, newEmail, user.ID)
		if err != nil {
			return false, err
		}
		if taken {
			return false, nil
		}
		user.Email = newEmail
	default:
		return false, nil
	}
	if err = uow.Users().Save(ctx, user); err != nil {
		return false, err
	}
	return true, nil
}

// Confirm 确认邮箱；已确认时返回 unchanged
func (s *AccountService) Confirm(ctx context.Context, uow *mysql.UnitOfWork, user *model.User, token string) (Status, error) {
	if user.Confirmed {
		return unchanged("already confirmed"), nil
	}
	ok, err := s.validateToken(ctx, uow, user, token, pkg.OpConfirm, "")
	if err != nil {
		return Status{}, err
	}
	if !ok {
		return Status{}, NewTokenError()
	}
	return changed("account confirmed"), nil
}

func (s *AccountService) ResendConfirmation(ctx context.Context, user *model.User) (Status, error) {
	if user.Confirmed {
		return unchanged("already confirmed"), nil
	}
	if err := s.email.SendConfirm(ctx, user); err != nil {
		return Status{}, err
	}
	return changed("new confirm email sent, check your inbox"), nil
}

// Authenticate 邮箱不区分大小写；不检查 active
func (s *AccountService) Authenticate(ctx context.Context, uow *mysql.UnitOfWork, email, password string) (*model.User, error) {
	user, err := uow.Users().FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if mysql.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if !user.ValidatePassword(password) {
		return nil, nil
	}
	return user, nil
}

// Login 被封禁的账号不能建立会话；被锁定的账号返回警告
func (s *AccountService) Login(ctx context.Context, uow *mysql.UnitOfWork, email, password string) (*LoginResult, error) {
	user, err := s.Authenticate(ctx, uow, email, password)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, NewUnauthorizedError("invalid email or password")
	}
	if !user.Active {
		return nil, NewForbiddenError("your account is blocked")
	}
	pair, err := s.tokens.GeneratePair(user.ID)
	if err != nil {
		return nil, err
	}
	if err = s.sessions.AddUserToken(ctx, user.ID, pair.AccessToken, s.tokens.AccessTTL); err != nil {
		return nil, err
	}
	res := &LoginResult{Pair: pair, User: user}
	if user.Locked {
		res.Warning = "your account is locked"
	}
	return res, nil
}

func (s *AccountService) Logout(ctx context.Context, userID uint64) error {
	return s.sessions.DeleteUserToken(ctx, userID)
}

// Refresh 用 refresh token 换新的一对 token
func (s *AccountService) Refresh(ctx context.Context, uow *mysql.UnitOfWork, refreshToken string) (*pkg.Pair, error) {
	pair, uid, err := s.tokens.Refresh(refreshToken)
	if err != nil {
		return nil, NewUnauthorizedError("invalid refresh token")
	}
	user, err := uow.Users().FindByID(ctx, uid)
	if err != nil {
		if mysql.IsNotFound(err) {
			return nil, NewUnauthorizedError("invalid refresh token")
		}
		return nil, err
	}
	if !user.Active {
		return nil, NewForbiddenError("your account is blocked")
	}
	if err = s.sessions.AddUserToken(ctx, uid, pair.AccessToken, s.tokens.AccessTTL); err != nil {
		return nil, err
	}
	return pair, nil
}

// RequestPasswordReset 邮箱不存在时静默成功
func (s *AccountService) RequestPasswordReset(ctx context.Context, uow *mysql.UnitOfWork, email string) error {
	user, err := uow.Users().FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if mysql.IsNotFound(err) {
			return nil
		}
		return err
	}
	return s.email.SendResetPassword(ctx, user)
}

// ResetPassword 从令牌解析用户，成功后踢掉已有会话
func (s *AccountService) ResetPassword(ctx context.Context, uow *mysql.UnitOfWork, token, newPassword string) (bool, error) {
	if err := validatePassword(newPassword); err != nil {
		return false, err
	}
	claims, err := s.tokens.ParseActionToken(token)
	if err != nil {
		return false, nil
	}
	user, err := uow.Users().FindByID(ctx, claims.UserID)
	if err != nil {
		if mysql.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	ok, err := s.validateToken(ctx, uow, user, token, pkg.OpResetPassword, newPassword)
	if err != nil || !ok {
		return ok, err
	}
	s.revokeSessions(ctx, user.ID)
	return true, nil
}

// RequestEmailChange 确认邮件发往新地址
func (s *AccountService) RequestEmailChange(ctx context.Context, uow *mysql.UnitOfWork, user *model.User, newEmail string) error {
	newEmail = strings.ToLower(strings.TrimSpace(newEmail))
	if newEmail == "" {
		return NewValidationError("email is required")
	}
	if newEmail == user.Email {
		return NewValidationError("the new email is the same as the current one")
	}
	taken, err := uow.Users().EmailTaken(ctx, newEmail, user.ID)
	if err != nil {
		return err
	}
	if taken {
		return NewValidationError("the email is already in use")
	}
	return s.email.SendChangeEmail(ctx, user, newEmail)
}

// ChangeEmail 兑换时再次检查新邮箱是否被占用
func (s *AccountService) ChangeEmail(ctx context.Context, uow *mysql.UnitOfWork, user *model.User, token string) (bool, error) {
	return s.validateToken(ctx, uow, user, token, pkg.OpChangeEmail, "")
}

// ChangePassword 登录态修改密码，成功后需要重新登录
func (s *AccountService) ChangePassword(ctx context.Context, uow *mysql.UnitOfWork, user *model.User, oldPassword, newPassword string) error {
	if !user.ValidatePassword(oldPassword) {
		return NewValidationError("old password is incorrect")
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	if err := user.SetPassword(newPassword); err != nil {
		return err
	}
	if err := uow.Users().Save(ctx, user); err != nil {
		return err
	}
	s.revokeSessions(ctx, user.ID)
	return nil
}

func (s *AccountService) revokeSessions(ctx context.Context, userID uint64) {
	if err := s.sessions.DeleteUserToken(ctx, userID); err != nil {
		log.Printf("revoke sessions of user %d: %v", userID, err)
	}
}

func validatePassword(p string) error {
	if len(p) < 8 || len(p) > 128 {
		return NewValidationError("password must be 8 to 128 characters")
	}
	return nil
}

// GetProfile 按用户名查主页
func (s *AccountService) GetProfile(ctx context.Context, uow *mysql.UnitOfWork, username string) (*Profile, error) {
	user, err := s.FindByUsername(ctx, uow, username)
	if err != nil {
		return nil, err
	}
	followers, err := uow.Follows().CountFollowers(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	following, err := uow.Follows().CountFollowing(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &Profile{User: user, Counts: FollowCounts{Followers: displayCount(followers), Following: displayCount(following)}}, nil
}

func (s *AccountService) FindByUsername(ctx context.Context, uow *mysql.UnitOfWork, username string) (*model.User, error) {
	user, err := uow.Users().FindByUsername(ctx, username)
	if err != nil {
		if mysql.IsNotFound(err) {
			return nil, NewNotFoundError("user not found")
		}
		return nil, err
	}
	return user, nil
}

func (s *AccountService) EditProfile(ctx context.Context, uow *mysql.UnitOfWork, user *model.User, in ProfileInput) error {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return NewValidationError("username is required")
	}
	if username != user.Username {
		taken, err := uow.Users().UsernameTaken(ctx, username, user.ID)
		if err != nil {
			return err
		}
		if taken {
			return NewValidationError("the username is already in use")
		}
	}
	user.Name = strings.TrimSpace(in.Name)
	user.Username = username
	user.Website = strings.TrimSpace(in.Website)
	user.Location = strings.TrimSpace(in.Location)
	user.Bio = strings.TrimSpace(in.Bio)
	return uow.Users().Save(ctx, user)
}

func (s *AccountService) UpdateNotificationSettings(ctx context.Context, uow *mysql.UnitOfWork, user *model.User, in NotificationSettings) error {
	user.ReceiveFollowNotification = in.Follow
	user.ReceiveCommentNotification = in.Comment
	user.ReceiveCollectNotification = in.Collect
	return uow.Users().Save(ctx, user)
}

func (s *AccountService) UpdatePrivacy(ctx context.Context, uow *mysql.UnitOfWork, user *model.User, publicCollections bool) error {
	user.PublicCollections = publicCollections
	return uow.Users().Save(ctx, user)
}

// UploadAvatar 自定义头像，旧的自定义头像文件在提交后删除
func (s *AccountService) UploadAvatar(ctx context.Context, uow *mysql.UnitOfWork, user *model.User, filename string, data []byte) error {
	raw, keys, err := s.images.ProcessAvatar(ctx, filename, data, s.avatarSizes)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedFormat) || errors.Is(err, storage.ErrInvalidImage) {
			return NewValidationError(err.Error())
		}
		return err
	}
	var old []string
	if user.AvatarRaw != "" {
		old = []string{user.AvatarRaw, user.AvatarS, user.AvatarM, user.AvatarL}
	}
	user.AvatarRaw = raw
	user.AvatarS, user.AvatarM, user.AvatarL = keys[0], keys[1], keys[2]
	if err = uow.Users().Save(ctx, user); err != nil {
		if rmErr := s.images.Remove(ctx, append(keys, raw)...); rmErr != nil {
			log.Printf("remove avatar files: %v", rmErr)
		}
		return err
	}
	if len(old) > 0 {
		uow.AfterCommit(func() {
			if err := s.images.Remove(context.Background(), old...); err != nil {
				log.Printf("remove old avatar of user %d: %v", user.ID, err)
			}
		})
	}
	return nil
}

// DeleteAccount 需要密码确认；级联删除图片、评论、收藏、关注、通知
func (s *AccountService) DeleteAccount(ctx context.Context, uow *mysql.UnitOfWork, user *model.User, password string) error {
	if !user.ValidatePassword(password) {
		return NewValidationError("wrong password")
	}
	photos, err := uow.Photos().AllByAuthor(ctx, user.ID)
	if err != nil {
		return err
	}
	for i := range photos {
		if err = s.photos.removePhoto(ctx, uow, &photos[i]); err != nil {
			return err
		}
	}
	if err = uow.Comments().DeleteByAuthor(ctx, user.ID); err != nil {
		return err
	}
	if err = uow.Collects().DeleteByUser(ctx, user.ID); err != nil {
		return err
	}
	if err = uow.Follows().DeleteAllForUser(ctx, user.ID); err != nil {
		return err
	}
	if err = uow.Notifications().DeleteByReceiver(ctx, user.ID); err != nil {
		return err
	}
	if err = uow.Users().Delete(ctx, user.ID); err != nil {
		return err
	}
	avatars := []string{user.AvatarS, user.AvatarM, user.AvatarL, user.AvatarRaw}
	uow.AfterCommit(func() {
		s.revokeSessions(context.Background(), user.ID)
		if err := s.images.Remove(context.Background(), avatars...); err != nil {
			log.Printf("remove avatar of deleted user %d: %v", user.ID, err)
		}
	})
	return nil
}
