package mysql

import (
	"context"
	"encoding/json"
	"time"

	"Albumy/internal/model"

	"gorm.io/gorm"
)

type FollowRepository struct {
	DB *gorm.DB
}

type OutboxRepository struct {
	DB *gorm.DB
}

// Follow 先按联合主键查是否存在，再插入（幂等）。新建关系时返回 changed=true。
func (r *FollowRepository) Follow(ctx context.Context, followerID, followedID uint64) (bool, error) {
	exists, err := r.IsFollowing(ctx, followerID, followedID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	rel := model.Follow{FollowerID: followerID, FollowedID: followedID}
	if err := r.DB.WithContext(ctx).Create(&rel).Error; err != nil {
		return false, err
	}
	return true, nil
}

// Unfollow 关系不存在时 changed=false
func (r *FollowRepository) Unfollow(ctx context.Context, followerID, followedID uint64) (bool, error) {
	res := r.DB.WithContext(ctx).
		Where("follower_id = ? AND followed_id = ?", followerID, followedID).
		Delete(&model.Follow{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// IsFollowing 判断是否关注
func (r *FollowRepository) IsFollowing(ctx context.Context, followerID, followedID uint64) (bool, error) {
	var n int64
	if err := r.DB.WithContext(ctx).
		Model(&model.Follow{}).
		Where("follower_id = ? AND followed_id = ?", followerID, followedID).
		Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// CountFollowers 原始行数，包含自关注
func (r *FollowRepository) CountFollowers(ctx context.Context, userID uint64) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.Follow{}).Where("followed_id = ?", userID).Count(&n).Error
	return n, err
}

// CountFollowing 原始行数，包含自关注
func (r *FollowRepository) CountFollowing(ctx context.Context, userID uint64) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.Follow{}).Where("follower_id = ?", userID).Count(&n).Error
	return n, err
}

// ListFollowers 粉丝列表（不含自己），按关注时间倒序
func (r *FollowRepository) ListFollowers(ctx context.Context, userID uint64, offset, limit int) ([]model.User, int64, error) {
	q := r.DB.WithContext(ctx).Model(&model.User{}).
		Joins("JOIN follows ON follows.follower_id = users.id").
		Where("follows.followed_id = ? AND follows.follower_id <> ?", userID, userID).
		Session(&gorm.Session{})
	return listUsers(q, offset, limit)
}

// ListFollowing 关注列表（不含自己），按关注时间倒序
func (r *FollowRepository) ListFollowing(ctx context.Context, userID uint64, offset, limit int) ([]model.User, int64, error) {
	q := r.DB.WithContext(ctx).Model(&model.User{}).
		Joins("JOIN follows ON follows.followed_id = users.id").
		Where("follows.follower_id = ? AND follows.followed_id <> ?", userID, userID).
		Session(&gorm.Session{})
	return listUsers(q, offset, limit)
}

func listUsers(q *gorm.DB, offset, limit int) ([]model.User, int64, error) {
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []model.User
	err := q.Preload("Role").
		Order("follows.created_at DESC").Order("users.id DESC").
		Offset(offset).Limit(limit).
		Find(&list).Error
	return list, total, err
}

// DeleteAllForUser 删除用户相关的全部关注边（双向）
func (r *FollowRepository) DeleteAllForUser(ctx context.Context, userID uint64) error {
	return r.DB.WithContext(ctx).
		Where("follower_id = ? OR followed_id = ?", userID, userID).
		Delete(&model.Follow{}).Error
}

// Insert 写 outbox 事件
func (r *OutboxRepository) Insert(ctx context.Context, event string, actor, target uint64, extra map[string]any) error {
	body := map[string]any{
		"event_time": time.Now().UTC().Format(time.RFC3339Nano),
		"actor":      actor,
		"target":     target,
	}
	for k, v := range extra {
		body[k] = v
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	ob := &model.SocialOutbox{
		EventType: event,
		Actor:     actor,
		Target:    target,
		Payload:   string(payload),
		Status:    model.OutboxPending,
	}
	return r.DB.WithContext(ctx).Create(ob).Error
}

// List 待投递事件：新事件与未超过重试上限的失败事件
func (r *OutboxRepository) List(ctx context.Context, batchSize, maxRetry int) ([]model.SocialOutbox, error) {
	var list []model.SocialOutbox
	if err := r.DB.WithContext(ctx).
		Where("status = ? OR (status = ? AND retry < ?)", model.OutboxPending, model.OutboxFailed, maxRetry).
		Order("id ASC").
		Limit(batchSize).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// RetryUpdate outbox记录消息失败重试
func (r *OutboxRepository) RetryUpdate(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Model(&model.SocialOutbox{}).Where("id = ?", id).
		Updates(map[string]any{"status": model.OutboxFailed, "retry": gorm.Expr("retry + 1")}).Error
}

// SuccessUpdate outbox成功记录消息更新
func (r *OutboxRepository) SuccessUpdate(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Model(&model.SocialOutbox{}).Where("id = ?", id).
		Update("status", model.OutboxSent).Error
}
