package mysql

import (
	"context"

	"Albumy/internal/model"

	"gorm.io/gorm"
)

type NotificationRepository struct {
	DB *gorm.DB
}

func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	return r.DB.WithContext(ctx).Create(n).Error
}

func (r *NotificationRepository) FindByID(ctx context.Context, id uint64) (*model.Notification, error) {
	var n model.Notification
	if err := r.DB.WithContext(ctx).First(&n, id).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Model(&model.Notification{}).Where("id = ?", id).
		Update("is_read", true).Error
}

// MarkAllRead 返回被置为已读的条数
func (r *NotificationRepository) MarkAllRead(ctx context.Context, receiverID uint64) (int64, error) {
	res := r.DB.WithContext(ctx).Model(&model.Notification{}).
		Where("receiver_id = ? AND is_read = ?", receiverID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

// List 按时间倒序
func (r *NotificationRepository) List(ctx context.Context, receiverID uint64, unreadOnly bool, offset, limit int) ([]model.Notification, int64, error) {
	q := r.DB.WithContext(ctx).Model(&model.Notification{}).Where("receiver_id = ?", receiverID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []model.Notification
	err := q.Order("created_at DESC").Order("id DESC").Offset(offset).Limit(limit).Find(&list).Error
	return list, total, err
}

func (r *NotificationRepository) UnreadCount(ctx context.Context, receiverID uint64) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.Notification{}).
		Where("receiver_id = ? AND is_read = ?", receiverID, false).
		Count(&n).Error
	return n, err
}

func (r *NotificationRepository) CountByReceiver(ctx context.Context, receiverID uint64) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.Notification{}).Where("receiver_id = ?", receiverID).Count(&n).Error
	return n, err
}

func (r *NotificationRepository) DeleteByReceiver(ctx context.Context, receiverID uint64) error {
	return r.DB.WithContext(ctx).Where("receiver_id = ?", receiverID).Delete(&model.Notification{}).Error
}
