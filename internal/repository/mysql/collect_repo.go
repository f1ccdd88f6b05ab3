package mysql

import (
	"context"

	"Albumy/internal/model"

	"gorm.io/gorm"
)

type CollectRepository struct {
	DB *gorm.DB
}

// Collect 先查后插，已收藏返回 changed=false
func (r *CollectRepository) Collect(ctx context.Context, userID, photoID uint64) (bool, error) {
	exists, err := r.IsCollecting(ctx, userID, photoID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	rel := model.Collect{CollectorID: userID, CollectedID: photoID}
	if err := r.DB.WithContext(ctx).Create(&rel).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (r *CollectRepository) Uncollect(ctx context.Context, userID, photoID uint64) (bool, error) {
	res := r.DB.WithContext(ctx).
		Where("collector_id = ? AND collected_id = ?", userID, photoID).
		Delete(&model.Collect{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *CollectRepository) IsCollecting(ctx context.Context, userID, photoID uint64) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.Collect{}).
		Where("collector_id = ? AND collected_id = ?", userID, photoID).
		Count(&n).Error
	return n > 0, err
}

func (r *CollectRepository) CountCollectors(ctx context.Context, photoID uint64) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.Collect{}).Where("collected_id = ?", photoID).Count(&n).Error
	return n, err
}

// ListCollectors 收藏者，按收藏时间正序
func (r *CollectRepository) ListCollectors(ctx context.Context, photoID uint64, offset, limit int) ([]model.User, int64, error) {
	q := r.DB.WithContext(ctx).Model(&model.User{}).
		Joins("JOIN collects ON collects.collector_id = users.id").
		Where("collects.collected_id = ?", photoID).
		Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []model.User
	err := q.Order("collects.created_at ASC").Order("users.id ASC").
		Offset(offset).Limit(limit).Find(&list).Error
	return list, total, err
}

// ListCollections 用户收藏的图片，按收藏时间倒序
func (r *CollectRepository) ListCollections(ctx context.Context, userID uint64, offset, limit int) ([]model.Photo, int64, error) {
	q := r.DB.WithContext(ctx).Model(&model.Photo{}).
		Joins("JOIN collects ON collects.collected_id = photos.id").
		Where("collects.collector_id = ?", userID).
		Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []model.Photo
	err := q.Order("collects.created_at DESC").Order("photos.id DESC").
		Offset(offset).Limit(limit).Find(&list).Error
	return list, total, err
}

func (r *CollectRepository) DeleteByPhoto(ctx context.Context, photoID uint64) (int64, error) {
	res := r.DB.WithContext(ctx).Where("collected_id = ?", photoID).Delete(&model.Collect{})
	return res.RowsAffected, res.Error
}

func (r *CollectRepository) DeleteByUser(ctx context.Context, userID uint64) error {
	return r.DB.WithContext(ctx).Where("collector_id = ?", userID).Delete(&model.Collect{}).Error
}
