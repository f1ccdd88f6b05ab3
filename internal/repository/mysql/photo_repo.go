package mysql

import (
	"context"
	"errors"

	"Albumy/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PhotoRepository struct {
	DB *gorm.DB
}

// 排序方式
const (
	OrderByTime     = "by_time"
	OrderByFlag     = "by_flag"
	OrderByCollects = "by_collects"
)

func (r *PhotoRepository) Create(ctx context.Context, photo *model.Photo) error {
	return r.DB.WithContext(ctx).Create(photo).Error
}

func (r *PhotoRepository) Save(ctx context.Context, photo *model.Photo) error {
	return r.DB.WithContext(ctx).Save(photo).Error
}

func (r *PhotoRepository) FindByID(ctx context.Context, id uint64) (*model.Photo, error) {
	var photo model.Photo
	if err := r.DB.WithContext(ctx).First(&photo, id).Error; err != nil {
		return nil, err
	}
	return &photo, nil
}

func (r *PhotoRepository) Delete(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Delete(&model.Photo{}, id).Error
}

// IncrementFlag 举报计数 +1
func (r *PhotoRepository) IncrementFlag(ctx context.Context, id uint64) error {
	res := r.DB.WithContext(ctx).Model(&model.Photo{}).Where("id = ?", id).
		UpdateColumn("flag", gorm.Expr("flag + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListByAuthor 用户的图片，按时间倒序
func (r *PhotoRepository) ListByAuthor(ctx context.Context, authorID uint64, offset, limit int) ([]model.Photo, int64, error) {
	q := r.DB.WithContext(ctx).Model(&model.Photo{}).Where("author_id = ?", authorID).Session(&gorm.Session{})
	return listPhotos(q, offset, limit, "photos.created_at DESC", "photos.id DESC")
}

// AllByAuthor 注销账号时使用，不分页
func (r *PhotoRepository) AllByAuthor(ctx context.Context, authorID uint64) ([]model.Photo, error) {
	var list []model.Photo
	err := r.DB.WithContext(ctx).Where("author_id = ?", authorID).Order("id ASC").Find(&list).Error
	return list, err
}

// Next 同一作者更早的一张（列表中的下一张）
func (r *PhotoRepository) Next(ctx context.Context, photo *model.Photo) (*model.Photo, error) {
	var p model.Photo
	err := r.DB.WithContext(ctx).
		Where("author_id = ? AND id < ?", photo.AuthorID, photo.ID).
		Order("id DESC").First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Prev 同一作者更新的一张
func (r *PhotoRepository) Prev(ctx context.Context, photo *model.Photo) (*model.Photo, error) {
	var p model.Photo
	err := r.DB.WithContext(ctx).
		Where("author_id = ? AND id > ?", photo.AuthorID, photo.ID).
		Order("id ASC").First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListByTag 标签下的图片，order 为 by_time 或 by_collects
func (r *PhotoRepository) ListByTag(ctx context.Context, tagID uint64, order string, offset, limit int) ([]model.Photo, int64, error) {
	q := r.DB.WithContext(ctx).Model(&model.Photo{}).
		Joins("JOIN photo_tags ON photo_tags.photo_id = photos.id").
		Where("photo_tags.tag_id = ?", tagID).
		Session(&gorm.Session{})
	if order == OrderByCollects {
		return listPhotos(q, offset, limit,
			"(SELECT COUNT(*) FROM collects WHERE collects.collected_id = photos.id) DESC", "photos.id DESC")
	}
	return listPhotos(q, offset, limit, "photos.created_at DESC", "photos.id DESC")
}

// Feed 关注的人（含自己）发布的图片
func (r *PhotoRepository) Feed(ctx context.Context, userID uint64, offset, limit int) ([]model.Photo, int64, error) {
	sub := r.DB.Model(&model.Follow{}).Select("followed_id").Where("follower_id = ?", userID)
	q := r.DB.WithContext(ctx).Model(&model.Photo{}).Where("author_id IN (?)", sub).Session(&gorm.Session{})
	return listPhotos(q, offset, limit, "photos.created_at DESC", "photos.id DESC")
}

// Random 随机取若干张
func (r *PhotoRepository) Random(ctx context.Context, limit int) ([]model.Photo, error) {
	fn := "RANDOM()"
	if r.DB.Dialector.Name() == "mysql" {
		fn = "RAND()"
	}
	var list []model.Photo
	err := r.DB.WithContext(ctx).
		Order(clause.OrderBy{Expression: clause.Expr{SQL: fn}}).
		Limit(limit).Find(&list).Error
	return list, err
}

// ListManage 后台图片列表
func (r *PhotoRepository) ListManage(ctx context.Context, order string, offset, limit int) ([]model.Photo, int64, error) {
	q := r.DB.WithContext(ctx).Model(&model.Photo{}).Session(&gorm.Session{})
	if order == OrderByFlag {
		return listPhotos(q, offset, limit, "photos.flag DESC", "photos.id DESC")
	}
	return listPhotos(q, offset, limit, "photos.created_at DESC", "photos.id DESC")
}

func (r *PhotoRepository) Count(ctx context.Context, flaggedOnly bool) (int64, error) {
	var n int64
	q := r.DB.WithContext(ctx).Model(&model.Photo{})
	if flaggedOnly {
		q = q.Where("flag > 0")
	}
	err := q.Count(&n).Error
	return n, err
}

func listPhotos(q *gorm.DB, offset, limit int, orders ...string) ([]model.Photo, int64, error) {
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []model.Photo
	s := q
	for _, o := range orders {
		s = s.Order(o)
	}
	err := s.Offset(offset).Limit(limit).Find(&list).Error
	return list, total, err
}

// IsNotFound 记录不存在
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
