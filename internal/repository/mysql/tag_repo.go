package mysql

import (
	"context"

	"Albumy/internal/model"

	"gorm.io/gorm"
)

type TagRepository struct {
	DB *gorm.DB
}

func (r *TagRepository) FindByID(ctx context.Context, id uint64) (*model.Tag, error) {
	var tag model.Tag
	if err := r.DB.WithContext(ctx).First(&tag, id).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

// byExactName 区分大小写的名称匹配，mysql 默认排序规则不区分大小写
func byExactName(db *gorm.DB, name string) *gorm.DB {
	if db.Dialector.Name() == "mysql" {
		return db.Where("BINARY name = ?", name)
	}
	return db.Where("name = ?", name)
}

// FindOrCreate 按名称精确匹配，不存在则创建
func (r *TagRepository) FindOrCreate(ctx context.Context, name string) (*model.Tag, error) {
	var tag model.Tag
	err := byExactName(r.DB.WithContext(ctx), name).Order("id ASC").First(&tag).Error
	if err == nil {
		return &tag, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}
	tag = model.Tag{Name: name}
	if err = r.DB.WithContext(ctx).Create(&tag).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

// Attach 关联不存在时才插入
func (r *TagRepository) Attach(ctx context.Context, photoID, tagID uint64) (bool, error) {
	var n int64
	if err := r.DB.WithContext(ctx).Model(&model.PhotoTag{}).
		Where("photo_id = ? AND tag_id = ?", photoID, tagID).
		Count(&n).Error; err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if err := r.DB.WithContext(ctx).Create(&model.PhotoTag{PhotoID: photoID, TagID: tagID}).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (r *TagRepository) Detach(ctx context.Context, photoID, tagID uint64) (bool, error) {
	res := r.DB.WithContext(ctx).Where("photo_id = ? AND tag_id = ?", photoID, tagID).Delete(&model.PhotoTag{})
	return res.RowsAffected > 0, res.Error
}

func (r *TagRepository) CountPhotos(ctx context.Context, tagID uint64) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.PhotoTag{}).Where("tag_id = ?", tagID).Count(&n).Error
	return n, err
}

// TagsOfPhoto 图片的标签，按 id 排序
func (r *TagRepository) TagsOfPhoto(ctx context.Context, photoID uint64) ([]model.Tag, error) {
	var list []model.Tag
	err := r.DB.WithContext(ctx).
		Joins("JOIN photo_tags ON photo_tags.tag_id = tags.id").
		Where("photo_tags.photo_id = ?", photoID).
		Order("tags.id ASC").
		Find(&list).Error
	return list, err
}

// DetachAll 删除图片的所有标签关联，返回原先关联的标签 id
func (r *TagRepository) DetachAll(ctx context.Context, photoID uint64) ([]uint64, error) {
	var ids []uint64
	if err := r.DB.WithContext(ctx).Model(&model.PhotoTag{}).
		Where("photo_id = ?", photoID).Pluck("tag_id", &ids).Error; err != nil {
		return nil, err
	}
	if err := r.DB.WithContext(ctx).Where("photo_id = ?", photoID).Delete(&model.PhotoTag{}).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// Delete 删除标签及其全部关联
func (r *TagRepository) Delete(ctx context.Context, tagID uint64) error {
	if err := r.DB.WithContext(ctx).Where("tag_id = ?", tagID).Delete(&model.PhotoTag{}).Error; err != nil {
		return err
	}
	return r.DB.WithContext(ctx).Delete(&model.Tag{}, tagID).Error
}

func (r *TagRepository) List(ctx context.Context, offset, limit int) ([]model.Tag, int64, error) {
	q := r.DB.WithContext(ctx).Model(&model.Tag{}).Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []model.Tag
	err := q.Order("id DESC").Offset(offset).Limit(limit).Find(&list).Error
	return list, total, err
}

func (r *TagRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.Tag{}).Count(&n).Error
	return n, err
}
