package mysql

import (
	"context"

	"Albumy/internal/model"

	"gorm.io/gorm"
)

type CommentRepository struct {
	DB *gorm.DB
}

func (r *CommentRepository) Create(ctx context.Context, comment *model.Comment) error {
	return r.DB.WithContext(ctx).Create(comment).Error
}

func (r *CommentRepository) FindByID(ctx context.Context, id uint64) (*model.Comment, error) {
	var c model.Comment
	if err := r.DB.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CommentRepository) IncrementFlag(ctx context.Context, id uint64) error {
	res := r.DB.WithContext(ctx).Model(&model.Comment{}).Where("id = ?", id).
		UpdateColumn("flag", gorm.Expr("flag + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteTree 删除评论及其所有回复，返回删除条数
func (r *CommentRepository) DeleteTree(ctx context.Context, ids ...uint64) (int64, error) {
	var total int64
	for len(ids) > 0 {
		var children []uint64
		if err := r.DB.WithContext(ctx).Model(&model.Comment{}).
			Where("replied_id IN ?", ids).Pluck("id", &children).Error; err != nil {
			return total, err
		}
		res := r.DB.WithContext(ctx).Where("id IN ?", ids).Delete(&model.Comment{})
		if res.Error != nil {
			return total, res.Error
		}
		total += res.RowsAffected
		ids = children
	}
	return total, nil
}

// DeleteByPhoto 删除图片下的全部评论
func (r *CommentRepository) DeleteByPhoto(ctx context.Context, photoID uint64) (int64, error) {
	res := r.DB.WithContext(ctx).Where("photo_id = ?", photoID).Delete(&model.Comment{})
	return res.RowsAffected, res.Error
}

// DeleteByAuthor 删除用户的评论以及别人对这些评论的回复
func (r *CommentRepository) DeleteByAuthor(ctx context.Context, authorID uint64) error {
	var ids []uint64
	if err := r.DB.WithContext(ctx).Model(&model.Comment{}).
		Where("author_id = ?", authorID).Pluck("id", &ids).Error; err != nil {
		return err
	}
	_, err := r.DeleteTree(ctx, ids...)
	return err
}

// ListByPhoto 图片评论，按时间正序
func (r *CommentRepository) ListByPhoto(ctx context.Context, photoID uint64, offset, limit int) ([]model.Comment, int64, error) {
	q := r.DB.WithContext(ctx).Model(&model.Comment{}).Where("photo_id = ?", photoID).Session(&gorm.Session{})
	return listComments(q, offset, limit, "created_at ASC", "id ASC")
}

// ListReplies 某条评论的直接回复
func (r *CommentRepository) ListReplies(ctx context.Context, commentID uint64) ([]model.Comment, error) {
	var list []model.Comment
	err := r.DB.WithContext(ctx).Where("replied_id = ?", commentID).Order("id ASC").Find(&list).Error
	return list, err
}

func (r *CommentRepository) ListManage(ctx context.Context, order string, offset, limit int) ([]model.Comment, int64, error) {
	q := r.DB.WithContext(ctx).Model(&model.Comment{}).Session(&gorm.Session{})
	if order == OrderByFlag {
		return listComments(q, offset, limit, "flag DESC", "id DESC")
	}
	return listComments(q, offset, limit, "created_at DESC", "id DESC")
}

func (r *CommentRepository) Count(ctx context.Context, flaggedOnly bool) (int64, error) {
	var n int64
	q := r.DB.WithContext(ctx).Model(&model.Comment{})
	if flaggedOnly {
		q = q.Where("flag > 0")
	}
	err := q.Count(&n).Error
	return n, err
}

func (r *CommentRepository) CountByPhoto(ctx context.Context, photoID uint64) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.Comment{}).Where("photo_id = ?", photoID).Count(&n).Error
	return n, err
}

func listComments(q *gorm.DB, offset, limit int, orders ...string) ([]model.Comment, int64, error) {
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	s := q
	for _, o := range orders {
		s = s.Order(o)
	}
	var list []model.Comment
	err := s.Offset(offset).Limit(limit).Find(&list).Error
	return list, total, err
}
