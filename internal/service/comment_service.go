package service

import (
	"context"
	"strings"

	"Albumy/internal/model"
	"Albumy/internal/repository/mysql"
)

type CommentService struct {
	notifier *NotificationService
	perPage  int
}

func NewCommentService(notifier *NotificationService, perPage int) *CommentService {
	return &CommentService{notifier: notifier, perPage: perPage}
}

func (s *CommentService) Get(ctx context.Context, uow *mysql.UnitOfWork, id uint64) (*model.Comment, error) {
	c, err := uow.Comments().FindByID(ctx, id)
	if err != nil {
		if mysql.IsNotFound(err) {
			return nil, NewNotFoundError("comment not found")
		}
		return nil, err
	}
	return c, nil
}

// AddComment can_comment 由上层检查；被回复的评论必须属于同一张图片
func (s *CommentService) AddComment(ctx context.Context, uow *mysql.UnitOfWork, photo *model.Photo, author *model.User, body string, replyTo *uint64) (*model.Comment, error) {
	if err := require(author, model.PermComment); err != nil {
		return nil, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, NewValidationError("comment body is required")
	}
	comment := &model.Comment{Body: body, PhotoID: photo.ID, AuthorID: author.ID}

	var replied *model.Comment
	if replyTo != nil {
		var err error
		replied, err = s.Get(ctx, uow, *replyTo)
		if err != nil {
			return nil, err
		}
		if replied.PhotoID != photo.ID {
			return nil, NewValidationError("replied comment belongs to another photo")
		}
		comment.RepliedID = &replied.ID
	}
	if err := uow.Comments().Create(ctx, comment); err != nil {
		return nil, err
	}

	notified := map[uint64]bool{}
	if replied != nil {
		if err := s.notify(ctx, uow, author, replied.AuthorID, photo.ID, notified); err != nil {
			return nil, err
		}
	}
	if err := s.notify(ctx, uow, author, photo.AuthorID, photo.ID, notified); err != nil {
		return nil, err
	}
	if err := uow.Outbox().Insert(ctx, model.EventComment, author.ID, photo.ID, map[string]any{"comment": comment.ID}); err != nil {
		return nil, err
	}
	return comment, nil
}

// notify 同一条评论对同一个人只通知一次
func (s *CommentService) notify(ctx context.Context, uow *mysql.UnitOfWork, actor *model.User, receiverID, photoID uint64, notified map[uint64]bool) error {
	if notified[receiverID] {
		return nil
	}
	notified[receiverID] = true
	receiver, err := uow.Users().FindByID(ctx, receiverID)
	if err != nil {
		if mysql.IsNotFound(err) {
			return nil
		}
		return err
	}
	_, err = s.notifier.Notify(ctx, uow, model.NotifyComment, actor, receiver, photoID)
	return err
}

// DeleteComment 评论作者或图片作者可删，回复一并删除
func (s *CommentService) DeleteComment(ctx context.Context, uow *mysql.UnitOfWork, comment *model.Comment, actor *model.User) (int64, error) {
	if comment.AuthorID != actor.ID {
		photo, err := uow.Photos().FindByID(ctx, comment.PhotoID)
		if err != nil && !mysql.IsNotFound(err) {
			return 0, err
		}
		if photo == nil || photo.AuthorID != actor.ID {
			return 0, NewForbiddenError("you cannot delete this comment")
		}
	}
	return uow.Comments().DeleteTree(ctx, comment.ID)
}

func (s *CommentService) Report(ctx context.Context, uow *mysql.UnitOfWork, id uint64) error {
	if err := uow.Comments().IncrementFlag(ctx, id); err != nil {
		if mysql.IsNotFound(err) {
			return NewNotFoundError("comment not found")
		}
		return err
	}
	return nil
}

// ListByPhoto 按时间正序
func (s *CommentService) ListByPhoto(ctx context.Context, uow *mysql.UnitOfWork, photoID uint64, page int) (*Page[model.Comment], error) {
	page, offset, limit := paginate(page, s.perPage)
	list, total, err := uow.Comments().ListByPhoto(ctx, photoID, offset, limit)
	if err != nil {
		return nil, err
	}
	return newPage(list, total, page, limit), nil
}
