package service

import (
	"context"

	"Albumy/internal/model"
	"Albumy/internal/repository/mysql"
)

type CollectService struct {
	notifier *NotificationService
	perPage  int
}

func NewCollectService(notifier *NotificationService, perPage int) *CollectService {
	return &CollectService{notifier: notifier, perPage: perPage}
}

// Collect 已收藏返回 unchanged；新收藏时通知图片作者
func (s *CollectService) Collect(ctx context.Context, uow *mysql.UnitOfWork, user *model.User, photo *model.Photo) (Status, error) {
	ok, err := uow.Collects().Collect(ctx, user.ID, photo.ID)
	if err != nil {
		return Status{}, err
	}
	if !ok {
		return unchanged("already collected"), nil
	}
	author, err := uow.Users().FindByID(ctx, photo.AuthorID)
	if err != nil {
		return Status{}, err
	}
	if _, err = s.notifier.Notify(ctx, uow, model.NotifyCollect, user, author, photo.ID); err != nil {
		return Status{}, err
	}
	if err = uow.Outbox().Insert(ctx, model.EventCollect, user.ID, photo.ID, map[string]any{"author": photo.AuthorID}); err != nil {
		return Status{}, err
	}
	return changed("photo collected"), nil
}

func (s *CollectService) Uncollect(ctx context.Context, uow *mysql.UnitOfWork, user *model.User, photo *model.Photo) (Status, error) {
	ok, err := uow.Collects().Uncollect(ctx, user.ID, photo.ID)
	if err != nil {
		return Status{}, err
	}
	if !ok {
		return unchanged("not collected yet"), nil
	}
	if err = uow.Outbox().Insert(ctx, model.EventUncollect, user.ID, photo.ID, nil); err != nil {
		return Status{}, err
	}
	return changed("photo uncollected"), nil
}

func (s *CollectService) IsCollecting(ctx context.Context, uow *mysql.UnitOfWork, userID, photoID uint64) (bool, error) {
	return uow.Collects().IsCollecting(ctx, userID, photoID)
}

func (s *CollectService) CollectorCount(ctx context.Context, uow *mysql.UnitOfWork, photoID uint64) (int64, error) {
	return uow.Collects().CountCollectors(ctx, photoID)
}

// ListCollectors 按收藏时间正序
func (s *CollectService) ListCollectors(ctx context.Context, uow *mysql.UnitOfWork, photoID uint64, page int) (*Page[model.User], error) {
	page, offset, limit := paginate(page, s.perPage)
	list, total, err := uow.Collects().ListCollectors(ctx, photoID, offset, limit)
	if err != nil {
		return nil, err
	}
	return newPage(list, total, page, limit), nil
}

// ListCollections 收藏未公开时只有本人可见；viewer 可为 nil
func (s *CollectService) ListCollections(ctx context.Context, uow *mysql.UnitOfWork, viewer, owner *model.User, page int) (*Page[model.Photo], error) {
	if !owner.PublicCollections && (viewer == nil || viewer.ID != owner.ID) {
		return nil, NewForbiddenError("this user's collections are private")
	}
	page, offset, limit := paginate(page, s.perPage)
	list, total, err := uow.Collects().ListCollections(ctx, owner.ID, offset, limit)
	if err != nil {
		return nil, err
	}
	return newPage(list, total, page, limit), nil
}
