package service

import (
	"context"

	"Albumy/internal/model"
	"Albumy/internal/repository/mysql"
)

type FollowService struct {
	notifier *NotificationService
	perPage  int
}

// FollowCounts 展示用计数，已去掉自关注
type FollowCounts struct {
	Followers int64 `json:"followers"`
	Following int64 `json:"following"`
}

func NewFollowService(notifier *NotificationService, perPage int) *FollowService {
	return &FollowService{notifier: notifier, perPage: perPage}
}

// Follow 已关注时返回 unchanged；新关注时按对方开关发通知并写 outbox
func (s *FollowService) Follow(ctx context.Context, uow *mysql.UnitOfWork, follower, followee *model.User) (Status, error) {
	if follower.ID == followee.ID {
		return Status{}, NewValidationError("you cannot follow yourself")
	}
	ok, err := uow.Follows().Follow(ctx, follower.ID, followee.ID)
	if err != nil {
		return Status{}, err
	}
	if !ok {
		return unchanged("already followed"), nil
	}
	if _, err = s.notifier.Notify(ctx, uow, model.NotifyFollow, follower, followee, 0); err != nil {
		return Status{}, err
	}
	if err = uow.Outbox().Insert(ctx, model.EventFollow, follower.ID, followee.ID, nil); err != nil {
		return Status{}, err
	}
	return changed("user followed"), nil
}

// Unfollow 未关注时返回 unchanged
func (s *FollowService) Unfollow(ctx context.Context, uow *mysql.UnitOfWork, follower, followee *model.User) (Status, error) {
	if follower.ID == followee.ID {
		return Status{}, NewValidationError("you cannot unfollow yourself")
	}
	ok, err := uow.Follows().Unfollow(ctx, follower.ID, followee.ID)
	if err != nil {
		return Status{}, err
	}
	if !ok {
		return unchanged("not follow yet"), nil
	}
	if err = uow.Outbox().Insert(ctx, model.EventUnfollow, follower.ID, followee.ID, nil); err != nil {
		return Status{}, err
	}
	return changed("user unfollowed"), nil
}

// IsFollowing a 是否关注了 b
func (s *FollowService) IsFollowing(ctx context.Context, uow *mysql.UnitOfWork, a, b uint64) (bool, error) {
	return uow.Follows().IsFollowing(ctx, a, b)
}

// IsFollowedBy a 是否被 b 关注
func (s *FollowService) IsFollowedBy(ctx context.Context, uow *mysql.UnitOfWork, a, b uint64) (bool, error) {
	return uow.Follows().IsFollowing(ctx, b, a)
}

// Counts 原始行数都包含自关注，展示时各减 1
func (s *FollowService) Counts(ctx context.Context, uow *mysql.UnitOfWork, userID uint64) (FollowCounts, error) {
	followers, err := uow.Follows().CountFollowers(ctx, userID)
	if err != nil {
		return FollowCounts{}, err
	}
	following, err := uow.Follows().CountFollowing(ctx, userID)
	if err != nil {
		return FollowCounts{}, err
	}
	return FollowCounts{Followers: displayCount(followers), Following: displayCount(following)}, nil
}

func displayCount(raw int64) int64 {
	if raw <= 0 {
		return 0
	}
	return raw - 1
}

func (s *FollowService) ListFollowers(ctx context.Context, uow *mysql.UnitOfWork, userID uint64, page int) (*Page[model.User], error) {
	page, offset, limit := paginate(page, s.perPage)
	list, total, err := uow.Follows().ListFollowers(ctx, userID, offset, limit)
	if err != nil {
		return nil, err
	}
	return newPage(list, total, page, limit), nil
}

func (s *FollowService) ListFollowing(ctx context.Context, uow *mysql.UnitOfWork, userID uint64, page int) (*Page[model.User], error) {
	page, offset, limit := paginate(page, s.perPage)
	list, total, err := uow.Follows().ListFollowing(ctx, userID, offset, limit)
	if err != nil {
		return nil, err
	}
	return newPage(list, total, page, limit), nil
}
