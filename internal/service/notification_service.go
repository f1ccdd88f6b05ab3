package service

import (
	"context"
	"fmt"
	"html"
	"strings"

	"Albumy/internal/model"
	"Albumy/internal/repository/mysql"
)

// 通知列表过滤
const (
	NotificationFilterAll    = "all"
	NotificationFilterUnread = "unread"
)

type NotificationService struct {
	baseURL string
	perPage int
}

func NewNotificationService(baseURL string, perPage int) *NotificationService {
	return &NotificationService{baseURL: strings.TrimRight(baseURL, "/"), perPage: perPage}
}

// Notify 按接收者的开关写入通知；被关闭时返回 nil, nil
func (s *NotificationService) Notify(ctx context.Context, uow *mysql.UnitOfWork, kind string, actor, receiver *model.User, photoID uint64) (*model.Notification, error) {
	if !wantsNotification(receiver, kind) {
		return nil, nil
	}
	msg, err := s.render(kind, actor, photoID)
	if err != nil {
		return nil, err
	}
	n := &model.Notification{Kind: kind, Message: msg, ReceiverID: receiver.ID}
	if err := uow.Notifications().Create(ctx, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	return n, nil
}

func wantsNotification(receiver *model.User, kind string) bool {
	switch kind {
	case model.NotifyFollow:
		return receiver.ReceiveFollowNotification
	case model.NotifyComment:
		return receiver.ReceiveCommentNotification
	case model.NotifyCollect:
		return receiver.ReceiveCollectNotification
	}
	return false
}

// render 消息在写入时就生成，之后用户改名不影响历史通知
func (s *NotificationService) render(kind string, actor *model.User, photoID uint64) (string, error) {
	userLink := func() string {
		name := html.EscapeString(actor.Username)
		return fmt.Sprintf(`<a href="%s/user/%s">%s</a>`, s.baseURL, name, name)
	}
	switch kind {
	case model.NotifyFollow:
		return fmt.Sprintf("User %s followed you.", userLink()), nil
	case model.NotifyComment:
		return fmt.Sprintf(`<a href="%s/photo/%d#comments">This photo</a> has new comment/reply.`, s.baseURL, photoID), nil
	case model.NotifyCollect:
		return fmt.Sprintf(`User %s collected your <a href="%s/photo/%d">photo</a>`, userLink(), s.baseURL, photoID), nil
	}
	return "", fmt.Errorf("unknown notification kind %q", kind)
}

// MarkRead 只能由接收者标记
func (s *NotificationService) MarkRead(ctx context.Context, uow *mysql.UnitOfWork, actor *model.User, id uint64) (*model.Notification, error) {
	n, err := uow.Notifications().FindByID(ctx, id)
	if err != nil {
		if mysql.IsNotFound(err) {
			return nil, NewNotFoundError("notification not found")
		}
		return nil, err
	}
	if n.ReceiverID != actor.ID {
		return nil, NewForbiddenError("you can only read your own notifications")
	}
	if n.IsRead {
		return n, nil
	}
	if err := uow.Notifications().MarkRead(ctx, n.ID); err != nil {
		return nil, err
	}
	n.IsRead = true
	return n, nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, uow *mysql.UnitOfWork, user *model.User) (int64, error) {
	return uow.Notifications().MarkAllRead(ctx, user.ID)
}

func (s *NotificationService) List(ctx context.Context, uow *mysql.UnitOfWork, user *model.User, filter string, page int) (*Page[model.Notification], error) {
	page, offset, limit := paginate(page, s.perPage)
	list, total, err := uow.Notifications().List(ctx, user.ID, filter == NotificationFilterUnread, offset, limit)
	if err != nil {
		return nil, err
	}
	return newPage(list, total, page, limit), nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, uow *mysql.UnitOfWork, user *model.User) (int64, error) {
	return uow.Notifications().UnreadCount(ctx, user.ID)
}
