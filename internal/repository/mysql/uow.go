package mysql

import (
	"context"
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"
)

var ErrUnitFinished = errors.New("unit of work already finished")

// UnitOfWork 一次请求对应的事务，仓储都从这里取
type UnitOfWork struct {
	tx          *gorm.DB
	afterCommit []func()
	finished    bool
}

func Begin(ctx context.Context, db *gorm.DB) (*UnitOfWork, error) {
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("begin tx: %w", tx.Error)
	}
	return &UnitOfWork{tx: tx}, nil
}

// Run 执行 fn，返回 nil 时提交，否则回滚
func Run(ctx context.Context, db *gorm.DB, fn func(uow *UnitOfWork) error) (err error) {
	uow, err := Begin(ctx, db)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = uow.Rollback()
			panic(p)
		}
	}()
	if err = fn(uow); err != nil {
		_ = uow.Rollback()
		return err
	}
	return uow.Commit()
}

// DB 事务句柄
func (u *UnitOfWork) DB() *gorm.DB { return u.tx }

// Dialect 当前数据库方言名
func (u *UnitOfWork) Dialect() string { return u.tx.Dialector.Name() }

// AfterCommit 注册提交成功后才执行的回调，回滚时丢弃
func (u *UnitOfWork) AfterCommit(fn func()) {
	u.afterCommit = append(u.afterCommit, fn)
}

func (u *UnitOfWork) Commit() error {
	if u.finished {
		return ErrUnitFinished
	}
	u.finished = true
	if err := u.tx.Commit().Error; err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	for _, fn := range u.afterCommit {
		func() {
			defer func() {
				if p := recover(); p != nil {
					log.Printf("after commit hook panic: %v", p)
				}
			}()
			fn()
		}()
	}
	u.afterCommit = nil
	return nil
}

// Rollback 已结束时为 no-op
func (u *UnitOfWork) Rollback() error {
	if u.finished {
		return nil
	}
	u.finished = true
	u.afterCommit = nil
	return u.tx.Rollback().Error
}

func (u *UnitOfWork) Finished() bool { return u.finished }

func (u *UnitOfWork) Roles() *RoleRepository                 { return &RoleRepository{DB: u.tx} }
func (u *UnitOfWork) Users() *UserRepository                 { return &UserRepository{DB: u.tx} }
func (u *UnitOfWork) Follows() *FollowRepository             { return &FollowRepository{DB: u.tx} }
func (u *UnitOfWork) Collects() *CollectRepository           { return &CollectRepository{DB: u.tx} }
func (u *UnitOfWork) Photos() *PhotoRepository               { return &PhotoRepository{DB: u.tx} }
func (u *UnitOfWork) Tags() *TagRepository                   { return &TagRepository{DB: u.tx} }
func (u *UnitOfWork) Comments() *CommentRepository           { return &CommentRepository{DB: u.tx} }
func (u *UnitOfWork) Notifications() *NotificationRepository { return &NotificationRepository{DB: u.tx} }
func (u *UnitOfWork) Outbox() *OutboxRepository              { return &OutboxRepository{DB: u.tx} }
