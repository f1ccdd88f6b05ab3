package service

import (
	"context"
	"sync"
	"testing"

	"Albumy/internal/config"
	"Albumy/internal/model"
	"Albumy/internal/pkg"
	"Albumy/internal/repository/mysql"
	"Albumy/internal/storage"
	"Albumy/internal/testutils"

	qt "github.com/frankban/quicktest"
	"gorm.io/gorm"
)

const testPassword = "password123"

type recordingQueue struct {
	mu   sync.Mutex
	msgs []pkg.Message
}

func (q *recordingQueue) Enqueue(msg pkg.Message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, msg)
	return true
}

func (q *recordingQueue) sent() []pkg.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]pkg.Message(nil), q.msgs...)
}

type testEnv struct {
	t        *testing.T
	db       *gorm.DB
	cfg      *config.Config
	queue    *recordingQueue
	sessions *MemorySessionStore
	tokens   *pkg.TokenIssuer
	store    *storage.LocalStore

	notifications *NotificationService
	follows       *FollowService
	collects      *CollectService
	photos        *PhotoService
	comments      *CommentService
	accounts      *AccountService
	admin         *AdminService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Default()
	cfg.Server.BaseURL = "http://albumy.test"
	cfg.Albumy.AdminEmail = "admin@helloflask.com"

	store, err := storage.NewLocalStore(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatalf("local store: %v", err)
	}
	images := &storage.ImagePipeline{Store: store, MediumWidth: cfg.Albumy.PhotoSizeMedium, SmallWidth: cfg.Albumy.PhotoSizeSmall}
	queue := &recordingQueue{}
	sessions := NewMemorySessionStore()
	tokens := pkg.NewTokenIssuer(cfg.JWT)
	email := NewEmailService(queue, NewMemoryThrottle(), tokens, cfg.Server.BaseURL, cfg.Albumy.MailThrottle)

	notifications := NewNotificationService(cfg.Server.BaseURL, cfg.Albumy.PerPage.Notification)
	photos := NewPhotoService(images, cfg.Albumy.PerPage.Photo)
	return &testEnv{
		t:             t,
		db:            testutils.SetupDB(t),
		cfg:           cfg,
		queue:         queue,
		sessions:      sessions,
		tokens:        tokens,
		store:         store,
		notifications: notifications,
		follows:       NewFollowService(notifications, cfg.Albumy.PerPage.User),
		collects:      NewCollectService(notifications, cfg.Albumy.PerPage.Photo),
		photos:        photos,
		comments:      NewCommentService(notifications, cfg.Albumy.PerPage.Comment),
		accounts:      NewAccountService(cfg.Albumy, tokens, email, sessions, images, photos),
		admin:         NewAdminService(sessions, cfg.Albumy.PerPage),
	}
}

// run 在一个事务里执行 fn
func (e *testEnv) run(fn func(uow *mysql.UnitOfWork) error) error {
	return mysql.Run(context.Background(), e.db, fn)
}

func (e *testEnv) mustRun(c *qt.C, fn func(uow *mysql.UnitOfWork) error) {
	c.Helper()
	c.Assert(e.run(fn), qt.IsNil)
}

func (e *testEnv) createUser(c *qt.C, username string) *model.User {
	c.Helper()
	var user *model.User
	e.mustRun(c, func(uow *mysql.UnitOfWork) error {
		var err error
		user, err = e.accounts.CreateUser(context.Background(), uow, RegisterInput{
			Name:     username,
			Email:    username + "@example.com",
			Username: username,
			Password: testPassword,
		}, true)
		return err
	})
	return user
}

// withRole 直接改角色，绕过后台的等级检查
func (e *testEnv) withRole(c *qt.C, user *model.User, roleName string) *model.User {
	c.Helper()
	e.mustRun(c, func(uow *mysql.UnitOfWork) error {
		role, err := uow.Roles().FindByName(context.Background(), roleName)
		if err != nil {
			return err
		}
		user.RoleID, user.Role = role.ID, role
		return uow.Users().Save(context.Background(), user)
	})
	return user
}

func (e *testEnv) reload(c *qt.C, id uint64) *model.User {
	c.Helper()
	var user *model.User
	e.mustRun(c, func(uow *mysql.UnitOfWork) error {
		var err error
		user, err = uow.Users().FindByID(context.Background(), id)
		return err
	})
	return user
}

func (e *testEnv) upload(c *qt.C, author *model.User) *model.Photo {
	c.Helper()
	var photo *model.Photo
	e.mustRun(c, func(uow *mysql.UnitOfWork) error {
		var err error
		photo, err = e.photos.Upload(context.Background(), uow, author, "photo.png", testutils.PNG(e.t, 1000, 600), "a photo")
		return err
	})
	return photo
}

func (e *testEnv) countRows(c *qt.C, m any, query string, args ...any) int64 {
	c.Helper()
	var n int64
	q := e.db.Model(m)
	if query != "" {
		q = q.Where(query, args...)
	}
	c.Assert(q.Count(&n).Error, qt.IsNil)
	return n
}
