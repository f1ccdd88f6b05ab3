package service

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"log"
	"strings"

	"Albumy/internal/model"
	"Albumy/internal/repository/mysql"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/disintegration/imaging"
	"gorm.io/gorm"
)

// ForgeCounts 各类假数据的数量
type ForgeCounts struct {
	Users    int
	Follows  int
	Photos   int
	Tags     int
	Collects int
	Comments int
}

// Forger 生成开发环境用的假数据，每条记录一个事务，冲突的记录直接跳过
type Forger struct {
	db       *gorm.DB
	accounts *AccountService
	follows  *FollowService
	collects *CollectService
	photos   *PhotoService
	comments *CommentService
	faker    *gofakeit.Faker
}

func NewForger(db *gorm.DB, accounts *AccountService, follows *FollowService, collects *CollectService, photos *PhotoService, comments *CommentService, seed int64) *Forger {
	return &Forger{
		db:       db,
		accounts: accounts,
		follows:  follows,
		collects: collects,
		photos:   photos,
		comments: comments,
		faker:    gofakeit.New(seed),
	}
}

const forgePassword = "12345678"

// Admin 创建管理员账号，邮箱与 admin_email 一致时自动获得管理员角色
func (f *Forger) Admin(ctx context.Context, email string) (*model.User, error) {
	var admin *model.User
	err := mysql.Run(ctx, f.db, func(uow *mysql.UnitOfWork) error {
		var err error
		admin, err = f.accounts.CreateUser(ctx, uow, RegisterInput{
			Name:     f.faker.Name(),
			Email:    email,
			Username: "admin",
			Password: forgePassword,
		}, true)
		return err
	})
	return admin, err
}

// Run 依次生成用户、关注、图片、标签、收藏和评论
func (f *Forger) Run(ctx context.Context, n ForgeCounts) error {
	var users []*model.User
	for i := 0; i < n.Users; i++ {
		u, err := f.user(ctx)
		if err != nil {
			if _, ok := AsServiceError(err); ok {
				log.Printf("forge user skipped: %v", err)
				continue
			}
			return err
		}
		users = append(users, u)
	}
	if len(users) == 0 {
		return nil
	}

	for i := 0; i < n.Follows; i++ {
		a, b := f.pick(users), f.pick(users)
		if a.ID == b.ID {
			continue
		}
		if err := mysql.Run(ctx, f.db, func(uow *mysql.UnitOfWork) error {
			_, err := f.follows.Follow(ctx, uow, a, b)
			return err
		}); err != nil {
			return fmt.Errorf("forge follow: %w", err)
		}
	}

	var photos []*model.Photo
	for i := 0; i < n.Photos; i++ {
		p, err := f.photo(ctx, f.pick(users))
		if err != nil {
			return fmt.Errorf("forge photo: %w", err)
		}
		photos = append(photos, p)
	}
	if len(photos) == 0 {
		return nil
	}

	for i := 0; i < n.Tags; i++ {
		p := photos[f.faker.Number(0, len(photos)-1)]
		author := f.owner(users, p)
		if err := mysql.Run(ctx, f.db, func(uow *mysql.UnitOfWork) error {
			_, err := f.photos.AttachTags(ctx, uow, p, author, strings.ToLower(f.faker.Word()))
			return err
		}); err != nil {
			return fmt.Errorf("forge tag: %w", err)
		}
	}

	for i := 0; i < n.Collects; i++ {
		u, p := f.pick(users), photos[f.faker.Number(0, len(photos)-1)]
		if err := mysql.Run(ctx, f.db, func(uow *mysql.UnitOfWork) error {
			_, err := f.collects.Collect(ctx, uow, u, p)
			return err
		}); err != nil {
			return fmt.Errorf("forge collect: %w", err)
		}
	}

	for i := 0; i < n.Comments; i++ {
		u, p := f.pick(users), photos[f.faker.Number(0, len(photos)-1)]
		if err := mysql.Run(ctx, f.db, func(uow *mysql.UnitOfWork) error {
			_, err := f.comments.AddComment(ctx, uow, p, u, f.faker.Sentence(12), nil)
			return err
		}); err != nil {
			return fmt.Errorf("forge comment: %w", err)
		}
	}
	return nil
}

func (f *Forger) pick(users []*model.User) *model.User {
	return users[f.faker.Number(0, len(users)-1)]
}

func (f *Forger) owner(users []*model.User, p *model.Photo) *model.User {
	for _, u := range users {
		if u.ID == p.AuthorID {
			return u
		}
	}
	return nil
}

func (f *Forger) user(ctx context.Context) (*model.User, error) {
	username := f.faker.Username()
	if len(username) > 20 {
		username = username[:20]
	}
	var user *model.User
	err := mysql.Run(ctx, f.db, func(uow *mysql.UnitOfWork) error {
		var err error
		user, err = f.accounts.CreateUser(ctx, uow, RegisterInput{
			Name:     f.faker.Name(),
			Email:    f.faker.Email(),
			Username: username,
			Password: forgePassword,
		}, true)
		if err != nil {
			return err
		}
		user.Website = f.faker.URL()
		user.Bio = truncate(f.faker.Sentence(8), 120)
		user.Location = truncate(f.faker.City(), 50)
		return uow.Users().Save(ctx, user)
	})
	return user, err
}

// photo 纯色图片，尺寸随机
func (f *Forger) photo(ctx context.Context, author *model.User) (*model.Photo, error) {
	w, h := f.faker.Number(200, 1200), f.faker.Number(200, 900)
	img := imaging.New(w, h, color.NRGBA{R: f.faker.Uint8(), G: f.faker.Uint8(), B: f.faker.Uint8(), A: 255})
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG); err != nil {
		return nil, err
	}
	var photo *model.Photo
	err := mysql.Run(ctx, f.db, func(uow *mysql.UnitOfWork) error {
		var err error
		photo, err = f.photos.Upload(ctx, uow, author, "forged.jpg", buf.Bytes(), truncate(f.faker.Sentence(10), 500))
		return err
	})
	return photo, err
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
