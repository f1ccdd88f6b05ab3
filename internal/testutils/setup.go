package testutils

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"sync/atomic"
	"testing"

	"Albumy/internal/model"
	"Albumy/internal/repository/mysql"

	"github.com/disintegration/imaging"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

var testDBSeq int64

// SetupDB 每个测试一个独立的内存 SQLite，建表并写入标准角色
func SetupDB(t *testing.T) *gorm.DB {
	t.Helper()

	seq := atomic.AddInt64(&testDBSeq, 1)
	dsn := fmt.Sprintf("file:albumy_%d?mode=memory&cache=shared", seq)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := mysql.AutoMigrate(gdb); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	err = mysql.Run(context.Background(), gdb, func(uow *mysql.UnitOfWork) error {
		for level, spec := range model.CanonicalRoles {
			if _, err := uow.Roles().Upsert(context.Background(), spec.Name, level, spec.Permissions); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed roles: %v", err)
	}
	return gdb
}

// PNG 生成纯色 PNG
func PNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := imaging.New(w, h, color.NRGBA{R: 30, G: 120, B: 200, A: 255})
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// SeedUser 直接写库创建一个已确认用户，密码为 password123
func SeedUser(t *testing.T, db *gorm.DB, username, roleName string) *model.User {
	t.Helper()
	ctx := context.Background()
	user := model.NewUser(username, username+"@example.com", username)
	user.Confirmed = true
	err := mysql.Run(ctx, db, func(uow *mysql.UnitOfWork) error {
		role, err := uow.Roles().FindByName(ctx, roleName)
		if err != nil {
			return err
		}
		user.RoleID = role.ID
		user.Role = role
		user.Locked = roleName == model.RoleLocked
		if err = user.SetPassword("password123"); err != nil {
			return err
		}
		if err = uow.Users().Create(ctx, user); err != nil {
			return err
		}
		_, err = uow.Follows().Follow(ctx, user.ID, user.ID)
		return err
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return user
}
