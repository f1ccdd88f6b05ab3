package mysql

import (
	"context"
	"testing"

	"Albumy/internal/model"

	qt "github.com/frankban/quicktest"
	"github.com/glebarez/sqlite"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func TestFindOrCreateIsCaseSensitive(t *testing.T) {
	c := qt.New(t)
	db, err := gorm.Open(sqlite.Open("file:tags_exact?mode=memory&cache=shared"), &gorm.Config{})
	c.Assert(err, qt.IsNil)
	sqlDB, err := db.DB()
	c.Assert(err, qt.IsNil)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	c.Assert(db.AutoMigrate(&model.Tag{}), qt.IsNil)

	repo := &TagRepository{DB: db}
	ctx := context.Background()
	upper, err := repo.FindOrCreate(ctx, "Cat")
	c.Assert(err, qt.IsNil)
	lower, err := repo.FindOrCreate(ctx, "cat")
	c.Assert(err, qt.IsNil)
	c.Assert(lower.ID, qt.Not(qt.Equals), upper.ID)

	again, err := repo.FindOrCreate(ctx, "Cat")
	c.Assert(err, qt.IsNil)
	c.Assert(again.ID, qt.Equals, upper.ID)
}

// mysql 下用 BINARY 比较，不连接数据库只生成 SQL
func TestExactNameUsesBinaryOnMySQL(t *testing.T) {
	c := qt.New(t)
	db, err := gorm.Open(gormmysql.New(gormmysql.Config{
		DSN:                       "user:pass@tcp(127.0.0.1:1)/albumy",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{DisableAutomaticPing: true})
	c.Assert(err, qt.IsNil)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var tags []model.Tag
		return byExactName(tx, "Cat").Find(&tags)
	})
	c.Assert(sql, qt.Contains, "BINARY name = 'Cat'")
}
