package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"Albumy/internal/config"
	"Albumy/internal/model"
	"Albumy/internal/pkg"
	"Albumy/internal/service"
	"Albumy/internal/testutils"

	qt "github.com/frankban/quicktest"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func countTags(c *qt.C, db *gorm.DB) int64 {
	var n int64
	c.Assert(db.Model(&model.Tag{}).Count(&n).Error, qt.IsNil)
	return n
}

// 测试内容：状态码 < 400 时提交，否则回滚。
func TestUnitOfWorkCommitsOnSuccessOnly(t *testing.T) {
	c := qt.New(t)
	db := testutils.SetupDB(t)

	r := gin.New()
	r.Use(UnitOfWork(db))
	r.POST("/ok", func(ctx *gin.Context) {
		c.Assert(UoW(ctx).DB().Create(&model.Tag{Name: "kept"}).Error, qt.IsNil)
		ctx.JSON(http.StatusOK, gin.H{"msg": "ok"})
	})
	r.POST("/bad", func(ctx *gin.Context) {
		c.Assert(UoW(ctx).DB().Create(&model.Tag{Name: "dropped"}).Error, qt.IsNil)
		ctx.JSON(http.StatusBadRequest, gin.H{"msg": "bad"})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ok", nil))
	c.Assert(w.Code, qt.Equals, http.StatusOK)
	c.Assert(countTags(c, db), qt.Equals, int64(1))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/bad", nil))
	c.Assert(w.Code, qt.Equals, http.StatusBadRequest)
	c.Assert(countTags(c, db), qt.Equals, int64(1))
}

// 测试内容：handler panic 时回滚，并由 Recovery 返回 500。
func TestUnitOfWorkRollsBackOnPanic(t *testing.T) {
	c := qt.New(t)
	db := testutils.SetupDB(t)

	r := gin.New()
	r.Use(gin.CustomRecovery(func(ctx *gin.Context, _ any) {
		ctx.AbortWithStatus(http.StatusInternalServerError)
	}))
	r.Use(UnitOfWork(db))
	r.POST("/boom", func(ctx *gin.Context) {
		c.Assert(UoW(ctx).DB().Create(&model.Tag{Name: "lost"}).Error, qt.IsNil)
		panic("boom")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/boom", nil))
	c.Assert(w.Code, qt.Equals, http.StatusInternalServerError)
	c.Assert(countTags(c, db), qt.Equals, int64(0))
}

// 测试内容：提交失败时客户端拿到 500，而不是 handler 写好的成功响应。
func TestUnitOfWorkCommitFailureReturns500(t *testing.T) {
	c := qt.New(t)
	db := testutils.SetupDB(t)

	r := gin.New()
	r.Use(UnitOfWork(db))
	r.POST("/lost", func(ctx *gin.Context) {
		uow := UoW(ctx)
		c.Assert(uow.DB().Create(&model.Tag{Name: "lost"}).Error, qt.IsNil)
		// 事务已经结束，之后的 Commit 会失败
		c.Assert(uow.Rollback(), qt.IsNil)
		ctx.JSON(http.StatusCreated, gin.H{"msg": "created"})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/lost", nil))
	c.Assert(w.Code, qt.Equals, http.StatusInternalServerError)
	c.Assert(w.Body.String(), qt.Not(qt.Contains), "created")
	c.Assert(countTags(c, db), qt.Equals, int64(0))
}

type authFixture struct {
	db       *gorm.DB
	tokens   *pkg.TokenIssuer
	sessions *service.MemorySessionStore
	router   *gin.Engine
}

func newAuthFixture(t *testing.T) *authFixture {
	cfg := config.Default()
	f := &authFixture{
		db:       testutils.SetupDB(t),
		tokens:   pkg.NewTokenIssuer(cfg.JWT),
		sessions: service.NewMemorySessionStore(),
	}
	auth := NewAuth(f.tokens, f.sessions)

	r := gin.New()
	r.Use(UnitOfWork(f.db))
	r.GET("/me", auth.Required(), func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"username": CurrentUser(ctx).Username})
	})
	r.GET("/maybe", auth.Optional(), func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"anonymous": CurrentUser(ctx) == nil})
	})
	r.POST("/upload", auth.Required(), RequireConfirmed(), RequirePermission(model.PermUpload), func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"msg": "ok"})
	})
	f.router = r
	return f
}

func (f *authFixture) login(c *qt.C, user *model.User) string {
	pair, err := f.tokens.GeneratePair(user.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(f.sessions.AddUserToken(context.Background(), user.ID, pair.AccessToken, time.Minute), qt.IsNil)
	return pair.AccessToken
}

func (f *authFixture) do(method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	c := qt.New(t)
	f := newAuthFixture(t)
	alice := testutils.SeedUser(t, f.db, "alice", model.RoleUser)

	c.Assert(f.do(http.MethodGet, "/me", "").Code, qt.Equals, http.StatusUnauthorized)
	c.Assert(f.do(http.MethodGet, "/me", "garbage").Code, qt.Equals, http.StatusUnauthorized)

	token := f.login(c, alice)
	w := f.do(http.MethodGet, "/me", token)
	c.Assert(w.Code, qt.Equals, http.StatusOK)
	c.Assert(w.Body.String(), qt.Contains, `"username":"alice"`)

	// 重新登录后旧 token 失效
	f.login(c, alice)
	c.Assert(f.do(http.MethodGet, "/me", token).Code, qt.Equals, http.StatusUnauthorized)
}

func TestAuthRejectsBlockedUser(t *testing.T) {
	c := qt.New(t)
	f := newAuthFixture(t)
	bob := testutils.SeedUser(t, f.db, "bob", model.RoleUser)
	token := f.login(c, bob)
	c.Assert(f.db.Model(&model.User{}).Where("id = ?", bob.ID).Update("active", false).Error, qt.IsNil)

	c.Assert(f.do(http.MethodGet, "/me", token).Code, qt.Equals, http.StatusForbidden)
}

func TestAuthOptional(t *testing.T) {
	c := qt.New(t)
	f := newAuthFixture(t)
	alice := testutils.SeedUser(t, f.db, "alice", model.RoleUser)

	c.Assert(f.do(http.MethodGet, "/maybe", "").Body.String(), qt.Contains, `"anonymous":true`)
	c.Assert(f.do(http.MethodGet, "/maybe", "stale").Body.String(), qt.Contains, `"anonymous":true`)
	c.Assert(f.do(http.MethodGet, "/maybe", f.login(c, alice)).Body.String(), qt.Contains, `"anonymous":false`)
}

func TestRequirePermissionAndConfirmed(t *testing.T) {
	c := qt.New(t)
	f := newAuthFixture(t)
	alice := testutils.SeedUser(t, f.db, "alice", model.RoleUser)
	locked := testutils.SeedUser(t, f.db, "locked", model.RoleLocked)
	fresh := testutils.SeedUser(t, f.db, "fresh", model.RoleUser)
	c.Assert(f.db.Model(&model.User{}).Where("id = ?", fresh.ID).Update("confirmed", false).Error, qt.IsNil)

	c.Assert(f.do(http.MethodPost, "/upload", f.login(c, alice)).Code, qt.Equals, http.StatusOK)
	c.Assert(f.do(http.MethodPost, "/upload", f.login(c, locked)).Code, qt.Equals, http.StatusForbidden)
	c.Assert(f.do(http.MethodPost, "/upload", f.login(c, fresh)).Code, qt.Equals, http.StatusForbidden)
}

// 测试内容：突发 1 个令牌且不补充时第二次请求被拦截。
func TestRateLimitBlocksBurst(t *testing.T) {
	c := qt.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := gin.New()
	r.Use(RateLimit(ctx, config.RateLimitConfig{Enabled: true, RPS: 0, Burst: 1}))
	r.GET("/x", func(ctx *gin.Context) { ctx.Status(http.StatusOK) })

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	c.Assert(send("1.2.3.4:1111"), qt.Equals, http.StatusOK)
	c.Assert(send("1.2.3.4:1111"), qt.Equals, http.StatusTooManyRequests)
	c.Assert(send("5.6.7.8:1111"), qt.Equals, http.StatusOK)
}

func TestRateLimitDisabled(t *testing.T) {
	c := qt.New(t)
	r := gin.New()
	r.Use(RateLimit(context.Background(), config.RateLimitConfig{Enabled: false, Burst: 0}))
	r.GET("/x", func(ctx *gin.Context) { ctx.Status(http.StatusOK) })
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		c.Assert(w.Code, qt.Equals, http.StatusOK)
	}
}
