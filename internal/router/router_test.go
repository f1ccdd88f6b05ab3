package router

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"Albumy/internal/config"
	"Albumy/internal/model"
	"Albumy/internal/pkg"
	"Albumy/internal/service"
	"Albumy/internal/storage"
	"Albumy/internal/testutils"

	qt "github.com/frankban/quicktest"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type nopQueue struct{}

func (nopQueue) Enqueue(pkg.Message) bool { return true }

type apiEnv struct {
	t      *testing.T
	db     *gorm.DB
	engine *gin.Engine
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	cfg := config.Default()
	cfg.Server.BaseURL = "http://albumy.test"
	cfg.RateLimit.Enabled = false
	db := testutils.SetupDB(t)

	store, err := storage.NewLocalStore(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatalf("local store: %v", err)
	}
	images := &storage.ImagePipeline{Store: store, MediumWidth: cfg.Albumy.PhotoSizeMedium, SmallWidth: cfg.Albumy.PhotoSizeSmall}
	tokens := pkg.NewTokenIssuer(cfg.JWT)
	sessions := service.NewMemorySessionStore()
	email := service.NewEmailService(nopQueue{}, service.NewMemoryThrottle(), tokens, cfg.Server.BaseURL, cfg.Albumy.MailThrottle)
	notifications := service.NewNotificationService(cfg.Server.BaseURL, cfg.Albumy.PerPage.Notification)
	photos := service.NewPhotoService(images, cfg.Albumy.PerPage.Photo)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	engine := InitRouter(ctx, Deps{
		Config:        cfg,
		DB:            db,
		Tokens:        tokens,
		Sessions:      sessions,
		Store:         store,
		Accounts:      service.NewAccountService(cfg.Albumy, tokens, email, sessions, images, photos),
		Follows:       service.NewFollowService(notifications, cfg.Albumy.PerPage.User),
		Collects:      service.NewCollectService(notifications, cfg.Albumy.PerPage.Photo),
		Photos:        photos,
		Comments:      service.NewCommentService(notifications, cfg.Albumy.PerPage.Comment),
		Notifications: notifications,
		Admin:         service.NewAdminService(sessions, cfg.Albumy.PerPage),
	})
	return &apiEnv{t: t, db: db, engine: engine}
}

func (e *apiEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func (e *apiEnv) login(c *qt.C, email string) string {
	c.Helper()
	w := e.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": email, "password": "password123"})
	c.Assert(w.Code, qt.Equals, http.StatusOK, qt.Commentf("body: %s", w.Body.String()))
	var res struct {
		Token pkg.Pair `json:"token"`
	}
	c.Assert(json.Unmarshal(w.Body.Bytes(), &res), qt.IsNil)
	return res.Token.AccessToken
}

func (e *apiEnv) seed(c *qt.C, username, role string) string {
	c.Helper()
	testutils.SeedUser(e.t, e.db, username, role)
	return e.login(c, username+"@example.com")
}

func (e *apiEnv) upload(c *qt.C, token string) uint64 {
	c.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "photo.png")
	c.Assert(err, qt.IsNil)
	_, err = fw.Write(testutils.PNG(e.t, 64, 48))
	c.Assert(err, qt.IsNil)
	c.Assert(mw.WriteField("description", "sunset"), qt.IsNil)
	c.Assert(mw.Close(), qt.IsNil)

	req := httptest.NewRequest(http.MethodPost, "/api/photos", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	c.Assert(w.Code, qt.Equals, http.StatusCreated, qt.Commentf("body: %s", w.Body.String()))

	var res struct {
		Photo model.Photo `json:"photo"`
	}
	c.Assert(json.Unmarshal(w.Body.Bytes(), &res), qt.IsNil)
	return res.Photo.ID
}

func TestRegisterLoginAndConfirmGate(t *testing.T) {
	c := qt.New(t)
	e := newAPIEnv(t)

	w := e.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"name": "Grey", "email": "grey@example.com", "username": "grey", "password": "password123",
	})
	c.Assert(w.Code, qt.Equals, http.StatusCreated, qt.Commentf("body: %s", w.Body.String()))

	w = e.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"name": "Grey", "email": "grey@example.com", "username": "grey2", "password": "password123",
	})
	c.Assert(w.Code, qt.Equals, http.StatusBadRequest)

	w = e.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "grey@example.com", "password": "wrong-password"})
	c.Assert(w.Code, qt.Equals, http.StatusUnauthorized)

	token := e.login(c, "grey@example.com")
	c.Assert(e.do(http.MethodGet, "/api/feed", token, nil).Code, qt.Equals, http.StatusOK)

	// 未确认邮箱不能关注
	e.seed(c, "bob", model.RoleUser)
	c.Assert(e.do(http.MethodPost, "/api/users/bob/follow", token, nil).Code, qt.Equals, http.StatusForbidden)

	w = e.do(http.MethodPost, "/api/auth/confirm", token, gin.H{"token": "bogus"})
	c.Assert(w.Code, qt.Equals, http.StatusBadRequest)

	c.Assert(e.do(http.MethodPost, "/api/auth/logout", token, nil).Code, qt.Equals, http.StatusOK)
	c.Assert(e.do(http.MethodGet, "/api/feed", token, nil).Code, qt.Equals, http.StatusUnauthorized)
}

func TestFollowThroughAPI(t *testing.T) {
	c := qt.New(t)
	e := newAPIEnv(t)
	alice := e.seed(c, "alice", model.RoleUser)
	e.seed(c, "bob", model.RoleUser)

	w := e.do(http.MethodPost, "/api/users/bob/follow", alice, nil)
	c.Assert(w.Code, qt.Equals, http.StatusOK)
	c.Assert(w.Body.String(), qt.Contains, `"changed":true`)

	w = e.do(http.MethodPost, "/api/users/bob/follow", alice, nil)
	c.Assert(w.Code, qt.Equals, http.StatusOK)
	c.Assert(w.Body.String(), qt.Contains, `"changed":false`)

	c.Assert(e.do(http.MethodPost, "/api/users/alice/follow", alice, nil).Code, qt.Equals, http.StatusBadRequest)
	c.Assert(e.do(http.MethodPost, "/api/users/nobody/follow", alice, nil).Code, qt.Equals, http.StatusNotFound)

	w = e.do(http.MethodGet, "/api/users/bob", alice, nil)
	c.Assert(w.Code, qt.Equals, http.StatusOK)
	c.Assert(w.Body.String(), qt.Contains, `"following":true`)
	c.Assert(w.Body.String(), qt.Contains, `"followers":1`)

	// 失败请求的写入被回滚
	var outbox int64
	c.Assert(e.db.Model(&model.SocialOutbox{}).Count(&outbox).Error, qt.IsNil)
	c.Assert(outbox, qt.Equals, int64(1))
}

func TestPhotoCommentFlow(t *testing.T) {
	c := qt.New(t)
	e := newAPIEnv(t)
	alice := e.seed(c, "alice", model.RoleUser)
	bob := e.seed(c, "bob", model.RoleUser)
	locked := e.seed(c, "locked", model.RoleLocked)

	id := e.upload(c, alice)
	base := "/api/photos/" + itoa(id)

	c.Assert(e.do(http.MethodGet, base, "", nil).Code, qt.Equals, http.StatusOK)
	c.Assert(e.do(http.MethodGet, "/api/photos/9999", "", nil).Code, qt.Equals, http.StatusNotFound)
	c.Assert(e.do(http.MethodGet, "/api/photos/abc", "", nil).Code, qt.Equals, http.StatusBadRequest)

	w := e.do(http.MethodPost, base+"/comments", bob, gin.H{"body": "nice"})
	c.Assert(w.Code, qt.Equals, http.StatusCreated, qt.Commentf("body: %s", w.Body.String()))
	c.Assert(e.do(http.MethodPost, base+"/comments", locked, gin.H{"body": "spam"}).Code, qt.Equals, http.StatusForbidden)

	c.Assert(e.do(http.MethodPost, base+"/toggle-comment", bob, nil).Code, qt.Equals, http.StatusForbidden)
	w = e.do(http.MethodPost, base+"/toggle-comment", alice, nil)
	c.Assert(w.Code, qt.Equals, http.StatusOK)
	c.Assert(w.Body.String(), qt.Contains, `"can_comment":false`)
	c.Assert(e.do(http.MethodPost, base+"/comments", bob, gin.H{"body": "again"}).Code, qt.Equals, http.StatusForbidden)

	w = e.do(http.MethodPost, base+"/tags", alice, gin.H{"tags": "sky sea"})
	c.Assert(w.Code, qt.Equals, http.StatusOK)
	c.Assert(e.do(http.MethodPost, base+"/tags", bob, gin.H{"tags": "mine"}).Code, qt.Equals, http.StatusForbidden)

	w = e.do(http.MethodPost, base+"/collect", bob, nil)
	c.Assert(w.Code, qt.Equals, http.StatusOK)
	c.Assert(w.Body.String(), qt.Contains, `"changed":true`)

	w = e.do(http.MethodGet, "/api/notifications/unread-count", alice, nil)
	c.Assert(w.Code, qt.Equals, http.StatusOK)
	c.Assert(w.Body.String(), qt.Contains, `"count":2`)

	c.Assert(e.do(http.MethodDelete, base, bob, nil).Code, qt.Equals, http.StatusForbidden)
	c.Assert(e.do(http.MethodDelete, base, alice, nil).Code, qt.Equals, http.StatusOK)
	c.Assert(e.do(http.MethodGet, base, "", nil).Code, qt.Equals, http.StatusNotFound)
}

func TestAdminRoutes(t *testing.T) {
	c := qt.New(t)
	e := newAPIEnv(t)
	admin := e.seed(c, "root", model.RoleAdministrator)
	mod := e.seed(c, "mod", model.RoleModerator)
	user := e.seed(c, "user", model.RoleUser)

	var target model.User
	c.Assert(e.db.Where("username = ?", "user").First(&target).Error, qt.IsNil)
	userPath := "/api/admin/users/" + itoa(target.ID)

	c.Assert(e.do(http.MethodGet, "/api/admin/dashboard", user, nil).Code, qt.Equals, http.StatusForbidden)
	w := e.do(http.MethodGet, "/api/admin/dashboard", mod, nil)
	c.Assert(w.Code, qt.Equals, http.StatusOK)
	c.Assert(w.Body.String(), qt.Contains, `"users":3`)

	c.Assert(e.do(http.MethodPut, userPath+"/profile", mod, gin.H{"name": "x"}).Code, qt.Equals, http.StatusForbidden)
	w = e.do(http.MethodPut, userPath+"/profile", admin, gin.H{"name": "Renamed"})
	c.Assert(w.Code, qt.Equals, http.StatusOK, qt.Commentf("body: %s", w.Body.String()))
	c.Assert(w.Body.String(), qt.Contains, `"name":"Renamed"`)

	w = e.do(http.MethodPost, userPath+"/block", mod, nil)
	c.Assert(w.Code, qt.Equals, http.StatusOK)
	c.Assert(w.Body.String(), qt.Contains, `"changed":true`)
	// 封禁后原会话立即失效
	c.Assert(e.do(http.MethodGet, "/api/feed", user, nil).Code, qt.Equals, http.StatusUnauthorized)

	c.Assert(e.do(http.MethodPost, "/api/admin/users/9999/lock", mod, nil).Code, qt.Equals, http.StatusNotFound)

	w = e.do(http.MethodGet, "/api/admin/manage/users?filter=blocked", mod, nil)
	c.Assert(w.Code, qt.Equals, http.StatusOK)
	c.Assert(w.Body.String(), qt.Contains, `"total":1`)
}

func TestUploadRejectsBadFiles(t *testing.T) {
	c := qt.New(t)
	e := newAPIEnv(t)
	alice := e.seed(c, "alice", model.RoleUser)

	send := func(name string, data []byte) int {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, _ := mw.CreateFormFile("file", name)
		_, _ = fw.Write(data)
		_ = mw.Close()
		req := httptest.NewRequest(http.MethodPost, "/api/photos", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+alice)
		w := httptest.NewRecorder()
		e.engine.ServeHTTP(w, req)
		return w.Code
	}
	c.Assert(send("notes.txt", []byte("hello")), qt.Equals, http.StatusBadRequest)
	c.Assert(send("fake.png", []byte("not an image")), qt.Equals, http.StatusBadRequest)
	c.Assert(send("big.png", bytes.Repeat([]byte{0}, 4<<20)), qt.Equals, http.StatusRequestEntityTooLarge)
}

func itoa(id uint64) string {
	return strconv.FormatUint(id, 10)
}
