package router

import (
	"context"
	"strings"

	"Albumy/internal/config"
	"Albumy/internal/handler"
	"Albumy/internal/middleware"
	"Albumy/internal/model"
	"Albumy/internal/pkg"
	"Albumy/internal/service"
	"Albumy/internal/storage"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps 路由需要的全部依赖，由 cmd 组装
type Deps struct {
	Config   *config.Config
	DB       *gorm.DB
	Tokens   *pkg.TokenIssuer
	Sessions service.SessionStore
	Store    storage.Store

	Accounts      *service.AccountService
	Follows       *service.FollowService
	Collects      *service.CollectService
	Photos        *service.PhotoService
	Comments      *service.CommentService
	Notifications *service.NotificationService
	Admin         *service.AdminService
}

func InitRouter(ctx context.Context, d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// 本地存储时直接托管上传目录
	if local, ok := d.Store.(*storage.LocalStore); ok {
		prefix := strings.TrimRight(d.Config.Storage.URLPrefix, "/")
		if prefix == "" {
			prefix = "/uploads"
		}
		r.Static(prefix, local.Root())
	}

	uploads := handler.NewUploadPolicy(d.Config.Albumy.AllowedExtensions)
	authH := handler.NewAuthHandler(d.Accounts)
	userH := handler.NewUserHandler(d.Accounts, d.Follows, d.Collects, d.Photos)
	settingsH := handler.NewSettingsHandler(d.Accounts, uploads)
	photoH := handler.NewPhotoHandler(d.Photos, d.Collects, d.Comments, uploads)
	commentH := handler.NewCommentHandler(d.Comments)
	tagH := handler.NewTagHandler(d.Photos)
	notificationH := handler.NewNotificationHandler(d.Notifications)
	adminH := handler.NewAdminHandler(d.Admin)

	auth := middleware.NewAuth(d.Tokens, d.Sessions)
	limit := middleware.RateLimit(ctx, d.Config.RateLimit)
	uploadLimit := middleware.UploadBodyLimit(d.Config.Albumy.MaxUploadSizeMB)
	confirmed := middleware.RequireConfirmed()

	api := r.Group("/api")
	api.Use(middleware.UnitOfWork(d.DB))

	// 账号相关接口
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", limit, authH.Register)
		authGroup.POST("/login", limit, authH.Login)
		authGroup.POST("/refresh", authH.Refresh)
		authGroup.POST("/reset/request", limit, authH.RequestReset)
		authGroup.POST("/reset", authH.ResetPassword)
		authGroup.POST("/logout", auth.Required(), authH.Logout)
		authGroup.POST("/confirm", auth.Required(), authH.Confirm)
		authGroup.POST("/confirm/resend", limit, auth.Required(), authH.ResendConfirm)
	}

	// 用户主页
	userGroup := api.Group("/users/:username")
	{
		userGroup.GET("", auth.Optional(), userH.Profile)
		userGroup.GET("/photos", userH.Photos)
		userGroup.GET("/collections", auth.Optional(), userH.Collections)
		userGroup.GET("/followers", userH.Followers)
		userGroup.GET("/following", userH.Following)
		userGroup.POST("/follow", auth.Required(), confirmed, middleware.RequirePermission(model.PermFollow), userH.Follow)
		userGroup.DELETE("/follow", auth.Required(), confirmed, middleware.RequirePermission(model.PermFollow), userH.Unfollow)
	}

	// 登录态设置接口
	settings := api.Group("/settings")
	settings.Use(auth.Required())
	{
		settings.PUT("/profile", settingsH.EditProfile)
		settings.PUT("/password", settingsH.ChangePassword)
		settings.PUT("/notifications", settingsH.Notifications)
		settings.PUT("/privacy", settingsH.Privacy)
		settings.PUT("/email", limit, settingsH.RequestEmailChange)
		settings.POST("/email/confirm", settingsH.ConfirmEmailChange)
		settings.POST("/avatar", uploadLimit, settingsH.UploadAvatar)
		settings.DELETE("/account", settingsH.DeleteAccount)
	}

	// 图片相关接口
	api.GET("/explore", photoH.Explore)
	api.GET("/feed", auth.Required(), photoH.Feed)
	photoGroup := api.Group("/photos")
	{
		photoGroup.POST("", auth.Required(), confirmed, middleware.RequirePermission(model.PermUpload), uploadLimit, photoH.Upload)
		photoGroup.GET("/:id", auth.Optional(), photoH.Show)
		photoGroup.GET("/:id/next", photoH.Next)
		photoGroup.GET("/:id/previous", photoH.Previous)
		photoGroup.GET("/:id/comments", photoH.Comments)
		photoGroup.GET("/:id/collectors", photoH.Collectors)

		owned := photoGroup.Group("/:id")
		owned.Use(auth.Required())
		owned.DELETE("", photoH.Delete)
		owned.PUT("/description", photoH.EditDescription)
		owned.POST("/toggle-comment", photoH.ToggleComment)
		owned.POST("/report", confirmed, photoH.Report)
		owned.POST("/tags", photoH.AddTags)
		owned.DELETE("/tags/:tag_id", photoH.DeleteTag)
		owned.POST("/collect", confirmed, middleware.RequirePermission(model.PermCollect), photoH.Collect)
		owned.DELETE("/collect", confirmed, middleware.RequirePermission(model.PermCollect), photoH.Uncollect)
		owned.POST("/comments", confirmed, middleware.RequirePermission(model.PermComment), photoH.AddComment)
	}

	commentGroup := api.Group("/comments/:id")
	commentGroup.Use(auth.Required())
	{
		commentGroup.DELETE("", commentH.Delete)
		commentGroup.POST("/report", confirmed, commentH.Report)
	}

	api.GET("/tags/:id/photos", tagH.Photos)

	notificationGroup := api.Group("/notifications")
	notificationGroup.Use(auth.Required())
	{
		notificationGroup.GET("", notificationH.List)
		notificationGroup.GET("/unread-count", notificationH.UnreadCount)
		notificationGroup.POST("/:id/read", notificationH.MarkRead)
		notificationGroup.POST("/read-all", notificationH.MarkAllRead)
	}

	// 后台接口，细粒度权限在 service 层
	adminGroup := api.Group("/admin")
	adminGroup.Use(auth.Required(), middleware.RequirePermission(model.PermModerate))
	{
		adminGroup.GET("/dashboard", adminH.Dashboard)
		adminGroup.POST("/users/:id/lock", adminH.Lock())
		adminGroup.POST("/users/:id/unlock", adminH.Unlock())
		adminGroup.POST("/users/:id/block", adminH.Block())
		adminGroup.POST("/users/:id/unblock", adminH.Unblock())
		adminGroup.PUT("/users/:id/profile", middleware.RequirePermission(model.PermAdminister), adminH.EditProfile)
		adminGroup.DELETE("/tags/:id", adminH.DeleteTag)
		adminGroup.GET("/manage/users", adminH.ManageUsers)
		adminGroup.GET("/manage/photos", adminH.ManagePhotos)
		adminGroup.GET("/manage/comments", adminH.ManageComments)
		adminGroup.GET("/manage/tags", adminH.ManageTags)
	}

	return r
}
