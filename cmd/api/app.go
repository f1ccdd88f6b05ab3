package main

import (
	"context"
	"fmt"
	"log"

	"Albumy/internal/config"
	"Albumy/internal/pkg"
	"Albumy/internal/repository/mysql"
	redisrepo "Albumy/internal/repository/redis"
	"Albumy/internal/router"
	"Albumy/internal/service"
	"Albumy/internal/storage"

	"gorm.io/gorm"
)

// app 组装好的全部组件
type app struct {
	cfg        *config.Config
	db         *gorm.DB
	store      storage.Store
	tokens     *pkg.TokenIssuer
	sessions   service.SessionStore
	dispatcher *service.MailDispatcher

	accounts      *service.AccountService
	follows       *service.FollowService
	collects      *service.CollectService
	photos        *service.PhotoService
	comments      *service.CommentService
	notifications *service.NotificationService
	admin         *service.AdminService

	closers []func() error
}

// newApp 连接数据库、建表并创建各个 service
func newApp(ctx context.Context, configDir string) (*app, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = "http://localhost:" + cfg.Server.Port
	}

	a := &app{cfg: cfg}
	a.db, err = mysql.InitDB(cfg.Database)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error {
		sqlDB, err := a.db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
	if err := mysql.AutoMigrate(a.db); err != nil {
		a.close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	a.store, err = storage.New(ctx, cfg.Storage)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("storage: %w", err)
	}
	images := &storage.ImagePipeline{
		Store:       a.store,
		MediumWidth: cfg.Albumy.PhotoSizeMedium,
		SmallWidth:  cfg.Albumy.PhotoSizeSmall,
	}
	a.tokens = pkg.NewTokenIssuer(cfg.JWT)

	// 未启用 redis 时登录态和邮件冷却放在进程内存里
	var throttle service.MailThrottle
	if cfg.Redis.Enabled {
		client, err := redisrepo.NewClient(cfg.Redis)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		a.sessions = &redisrepo.UserRepository{Client: client, Prefix: cfg.Redis.Prefix}
		throttle = &redisrepo.EmailRepository{Client: client, Prefix: cfg.Redis.Prefix}
	} else {
		log.Println("redis disabled, sessions and mail throttle kept in memory")
		a.sessions = service.NewMemorySessionStore()
		throttle = service.NewMemoryThrottle()
	}

	var mailer pkg.Mailer = pkg.LogMailer{}
	if cfg.SMTP.Host != "" {
		mailer = pkg.NewSMTPMailer(cfg.SMTP)
	}
	a.dispatcher = service.NewMailDispatcher(mailer, cfg.SMTP.Workers, cfg.SMTP.Queue)
	a.dispatcher.Start(ctx)

	email := service.NewEmailService(a.dispatcher, throttle, a.tokens, cfg.Server.BaseURL, cfg.Albumy.MailThrottle)
	a.notifications = service.NewNotificationService(cfg.Server.BaseURL, cfg.Albumy.PerPage.Notification)
	a.photos = service.NewPhotoService(images, cfg.Albumy.PerPage.Photo)
	a.accounts = service.NewAccountService(cfg.Albumy, a.tokens, email, a.sessions, images, a.photos)
	a.follows = service.NewFollowService(a.notifications, cfg.Albumy.PerPage.User)
	a.collects = service.NewCollectService(a.notifications, cfg.Albumy.PerPage.Photo)
	a.comments = service.NewCommentService(a.notifications, cfg.Albumy.PerPage.Comment)
	a.admin = service.NewAdminService(a.sessions, cfg.Albumy.PerPage)
	return a, nil
}

func (a *app) routerDeps() router.Deps {
	return router.Deps{
		Config:        a.cfg,
		DB:            a.db,
		Tokens:        a.tokens,
		Sessions:      a.sessions,
		Store:         a.store,
		Accounts:      a.accounts,
		Follows:       a.follows,
		Collects:      a.collects,
		Photos:        a.photos,
		Comments:      a.comments,
		Notifications: a.notifications,
		Admin:         a.admin,
	}
}

// outboxSender 配置了 broker 才投递到 kafka
func (a *app) outboxSender() service.Sender {
	if len(a.cfg.Kafka.Brokers) == 0 {
		return service.LogSender
	}
	producer := pkg.NewKafkaProducer(a.cfg.Kafka)
	a.closers = append(a.closers, producer.Close)
	return service.KafkaSender(producer)
}

// close 先停邮件队列，再倒序关闭连接
func (a *app) close() {
	if a.dispatcher != nil {
		a.dispatcher.Stop()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Printf("close: %v", err)
		}
	}
	a.closers = nil
}
