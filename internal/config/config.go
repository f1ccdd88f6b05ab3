package config

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 默认开发密钥，release 模式下禁止使用
const devJWTSecret = "albumy_dev_secret"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Redis     RedisConfig     `mapstructure:"redis"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Albumy    AlbumyConfig    `mapstructure:"albumy"`
}

type ServerConfig struct {
	Port    string `mapstructure:"port"`
	Mode    string `mapstructure:"mode"`
	BaseURL string `mapstructure:"base_url"`
}

type DatabaseConfig struct {
	Type     string `mapstructure:"type"` // mysql, postgres, sqlite
	Filename string `mapstructure:"filename"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSL      bool   `mapstructure:"ssl"`
}

type JWTConfig struct {
	AccessSecret  string        `mapstructure:"access_secret"`
	RefreshSecret string        `mapstructure:"refresh_secret"`
	ActionSecret  string        `mapstructure:"action_secret"`
	AccessTTL     time.Duration `mapstructure:"access_ttl"`
	RefreshTTL    time.Duration `mapstructure:"refresh_ttl"`
	ActionTTL     time.Duration `mapstructure:"action_ttl"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	Workers  int    `mapstructure:"workers"`
	Queue    int    `mapstructure:"queue"`
}

type StorageConfig struct {
	Type      string   `mapstructure:"type"` // local, s3
	Path      string   `mapstructure:"path"`
	URLPrefix string   `mapstructure:"url_prefix"`
	S3        S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Prefix          string `mapstructure:"prefix"`
}

type KafkaConfig struct {
	Brokers        []string      `mapstructure:"brokers"`
	Topic          string        `mapstructure:"topic"`
	RelayInterval  time.Duration `mapstructure:"relay_interval"`
	RelayBatchSize int           `mapstructure:"relay_batch_size"`
}

type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

// AlbumyConfig 业务相关配置
type AlbumyConfig struct {
	AdminEmail        string        `mapstructure:"admin_email"`
	PhotoSizeSmall    int           `mapstructure:"photo_size_small"`
	PhotoSizeMedium   int           `mapstructure:"photo_size_medium"`
	AvatarSizes       []int         `mapstructure:"avatar_sizes"`
	MailThrottle      time.Duration `mapstructure:"mail_throttle"`
	PerPage           PerPageConfig `mapstructure:"per_page"`
	MaxUploadSizeMB   int           `mapstructure:"max_upload_size_mb"`
	AllowedExtensions []string      `mapstructure:"allowed_extensions"`
}

// PerPageConfig 各列表的分页大小
type PerPageConfig struct {
	Photo         int `mapstructure:"photo"`
	Comment       int `mapstructure:"comment"`
	Notification  int `mapstructure:"notification"`
	User          int `mapstructure:"user"`
	ManagePhoto   int `mapstructure:"manage_photo"`
	ManageUser    int `mapstructure:"manage_user"`
	ManageTag     int `mapstructure:"manage_tag"`
	ManageComment int `mapstructure:"manage_comment"`
}

// Load 读取配置：.env -> config.yaml -> ALBUMY_ 环境变量
func Load(configDir string) (*Config, error) {
	// .env 不存在不算错误
	_ = godotenv.Load()

	v := viper.New()
	configDir = strings.TrimSpace(configDir)
	if configDir == "" {
		configDir = "config"
	}
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		log.Println("config file not found, using env and defaults")
	}

	// server.port 对应 ALBUMY_SERVER_PORT
	v.SetEnvPrefix("ALBUMY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.enforceSecrets(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults 写入全部默认值
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.base_url", "")

	v.SetDefault("database.type", "mysql")
	v.SetDefault("database.filename", "data/albumy.db")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", "3306")
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "albumy")
	v.SetDefault("database.ssl", false)

	v.SetDefault("jwt.access_secret", "")
	v.SetDefault("jwt.refresh_secret", "")
	v.SetDefault("jwt.action_secret", "")
	v.SetDefault("jwt.access_ttl", 30*time.Minute)
	v.SetDefault("jwt.refresh_ttl", 24*time.Hour)
	v.SetDefault("jwt.action_ttl", time.Hour)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "albumy")

	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "Albumy Admin <noreply@albumy.local>")
	v.SetDefault("smtp.workers", 2)
	v.SetDefault("smtp.queue", 256)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.path", "uploads")
	v.SetDefault("storage.url_prefix", "/uploads/")
	v.SetDefault("storage.s3.region", "us-east-1")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "albumy.social")
	v.SetDefault("kafka.relay_interval", time.Second)
	v.SetDefault("kafka.relay_batch_size", 200)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.rps", 2.0)
	v.SetDefault("rate_limit.burst", 5)

	v.SetDefault("albumy.admin_email", "admin@helloflask.com")
	v.SetDefault("albumy.photo_size_small", 400)
	v.SetDefault("albumy.photo_size_medium", 800)
	v.SetDefault("albumy.avatar_sizes", []int{30, 100, 200})
	v.SetDefault("albumy.mail_throttle", time.Minute)
	v.SetDefault("albumy.max_upload_size_mb", 3)
	v.SetDefault("albumy.allowed_extensions", []string{".jpg", ".jpeg", ".png", ".gif"})
	v.SetDefault("albumy.per_page.photo", 12)
	v.SetDefault("albumy.per_page.comment", 15)
	v.SetDefault("albumy.per_page.notification", 20)
	v.SetDefault("albumy.per_page.user", 20)
	v.SetDefault("albumy.per_page.manage_photo", 20)
	v.SetDefault("albumy.per_page.manage_user", 30)
	v.SetDefault("albumy.per_page.manage_tag", 50)
	v.SetDefault("albumy.per_page.manage_comment", 30)
}

// Default 返回仅含默认值的配置，测试和命令行工具使用
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(err)
	}
	_ = cfg.enforceSecrets()
	return &cfg
}

var ErrInsecureSecret = errors.New("jwt secrets must be set in release mode")

func (c *Config) enforceSecrets() error {
	secrets := []*string{&c.JWT.AccessSecret, &c.JWT.RefreshSecret, &c.JWT.ActionSecret}
	for i, s := range secrets {
		if *s != "" {
			continue
		}
		if c.Server.Mode == "release" {
			return ErrInsecureSecret
		}
		*s = devJWTSecret + "_" + []string{"access", "refresh", "action"}[i]
	}
	return nil
}
