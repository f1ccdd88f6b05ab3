package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"Albumy/internal/config"
)

var ErrInvalidKey = errors.New("invalid storage key")

// Store 文件存储后端
type Store interface {
	Save(ctx context.Context, key string, r io.Reader, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete 对不存在的 key 不报错
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// New 按配置选择存储后端
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Type {
	case "s3":
		return NewS3Store(ctx, cfg.S3)
	case "local", "":
		return NewLocalStore(cfg.Path, cfg.URLPrefix)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") || strings.Contains(key, "\\") {
		return ErrInvalidKey
	}
	return nil
}
