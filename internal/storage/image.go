package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"mime"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrInvalidImage      = errors.New("invalid image")
)

const (
	suffixMedium = "_m"
	suffixSmall  = "_s"
	jpegQuality  = 85
)

// StoredImage 三个尺寸的存储 key，图片不够宽时 Medium/Small 与 Original 相同
type StoredImage struct {
	Original string
	Medium   string
	Small    string
}

// ImagePipeline 保存原图并生成缩略图
type ImagePipeline struct {
	Store       Store
	MediumWidth int
	SmallWidth  int
}

// Process 保存原图、中图、小图；任一步失败会清理已写入的文件
func (p *ImagePipeline) Process(ctx context.Context, filename string, data []byte) (*StoredImage, error) {
	ext, format, err := detect(filename)
	if err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	base := strings.ReplaceAll(uuid.NewString(), "-", "")
	out := &StoredImage{Original: base + ext}
	if err = p.Store.Save(ctx, out.Original, bytes.NewReader(data), mime.TypeByExtension(ext)); err != nil {
		return nil, err
	}
	saved := []string{out.Original}

	out.Medium, err = p.resize(ctx, img, out.Original, base+suffixMedium+ext, format, p.MediumWidth)
	if err != nil {
		_ = p.Remove(ctx, saved...)
		return nil, err
	}
	saved = append(saved, out.Medium)

	out.Small, err = p.resize(ctx, img, out.Original, base+suffixSmall+ext, format, p.SmallWidth)
	if err != nil {
		_ = p.Remove(ctx, saved...)
		return nil, err
	}
	return out, nil
}

// resize 原图宽度小于目标宽度时直接复用原图
func (p *ImagePipeline) resize(ctx context.Context, img image.Image, original, key string, format imaging.Format, width int) (string, error) {
	if width <= 0 || img.Bounds().Dx() < width {
		return original, nil
	}
	resized := imaging.Resize(img, width, 0, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, format, imaging.JPEGQuality(jpegQuality)); err != nil {
		return "", err
	}
	if err := p.Store.Save(ctx, key, &buf, mime.TypeByExtension(filepath.Ext(key))); err != nil {
		return "", err
	}
	return key, nil
}

// ProcessAvatar 保存原图并按尺寸居中裁成正方形，返回原图 key 与各尺寸 key
func (p *ImagePipeline) ProcessAvatar(ctx context.Context, filename string, data []byte, sizes []int) (string, []string, error) {
	ext, format, err := detect(filename)
	if err != nil {
		return "", nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	base := "avatars/" + strings.ReplaceAll(uuid.NewString(), "-", "")
	raw := base + "_raw" + ext
	if err = p.Store.Save(ctx, raw, bytes.NewReader(data), mime.TypeByExtension(ext)); err != nil {
		return "", nil, err
	}
	saved := []string{raw}
	keys := make([]string, 0, len(sizes))
	for _, size := range sizes {
		var buf bytes.Buffer
		square := imaging.Fill(img, size, size, imaging.Center, imaging.Lanczos)
		if err = imaging.Encode(&buf, square, format, imaging.JPEGQuality(jpegQuality)); err != nil {
			_ = p.Remove(ctx, saved...)
			return "", nil, err
		}
		k := fmt.Sprintf("%s_%d%s", base, size, ext)
		if err = p.Store.Save(ctx, k, &buf, mime.TypeByExtension(ext)); err != nil {
			_ = p.Remove(ctx, saved...)
			return "", nil, err
		}
		saved = append(saved, k)
		keys = append(keys, k)
	}
	return raw, keys, nil
}

// Remove 删除多个 key，重复和空 key 会被跳过，错误合并返回
func (p *ImagePipeline) Remove(ctx context.Context, keys ...string) error {
	seen := make(map[string]struct{}, len(keys))
	var errs []error
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		if err := p.Store.Delete(ctx, k); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", k, err))
		}
	}
	return errors.Join(errs...)
}

func detect(filename string) (string, imaging.Format, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	format, err := imaging.FormatFromExtension(ext)
	if err != nil {
		return "", 0, ErrUnsupportedFormat
	}
	return ext, format, nil
}
