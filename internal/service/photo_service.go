package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"Albumy/internal/model"
	"Albumy/internal/repository/mysql"
	"Albumy/internal/storage"
)

var ErrFileCleanup = errors.New("photo files cleanup failed")

type PhotoService struct {
	images  *storage.ImagePipeline
	perPage int
}

func NewPhotoService(images *storage.ImagePipeline, perPage int) *PhotoService {
	return &PhotoService{images: images, perPage: perPage}
}

// PhotoDetail 图片详情页数据
type PhotoDetail struct {
	Photo      *model.Photo `json:"photo"`
	Author     *model.User  `json:"author"`
	Tags       []model.Tag  `json:"tags"`
	Collectors int64        `json:"collectors"`
	Comments   int64        `json:"comments"`
}

// Upload 先存文件再写库，写库失败时删除已存文件；权限与邮箱确认由上层检查
func (s *PhotoService) Upload(ctx context.Context, uow *mysql.UnitOfWork, user *model.User, filename string, data []byte, description string) (*model.Photo, error) {
	stored, err := s.images.Process(ctx, filename, data)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedFormat) || errors.Is(err, storage.ErrInvalidImage) {
			return nil, NewValidationError(err.Error())
		}
		return nil, fmt.Errorf("store photo: %w", err)
	}
	photo := &model.Photo{
		Description: strings.TrimSpace(description),
		Filename:    stored.Original,
		FilenameM:   stored.Medium,
		FilenameS:   stored.Small,
		CanComment:  true,
		AuthorID:    user.ID,
	}
	if err = uow.Photos().Create(ctx, photo); err != nil {
		if rmErr := s.images.Remove(ctx, photo.Files()...); rmErr != nil {
			log.Printf("remove orphan photo files: %v", rmErr)
		}
		return nil, err
	}
	return photo, nil
}

// Get 不存在时返回 NotFoundError
func (s *PhotoService) Get(ctx context.Context, uow *mysql.UnitOfWork, id uint64) (*model.Photo, error) {
	photo, err := uow.Photos().FindByID(ctx, id)
	if err != nil {
		if mysql.IsNotFound(err) {
			return nil, NewNotFoundError("photo not found")
		}
		return nil, err
	}
	return photo, nil
}

func (s *PhotoService) Detail(ctx context.Context, uow *mysql.UnitOfWork, id uint64) (*PhotoDetail, error) {
	photo, err := s.Get(ctx, uow, id)
	if err != nil {
		return nil, err
	}
	author, err := uow.Users().FindByID(ctx, photo.AuthorID)
	if err != nil {
		return nil, err
	}
	tags, err := uow.Tags().TagsOfPhoto(ctx, photo.ID)
	if err != nil {
		return nil, err
	}
	collectors, err := uow.Collects().CountCollectors(ctx, photo.ID)
	if err != nil {
		return nil, err
	}
	comments, err := uow.Comments().CountByPhoto(ctx, photo.ID)
	if err != nil {
		return nil, err
	}
	return &PhotoDetail{Photo: photo, Author: author, Tags: tags, Collectors: collectors, Comments: comments}, nil
}

func authorOnly(photo *model.Photo, actor *model.User) error {
	if actor == nil || photo.AuthorID != actor.ID {
		return NewForbiddenError("only the author can do this")
	}
	return nil
}

// AttachTags 输入按空白切分，按名称找或建标签，已关联的跳过
func (s *PhotoService) AttachTags(ctx context.Context, uow *mysql.UnitOfWork, photo *model.Photo, actor *model.User, input string) ([]model.Tag, error) {
	if err := authorOnly(photo, actor); err != nil {
		return nil, err
	}
	names := strings.Fields(input)
	if len(names) == 0 {
		return nil, NewValidationError("tag name is required")
	}
	for _, name := range names {
		if len(name) > 64 {
			return nil, NewValidationError("tag name is too long")
		}
		tag, err := uow.Tags().FindOrCreate(ctx, name)
		if err != nil {
			return nil, err
		}
		if _, err = uow.Tags().Attach(ctx, photo.ID, tag.ID); err != nil {
			return nil, err
		}
	}
	return uow.Tags().TagsOfPhoto(ctx, photo.ID)
}

// DetachTag 解除关联，标签没有图片后删除标签
func (s *PhotoService) DetachTag(ctx context.Context, uow *mysql.UnitOfWork, photo *model.Photo, tagID uint64, actor *model.User) (Status, error) {
	if err := authorOnly(photo, actor); err != nil {
		return Status{}, err
	}
	if _, err := uow.Tags().FindByID(ctx, tagID); err != nil {
		if mysql.IsNotFound(err) {
			return Status{}, NewNotFoundError("tag not found")
		}
		return Status{}, err
	}
	ok, err := uow.Tags().Detach(ctx, photo.ID, tagID)
	if err != nil {
		return Status{}, err
	}
	if !ok {
		return unchanged("tag not attached"), nil
	}
	if err = deleteOrphanTags(ctx, uow, tagID); err != nil {
		return Status{}, err
	}
	return changed("tag deleted"), nil
}

func deleteOrphanTags(ctx context.Context, uow *mysql.UnitOfWork, tagIDs ...uint64) error {
	for _, id := range tagIDs {
		n, err := uow.Tags().CountPhotos(ctx, id)
		if err != nil {
			return err
		}
		if n == 0 {
			if err = uow.Tags().Delete(ctx, id); err != nil {
				return err
			}
		}
	}
	return nil
}

// Report 举报计数 +1，不做自动处理
func (s *PhotoService) Report(ctx context.Context, uow *mysql.UnitOfWork, photoID uint64) error {
	if err := uow.Photos().IncrementFlag(ctx, photoID); err != nil {
		if mysql.IsNotFound(err) {
			return NewNotFoundError("photo not found")
		}
		return err
	}
	return nil
}

// DeletePhoto 仅作者可删；级联评论、收藏、标签关联，最后删除存储文件
func (s *PhotoService) DeletePhoto(ctx context.Context, uow *mysql.UnitOfWork, photo *model.Photo, actor *model.User) error {
	if photo.AuthorID != actor.ID {
		return NewForbiddenError("only the author can delete this photo")
	}
	return s.removePhoto(ctx, uow, photo)
}

func (s *PhotoService) removePhoto(ctx context.Context, uow *mysql.UnitOfWork, photo *model.Photo) error {
	if _, err := uow.Comments().DeleteByPhoto(ctx, photo.ID); err != nil {
		return err
	}
	if _, err := uow.Collects().DeleteByPhoto(ctx, photo.ID); err != nil {
		return err
	}
	tagIDs, err := uow.Tags().DetachAll(ctx, photo.ID)
	if err != nil {
		return err
	}
	if err = deleteOrphanTags(ctx, uow, tagIDs...); err != nil {
		return err
	}
	if err = uow.Photos().Delete(ctx, photo.ID); err != nil {
		return err
	}
	if err = s.images.Remove(ctx, photo.Files()...); err != nil {
		return fmt.Errorf("%w: %w", ErrFileCleanup, err)
	}
	return nil
}

// ToggleComment 作者切换是否允许评论
func (s *PhotoService) ToggleComment(ctx context.Context, uow *mysql.UnitOfWork, photo *model.Photo, actor *model.User) (bool, error) {
	if err := authorOnly(photo, actor); err != nil {
		return false, err
	}
	photo.CanComment = !photo.CanComment
	if err := uow.Photos().Save(ctx, photo); err != nil {
		return false, err
	}
	return photo.CanComment, nil
}

func (s *PhotoService) EditDescription(ctx context.Context, uow *mysql.UnitOfWork, photo *model.Photo, actor *model.User, description string) error {
	if err := authorOnly(photo, actor); err != nil {
		return err
	}
	description = strings.TrimSpace(description)
	if len(description) > 500 {
		return NewValidationError("description is too long")
	}
	photo.Description = description
	return uow.Photos().Save(ctx, photo)
}

func (s *PhotoService) ListByUser(ctx context.Context, uow *mysql.UnitOfWork, userID uint64, page int) (*Page[model.Photo], error) {
	page, offset, limit := paginate(page, s.perPage)
	list, total, err := uow.Photos().ListByAuthor(ctx, userID, offset, limit)
	if err != nil {
		return nil, err
	}
	return newPage(list, total, page, limit), nil
}

// Next 作者的下一张（更早发布），到底时返回 NotFoundError
func (s *PhotoService) Next(ctx context.Context, uow *mysql.UnitOfWork, photo *model.Photo) (*model.Photo, error) {
	p, err := uow.Photos().Next(ctx, photo)
	if mysql.IsNotFound(err) {
		return nil, NewNotFoundError("this is already the last one")
	}
	return p, err
}

// Previous 作者的上一张（更晚发布）
func (s *PhotoService) Previous(ctx context.Context, uow *mysql.UnitOfWork, photo *model.Photo) (*model.Photo, error) {
	p, err := uow.Photos().Prev(ctx, photo)
	if mysql.IsNotFound(err) {
		return nil, NewNotFoundError("this is already the first one")
	}
	return p, err
}

// ListByTag order 取 by_time 或 by_collects
func (s *PhotoService) ListByTag(ctx context.Context, uow *mysql.UnitOfWork, tagID uint64, order string, page int) (*Page[model.Photo], error) {
	if _, err := uow.Tags().FindByID(ctx, tagID); err != nil {
		if mysql.IsNotFound(err) {
			return nil, NewNotFoundError("tag not found")
		}
		return nil, err
	}
	if order != mysql.OrderByCollects {
		order = mysql.OrderByTime
	}
	page, offset, limit := paginate(page, s.perPage)
	list, total, err := uow.Photos().ListByTag(ctx, tagID, order, offset, limit)
	if err != nil {
		return nil, err
	}
	return newPage(list, total, page, limit), nil
}

// Feed 关注的人（包括自己）的图片
func (s *PhotoService) Feed(ctx context.Context, uow *mysql.UnitOfWork, user *model.User, page int) (*Page[model.Photo], error) {
	page, offset, limit := paginate(page, s.perPage)
	list, total, err := uow.Photos().Feed(ctx, user.ID, offset, limit)
	if err != nil {
		return nil, err
	}
	return newPage(list, total, page, limit), nil
}

func (s *PhotoService) Explore(ctx context.Context, uow *mysql.UnitOfWork) ([]model.Photo, error) {
	return uow.Photos().Random(ctx, s.perPage)
}
