package handler

import (
	"net/http"

	"Albumy/internal/middleware"
	"Albumy/internal/model"
	"Albumy/internal/service"

	"github.com/gin-gonic/gin"
)

// PhotoHandler 图片、标签、收藏与评论入口
type PhotoHandler struct {
	photos   *service.PhotoService
	collects *service.CollectService
	comments *service.CommentService
	uploads  *UploadPolicy
}

func NewPhotoHandler(photos *service.PhotoService, collects *service.CollectService, comments *service.CommentService, uploads *UploadPolicy) *PhotoHandler {
	return &PhotoHandler{photos: photos, collects: collects, comments: comments, uploads: uploads}
}

// photo 按路径 id 取图片，失败时已写出响应
func (h *PhotoHandler) photo(c *gin.Context) (*model.Photo, bool) {
	id, ok := idParam(c, "id")
	if !ok {
		return nil, false
	}
	photo, err := h.photos.Get(c.Request.Context(), middleware.UoW(c), id)
	if err != nil {
		writeServiceError(c, err)
		return nil, false
	}
	return photo, true
}

// Upload multipart 字段 file 和 description
func (h *PhotoHandler) Upload(c *gin.Context) {
	filename, data, ok := h.uploads.read(c)
	if !ok {
		return
	}
	photo, err := h.photos.Upload(c.Request.Context(), middleware.UoW(c), currentUser(c), filename, data, c.PostForm("description"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"msg": "photo uploaded", "photo": photo})
}

// Show 图片详情，登录时附带是否已收藏
func (h *PhotoHandler) Show(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, uow := c.Request.Context(), middleware.UoW(c)
	detail, err := h.photos.Detail(ctx, uow, id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	resp := gin.H{"photo": detail}
	if me := currentUser(c); me != nil {
		collecting, err := h.collects.IsCollecting(ctx, uow, me.ID, id)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		resp["collecting"] = collecting
	}
	c.JSON(http.StatusOK, resp)
}

// Next 同一作者更早的一张
func (h *PhotoHandler) Next(c *gin.Context) {
	photo, ok := h.photo(c)
	if !ok {
		return
	}
	next, err := h.photos.Next(c.Request.Context(), middleware.UoW(c), photo)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, next)
}

// Previous 同一作者更新的一张
func (h *PhotoHandler) Previous(c *gin.Context) {
	photo, ok := h.photo(c)
	if !ok {
		return
	}
	prev, err := h.photos.Previous(c.Request.Context(), middleware.UoW(c), photo)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, prev)
}

func (h *PhotoHandler) Comments(c *gin.Context) {
	photo, ok := h.photo(c)
	if !ok {
		return
	}
	page, err := h.comments.ListByPhoto(c.Request.Context(), middleware.UoW(c), photo.ID, pageQuery(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *PhotoHandler) Collectors(c *gin.Context) {
	photo, ok := h.photo(c)
	if !ok {
		return
	}
	page, err := h.collects.ListCollectors(c.Request.Context(), middleware.UoW(c), photo.ID, pageQuery(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *PhotoHandler) Explore(c *gin.Context) {
	list, err := h.photos.Explore(c.Request.Context(), middleware.UoW(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": list})
}

// Feed 关注的人（含自己）发布的图片
func (h *PhotoHandler) Feed(c *gin.Context) {
	page, err := h.photos.Feed(c.Request.Context(), middleware.UoW(c), currentUser(c), pageQuery(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *PhotoHandler) Delete(c *gin.Context) {
	photo, ok := h.photo(c)
	if !ok {
		return
	}
	if err := h.photos.DeletePhoto(c.Request.Context(), middleware.UoW(c), photo, currentUser(c)); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "photo deleted"})
}

func (h *PhotoHandler) EditDescription(c *gin.Context) {
	var req struct {
		Description string `json:"description" binding:"max=500"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badParams(c)
		return
	}
	photo, ok := h.photo(c)
	if !ok {
		return
	}
	if err := h.photos.EditDescription(c.Request.Context(), middleware.UoW(c), photo, currentUser(c), req.Description); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "description updated", "photo": photo})
}

func (h *PhotoHandler) ToggleComment(c *gin.Context) {
	photo, ok := h.photo(c)
	if !ok {
		return
	}
	enabled, err := h.photos.ToggleComment(c.Request.Context(), middleware.UoW(c), photo, currentUser(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	msg := "comment disabled"
	if enabled {
		msg = "comment enabled"
	}
	c.JSON(http.StatusOK, gin.H{"msg": msg, "can_comment": enabled})
}

func (h *PhotoHandler) Report(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.photos.Report(c.Request.Context(), middleware.UoW(c), id); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "photo reported"})
}

// AddTags 空白分隔的标签名
func (h *PhotoHandler) AddTags(c *gin.Context) {
	var req struct {
		Tags string `json:"tags" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badParams(c)
		return
	}
	photo, ok := h.photo(c)
	if !ok {
		return
	}
	tags, err := h.photos.AttachTags(c.Request.Context(), middleware.UoW(c), photo, currentUser(c), req.Tags)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "tags added", "tags": tags})
}

func (h *PhotoHandler) DeleteTag(c *gin.Context) {
	tagID, ok := idParam(c, "tag_id")
	if !ok {
		return
	}
	photo, ok := h.photo(c)
	if !ok {
		return
	}
	st, err := h.photos.DetachTag(c.Request.Context(), middleware.UoW(c), photo, tagID, currentUser(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeStatus(c, st)
}

func (h *PhotoHandler) Collect(c *gin.Context) {
	photo, ok := h.photo(c)
	if !ok {
		return
	}
	st, err := h.collects.Collect(c.Request.Context(), middleware.UoW(c), currentUser(c), photo)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeStatus(c, st)
}

func (h *PhotoHandler) Uncollect(c *gin.Context) {
	photo, ok := h.photo(c)
	if !ok {
		return
	}
	st, err := h.collects.Uncollect(c.Request.Context(), middleware.UoW(c), currentUser(c), photo)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeStatus(c, st)
}

// AddComment 作者关闭评论后拒绝新评论
func (h *PhotoHandler) AddComment(c *gin.Context) {
	var req struct {
		Body    string  `json:"body" binding:"required"`
		ReplyTo *uint64 `json:"reply_to"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badParams(c)
		return
	}
	photo, ok := h.photo(c)
	if !ok {
		return
	}
	if !photo.CanComment {
		c.JSON(http.StatusForbidden, gin.H{"msg": "comment is disabled for this photo"})
		return
	}
	comment, err := h.comments.AddComment(c.Request.Context(), middleware.UoW(c), photo, currentUser(c), req.Body, req.ReplyTo)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"msg": "comment published", "comment": comment})
}
