package handler

import (
	"net/http"

	"Albumy/internal/middleware"
	"Albumy/internal/service"

	"github.com/gin-gonic/gin"
)

type CommentHandler struct {
	comments *service.CommentService
}

func NewCommentHandler(comments *service.CommentService) *CommentHandler {
	return &CommentHandler{comments: comments}
}

// Delete 连同回复一起删除
func (h *CommentHandler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, uow := c.Request.Context(), middleware.UoW(c)
	comment, err := h.comments.Get(ctx, uow, id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	n, err := h.comments.DeleteComment(ctx, uow, comment, currentUser(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "comment deleted", "deleted": n})
}

func (h *CommentHandler) Report(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.comments.Report(c.Request.Context(), middleware.UoW(c), id); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "comment reported"})
}

// TagHandler 标签页
type TagHandler struct {
	photos *service.PhotoService
}

func NewTagHandler(photos *service.PhotoService) *TagHandler {
	return &TagHandler{photos: photos}
}

// Photos order 取 by_time（默认）或 by_collects
func (h *TagHandler) Photos(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	page, err := h.photos.ListByTag(c.Request.Context(), middleware.UoW(c), id, c.Query("order"), pageQuery(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}
