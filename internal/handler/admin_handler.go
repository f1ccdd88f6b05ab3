package handler

import (
	"context"
	"net/http"

	"Albumy/internal/middleware"
	"Albumy/internal/model"
	"Albumy/internal/repository/mysql"
	"Albumy/internal/service"

	"github.com/gin-gonic/gin"
)

// AdminHandler 后台管理，权限在 service 层逐项检查
type AdminHandler struct {
	admin *service.AdminService
}

func NewAdminHandler(admin *service.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

type userAction func(ctx context.Context, uow *mysql.UnitOfWork, actor, target *model.User) (service.Status, error)

// onUser 对路径里的用户执行 lock/unlock/block/unblock
func (h *AdminHandler) onUser(action userAction) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		ctx, uow := c.Request.Context(), middleware.UoW(c)
		target, err := h.admin.GetUser(ctx, uow, id)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		st, err := action(ctx, uow, currentUser(c), target)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		writeStatus(c, st)
	}
}

func (h *AdminHandler) Lock() gin.HandlerFunc    { return h.onUser(h.admin.Lock) }
func (h *AdminHandler) Unlock() gin.HandlerFunc  { return h.onUser(h.admin.Unlock) }
func (h *AdminHandler) Block() gin.HandlerFunc   { return h.onUser(h.admin.Block) }
func (h *AdminHandler) Unblock() gin.HandlerFunc { return h.onUser(h.admin.Unblock) }

// EditProfile 字段缺省表示不修改
func (h *AdminHandler) EditProfile(c *gin.Context) {
	var req struct {
		Name      *string `json:"name" binding:"omitempty,max=30"`
		Username  *string `json:"username" binding:"omitempty,max=20,alphanum"`
		Email     *string `json:"email" binding:"omitempty,email,max=254"`
		Website   *string `json:"website" binding:"omitempty,max=255"`
		Location  *string `json:"location" binding:"omitempty,max=50"`
		Bio       *string `json:"bio" binding:"omitempty,max=120"`
		Role      string  `json:"role"`
		Active    *bool   `json:"active"`
		Confirmed *bool   `json:"confirmed"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badParams(c)
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, uow := c.Request.Context(), middleware.UoW(c)
	target, err := h.admin.GetUser(ctx, uow, id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	err = h.admin.EditProfileAdmin(ctx, uow, currentUser(c), target, service.AdminProfileInput{
		Name:      req.Name,
		Username:  req.Username,
		Email:     req.Email,
		Website:   req.Website,
		Location:  req.Location,
		Bio:       req.Bio,
		Role:      req.Role,
		Active:    req.Active,
		Confirmed: req.Confirmed,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "profile updated", "user": target})
}

func (h *AdminHandler) DeleteTag(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.admin.DeleteTag(c.Request.Context(), middleware.UoW(c), currentUser(c), id); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "tag deleted"})
}

// ManageUsers filter 取 all/locked/blocked/administrator/moderator
func (h *AdminHandler) ManageUsers(c *gin.Context) {
	page, err := h.admin.ManageUsers(c.Request.Context(), middleware.UoW(c), currentUser(c), c.Query("filter"), pageQuery(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *AdminHandler) ManagePhotos(c *gin.Context) {
	page, err := h.admin.ManagePhotos(c.Request.Context(), middleware.UoW(c), currentUser(c), c.Query("order"), pageQuery(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *AdminHandler) ManageComments(c *gin.Context) {
	page, err := h.admin.ManageComments(c.Request.Context(), middleware.UoW(c), currentUser(c), c.Query("order"), pageQuery(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *AdminHandler) ManageTags(c *gin.Context) {
	page, err := h.admin.ManageTags(c.Request.Context(), middleware.UoW(c), currentUser(c), pageQuery(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *AdminHandler) Dashboard(c *gin.Context) {
	d, err := h.admin.Dashboard(c.Request.Context(), middleware.UoW(c), currentUser(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}
