package handler

import (
	"net/http"

	"Albumy/internal/middleware"
	"Albumy/internal/model"
	"Albumy/internal/service"

	"github.com/gin-gonic/gin"
)

// UserHandler 用户主页与关注关系
type UserHandler struct {
	accounts *service.AccountService
	follows  *service.FollowService
	collects *service.CollectService
	photos   *service.PhotoService
}

func NewUserHandler(accounts *service.AccountService, follows *service.FollowService, collects *service.CollectService, photos *service.PhotoService) *UserHandler {
	return &UserHandler{accounts: accounts, follows: follows, collects: collects, photos: photos}
}

// target 按路径里的 username 取用户，失败时已写出响应
func (h *UserHandler) target(c *gin.Context) (*model.User, bool) {
	user, err := h.accounts.FindByUsername(c.Request.Context(), middleware.UoW(c), c.Param("username"))
	if err != nil {
		writeServiceError(c, err)
		return nil, false
	}
	return user, true
}

// Profile 主页，登录时附带与当前用户的关系
func (h *UserHandler) Profile(c *gin.Context) {
	ctx, uow := c.Request.Context(), middleware.UoW(c)
	profile, err := h.accounts.GetProfile(ctx, uow, c.Param("username"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	resp := gin.H{"profile": profile}
	if me := currentUser(c); me != nil && me.ID != profile.User.ID {
		following, err := h.follows.IsFollowing(ctx, uow, me.ID, profile.User.ID)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		followedBy, err := h.follows.IsFollowedBy(ctx, uow, me.ID, profile.User.ID)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		resp["following"] = following
		resp["followed_by"] = followedBy
	}
	c.JSON(http.StatusOK, resp)
}

func (h *UserHandler) Photos(c *gin.Context) {
	user, ok := h.target(c)
	if !ok {
		return
	}
	page, err := h.photos.ListByUser(c.Request.Context(), middleware.UoW(c), user.ID, pageQuery(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *UserHandler) Collections(c *gin.Context) {
	user, ok := h.target(c)
	if !ok {
		return
	}
	page, err := h.collects.ListCollections(c.Request.Context(), middleware.UoW(c), currentUser(c), user, pageQuery(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// Followers 粉丝列表
func (h *UserHandler) Followers(c *gin.Context) {
	user, ok := h.target(c)
	if !ok {
		return
	}
	page, err := h.follows.ListFollowers(c.Request.Context(), middleware.UoW(c), user.ID, pageQuery(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// Following 关注列表
func (h *UserHandler) Following(c *gin.Context) {
	user, ok := h.target(c)
	if !ok {
		return
	}
	page, err := h.follows.ListFollowing(c.Request.Context(), middleware.UoW(c), user.ID, pageQuery(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// Follow 关注接口
func (h *UserHandler) Follow(c *gin.Context) {
	user, ok := h.target(c)
	if !ok {
		return
	}
	st, err := h.follows.Follow(c.Request.Context(), middleware.UoW(c), currentUser(c), user)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeStatus(c, st)
}

func (h *UserHandler) Unfollow(c *gin.Context) {
	user, ok := h.target(c)
	if !ok {
		return
	}
	st, err := h.follows.Unfollow(c.Request.Context(), middleware.UoW(c), currentUser(c), user)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeStatus(c, st)
}
