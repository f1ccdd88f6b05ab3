package handler

import (
	"net/http"

	"Albumy/internal/middleware"
	"Albumy/internal/service"

	"github.com/gin-gonic/gin"
)

// SettingsHandler 当前用户的资料与账号设置
type SettingsHandler struct {
	accounts *service.AccountService
	uploads  *UploadPolicy
}

func NewSettingsHandler(accounts *service.AccountService, uploads *UploadPolicy) *SettingsHandler {
	return &SettingsHandler{accounts: accounts, uploads: uploads}
}

func (h *SettingsHandler) EditProfile(c *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required,max=30"`
		Username string `json:"username" binding:"required,max=20,alphanum"`
		Website  string `json:"website" binding:"omitempty,url,max=255"`
		Location string `json:"location" binding:"max=50"`
		Bio      string `json:"bio" binding:"max=120"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badParams(c)
		return
	}
	me := currentUser(c)
	err := h.accounts.EditProfile(c.Request.Context(), middleware.UoW(c), me, service.ProfileInput{
		Name:     req.Name,
		Username: req.Username,
		Website:  req.Website,
		Location: req.Location,
		Bio:      req.Bio,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "profile updated", "user": me})
}

func (h *SettingsHandler) ChangePassword(c *gin.Context) {
	var req struct {
		OldPassword string `json:"old_password" binding:"required"`
		NewPassword string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badParams(c)
		return
	}
	if err := h.accounts.ChangePassword(c.Request.Context(), middleware.UoW(c), currentUser(c), req.OldPassword, req.NewPassword); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "password updated, please login again"})
}

func (h *SettingsHandler) Notifications(c *gin.Context) {
	var req service.NotificationSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		badParams(c)
		return
	}
	if err := h.accounts.UpdateNotificationSettings(c.Request.Context(), middleware.UoW(c), currentUser(c), req); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "notification settings updated"})
}

func (h *SettingsHandler) Privacy(c *gin.Context) {
	var req struct {
		PublicCollections bool `json:"public_collections"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badParams(c)
		return
	}
	if err := h.accounts.UpdatePrivacy(c.Request.Context(), middleware.UoW(c), currentUser(c), req.PublicCollections); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "privacy settings updated"})
}

// RequestEmailChange 向新邮箱发送确认链接
func (h *SettingsHandler) RequestEmailChange(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email,max=254"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badParams(c)
		return
	}
	if err := h.accounts.RequestEmailChange(c.Request.Context(), middleware.UoW(c), currentUser(c), req.Email); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "confirm email sent, check your inbox"})
}

func (h *SettingsHandler) ConfirmEmailChange(c *gin.Context) {
	var req tokenReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badParams(c)
		return
	}
	ok, err := h.accounts.ChangeEmail(c.Request.Context(), middleware.UoW(c), currentUser(c), req.Token)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if !ok {
		writeServiceError(c, service.NewTokenError())
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "email updated"})
}

// UploadAvatar multipart 字段 file
func (h *SettingsHandler) UploadAvatar(c *gin.Context) {
	filename, data, ok := h.uploads.read(c)
	if !ok {
		return
	}
	me := currentUser(c)
	if err := h.accounts.UploadAvatar(c.Request.Context(), middleware.UoW(c), me, filename, data); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "avatar updated", "user": me})
}

func (h *SettingsHandler) DeleteAccount(c *gin.Context) {
	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badParams(c)
		return
	}
	if err := h.accounts.DeleteAccount(c.Request.Context(), middleware.UoW(c), currentUser(c), req.Password); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "your account is deleted"})
}
