package handler

import (
	"net/http"

	"Albumy/internal/middleware"
	"Albumy/internal/service"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	accounts *service.AccountService
}

func NewAuthHandler(accounts *service.AccountService) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

// RegisterReq 注册请求体
type RegisterReq struct {
	Name     string `json:"name" binding:"required,max=30"`
	Email    string `json:"email" binding:"required,email,max=254"`
	Username string `json:"username" binding:"required,max=20,alphanum"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

// Register 注册后发送确认邮件
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badParams(c)
		return
	}
	user, err := h.accounts.Register(c.Request.Context(), middleware.UoW(c), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"msg": "confirm email sent, check your inbox", "user": user})
}

// Login 登录接口
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badParams(c)
		return
	}
	res, err := h.accounts.Login(c.Request.Context(), middleware.UoW(c), req.Email, req.Password)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.accounts.Logout(c.Request.Context(), currentUser(c).ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"msg": "logout failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "logout success"})
}

// Refresh 利用 refresh 来更新 access
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badParams(c)
		return
	}
	pair, err := h.accounts.Refresh(c.Request.Context(), middleware.UoW(c), req.RefreshToken)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

type tokenReq struct {
	Token string `json:"token" binding:"required"`
}

// Confirm 确认邮箱，需要登录
func (h *AuthHandler) Confirm(c *gin.Context) {
	var req tokenReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badParams(c)
		return
	}
	st, err := h.accounts.Confirm(c.Request.Context(), middleware.UoW(c), currentUser(c), req.Token)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeStatus(c, st)
}

func (h *AuthHandler) ResendConfirm(c *gin.Context) {
	st, err := h.accounts.ResendConfirmation(c.Request.Context(), currentUser(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeStatus(c, st)
}

// RequestReset 忘记密码，邮箱不存在时同样返回成功
func (h *AuthHandler) RequestReset(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badParams(c)
		return
	}
	if err := h.accounts.RequestPasswordReset(c.Request.Context(), middleware.UoW(c), req.Email); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "password reset email sent, check your inbox"})
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req struct {
		Token       string `json:"token" binding:"required"`
		NewPassword string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badParams(c)
		return
	}
	ok, err := h.accounts.ResetPassword(c.Request.Context(), middleware.UoW(c), req.Token, req.NewPassword)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if !ok {
		writeServiceError(c, service.NewTokenError())
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "password updated"})
}
