package middleware

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"Albumy/internal/model"
	"Albumy/internal/pkg"
	"Albumy/internal/repository/mysql"
	"Albumy/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	ContextUserIDKey = "user_id"
	ContextUserKey   = "current_user"
)

var errNoCredentials = errors.New("missing authorization header")

// Auth 校验 access token 并把当前用户写入上下文，依赖 UnitOfWork 中间件
type Auth struct {
	tokens   *pkg.TokenIssuer
	sessions service.SessionStore
}

func NewAuth(tokens *pkg.TokenIssuer, sessions service.SessionStore) *Auth {
	return &Auth{tokens: tokens, sessions: sessions}
}

// authenticate 返回 (user, HTTP 状态, 提示)
func (a *Auth) authenticate(c *gin.Context) (*model.User, int, string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return nil, http.StatusUnauthorized, errNoCredentials.Error()
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, http.StatusUnauthorized, "invalid authorization format"
	}
	tokenStr := parts[1]

	claims, err := a.tokens.ParseAccess(tokenStr)
	if err != nil {
		return nil, http.StatusUnauthorized, "invalid or expired token"
	}

	ctx := c.Request.Context()
	// 会话存储里只保留最新 token，旧 token 视为已在别处登录
	origin, err := a.sessions.GetUserToken(ctx, claims.UserID)
	if err != nil || origin != tokenStr {
		return nil, http.StatusUnauthorized, "account has been logged in elsewhere"
	}
	if err = a.sessions.ExtendUserToken(ctx, claims.UserID, a.tokens.AccessTTL); err != nil {
		log.Printf("extend session uid=%d: %v", claims.UserID, err)
	}

	user, err := UoW(c).Users().FindByID(ctx, claims.UserID)
	if err != nil {
		if mysql.IsNotFound(err) {
			return nil, http.StatusUnauthorized, "user not found"
		}
		log.Printf("load current user uid=%d: %v", claims.UserID, err)
		return nil, http.StatusInternalServerError, "internal error"
	}
	if !user.Active {
		return nil, http.StatusForbidden, "account is blocked"
	}
	return user, http.StatusOK, ""
}

// Required 未登录直接 401
func (a *Auth) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, status, msg := a.authenticate(c)
		if user == nil {
			c.AbortWithStatusJSON(status, gin.H{"msg": msg})
			return
		}
		c.Set(ContextUserIDKey, user.ID)
		c.Set(ContextUserKey, user)
		c.Next()
	}
}

// Optional 凭证无效时按匿名处理
func (a *Auth) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") != "" {
			if user, _, _ := a.authenticate(c); user != nil {
				c.Set(ContextUserIDKey, user.ID)
				c.Set(ContextUserKey, user)
			}
		}
		c.Next()
	}
}

// CurrentUser 匿名时返回 nil
func CurrentUser(c *gin.Context) *model.User {
	if v, ok := c.Get(ContextUserKey); ok {
		if u, ok2 := v.(*model.User); ok2 {
			return u
		}
	}
	return nil
}

// RequirePermission 需放在 Required 之后
func RequirePermission(p model.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CurrentUser(c).Can(p) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"msg": "permission denied"})
			return
		}
		c.Next()
	}
}

// RequireConfirmed 未确认邮箱的账号不能执行写操作
func RequireConfirmed() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !user.Confirmed {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"msg": "please confirm your account first"})
			return
		}
		c.Next()
	}
}
