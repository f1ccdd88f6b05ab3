package handler

import (
	"log"
	"net/http"
	"strconv"

	"Albumy/internal/middleware"
	"Albumy/internal/model"
	"Albumy/internal/service"

	"github.com/gin-gonic/gin"
)

// writeServiceError 把业务错误翻译成 HTTP 状态
func writeServiceError(c *gin.Context, err error) {
	se, ok := service.AsServiceError(err)
	if !ok {
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"msg": "internal error"})
		return
	}
	status := http.StatusInternalServerError
	switch se.Code {
	case service.ErrorCodeValidation, service.ErrorCodeToken:
		status = http.StatusBadRequest
	case service.ErrorCodeUnauthorized:
		status = http.StatusUnauthorized
	case service.ErrorCodeForbidden:
		status = http.StatusForbidden
	case service.ErrorCodeNotFound:
		status = http.StatusNotFound
	case service.ErrorCodeConflict:
		status = http.StatusConflict
	case service.ErrorCodeRateLimited:
		status = http.StatusTooManyRequests
	}
	c.JSON(status, gin.H{"msg": se.Message})
}

func writeStatus(c *gin.Context, st service.Status) {
	c.JSON(http.StatusOK, gin.H{"msg": st.Message, "changed": st.Changed})
}

func badParams(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
}

// idParam 解析路径中的数字 id，失败时已写出 400
func idParam(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badParams(c)
		return 0, false
	}
	return id, true
}

func pageQuery(c *gin.Context) int {
	page, _ := strconv.Atoi(c.Query("page"))
	return page
}

func currentUser(c *gin.Context) *model.User {
	return middleware.CurrentUser(c)
}
