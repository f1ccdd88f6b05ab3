package middleware

import (
	"bytes"
	"log"
	"net/http"

	"Albumy/internal/repository/mysql"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const ContextUoWKey = "uow"

// bufferedWriter 先缓存响应，事务结束后再写给客户端
type bufferedWriter struct {
	gin.ResponseWriter
	status int
	body   bytes.Buffer
}

func (w *bufferedWriter) WriteHeader(code int) {
	if code > 0 {
		w.status = code
	}
}

func (w *bufferedWriter) WriteHeaderNow() {}

func (w *bufferedWriter) Write(data []byte) (int, error) { return w.body.Write(data) }

func (w *bufferedWriter) WriteString(s string) (int, error) { return w.body.WriteString(s) }

func (w *bufferedWriter) Status() int { return w.status }

func (w *bufferedWriter) Size() int {
	if w.body.Len() == 0 {
		return -1
	}
	return w.body.Len()
}

func (w *bufferedWriter) Written() bool { return w.body.Len() > 0 }

// Flush 提交前不向下游刷数据
func (w *bufferedWriter) Flush() {}

func (w *bufferedWriter) flush() {
	w.ResponseWriter.WriteHeader(w.status)
	w.ResponseWriter.WriteHeaderNow()
	if w.body.Len() > 0 {
		if _, err := w.ResponseWriter.Write(w.body.Bytes()); err != nil {
			log.Printf("write response: %v", err)
		}
	}
}

// UnitOfWork 每个请求开一个事务，状态码 < 400 时提交，否则回滚。
// 响应在提交成功后才写出，提交失败返回 500。
func UnitOfWork(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		uow, err := mysql.Begin(c.Request.Context(), db)
		if err != nil {
			log.Printf("begin unit of work: %v", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"msg": "internal error"})
			return
		}
		c.Set(ContextUoWKey, uow)

		origin := c.Writer
		buf := &bufferedWriter{ResponseWriter: origin, status: http.StatusOK}
		c.Writer = buf

		defer func() {
			c.Writer = origin
			if p := recover(); p != nil {
				_ = uow.Rollback()
				panic(p)
			}
			if buf.status >= http.StatusBadRequest || len(c.Errors) > 0 {
				_ = uow.Rollback()
				buf.flush()
				return
			}
			if err := uow.Commit(); err != nil {
				log.Printf("commit unit of work %s %s: %v", c.Request.Method, c.FullPath(), err)
				c.Header("Content-Type", "application/json; charset=utf-8")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"msg": "internal error"})
				return
			}
			buf.flush()
		}()
		c.Next()
	}
}

// UoW 取当前请求的事务，未挂载中间件时 panic
func UoW(c *gin.Context) *mysql.UnitOfWork {
	return c.MustGet(ContextUoWKey).(*mysql.UnitOfWork)
}
