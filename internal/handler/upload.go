package handler

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// UploadPolicy 上传文件的扩展名白名单
type UploadPolicy struct {
	allowed map[string]bool
}

func NewUploadPolicy(extensions []string) *UploadPolicy {
	p := &UploadPolicy{allowed: make(map[string]bool, len(extensions))}
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		p.allowed[ext] = true
	}
	return p
}

// read 读取 multipart 字段 file，失败时已写出响应
func (p *UploadPolicy) read(c *gin.Context) (string, []byte, bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"msg": "file too large"})
			return "", nil, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"msg": "file is required"})
		return "", nil, false
	}
	if len(p.allowed) > 0 && !p.allowed[strings.ToLower(filepath.Ext(fh.Filename))] {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "file type not allowed"})
		return "", nil, false
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "cannot read file"})
		return "", nil, false
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "cannot read file"})
		return "", nil, false
	}
	return fh.Filename, data, true
}
