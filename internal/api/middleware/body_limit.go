package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/findoc_analyzer/internal/pkg/response"
)

// BodyLimit 限制请求体大小，在解析 multipart 之前截断过大的上传
func BodyLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit <= 0 {
			c.Next()
			return
		}
		if c.Request.ContentLength > limit {
			response.ParamError(c, "Uploaded file is too large")
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
