package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 错误状态码对应的默认消息
var statusMessages = map[int]string{
	http.StatusBadRequest:          "Invalid request",
	http.StatusNotFound:            "Resource not found",
	http.StatusInternalServerError: "Internal server error",
}

// ErrorBody 统一错误结构，与 FastAPI 的 {"detail": ...} 保持一致
type ErrorBody struct {
	Detail string `json:"detail"`
}

// Success 成功响应，直接输出数据
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Error 错误响应
func Error(c *gin.Context, status int, detail string) {
	if detail == "" {
		detail = statusMessages[status]
	}
	c.AbortWithStatusJSON(status, ErrorBody{Detail: detail})
}

// ParamError 参数错误
func ParamError(c *gin.Context, detail string) {
	Error(c, http.StatusBadRequest, detail)
}

// NotFoundError 资源不存在
func NotFoundError(c *gin.Context, detail string) {
	Error(c, http.StatusNotFound, detail)
}

// ServerError 服务器错误
func ServerError(c *gin.Context, detail string) {
	Error(c, http.StatusInternalServerError, detail)
}
