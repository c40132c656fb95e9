package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/findoc_analyzer/internal/model/dto"
	"github.com/qs3c/findoc_analyzer/internal/pkg/response"
)

const healthMessage = "Financial Document Analyzer API is running"

// Health 健康检查
// GET /
func Health(c *gin.Context) {
	response.Success(c, dto.HealthResponse{Message: healthMessage})
}
