package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/findoc_analyzer/internal/model/dto"
	"github.com/qs3c/findoc_analyzer/internal/pkg/response"
	"github.com/qs3c/findoc_analyzer/internal/service"
)

type AnalysisHandler struct {
	analysisService *service.AnalysisService
	maxUploadSize   int64
}

func NewAnalysisHandler(analysisService *service.AnalysisService, maxUploadSize int64) *AnalysisHandler {
	return &AnalysisHandler{
		analysisService: analysisService,
		maxUploadSize:   maxUploadSize,
	}
}

// Analyze 上传财务文档并提交分析任务
// POST /analyze
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.ParamError(c, service.ErrFileTooLarge.Error())
			return
		}
		response.ParamError(c, "File is required")
		return
	}
	defer file.Close()

	var req dto.AnalyzeRequest
	if err := c.ShouldBind(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	if h.maxUploadSize > 0 && header.Size > h.maxUploadSize {
		response.ParamError(c, service.ErrFileTooLarge.Error())
		return
	}
	if !h.analysisService.IsAllowedFile(header.Filename) {
		response.ParamError(c, service.ErrUnsupportedFile.Error())
		return
	}

	resp, err := h.analysisService.Submit(c.Request.Context(), header.Filename, file, req.Query)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnsupportedFile),
			errors.Is(err, service.ErrEmptyFile),
			errors.Is(err, service.ErrFileTooLarge),
			errors.Is(err, service.ErrInvalidPDF):
			response.ParamError(c, err.Error())
		case errors.Is(err, service.ErrEnqueueFailed):
			response.ServerError(c, service.ErrEnqueueFailed.Error())
		default:
			slog.Error("submit analysis failed", "file", header.Filename, "error", err)
			response.ServerError(c, "Error processing financial document")
		}
		return
	}

	response.Success(c, resp)
}

// Status 查询任务状态
// GET /status/:job_id
func (h *AnalysisHandler) Status(c *gin.Context) {
	jobID := c.Param("job_id")

	status, err := h.analysisService.GetStatus(jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			response.NotFoundError(c, err.Error())
			return
		}
		slog.Error("get job status failed", "job_id", jobID, "error", err)
		response.ServerError(c, "")
		return
	}

	response.Success(c, status)
}
