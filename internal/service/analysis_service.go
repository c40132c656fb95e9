package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"gorm.io/gorm"

	"github.com/qs3c/findoc_analyzer/config"
	"github.com/qs3c/findoc_analyzer/internal/model/dto"
	"github.com/qs3c/findoc_analyzer/internal/pkg/queue"
	"github.com/qs3c/findoc_analyzer/internal/repository"
)

// DefaultQuery 未提供 query 时使用
const DefaultQuery = "Analyze this financial document for investment insights"

var (
	ErrJobNotFound        = errors.New("Job not found")
	ErrEmptyFile          = errors.New("Uploaded file is empty")
	ErrFileTooLarge       = errors.New("Uploaded file is too large")
	ErrUnsupportedFile    = errors.New("Only PDF files are supported")
	ErrInvalidPDF         = errors.New("Uploaded file is not a valid PDF")
	ErrEnqueueFailed      = errors.New("Failed to enqueue analysis job")
	ErrPersistenceFailure = errors.New("Failed to save analysis job")
)

var disablePDFConfigDir sync.Once

// JobQueue 提交端只需要入队能力
type JobQueue interface {
	Push(ctx context.Context, msg *queue.JobMessage) error
}

type AnalysisService struct {
	jobRepo *repository.JobRepository
	queue   JobQueue
	cfg     *config.Config
}

func NewAnalysisService(jobRepo *repository.JobRepository, jobQueue JobQueue, cfg *config.Config) *AnalysisService {
	return &AnalysisService{
		jobRepo: jobRepo,
		queue:   jobQueue,
		cfg:     cfg,
	}
}

// NormalizeQuery 去除首尾空白，空串使用默认问题
func NormalizeQuery(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return DefaultQuery
	}
	return query
}

// IsAllowedFile 检查扩展名是否在允许列表中
func (s *AnalysisService) IsAllowedFile(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range s.cfg.Upload.AllowedExtensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

// Submit 保存上传文件、写入任务记录并入队
func (s *AnalysisService) Submit(ctx context.Context, filename string, src io.Reader, query string) (*dto.AnalyzeResponse, error) {
	if !s.IsAllowedFile(filename) {
		return nil, ErrUnsupportedFile
	}
	query = NormalizeQuery(query)

	filePath, err := s.saveUpload(src)
	if err != nil {
		return nil, err
	}

	jobID, err := s.jobRepo.Create(filePath, query)
	if err != nil {
		s.removeFile(filePath)
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	msg := &queue.JobMessage{
		JobID:    jobID,
		FilePath: filePath,
		Query:    query,
	}
	if err := s.queue.Push(ctx, msg); err != nil {
		// 记录保持 Queued 状态，不做补偿
		slog.Error("enqueue failed, job left queued", "job_id", jobID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrEnqueueFailed, err)
	}

	slog.Info("job queued", "job_id", jobID, "file_path", filePath)

	return &dto.AnalyzeResponse{
		JobID:         jobID,
		Status:        "success",
		Query:         query,
		FileProcessed: filename,
	}, nil
}

// saveUpload 写入 .part 临时文件，fsync 后原子重命名为最终文件名
func (s *AnalysisService) saveUpload(src io.Reader) (string, error) {
	dir := s.cfg.Upload.Dir
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	finalPath := filepath.Join(dir, fmt.Sprintf("financial_document_%s.pdf", uuid.NewString()))
	partPath := finalPath + ".part"

	f, err := os.OpenFile(partPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}

	reader := src
	if s.cfg.Upload.MaxSize > 0 {
		reader = io.LimitReader(src, s.cfg.Upload.MaxSize+1)
	}

	written, err := io.Copy(f, reader)
	if err == nil {
		err = f.Sync()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		s.removeFile(partPath)
		return "", fmt.Errorf("write upload file: %w", err)
	}

	switch {
	case written == 0:
		s.removeFile(partPath)
		return "", ErrEmptyFile
	case s.cfg.Upload.MaxSize > 0 && written > s.cfg.Upload.MaxSize:
		s.removeFile(partPath)
		return "", ErrFileTooLarge
	}

	if s.cfg.Upload.ValidatePDF {
		if err := validatePDF(partPath); err != nil {
			s.removeFile(partPath)
			slog.Warn("rejected invalid pdf", "error", err)
			return "", ErrInvalidPDF
		}
	}

	if err := os.Rename(partPath, finalPath); err != nil {
		s.removeFile(partPath)
		return "", fmt.Errorf("finalize upload file: %w", err)
	}

	return finalPath, nil
}

func validatePDF(path string) error {
	disablePDFConfigDir.Do(api.DisableConfigDir)

	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed
	return api.ValidateFile(path, conf)
}

func (s *AnalysisService) removeFile(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to remove upload file", "path", path, "error", err)
	}
}

// GetStatus 查询任务状态
func (s *AnalysisService) GetStatus(jobID string) (*dto.JobStatusResponse, error) {
	job, err := s.jobRepo.GetByID(jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	return &dto.JobStatusResponse{
		JobID:        job.JobID,
		JobStatus:    job.Status,
		JobCreatedAt: job.CreatedAt.Format(time.RFC3339),
		JobUpdatedAt: job.UpdatedAt.Format(time.RFC3339),
		JobResult:    job.Result,
	}, nil
}
