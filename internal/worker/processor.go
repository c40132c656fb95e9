package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/findoc_analyzer/config"
	"github.com/qs3c/findoc_analyzer/internal/model"
	"github.com/qs3c/findoc_analyzer/internal/pipeline"
	"github.com/qs3c/findoc_analyzer/internal/pkg/queue"
	"github.com/qs3c/findoc_analyzer/internal/repository"
)

// Outcome 单个任务的处理结果
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	// OutcomeSkipped 任务已是终态（重复投递）
	OutcomeSkipped Outcome = "skipped"
	// OutcomeAbandoned 队列消息指向不存在的任务
	OutcomeAbandoned Outcome = "abandoned"
	// OutcomeRetry 状态写入失败，消息保留在 processing 列表等待 requeue
	OutcomeRetry Outcome = "retry"
)

// Acknowledge 除 retry 外的结果都应确认消息
func (o Outcome) Acknowledge() bool {
	return o != OutcomeRetry
}

var ErrJobNotFound = errors.New("job not found")

const emptyReportMessage = "analysis produced an empty report"

// Processor 任务处理器
type Processor struct {
	jobRepo    *repository.JobRepository
	pipeline   pipeline.Pipeline
	scratchDir string
}

// NewProcessor 创建任务处理器
func NewProcessor(jobRepo *repository.JobRepository, p pipeline.Pipeline, cfg *config.Config) *Processor {
	return &Processor{
		jobRepo:    jobRepo,
		pipeline:   p,
		scratchDir: cfg.Pipeline.ScratchDir,
	}
}

// ScratchDirFor 每个任务独立的中间产物目录
func (p *Processor) ScratchDirFor(jobID string) string {
	return filepath.Join(p.scratchDir, jobID)
}

// Process 处理分析任务。流水线错误记录为 Failed，不会作为 error 返回。
func (p *Processor) Process(ctx context.Context, msg *queue.JobMessage) (Outcome, error) {
	job, err := p.jobRepo.GetByID(msg.JobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return OutcomeAbandoned, fmt.Errorf("%w: %s", ErrJobNotFound, msg.JobID)
		}
		return OutcomeRetry, fmt.Errorf("failed to get job: %w", err)
	}

	if job.IsTerminal() {
		p.removeSource(job)
		return OutcomeSkipped, nil
	}

	if err := p.jobRepo.UpdateStatus(job.JobID, model.JobStatusProcessing, ""); err != nil {
		if errors.Is(err, repository.ErrInvalidTransition) {
			return OutcomeSkipped, nil
		}
		return OutcomeRetry, fmt.Errorf("failed to mark processing: %w", err)
	}

	scratch := p.ScratchDirFor(job.JobID)

	start := time.Now()
	report, runErr := p.run(ctx, pipeline.Request{
		JobID:      job.JobID,
		Query:      job.Query,
		FilePath:   job.FilePath,
		ScratchDir: scratch,
	})

	status, result, outcome := model.JobStatusCompleted, report, OutcomeCompleted
	switch {
	case runErr != nil:
		status, result, outcome = model.JobStatusFailed, "Error: "+runErr.Error(), OutcomeFailed
	case strings.TrimSpace(report) == "":
		status, result, outcome = model.JobStatusFailed, "Error: "+emptyReportMessage, OutcomeFailed
	}

	if err := p.jobRepo.UpdateStatus(job.JobID, status, result); err != nil {
		if errors.Is(err, repository.ErrInvalidTransition) {
			slog.Warn("job finished by another worker", "job_id", job.JobID, "error", err)
			p.cleanup(job, scratch)
			return OutcomeSkipped, nil
		}
		// 源文件保留，requeue 后重新执行
		return OutcomeRetry, fmt.Errorf("failed to store result: %w", err)
	}
	p.cleanup(job, scratch)

	slog.Info("job finished",
		"job_id", job.JobID,
		"outcome", outcome,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return outcome, nil
}

// run 执行流水线，panic 也按失败处理
func (p *Processor) run(ctx context.Context, req pipeline.Request) (report string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()
	return p.pipeline.Run(ctx, req)
}

func (p *Processor) cleanup(job *model.DocumentAnalysisJob, scratch string) {
	p.removeSource(job)
	if err := os.RemoveAll(scratch); err != nil {
		slog.Warn("failed to remove scratch dir", "job_id", job.JobID, "path", scratch, "error", err)
	}
}

func (p *Processor) removeSource(job *model.DocumentAnalysisJob) {
	if job.FilePath == "" {
		return
	}
	if err := os.Remove(job.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to remove source file", "job_id", job.JobID, "path", job.FilePath, "error", err)
	}
}
