package worker

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/findoc_analyzer/config"
	"github.com/qs3c/findoc_analyzer/internal/model"
	"github.com/qs3c/findoc_analyzer/internal/repository"
)

// SweepReport 一次清理的统计
type SweepReport struct {
	Files      int
	Dirs       int
	FreedBytes int64
	Kept       int
	DryRun     bool
}

// Sweeper 清理 worker 未能删除的上传文件和中间目录（例如进程崩溃后残留）。
// 只删除超过 expire 且任务已结束或不存在的条目。
type Sweeper struct {
	jobRepo    *repository.JobRepository
	uploadDir  string
	scratchDir string
	expire     time.Duration
	now        func() time.Time
}

func NewSweeper(jobRepo *repository.JobRepository, cfg *config.Config) *Sweeper {
	hours := cfg.Cleanup.ExpireHours
	if hours <= 0 {
		hours = 1
	}
	return &Sweeper{
		jobRepo:    jobRepo,
		uploadDir:  cfg.Upload.Dir,
		scratchDir: cfg.Pipeline.ScratchDir,
		expire:     time.Duration(hours) * time.Hour,
		now:        time.Now,
	}
}

// Sweep 执行一次清理，dryRun 时只统计不删除
func (s *Sweeper) Sweep(dryRun bool) (*SweepReport, error) {
	report := &SweepReport{DryRun: dryRun}
	cutoff := s.now().Add(-s.expire)

	var errs []error
	if err := s.sweepUploads(cutoff, report); err != nil {
		errs = append(errs, err)
	}
	if err := s.sweepScratch(cutoff, report); err != nil {
		errs = append(errs, err)
	}

	if report.Files+report.Dirs > 0 {
		slog.Info("cleanup summary",
			"files", report.Files,
			"dirs", report.Dirs,
			"freed_bytes", report.FreedBytes,
			"kept", report.Kept,
			"dry_run", dryRun,
		)
	}
	return report, errors.Join(errs...)
}

func (s *Sweeper) sweepUploads(cutoff time.Time, report *SweepReport) error {
	entries, err := readDir(s.uploadDir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(s.uploadDir, entry.Name())
		removable, err := s.jobFinished(s.jobRepo.GetByFilePath(path))
		if err != nil {
			return err
		}
		if !removable {
			report.Kept++
			continue
		}

		if !report.DryRun {
			if err := os.Remove(path); err != nil {
				slog.Warn("cleanup: failed to remove file", "path", path, "error", err)
				continue
			}
		}
		report.Files++
		report.FreedBytes += info.Size()
	}
	return nil
}

func (s *Sweeper) sweepScratch(cutoff time.Time, report *SweepReport) error {
	entries, err := readDir(s.scratchDir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}

		// 目录名即任务 ID
		removable, err := s.jobFinished(s.jobRepo.GetByID(entry.Name()))
		if err != nil {
			return err
		}
		if !removable {
			report.Kept++
			continue
		}

		path := filepath.Join(s.scratchDir, entry.Name())
		size := dirSize(path)
		if !report.DryRun {
			if err := os.RemoveAll(path); err != nil {
				slog.Warn("cleanup: failed to remove dir", "path", path, "error", err)
				continue
			}
		}
		report.Dirs++
		report.FreedBytes += size
	}
	return nil
}

// jobFinished 任务不存在或已是终态时返回 true
func (s *Sweeper) jobFinished(job *model.DocumentAnalysisJob, err error) (bool, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return true, nil
		}
		return false, err
	}
	return job.IsTerminal(), nil
}

func readDir(dir string) ([]os.DirEntry, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return entries, err
}

// dirSize 计算目录大小
func dirSize(path string) int64 {
	var size int64
	filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size
}
