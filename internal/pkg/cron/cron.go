package cron

import (
	"fmt"
	"log/slog"
	"sync"

	robfig "github.com/robfig/cron/v3"

	"github.com/qs3c/findoc_analyzer/internal/worker"
)

// Sweeper 定时执行的清理任务
type Sweeper interface {
	Sweep(dryRun bool) (*worker.SweepReport, error)
}

type Service struct {
	cron    *robfig.Cron
	sweeper Sweeper
	mu      sync.Mutex // 同一时刻只允许一次清理
}

// NewService 按 schedule（如 "@every 1h"、"0 3 * * *"）注册清理任务
func NewService(sweeper Sweeper, schedule string) (*Service, error) {
	s := &Service{
		cron:    robfig.New(),
		sweeper: sweeper,
	}
	if _, err := s.cron.AddFunc(schedule, s.runCleanup); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start 启动定时任务
func (s *Service) Start() {
	s.cron.Start()
	slog.Info("cron service started", "jobs", len(s.cron.Entries()))
}

// Stop 停止定时任务并等待正在执行的清理结束
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("cron service stopped")
}

// RunNow 立即执行一次清理（用于测试或手动触发）
func (s *Service) RunNow() (*worker.SweepReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweeper.Sweep(false)
}

func (s *Service) runCleanup() {
	if _, err := s.RunNow(); err != nil {
		slog.Error("scheduled cleanup failed", "error", err)
	}
}
