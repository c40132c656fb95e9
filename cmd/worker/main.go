package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qs3c/findoc_analyzer/config"
	"github.com/qs3c/findoc_analyzer/internal/database"
	"github.com/qs3c/findoc_analyzer/internal/pipeline"
	"github.com/qs3c/findoc_analyzer/internal/pkg/cron"
	"github.com/qs3c/findoc_analyzer/internal/pkg/logger"
	"github.com/qs3c/findoc_analyzer/internal/pkg/queue"
	"github.com/qs3c/findoc_analyzer/internal/repository"
	"github.com/qs3c/findoc_analyzer/internal/worker"
)

func main() {
	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	_, closeLog := logger.Setup(cfg.Log)
	defer closeLog()

	// 初始化数据库
	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		slog.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	slog.Info("database connected", "driver", cfg.Database.Driver)

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		slog.Error("failed to connect redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()
	slog.Info("redis connected")

	// 初始化模型与流水线
	model, err := pipeline.NewModel(cfg.Pipeline)
	if err != nil {
		slog.Error("failed to create model", "provider", cfg.Pipeline.Provider, "error", err)
		os.Exit(1)
	}
	analysis := pipeline.NewAgentPipeline(model, cfg.Pipeline)

	jobQueue := queue.NewQueue(rdb, cfg.Queue.AnalysisQueue)
	jobRepo := repository.NewJobRepository(db)
	processor := worker.NewProcessor(jobRepo, analysis, cfg)

	// 定时清理残留文件
	cronService, err := cron.NewService(worker.NewSweeper(jobRepo, cfg), cfg.Cleanup.Schedule)
	if err != nil {
		slog.Error("failed to init cron service", "error", err)
		os.Exit(1)
	}
	cronService.Start()
	defer cronService.Stop()

	// 收到退出信号后停止取任务，等待进行中的任务完成
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("worker started",
		"max_workers", cfg.Queue.MaxWorkers,
		"queue", cfg.Queue.AnalysisQueue,
		"provider", cfg.Pipeline.Provider,
		"model", cfg.Pipeline.Model,
	)

	runner := worker.NewRunner(jobQueue, processor, cfg.Queue.MaxWorkers,
		time.Duration(cfg.Queue.PopTimeoutSeconds)*time.Second)
	if err := runner.Run(ctx); err != nil {
		slog.Error("worker stopped with error", "error", err)
	}

	slog.Info("worker shutdown complete")
}
