package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qs3c/findoc_analyzer/config"
	"github.com/qs3c/findoc_analyzer/internal/api"
	"github.com/qs3c/findoc_analyzer/internal/api/handler"
	"github.com/qs3c/findoc_analyzer/internal/database"
	"github.com/qs3c/findoc_analyzer/internal/pkg/logger"
	"github.com/qs3c/findoc_analyzer/internal/pkg/queue"
	"github.com/qs3c/findoc_analyzer/internal/repository"
	"github.com/qs3c/findoc_analyzer/internal/service"
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

	jobQueue := queue.NewQueue(rdb, cfg.Queue.AnalysisQueue)
	jobRepo := repository.NewJobRepository(db)
	analysisService := service.NewAnalysisService(jobRepo, jobQueue, cfg)
	analysisHandler := handler.NewAnalysisHandler(analysisService, cfg.Upload.MaxSize)

	engine := api.NewRouter(analysisHandler, cfg).Setup()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     engine,
		ReadTimeout: 60 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	slog.Info("server stopped")
}
