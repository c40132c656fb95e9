package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qs3c/findoc_analyzer/config"
	"github.com/qs3c/findoc_analyzer/internal/database"
	"github.com/qs3c/findoc_analyzer/internal/pkg/logger"
	"github.com/qs3c/findoc_analyzer/internal/pkg/queue"
	"github.com/qs3c/findoc_analyzer/internal/repository"
	"github.com/qs3c/findoc_analyzer/internal/worker"
)

var (
	configPath      string
	dryRun          bool
	expireHours     int
	requeueInFlight bool
)

var rootCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove leftover uploads and scratch output of finished jobs",
	Long: `Remove uploaded documents and per-job scratch directories that are older than
cleanup.expire_hours and whose job is Completed, Failed or no longer exists.
Files of Queued and Processing jobs are never touched.

With --requeue-inflight, messages that were popped by a worker but never
acknowledged are moved back onto the analysis queue. Only run this while no
worker is running.

Examples:
  cleanup --dry-run
  cleanup --expire-hours 48
  cleanup --requeue-inflight`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = "config.yaml"
	}
	rootCmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "config file")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be deleted without deleting")
	rootCmd.Flags().IntVar(&expireHours, "expire-hours", 0, "override cleanup.expire_hours")
	rootCmd.Flags().BoolVar(&requeueInFlight, "requeue-inflight", false, "move unacknowledged queue messages back to the queue")
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if expireHours > 0 {
		cfg.Cleanup.ExpireHours = expireHours
	}

	_, closeLog := logger.Setup(cfg.Log)
	defer closeLog()

	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	jobRepo := repository.NewJobRepository(db)

	out := cmd.OutOrStdout()

	if requeueInFlight {
		rdb, err := database.NewRedis(&cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()

		moved, err := queue.NewQueue(rdb, cfg.Queue.AnalysisQueue).Requeue(context.Background())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Requeued %d in-flight message(s)\n", moved)
	}

	report, err := worker.NewSweeper(jobRepo, cfg).Sweep(dryRun)
	if err != nil {
		slog.Error("cleanup incomplete", "error", err)
	}

	counts, countErr := jobRepo.CountByStatus()
	if countErr != nil {
		return fmt.Errorf("count jobs: %w", countErr)
	}

	fmt.Fprintln(out, strings.Repeat("=", 60))
	fmt.Fprintln(out, "Cleanup Summary")
	fmt.Fprintln(out, strings.Repeat("=", 60))
	fmt.Fprintf(out, "Deleted files: %d\n", report.Files)
	fmt.Fprintf(out, "Deleted scratch dirs: %d\n", report.Dirs)
	fmt.Fprintf(out, "Kept (job still active): %d\n", report.Kept)
	fmt.Fprintf(out, "Freed space: %s\n", formatSize(report.FreedBytes))

	statuses := make([]string, 0, len(counts))
	for status := range counts {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		fmt.Fprintf(out, "Jobs %s: %d\n", status, counts[status])
	}

	if dryRun {
		fmt.Fprintln(out, "DRY RUN MODE - no files were deleted")
	}
	return err
}

// formatSize 格式化文件大小
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
