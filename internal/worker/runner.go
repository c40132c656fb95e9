package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/qs3c/findoc_analyzer/internal/pkg/queue"
)

// Runner 从队列取任务并交给 Processor，每个 slot 同时只处理一个任务
type Runner struct {
	queue      *queue.Queue
	processor  *Processor
	workers    int
	popTimeout time.Duration
}

func NewRunner(q *queue.Queue, processor *Processor, workers int, popTimeout time.Duration) *Runner {
	if workers < 1 {
		workers = 1
	}
	if popTimeout <= 0 {
		popTimeout = 5 * time.Second
	}
	return &Runner{
		queue:      q,
		processor:  processor,
		workers:    workers,
		popTimeout: popTimeout,
	}
}

// Run 阻塞直到 ctx 取消且所有进行中的任务完成
func (r *Runner) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < r.workers; i++ {
		workerID := i
		g.Go(func() error {
			r.loop(gctx, workerID)
			return nil
		})
	}
	return g.Wait()
}

func (r *Runner) loop(ctx context.Context, workerID int) {
	log := slog.With("worker", workerID)
	log.Info("worker started", "queue", r.queue.Name())

	for ctx.Err() == nil {
		d, err := r.queue.Pop(ctx, r.popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Error("failed to pop job", "error", err)
			if !errors.Is(err, queue.ErrMalformedMessage) {
				sleep(ctx, time.Second)
			}
			continue
		}
		if d == nil {
			continue // 超时，继续等待
		}

		r.handle(ctx, log, d)
	}

	log.Info("worker shutting down")
}

// handle 处理与确认都不受关闭信号影响
func (r *Runner) handle(ctx context.Context, log *slog.Logger, d *queue.Delivery) {
	jobCtx := context.WithoutCancel(ctx)

	log.Info("processing job", "job_id", d.Message.JobID)
	outcome, err := r.processor.Process(jobCtx, d.Message)
	if err != nil {
		log.Error("job not processed", "job_id", d.Message.JobID, "outcome", outcome, "error", err)
	}

	if !outcome.Acknowledge() {
		return
	}
	if err := r.queue.Ack(jobCtx, d); err != nil {
		log.Error("failed to ack job", "job_id", d.Message.JobID, "error", err)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
