package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrMalformedMessage 队列中的消息无法解析，已被丢弃
var ErrMalformedMessage = errors.New("malformed queue message")

// Queue 基于 Redis list 的可靠队列。
// Pop 时消息原子地移入 <name>:processing，Ack 后才真正移除，
// worker 崩溃后未确认的消息可通过 Requeue 放回。
type Queue struct {
	client         *redis.Client
	queueName      string
	processingName string
}

type JobMessage struct {
	JobID    string `json:"job_id"`
	FilePath string `json:"file_path"`
	Query    string `json:"query"`
}

// Delivery 一次出队的消息，Ack 需要原始载荷
type Delivery struct {
	Message *JobMessage
	raw     string
}

func NewQueue(client *redis.Client, queueName string) *Queue {
	return &Queue{
		client:         client,
		queueName:      queueName,
		processingName: queueName + ":processing",
	}
}

// Name 队列名
func (q *Queue) Name() string {
	return q.queueName
}

// Push 将任务加入队列
func (q *Queue) Push(ctx context.Context, msg *JobMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	return q.client.LPush(ctx, q.queueName, data).Err()
}

// Pop 从队列获取任务（阻塞），超时无任务时返回 nil, nil
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (*Delivery, error) {
	raw, err := q.client.BRPopLPush(ctx, q.queueName, q.processingName, timeout).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop from queue: %w", err)
	}

	var msg JobMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		// 坏消息不会被任何 worker 成功处理，直接丢弃
		if remErr := q.client.LRem(ctx, q.processingName, 1, raw).Err(); remErr != nil {
			slog.Error("failed to drop malformed message", "queue", q.processingName, "error", remErr)
			return nil, fmt.Errorf("%w: %v (drop failed: %w)", ErrMalformedMessage, err, remErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	return &Delivery{Message: &msg, raw: raw}, nil
}

// Ack 确认任务已处理完毕
func (q *Queue) Ack(ctx context.Context, d *Delivery) error {
	if d == nil {
		return nil
	}
	if err := q.client.LRem(ctx, q.processingName, 1, d.raw).Err(); err != nil {
		return fmt.Errorf("failed to ack message: %w", err)
	}
	return nil
}

// Requeue 将所有未确认的任务放回队列，返回移动的数量。
// 只应在没有 worker 运行时调用。
func (q *Queue) Requeue(ctx context.Context) (int, error) {
	moved := 0
	for {
		// 最新取出的在 processing 头部，放回队尾后最早的任务最先被消费
		err := q.client.LMove(ctx, q.processingName, q.queueName, "LEFT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return moved, nil
		}
		if err != nil {
			return moved, fmt.Errorf("failed to requeue: %w", err)
		}
		moved++
	}
}

// Length 获取队列长度
func (q *Queue) Length(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.queueName).Result()
}

// InFlight 已出队但尚未确认的任务数
func (q *Queue) InFlight(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.processingName).Result()
}
