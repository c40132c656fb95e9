package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func TestNewQueue(t *testing.T) {
	client, _ := setupTestRedis(t)

	q := NewQueue(client, "test_queue")

	assert.Equal(t, "test_queue", q.Name())
	assert.Equal(t, "test_queue:processing", q.processingName)
}

func TestQueue_PushPop(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()
	q := NewQueue(client, "test_queue")

	msg := &JobMessage{
		JobID:    "Job_1",
		FilePath: "data/financial_document_1.pdf",
		Query:    "What is the revenue trend?",
	}
	require.NoError(t, q.Push(ctx, msg))

	length, err := q.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), length)

	d, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, *msg, *d.Message)

	length, err = q.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), length)

	inFlight, err := q.InFlight(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), inFlight)
}

func TestQueue_FIFO(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()
	q := NewQueue(client, "test_fifo_queue")

	for i := 1; i <= 3; i++ {
		require.NoError(t, q.Push(ctx, &JobMessage{JobID: fmt.Sprintf("Job_%d", i)}))
	}

	for i := 1; i <= 3; i++ {
		d, err := q.Pop(ctx, time.Second)
		require.NoError(t, err)
		require.NotNil(t, d)
		assert.Equal(t, fmt.Sprintf("Job_%d", i), d.Message.JobID)
	}
}

func TestQueue_PopEmpty(t *testing.T) {
	client, _ := setupTestRedis(t)
	q := NewQueue(client, "test_empty_queue")

	d, err := q.Pop(context.Background(), 50*time.Millisecond)

	// miniredis 的阻塞超时行为与真实 Redis 略有差异
	if err == nil {
		assert.Nil(t, d)
	}
}

func TestQueue_Ack(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()
	q := NewQueue(client, "test_ack_queue")

	require.NoError(t, q.Push(ctx, &JobMessage{JobID: "Job_a"}))
	require.NoError(t, q.Push(ctx, &JobMessage{JobID: "Job_b"}))

	first, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	second, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)

	require.NoError(t, q.Ack(ctx, first))

	inFlight, err := q.InFlight(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), inFlight)

	require.NoError(t, q.Ack(ctx, second))
	inFlight, err = q.InFlight(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), inFlight)

	assert.NoError(t, q.Ack(ctx, nil))
}

func TestQueue_Requeue(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()
	q := NewQueue(client, "test_requeue")

	for i := 1; i <= 3; i++ {
		require.NoError(t, q.Push(ctx, &JobMessage{JobID: fmt.Sprintf("Job_%d", i)}))
	}
	// 取出两个但不确认，模拟 worker 崩溃
	_, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	_, err = q.Pop(ctx, time.Second)
	require.NoError(t, err)

	moved, err := q.Requeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, moved)

	inFlight, err := q.InFlight(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), inFlight)

	// 原有顺序保持不变
	for i := 1; i <= 3; i++ {
		d, err := q.Pop(ctx, time.Second)
		require.NoError(t, err)
		require.NotNil(t, d)
		assert.Equal(t, fmt.Sprintf("Job_%d", i), d.Message.JobID)
	}
}

func TestQueue_RequeueEmpty(t *testing.T) {
	client, _ := setupTestRedis(t)
	q := NewQueue(client, "test_requeue_empty")

	moved, err := q.Requeue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, moved)
}

func TestQueue_MalformedMessageDropped(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()
	q := NewQueue(client, "test_malformed")

	_, err := mr.Lpush("test_malformed", "{not json")
	require.NoError(t, err)

	d, err := q.Pop(ctx, time.Second)
	assert.Nil(t, d)
	assert.ErrorIs(t, err, ErrMalformedMessage)

	inFlight, err := q.InFlight(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), inFlight)
}

// failLRem 让 LREM 命令失败
type failLRem struct{}

func (failLRem) BeforeProcess(ctx context.Context, cmd redis.Cmder) (context.Context, error) {
	if cmd.Name() == "lrem" {
		return ctx, errors.New("connection reset")
	}
	return ctx, nil
}

func (failLRem) AfterProcess(ctx context.Context, cmd redis.Cmder) error { return nil }

func (failLRem) BeforeProcessPipeline(ctx context.Context, cmds []redis.Cmder) (context.Context, error) {
	return ctx, nil
}

func (failLRem) AfterProcessPipeline(ctx context.Context, cmds []redis.Cmder) error { return nil }

func TestQueue_MalformedMessageDropFails(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()
	q := NewQueue(client, "test_malformed_drop")
	client.AddHook(failLRem{})

	_, err := mr.Lpush("test_malformed_drop", "{not json")
	require.NoError(t, err)

	d, err := q.Pop(ctx, time.Second)
	assert.Nil(t, d)
	assert.ErrorIs(t, err, ErrMalformedMessage)
	assert.ErrorContains(t, err, "connection reset")

	inFlight, err := q.InFlight(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), inFlight)
}

func TestQueue_MultipleQueues(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	q1 := NewQueue(client, "queue_1")
	q2 := NewQueue(client, "queue_2")

	require.NoError(t, q1.Push(ctx, &JobMessage{JobID: "Job_1"}))
	require.NoError(t, q2.Push(ctx, &JobMessage{JobID: "Job_2"}))

	r1, err := q1.Pop(ctx, time.Second)
	require.NoError(t, err)
	r2, err := q2.Pop(ctx, time.Second)
	require.NoError(t, err)

	assert.Equal(t, "Job_1", r1.Message.JobID)
	assert.Equal(t, "Job_2", r2.Message.JobID)
}
