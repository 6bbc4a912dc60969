package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Beep206/CyberVPN-sub003/pkg/config"
)

// Handler processes one task attempt.
type Handler func(ctx context.Context, task *Task) error

// ErrorHook is consulted after a failed attempt; returning true suppresses
// the attempt's result (the task was re-enqueued).
type ErrorHook interface {
	OnError(ctx context.Context, task *Task, taskErr error) bool
}

// Broker is a Redis-stream task queue: one stream per queue, one consumer
// group shared by all worker processes. Task messages are JSON-encoded with
// their labels, so retry counters survive re-enqueueing.
type Broker struct {
	rdb       *redis.Client
	cfg       config.QueueConfig
	consumer  string
	logger    zerolog.Logger
	errorHook ErrorHook

	mu       sync.RWMutex
	handlers map[string]Handler

	wg sync.WaitGroup
}

func NewBroker(rdb *redis.Client, cfg config.QueueConfig, consumer string, logger zerolog.Logger) *Broker {
	return &Broker{
		rdb:      rdb,
		cfg:      cfg,
		consumer: consumer,
		logger:   logger,
		handlers: make(map[string]Handler),
	}
}

// SetErrorHook installs the retry middleware. Must be called before Start.
func (b *Broker) SetErrorHook(hook ErrorHook) {
	b.errorHook = hook
}

// Register binds a task name to its handler.
func (b *Broker) Register(name string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = handler
}

func (b *Broker) streamKey(queue string) string {
	return b.cfg.Stream + ":" + queue
}

// Enqueue submits a task to its queue's stream.
func (b *Broker) Enqueue(ctx context.Context, task *Task) error {
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now().UTC()
	}

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode task: %w", err)
	}

	err = b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: b.streamKey(task.Queue),
		Values: map[string]interface{}{"task": string(data)},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to enqueue task %s: %w", task.Name, err)
	}

	b.logger.Debug().
		Str("task", task.Name).
		Str("task_id", task.ID).
		Str("queue", task.Queue).
		Int("retry_count", task.RetryCount()).
		Msg("Task enqueued")

	return nil
}

// Kick re-enqueues a task with its current labels, preserving payload and
// identity. This is the retry middleware's re-delivery primitive.
func (b *Broker) Kick(ctx context.Context, task *Task) error {
	return b.Enqueue(ctx, task)
}

// Start launches one consumer loop per configured queue. Blocks until ctx is
// cancelled and all in-flight tasks have finished.
func (b *Broker) Start(ctx context.Context) error {
	for _, queue := range b.cfg.Queues {
		err := b.rdb.XGroupCreateMkStream(ctx, b.streamKey(queue), b.cfg.ConsumerGroup, "0").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			return fmt.Errorf("failed to create consumer group for %s: %w", queue, err)
		}

		b.wg.Add(1)
		go b.consume(ctx, queue)
	}

	b.logger.Info().
		Strs("queues", b.cfg.Queues).
		Str("consumer", b.consumer).
		Msg("Task broker started")

	<-ctx.Done()
	b.wg.Wait()
	return nil
}

func (b *Broker) consume(ctx context.Context, queue string) {
	defer b.wg.Done()

	stream := b.streamKey(queue)
	for {
		if ctx.Err() != nil {
			return
		}

		streams, err := b.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    b.cfg.ConsumerGroup,
			Consumer: b.consumer,
			Streams:  []string{stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			b.logger.Error().Err(err).Str("queue", queue).Msg("Failed to read from stream")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for _, s := range streams {
			for _, msg := range s.Messages {
				b.dispatch(ctx, queue, msg)
			}
		}
	}
}

func (b *Broker) dispatch(ctx context.Context, queue string, msg redis.XMessage) {
	// Acks and result writes must survive shutdown cancellation.
	ackCtx := context.WithoutCancel(ctx)
	ack := func() {
		if err := b.rdb.XAck(ackCtx, b.streamKey(queue), b.cfg.ConsumerGroup, msg.ID).Err(); err != nil {
			b.logger.Error().Err(err).Str("queue", queue).Str("msg_id", msg.ID).Msg("Failed to ack message")
		}
	}

	raw, ok := msg.Values["task"].(string)
	if !ok {
		b.logger.Error().Str("queue", queue).Str("msg_id", msg.ID).Msg("Malformed task message, dropping")
		ack()
		return
	}

	var task Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		b.logger.Error().Err(err).Str("queue", queue).Str("msg_id", msg.ID).Msg("Undecodable task message, dropping")
		ack()
		return
	}

	b.mu.RLock()
	handler, ok := b.handlers[task.Name]
	b.mu.RUnlock()
	if !ok {
		b.logger.Error().Str("task", task.Name).Str("queue", queue).Msg("No handler registered for task, dropping")
		ack()
		return
	}

	// Each task runs in its own goroutine so a retry backoff never stalls the
	// consumer loop.
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer ack()
		b.run(ctx, handler, &task)
	}()
}

func (b *Broker) run(ctx context.Context, handler Handler, task *Task) {
	resultCtx := context.WithoutCancel(ctx)

	err := handler(ctx, task)
	if err == nil {
		b.storeResult(resultCtx, task, nil)
		return
	}

	if b.errorHook != nil && b.errorHook.OnError(ctx, task, err) {
		// Re-enqueued: this attempt leaves no result behind.
		return
	}

	if errors.Is(err, ErrNoResult) {
		return
	}

	b.storeResult(resultCtx, task, err)
}

type taskResult struct {
	TaskID     string    `json:"task_id"`
	Name       string    `json:"name"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	Retries    int       `json:"retries"`
	FinishedAt time.Time `json:"finished_at"`
}

func (b *Broker) storeResult(ctx context.Context, task *Task, taskErr error) {
	result := taskResult{
		TaskID:     task.ID,
		Name:       task.Name,
		Success:    taskErr == nil,
		Retries:    task.RetryCount(),
		FinishedAt: time.Now().UTC(),
	}
	if taskErr != nil {
		result.Error = taskErr.Error()
	}

	data, err := json.Marshal(result)
	if err != nil {
		b.logger.Error().Err(err).Str("task_id", task.ID).Msg("Failed to encode task result")
		return
	}

	key := b.cfg.Stream + ":result:" + task.ID
	if err := b.rdb.Set(ctx, key, data, b.cfg.ResultTTL).Err(); err != nil {
		b.logger.Error().Err(err).Str("task_id", task.ID).Msg("Failed to store task result")
	}
}
