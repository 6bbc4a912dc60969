package taskqueue

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Kicker re-submits a task with its (possibly modified) labels. The broker
// satisfies this; tests substitute a recorder.
type Kicker interface {
	Kick(ctx context.Context, task *Task) error
}

// RetryMiddleware decides, per failed attempt, between local recovery
// (backoff + re-enqueue) and surfacing the failure. It is the single place
// that owns that decision.
type RetryMiddleware struct {
	registry *PolicyRegistry
	kicker   Kicker
	logger   zerolog.Logger
}

func NewRetryMiddleware(registry *PolicyRegistry, kicker Kicker, logger zerolog.Logger) *RetryMiddleware {
	return &RetryMiddleware{
		registry: registry,
		kicker:   kicker,
		logger:   logger,
	}
}

// OnError handles one failed attempt. It returns true when the task was
// re-enqueued (the attempt's result must then be suppressed) and false when
// the failure is terminal: no policy, retries exhausted, or the internal
// no-result sentinel, which must never be retried.
func (m *RetryMiddleware) OnError(ctx context.Context, task *Task, taskErr error) bool {
	if errors.Is(taskErr, ErrNoResult) {
		return false
	}

	policy, ok := m.registry.Lookup(task)
	if !ok {
		m.logger.Debug().
			Str("task", task.Name).
			Str("policy", task.PolicyName()).
			Msg("No retry policy for task, failing immediately")
		return false
	}

	count := task.RetryCount()
	if count >= policy.MaxRetries {
		m.logger.Error().
			Err(taskErr).
			Str("task", task.Name).
			Str("task_id", task.ID).
			Int("retries", count).
			Msg("Retries exhausted, recording terminal failure")
		return false
	}

	delay := policy.DelayFor(count)
	m.logger.Warn().
		Err(taskErr).
		Str("task", task.Name).
		Str("task_id", task.ID).
		Int("retry", count+1).
		Int("max_retries", policy.MaxRetries).
		Dur("delay", delay).
		Msg("Task failed, scheduling retry")

	// Only this task's goroutine waits; the worker keeps consuming.
	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			// Shutdown mid-backoff: skip the rest of the wait and
			// re-enqueue now. The attempt is still transient, the ack
			// that follows must not turn it into a lost message.
			timer.Stop()
		case <-timer.C:
		}
	}

	task.SetRetryCount(count + 1)
	if err := m.kicker.Kick(context.WithoutCancel(ctx), task); err != nil {
		m.logger.Error().
			Err(err).
			Str("task", task.Name).
			Str("task_id", task.ID).
			Msg("Failed to re-enqueue task")
		return false
	}

	return true
}
