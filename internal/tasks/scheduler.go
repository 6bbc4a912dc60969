package tasks

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Beep206/CyberVPN-sub003/internal/taskqueue"
	"github.com/Beep206/CyberVPN-sub003/pkg/config"
)

// Scheduler enqueues the reconciliation tasks on their configured intervals.
// Going through the broker gives the sweeps the same retry semantics as any
// other task.
type Scheduler struct {
	broker *taskqueue.Broker
	cfg    config.ReconcileConfig
	logger zerolog.Logger
}

func NewScheduler(broker *taskqueue.Broker, cfg config.ReconcileConfig, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		broker: broker,
		cfg:    cfg,
		logger: logger,
	}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info().
		Dur("unfreeze_interval", s.cfg.UnfreezeInterval).
		Dur("webhook_retry_interval", s.cfg.WebhookRetryInterval).
		Msg("Reconciliation scheduler started")

	unfreezeTicker := time.NewTicker(s.cfg.UnfreezeInterval)
	defer unfreezeTicker.Stop()
	webhookTicker := time.NewTicker(s.cfg.WebhookRetryInterval)
	defer webhookTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Reconciliation scheduler stopped")
			return
		case <-unfreezeTicker.C:
			s.enqueue(ctx, TaskUnfreezeExpired)
		case <-webhookTicker.C:
			s.enqueue(ctx, TaskRetryFailedWebhooks)
		}
	}
}

func (s *Scheduler) enqueue(ctx context.Context, name string) {
	task, err := taskqueue.NewTask(name, QueueMaintenance, nil)
	if err != nil {
		s.logger.Error().Err(err).Str("task", name).Msg("Failed to build scheduled task")
		return
	}
	if err := s.broker.Enqueue(ctx, task); err != nil {
		s.logger.Error().Err(err).Str("task", name).Msg("Failed to enqueue scheduled task")
	}
}
