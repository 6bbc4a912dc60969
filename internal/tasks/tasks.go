package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Beep206/CyberVPN-sub003/internal/taskqueue"
)

// Queue and task names. Retry policies in config are keyed by queue name,
// so payment tasks inherit the payments policy unless a retry_policy label
// overrides it.
const (
	QueuePayments    = "payments"
	QueueMaintenance = "maintenance"

	TaskProcessPaymentCompletion = "payment.process_completion"
	TaskUnfreezeExpired          = "wallet.unfreeze_expired"
	TaskRetryFailedWebhooks      = "webhook.retry_failed"
)

// ProcessPaymentPayload is the payload of TaskProcessPaymentCompletion.
type ProcessPaymentPayload struct {
	PaymentID string `json:"payment_id"`
}

// Register binds all task handlers to the broker.
func Register(broker *taskqueue.Broker, reconciler *Reconciler, logger zerolog.Logger) {
	broker.Register(TaskProcessPaymentCompletion, func(ctx context.Context, task *taskqueue.Task) error {
		var payload ProcessPaymentPayload
		if err := json.Unmarshal(task.Payload, &payload); err != nil {
			return fmt.Errorf("invalid payment completion payload: %w", err)
		}
		if payload.PaymentID == "" {
			return fmt.Errorf("payment completion payload missing payment_id")
		}

		applied, err := reconciler.paymentSvc.ProcessCompletion(ctx, payload.PaymentID)
		if err != nil {
			return err
		}
		if !applied {
			logger.Info().Str("payment_id", payload.PaymentID).Msg("Payment was already processed")
		}
		return nil
	})

	broker.Register(TaskUnfreezeExpired, func(ctx context.Context, task *taskqueue.Task) error {
		return reconciler.UnfreezeExpired(ctx)
	})

	broker.Register(TaskRetryFailedWebhooks, func(ctx context.Context, task *taskqueue.Task) error {
		return reconciler.RetryFailedWebhooks(ctx)
	})
}

// EnqueuePaymentCompletion is the producer-side helper used by webhook
// handlers and the bot-facing API.
func EnqueuePaymentCompletion(ctx context.Context, broker *taskqueue.Broker, paymentID string) error {
	task, err := taskqueue.NewTask(TaskProcessPaymentCompletion, QueuePayments, ProcessPaymentPayload{PaymentID: paymentID})
	if err != nil {
		return err
	}
	return broker.Enqueue(ctx, task)
}

// Producer is the enqueue-side handle handed to HTTP handlers, keeping them
// off the broker itself.
type Producer struct {
	broker *taskqueue.Broker
}

func NewProducer(broker *taskqueue.Broker) *Producer {
	return &Producer{broker: broker}
}

func (p *Producer) EnqueuePaymentCompletion(ctx context.Context, paymentID string) error {
	return EnqueuePaymentCompletion(ctx, p.broker, paymentID)
}
