package webhookrepo

import (
	"context"
	"time"

	"github.com/Beep206/CyberVPN-sub003/internal/domain"
)

type IWebhookRepository interface {
	Insert(ctx context.Context, log *domain.WebhookLog) error
	Get(ctx context.Context, id string) (*domain.WebhookLog, error)

	// ListRetryable returns signature-valid, unprocessed entries newer than
	// the window cutoff, oldest first, bounded by limit.
	ListRetryable(ctx context.Context, since time.Time, limit int) ([]domain.WebhookLog, error)

	// IncrementRetry bumps the structured attempt counter and records the
	// last failure.
	IncrementRetry(ctx context.Context, id string, lastError string) error

	// MarkProcessed finalizes an entry; lastError is kept for entries that
	// exhausted their attempts.
	MarkProcessed(ctx context.Context, id string, lastError string) error
}
