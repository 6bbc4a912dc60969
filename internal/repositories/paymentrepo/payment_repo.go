package paymentrepo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Beep206/CyberVPN-sub003/internal/domain"
)

type IPaymentRepository interface {
	Create(ctx context.Context, tx pgx.Tx, payment *domain.Payment) error
	Get(ctx context.Context, paymentID string) (*domain.Payment, error)

	// GetForUpdate locks the payment row for the completion flow.
	GetForUpdate(ctx context.Context, tx pgx.Tx, paymentID string) (*domain.Payment, error)

	// MarkCompleted sets status/processed_at under the caller's transaction.
	MarkCompleted(ctx context.Context, tx pgx.Tx, paymentID string, processedAt time.Time) error

	// ListExpiredHolds returns pending payments older than cutoff that still
	// carry a wallet hold (wallet_amount_used > 0).
	ListExpiredHolds(ctx context.Context, cutoff time.Time) ([]domain.Payment, error)

	// ClearWalletHold zeroes wallet_amount_used so a later sweep run does not
	// release the same hold twice.
	ClearWalletHold(ctx context.Context, tx pgx.Tx, paymentID string) error
}
