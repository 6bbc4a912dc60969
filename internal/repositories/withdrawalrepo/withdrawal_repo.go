package withdrawalrepo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Beep206/CyberVPN-sub003/internal/domain"
)

type IWithdrawalRepository interface {
	Create(ctx context.Context, tx pgx.Tx, withdrawal *domain.WithdrawalRequest) error
	Get(ctx context.Context, withdrawalID string) (*domain.WithdrawalRequest, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, withdrawalID string) (*domain.WithdrawalRequest, error)

	// Resolve records the terminal state of a request.
	Resolve(ctx context.Context, tx pgx.Tx, withdrawalID string, res Resolution) error

	ListPending(ctx context.Context, limit, offset int) ([]domain.WithdrawalRequest, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.WithdrawalRequest, error)
}

// Resolution is the terminal outcome of a request: who processed it, the
// ledger row the debit produced and the gateway payout reference (if any).
type Resolution struct {
	Status      domain.WithdrawalStatus
	AdminID     string
	AdminNote   string
	WalletTxID  string
	ExternalID  string
	ProcessedAt time.Time
}
