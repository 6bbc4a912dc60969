package withdrawalservice

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/Beep206/CyberVPN-sub003/internal/domain"
)

// IWithdrawalService drives the cash-out lifecycle. The requested amount
// plus its fee is frozen for the whole pending phase; terminal transitions
// either debit it (approve) or just release it (reject).
type IWithdrawalService interface {
	Request(ctx context.Context, userID string, amount decimal.Decimal, method domain.WithdrawalMethod, destination string) (*domain.WithdrawalRequest, error)
	Approve(ctx context.Context, withdrawalID, adminID, externalID string) (*domain.WithdrawalRequest, error)
	Reject(ctx context.Context, withdrawalID, adminID, note string) (*domain.WithdrawalRequest, error)
	Get(ctx context.Context, withdrawalID string) (*domain.WithdrawalRequest, error)
	ListPending(ctx context.Context, limit, offset int) ([]domain.WithdrawalRequest, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.WithdrawalRequest, error)
}
