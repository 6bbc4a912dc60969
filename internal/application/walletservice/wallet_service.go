package walletservice

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/Beep206/CyberVPN-sub003/internal/domain"
)

// Reference links a ledger entry to the entity that caused it.
type Reference struct {
	Type domain.ReferenceType
	ID   string
}

// IWalletService is the only mutation path for wallet balances. Every
// operation runs in its own database transaction; the balance change and the
// ledger append commit together.
type IWalletService interface {
	// GetBalance returns the user's wallet, creating it on first access.
	GetBalance(ctx context.Context, userID string) (*domain.Wallet, error)

	// GetTransactions returns ledger entries newest first.
	GetTransactions(ctx context.Context, userID string, offset, limit int) ([]domain.WalletTransaction, error)

	// Credit increases the balance. Unlike GetBalance it does not create the
	// wallet: crediting a user that never touched their wallet is a caller
	// bug, surfaced as domain.ErrWalletNotFound.
	Credit(ctx context.Context, userID string, amount decimal.Decimal, reason domain.TransactionReason, ref *Reference, description string) (*domain.WalletTransaction, error)

	// Debit decreases the balance, guarded by the available balance
	// (balance minus frozen).
	Debit(ctx context.Context, userID string, amount decimal.Decimal, reason domain.TransactionReason, ref *Reference, description string) (*domain.WalletTransaction, error)

	// Freeze reserves part of the available balance for a pending operation.
	Freeze(ctx context.Context, userID string, amount decimal.Decimal) error

	// Unfreeze releases a reservation, floored at zero.
	Unfreeze(ctx context.Context, userID string, amount decimal.Decimal) error
}
