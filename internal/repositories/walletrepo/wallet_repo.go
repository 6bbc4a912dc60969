package walletrepo

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/Beep206/CyberVPN-sub003/internal/domain"
)

// IWalletRepository is the ledger store. Every mutation takes the caller's
// pgx.Tx so the balance update and the ledger append commit together; rows
// are locked with SELECT ... FOR UPDATE before any mutation.
type IWalletRepository interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// GetOrCreate returns the locked wallet row, creating it with zero
	// balances on first access. Safe under concurrent first access.
	GetOrCreate(ctx context.Context, tx pgx.Tx, userID, currency string) (*domain.Wallet, error)

	// Get is a read-only lookup outside any transaction.
	Get(ctx context.Context, userID string) (*domain.Wallet, error)

	// GetForUpdate locks the wallet row; domain.ErrWalletNotFound if absent.
	GetForUpdate(ctx context.Context, tx pgx.Tx, userID string) (*domain.Wallet, error)

	// Credit increases the balance and appends the ledger row.
	Credit(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet, entry LedgerEntry) (*domain.WalletTransaction, error)

	// Debit decreases the balance and appends the ledger row. Fails with
	// domain.InsufficientBalanceError when the available balance
	// (balance - frozen) is short.
	Debit(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet, entry LedgerEntry) (*domain.WalletTransaction, error)

	// Freeze reserves part of the available balance. No ledger row: frozen
	// funds have not moved.
	Freeze(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet, amount decimal.Decimal) error

	// Unfreeze releases up to amount, floored at zero. Returns the amount
	// actually released so callers can spot clamped releases.
	Unfreeze(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet, amount decimal.Decimal) (decimal.Decimal, error)

	// ListTransactions returns ledger rows newest first.
	ListTransactions(ctx context.Context, userID string, offset, limit int) ([]domain.WalletTransaction, error)
}

// LedgerEntry is the caller-supplied part of a ledger row.
type LedgerEntry struct {
	Amount        decimal.Decimal
	Reason        domain.TransactionReason
	ReferenceType domain.ReferenceType
	ReferenceID   string
	Description   string
}
