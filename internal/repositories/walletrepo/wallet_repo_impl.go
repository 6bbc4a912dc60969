package walletrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Beep206/CyberVPN-sub003/internal/domain"
)

type WalletRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

func New(pool *pgxpool.Pool, logger zerolog.Logger) IWalletRepository {
	return &WalletRepository{
		pool:   pool,
		logger: logger,
	}
}

func (r *WalletRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
}

const walletColumns = `id, user_id, balance::text, frozen::text, currency, created_at, updated_at`

func (r *WalletRepository) GetOrCreate(ctx context.Context, tx pgx.Tx, userID, currency string) (*domain.Wallet, error) {
	_, err := tx.Exec(ctx, `
		INSERT INTO wallets (id, user_id, balance, frozen, currency, created_at, updated_at)
		VALUES ($1, $2, 0, 0, $3, now(), now())
		ON CONFLICT (user_id) DO NOTHING
	`, uuid.New().String(), userID, currency)
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	return r.GetForUpdate(ctx, tx, userID)
}

func (r *WalletRepository) Get(ctx context.Context, userID string) (*domain.Wallet, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+walletColumns+`
		FROM wallets
		WHERE user_id = $1
	`, userID)

	return scanWallet(row)
}

func (r *WalletRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, userID string) (*domain.Wallet, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+walletColumns+`
		FROM wallets
		WHERE user_id = $1
		FOR UPDATE
	`, userID)

	return scanWallet(row)
}

func (r *WalletRepository) Credit(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet, entry LedgerEntry) (*domain.WalletTransaction, error) {
	if err := validateEntry(entry); err != nil {
		return nil, err
	}

	newBalance := wallet.Balance.Add(entry.Amount)
	if err := r.updateBalances(ctx, tx, wallet.ID, newBalance, wallet.Frozen); err != nil {
		return nil, err
	}

	walletTx, err := r.appendTransaction(ctx, tx, wallet, domain.TransactionTypeCredit, newBalance, entry)
	if err != nil {
		return nil, err
	}

	wallet.Balance = newBalance
	return walletTx, nil
}

func (r *WalletRepository) Debit(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet, entry LedgerEntry) (*domain.WalletTransaction, error) {
	if err := validateEntry(entry); err != nil {
		return nil, err
	}

	available := wallet.Available()
	if available.LessThan(entry.Amount) {
		return nil, &domain.InsufficientBalanceError{
			UserID:    wallet.UserID,
			Available: available,
			Requested: entry.Amount,
		}
	}

	newBalance := wallet.Balance.Sub(entry.Amount)
	if err := r.updateBalances(ctx, tx, wallet.ID, newBalance, wallet.Frozen); err != nil {
		return nil, err
	}

	walletTx, err := r.appendTransaction(ctx, tx, wallet, domain.TransactionTypeDebit, newBalance, entry)
	if err != nil {
		return nil, err
	}

	wallet.Balance = newBalance
	return walletTx, nil
}

func (r *WalletRepository) Freeze(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return domain.ErrInvalidAmount
	}

	available := wallet.Available()
	if available.LessThan(amount) {
		return &domain.InsufficientBalanceError{
			UserID:    wallet.UserID,
			Available: available,
			Requested: amount,
		}
	}

	newFrozen := wallet.Frozen.Add(amount)
	if err := r.updateBalances(ctx, tx, wallet.ID, wallet.Balance, newFrozen); err != nil {
		return err
	}

	wallet.Frozen = newFrozen
	return nil
}

func (r *WalletRepository) Unfreeze(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, domain.ErrInvalidAmount
	}

	released := amount
	if released.GreaterThan(wallet.Frozen) {
		// Reconciliation sweeps can race an explicit release; floor at zero
		// instead of failing, but make the clamp visible.
		r.logger.Warn().
			Str("user_id", wallet.UserID).
			Str("requested", amount.String()).
			Str("frozen", wallet.Frozen.String()).
			Msg("Unfreeze clamped to current frozen amount")
		released = wallet.Frozen
	}

	newFrozen := wallet.Frozen.Sub(released)
	if err := r.updateBalances(ctx, tx, wallet.ID, wallet.Balance, newFrozen); err != nil {
		return decimal.Zero, err
	}

	wallet.Frozen = newFrozen
	return released, nil
}

func (r *WalletRepository) ListTransactions(ctx context.Context, userID string, offset, limit int) ([]domain.WalletTransaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, wallet_id, user_id, type, amount::text, currency, balance_after::text,
		       reason, COALESCE(reference_type, ''), COALESCE(reference_id, ''),
		       COALESCE(description, ''), created_at
		FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		OFFSET $2 LIMIT $3
	`, userID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallet transactions: %w", err)
	}
	defer rows.Close()

	var transactions []domain.WalletTransaction
	for rows.Next() {
		var (
			t                    domain.WalletTransaction
			amount, balanceAfter string
		)
		err := rows.Scan(&t.ID, &t.WalletID, &t.UserID, &t.Type, &amount, &t.Currency,
			&balanceAfter, &t.Reason, &t.ReferenceType, &t.ReferenceID, &t.Description, &t.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wallet transaction: %w", err)
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("invalid amount in ledger row %s: %w", t.ID, err)
		}
		if t.BalanceAfter, err = decimal.NewFromString(balanceAfter); err != nil {
			return nil, fmt.Errorf("invalid balance_after in ledger row %s: %w", t.ID, err)
		}
		transactions = append(transactions, t)
	}

	return transactions, rows.Err()
}

func (r *WalletRepository) updateBalances(ctx context.Context, tx pgx.Tx, walletID string, balance, frozen decimal.Decimal) error {
	tag, err := tx.Exec(ctx, `
		UPDATE wallets
		SET balance = $2::numeric, frozen = $3::numeric, updated_at = now()
		WHERE id = $1
	`, walletID, balance.String(), frozen.String())
	if err != nil {
		return fmt.Errorf("failed to update wallet %s: %w", walletID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrWalletNotFound
	}
	return nil
}

func (r *WalletRepository) appendTransaction(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet, txType domain.TransactionType, balanceAfter decimal.Decimal, entry LedgerEntry) (*domain.WalletTransaction, error) {
	walletTx := &domain.WalletTransaction{
		ID:            uuid.New().String(),
		WalletID:      wallet.ID,
		UserID:        wallet.UserID,
		Type:          txType,
		Amount:        entry.Amount,
		Currency:      wallet.Currency,
		BalanceAfter:  balanceAfter,
		Reason:        entry.Reason,
		ReferenceType: entry.ReferenceType,
		ReferenceID:   entry.ReferenceID,
		Description:   entry.Description,
		CreatedAt:     time.Now().UTC(),
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO wallet_transactions
			(id, wallet_id, user_id, type, amount, currency, balance_after,
			 reason, reference_type, reference_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7::numeric, $8,
		        NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''), $12)
	`, walletTx.ID, walletTx.WalletID, walletTx.UserID, walletTx.Type,
		walletTx.Amount.String(), walletTx.Currency, walletTx.BalanceAfter.String(),
		walletTx.Reason, string(walletTx.ReferenceType), walletTx.ReferenceID,
		walletTx.Description, walletTx.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to append ledger row: %w", err)
	}

	return walletTx, nil
}

func validateEntry(entry LedgerEntry) error {
	if !entry.Amount.IsPositive() {
		return domain.ErrInvalidAmount
	}
	if !entry.Reason.Valid() {
		return domain.ErrInvalidReason
	}
	return nil
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	var (
		wallet          domain.Wallet
		balance, frozen string
	)
	err := row.Scan(&wallet.ID, &wallet.UserID, &balance, &frozen,
		&wallet.Currency, &wallet.CreatedAt, &wallet.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to scan wallet: %w", err)
	}

	if wallet.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("invalid wallet balance: %w", err)
	}
	if wallet.Frozen, err = decimal.NewFromString(frozen); err != nil {
		return nil, fmt.Errorf("invalid wallet frozen amount: %w", err)
	}

	return &wallet, nil
}
