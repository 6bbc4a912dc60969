package withdrawalrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Beep206/CyberVPN-sub003/internal/domain"
)

type WithdrawalRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

func New(pool *pgxpool.Pool, logger zerolog.Logger) IWithdrawalRepository {
	return &WithdrawalRepository{
		pool:   pool,
		logger: logger,
	}
}

const withdrawalColumns = `id, user_id, wallet_id, amount::text, fee::text, currency, method,
	COALESCE(destination, ''), status, COALESCE(external_id, ''), COALESCE(admin_note, ''),
	COALESCE(processed_by, ''), processed_at, COALESCE(wallet_tx_id, ''), created_at, updated_at`

func (r *WithdrawalRepository) Create(ctx context.Context, tx pgx.Tx, withdrawal *domain.WithdrawalRequest) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO withdrawal_requests
			(id, user_id, wallet_id, amount, fee, currency, method, destination,
			 status, external_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7, NULLIF($8, ''),
		        $9, NULLIF($10, ''), now(), now())
	`, withdrawal.ID, withdrawal.UserID, withdrawal.WalletID,
		withdrawal.Amount.String(), withdrawal.Fee.String(), withdrawal.Currency,
		withdrawal.Method, withdrawal.Destination, withdrawal.Status, withdrawal.ExternalID)
	if err != nil {
		return fmt.Errorf("failed to create withdrawal request: %w", err)
	}
	return nil
}

func (r *WithdrawalRepository) Get(ctx context.Context, withdrawalID string) (*domain.WithdrawalRequest, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+withdrawalColumns+`
		FROM withdrawal_requests
		WHERE id = $1
	`, withdrawalID)

	return scanWithdrawal(row)
}

func (r *WithdrawalRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, withdrawalID string) (*domain.WithdrawalRequest, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+withdrawalColumns+`
		FROM withdrawal_requests
		WHERE id = $1
		FOR UPDATE
	`, withdrawalID)

	return scanWithdrawal(row)
}

func (r *WithdrawalRepository) Resolve(ctx context.Context, tx pgx.Tx, withdrawalID string, res Resolution) error {
	tag, err := tx.Exec(ctx, `
		UPDATE withdrawal_requests
		SET status = $2, processed_by = NULLIF($3, ''), admin_note = NULLIF($4, ''),
		    wallet_tx_id = NULLIF($5, ''),
		    external_id = COALESCE(NULLIF($6, ''), external_id),
		    processed_at = $7, updated_at = now()
		WHERE id = $1
	`, withdrawalID, res.Status, res.AdminID, res.AdminNote, res.WalletTxID, res.ExternalID, res.ProcessedAt)
	if err != nil {
		return fmt.Errorf("failed to resolve withdrawal request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrWithdrawalNotFound
	}
	return nil
}

func (r *WithdrawalRepository) ListPending(ctx context.Context, limit, offset int) ([]domain.WithdrawalRequest, error) {
	return r.list(ctx, `
		SELECT `+withdrawalColumns+`
		FROM withdrawal_requests
		WHERE status = 'pending'
		ORDER BY created_at
		LIMIT $1 OFFSET $2
	`, limit, offset)
}

func (r *WithdrawalRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.WithdrawalRequest, error) {
	return r.list(ctx, `
		SELECT `+withdrawalColumns+`
		FROM withdrawal_requests
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
}

func (r *WithdrawalRepository) list(ctx context.Context, query string, args ...any) ([]domain.WithdrawalRequest, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawal requests: %w", err)
	}
	defer rows.Close()

	var withdrawals []domain.WithdrawalRequest
	for rows.Next() {
		withdrawal, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		withdrawals = append(withdrawals, *withdrawal)
	}

	return withdrawals, rows.Err()
}

func scanWithdrawal(row pgx.Row) (*domain.WithdrawalRequest, error) {
	var (
		withdrawal  domain.WithdrawalRequest
		amount, fee string
	)
	err := row.Scan(&withdrawal.ID, &withdrawal.UserID, &withdrawal.WalletID,
		&amount, &fee, &withdrawal.Currency, &withdrawal.Method,
		&withdrawal.Destination, &withdrawal.Status, &withdrawal.ExternalID,
		&withdrawal.AdminNote, &withdrawal.ProcessedBy, &withdrawal.ProcessedAt,
		&withdrawal.WalletTxID, &withdrawal.CreatedAt, &withdrawal.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("failed to scan withdrawal request: %w", err)
	}

	if withdrawal.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("invalid withdrawal amount: %w", err)
	}
	if withdrawal.Fee, err = decimal.NewFromString(fee); err != nil {
		return nil, fmt.Errorf("invalid withdrawal fee: %w", err)
	}

	return &withdrawal, nil
}
