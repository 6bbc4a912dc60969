package paymentrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Beep206/CyberVPN-sub003/internal/domain"
)

type PaymentRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

func New(pool *pgxpool.Pool, logger zerolog.Logger) IPaymentRepository {
	return &PaymentRepository{
		pool:   pool,
		logger: logger,
	}
}

const paymentColumns = `id, user_id, gateway, status, amount::text, currency,
	wallet_amount_used::text, COALESCE(plan_id, ''), COALESCE(referrer_id, ''),
	COALESCE(external_id, ''), processed_at, created_at, updated_at`

func (r *PaymentRepository) Create(ctx context.Context, tx pgx.Tx, payment *domain.Payment) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO payments
			(id, user_id, gateway, status, amount, currency, wallet_amount_used,
			 plan_id, referrer_id, external_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7::numeric,
		        NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''), now(), now())
	`, payment.ID, payment.UserID, payment.Gateway, payment.Status,
		payment.Amount.String(), payment.Currency, payment.WalletAmountUsed.String(),
		payment.PlanID, payment.ReferrerID, payment.ExternalID)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *PaymentRepository) Get(ctx context.Context, paymentID string) (*domain.Payment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE id = $1
	`, paymentID)

	return scanPayment(row)
}

func (r *PaymentRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, paymentID string) (*domain.Payment, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE id = $1
		FOR UPDATE
	`, paymentID)

	return scanPayment(row)
}

func (r *PaymentRepository) MarkCompleted(ctx context.Context, tx pgx.Tx, paymentID string, processedAt time.Time) error {
	tag, err := tx.Exec(ctx, `
		UPDATE payments
		SET status = $2, processed_at = $3, updated_at = now()
		WHERE id = $1
	`, paymentID, domain.PaymentStatusCompleted, processedAt)
	if err != nil {
		return fmt.Errorf("failed to mark payment completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPaymentNotFound
	}
	return nil
}

func (r *PaymentRepository) ListExpiredHolds(ctx context.Context, cutoff time.Time) ([]domain.Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE status = $1
		  AND wallet_amount_used > 0
		  AND created_at < $2
		ORDER BY created_at
	`, domain.PaymentStatusPending, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired wallet holds: %w", err)
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *payment)
	}

	return payments, rows.Err()
}

func (r *PaymentRepository) ClearWalletHold(ctx context.Context, tx pgx.Tx, paymentID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE payments
		SET wallet_amount_used = 0, updated_at = now()
		WHERE id = $1
	`, paymentID)
	if err != nil {
		return fmt.Errorf("failed to clear wallet hold: %w", err)
	}
	return nil
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var (
		payment                  domain.Payment
		amount, walletAmountUsed string
	)
	err := row.Scan(&payment.ID, &payment.UserID, &payment.Gateway, &payment.Status,
		&amount, &payment.Currency, &walletAmountUsed, &payment.PlanID,
		&payment.ReferrerID, &payment.ExternalID, &payment.ProcessedAt,
		&payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}

	if payment.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("invalid payment amount: %w", err)
	}
	if payment.WalletAmountUsed, err = decimal.NewFromString(walletAmountUsed); err != nil {
		return nil, fmt.Errorf("invalid payment wallet_amount_used: %w", err)
	}

	return &payment, nil
}
