package webhookrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/Beep206/CyberVPN-sub003/internal/domain"
)

type WebhookRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

func New(pool *pgxpool.Pool, logger zerolog.Logger) IWebhookRepository {
	return &WebhookRepository{
		pool:   pool,
		logger: logger,
	}
}

const webhookColumns = `id, gateway, COALESCE(external_id, ''), payload, signature_valid,
	processed, retry_count, COALESCE(last_error, ''), created_at, processed_at`

func (r *WebhookRepository) Insert(ctx context.Context, log *domain.WebhookLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO webhook_logs
			(id, gateway, external_id, payload, signature_valid, processed, retry_count, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, false, 0, now())
	`, log.ID, log.Gateway, log.ExternalID, []byte(log.Payload), log.SignatureValid)
	if err != nil {
		return fmt.Errorf("failed to insert webhook log: %w", err)
	}
	return nil
}

func (r *WebhookRepository) Get(ctx context.Context, id string) (*domain.WebhookLog, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+webhookColumns+`
		FROM webhook_logs
		WHERE id = $1
	`, id)

	return scanWebhookLog(row)
}

func (r *WebhookRepository) ListRetryable(ctx context.Context, since time.Time, limit int) ([]domain.WebhookLog, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+webhookColumns+`
		FROM webhook_logs
		WHERE processed = false
		  AND signature_valid = true
		  AND created_at >= $1
		ORDER BY created_at
		LIMIT $2
	`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list retryable webhooks: %w", err)
	}
	defer rows.Close()

	var logs []domain.WebhookLog
	for rows.Next() {
		log, err := scanWebhookLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, *log)
	}

	return logs, rows.Err()
}

func (r *WebhookRepository) IncrementRetry(ctx context.Context, id string, lastError string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE webhook_logs
		SET retry_count = retry_count + 1, last_error = NULLIF($2, '')
		WHERE id = $1
	`, id, lastError)
	if err != nil {
		return fmt.Errorf("failed to increment webhook retry count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrWebhookNotFound
	}
	return nil
}

func (r *WebhookRepository) MarkProcessed(ctx context.Context, id string, lastError string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE webhook_logs
		SET processed = true, last_error = NULLIF($2, ''), processed_at = now()
		WHERE id = $1
	`, id, lastError)
	if err != nil {
		return fmt.Errorf("failed to mark webhook processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrWebhookNotFound
	}
	return nil
}

func scanWebhookLog(row pgx.Row) (*domain.WebhookLog, error) {
	var (
		log     domain.WebhookLog
		payload []byte
	)
	err := row.Scan(&log.ID, &log.Gateway, &log.ExternalID, &payload, &log.SignatureValid,
		&log.Processed, &log.RetryCount, &log.LastError, &log.CreatedAt, &log.ProcessedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrWebhookNotFound
		}
		return nil, fmt.Errorf("failed to scan webhook log: %w", err)
	}

	log.Payload = payload
	return &log, nil
}
