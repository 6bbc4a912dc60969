package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Beep206/CyberVPN-sub003/internal/application/paymentservice"
	"github.com/Beep206/CyberVPN-sub003/internal/domain"
	"github.com/Beep206/CyberVPN-sub003/internal/repositories/paymentrepo"
	"github.com/Beep206/CyberVPN-sub003/internal/repositories/walletrepo"
	"github.com/Beep206/CyberVPN-sub003/internal/repositories/webhookrepo"
	"github.com/Beep206/CyberVPN-sub003/pkg/config"
)

// Reconciler holds the periodic jobs that sweep up state the happy path
// missed: expired wallet holds and webhooks that never completed their
// payment. Each item is handled in isolation so one failure does not abort
// the batch.
type Reconciler struct {
	walletRepo  walletrepo.IWalletRepository
	paymentRepo paymentrepo.IPaymentRepository
	webhookRepo webhookrepo.IWebhookRepository
	paymentSvc  paymentservice.IPaymentService
	cfg         config.ReconcileConfig
	logger      zerolog.Logger
}

func NewReconciler(
	walletRepo walletrepo.IWalletRepository,
	paymentRepo paymentrepo.IPaymentRepository,
	webhookRepo webhookrepo.IWebhookRepository,
	paymentSvc paymentservice.IPaymentService,
	cfg config.ReconcileConfig,
	logger zerolog.Logger,
) *Reconciler {
	return &Reconciler{
		walletRepo:  walletRepo,
		paymentRepo: paymentRepo,
		webhookRepo: webhookRepo,
		paymentSvc:  paymentSvc,
		cfg:         cfg,
		logger:      logger,
	}
}

// UnfreezeExpired releases wallet holds of pending payments that outlived
// the hold timeout. Clearing wallet_amount_used in the same transaction as
// the unfreeze makes each payment idempotent across overlapping runs.
func (r *Reconciler) UnfreezeExpired(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-r.cfg.UnfreezeAfter)
	payments, err := r.paymentRepo.ListExpiredHolds(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to list expired holds: %w", err)
	}

	if len(payments) == 0 {
		return nil
	}

	r.logger.Info().
		Int("count", len(payments)).
		Time("cutoff", cutoff).
		Msg("Releasing expired wallet holds")

	var failed int
	for _, payment := range payments {
		if err := r.releaseHold(ctx, payment.ID); err != nil {
			failed++
			r.logger.Error().
				Err(err).
				Str("payment_id", payment.ID).
				Msg("Failed to release expired wallet hold")
		}
	}

	if failed > 0 {
		return fmt.Errorf("failed to release %d of %d expired holds", failed, len(payments))
	}
	return nil
}

func (r *Reconciler) releaseHold(ctx context.Context, paymentID string) error {
	tx, err := r.walletRepo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Re-read under lock: a concurrent completion or sweep run may have
	// cleared the hold since the scan.
	payment, err := r.paymentRepo.GetForUpdate(ctx, tx, paymentID)
	if err != nil {
		return err
	}
	if payment.Status != domain.PaymentStatusPending || !payment.WalletAmountUsed.IsPositive() {
		return nil
	}

	wallet, err := r.walletRepo.GetForUpdate(ctx, tx, payment.UserID)
	if err != nil {
		return err
	}

	released, err := r.walletRepo.Unfreeze(ctx, tx, wallet, payment.WalletAmountUsed)
	if err != nil {
		return err
	}
	if err := r.paymentRepo.ClearWalletHold(ctx, tx, payment.ID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.logger.Info().
		Str("payment_id", payment.ID).
		Str("user_id", payment.UserID).
		Str("released", released.String()).
		Msg("Expired wallet hold released")

	return nil
}

// RetryFailedWebhooks re-runs payment completion for signature-valid webhook
// entries that never processed, within the retry window. Attempts are
// tracked in the structured retry_count column; entries that hit the cap are
// finalized as failed so they stop coming back.
func (r *Reconciler) RetryFailedWebhooks(ctx context.Context) error {
	since := time.Now().UTC().Add(-r.cfg.WebhookRetryWindow)
	logs, err := r.webhookRepo.ListRetryable(ctx, since, r.cfg.WebhookRetryBatch)
	if err != nil {
		return fmt.Errorf("failed to list retryable webhooks: %w", err)
	}

	for _, log := range logs {
		if err := r.retryWebhook(ctx, log); err != nil {
			r.logger.Error().
				Err(err).
				Str("webhook_id", log.ID).
				Str("gateway", string(log.Gateway)).
				Msg("Webhook retry attempt failed")
		}
	}

	return nil
}

func (r *Reconciler) retryWebhook(ctx context.Context, log domain.WebhookLog) error {
	var payload domain.WebhookPayload
	if err := json.Unmarshal(log.Payload, &payload); err != nil || payload.PaymentID == "" {
		// Nothing to retry without a payment reference; finalize.
		return r.webhookRepo.MarkProcessed(ctx, log.ID, "payload has no payment_id")
	}

	_, err := r.paymentSvc.ProcessCompletion(ctx, payload.PaymentID)
	if err == nil {
		return r.webhookRepo.MarkProcessed(ctx, log.ID, "")
	}

	if log.RetryCount+1 >= r.cfg.WebhookMaxAttempts {
		r.logger.Warn().
			Str("webhook_id", log.ID).
			Int("attempts", log.RetryCount+1).
			Msg("Webhook retry attempts exhausted, marking failed")
		return r.webhookRepo.MarkProcessed(ctx, log.ID, err.Error())
	}

	if incErr := r.webhookRepo.IncrementRetry(ctx, log.ID, err.Error()); incErr != nil {
		return incErr
	}
	return err
}
