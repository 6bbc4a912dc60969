package paymentservice

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Beep206/CyberVPN-sub003/internal/domain"
	"github.com/Beep206/CyberVPN-sub003/internal/repositories/paymentrepo"
	"github.com/Beep206/CyberVPN-sub003/internal/repositories/walletrepo"
	"github.com/Beep206/CyberVPN-sub003/pkg/money"
)

type PaymentService struct {
	paymentRepo       paymentrepo.IPaymentRepository
	walletRepo        walletrepo.IWalletRepository
	commissionPercent float64
	currency          string
	logger            zerolog.Logger
}

func New(paymentRepo paymentrepo.IPaymentRepository, walletRepo walletrepo.IWalletRepository, commissionPercent float64, currency string, logger zerolog.Logger) IPaymentService {
	return &PaymentService{
		paymentRepo:       paymentRepo,
		walletRepo:        walletRepo,
		commissionPercent: commissionPercent,
		currency:          currency,
		logger:            logger,
	}
}

func (s *PaymentService) Get(ctx context.Context, paymentID string) (*domain.Payment, error) {
	return s.paymentRepo.Get(ctx, paymentID)
}

func (s *PaymentService) ProcessCompletion(ctx context.Context, paymentID string) (bool, error) {
	tx, err := s.walletRepo.BeginTx(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	payment, err := s.paymentRepo.GetForUpdate(ctx, tx, paymentID)
	if err != nil {
		return false, err
	}

	if payment.Status == domain.PaymentStatusCompleted {
		s.logger.Info().
			Str("payment_id", paymentID).
			Msg("Payment already completed, skipping")
		return false, nil
	}

	// Release and collect the wallet portion first; the hold was placed when
	// the payment was created.
	if payment.WalletAmountUsed.IsPositive() {
		wallet, err := s.walletRepo.GetForUpdate(ctx, tx, payment.UserID)
		if err != nil {
			return false, err
		}

		if _, err := s.walletRepo.Unfreeze(ctx, tx, wallet, payment.WalletAmountUsed); err != nil {
			return false, err
		}
		_, err = s.walletRepo.Debit(ctx, tx, wallet, walletrepo.LedgerEntry{
			Amount:        payment.WalletAmountUsed,
			Reason:        domain.ReasonSubscriptionPayment,
			ReferenceType: domain.ReferenceTypePayment,
			ReferenceID:   payment.ID,
		})
		if err != nil {
			return false, err
		}

		if err := s.paymentRepo.ClearWalletHold(ctx, tx, payment.ID); err != nil {
			return false, err
		}
	}

	if payment.ReferrerID != "" && s.commissionPercent > 0 {
		commission := money.Percent(payment.Amount, s.commissionPercent)
		if commission.IsPositive() {
			referrerWallet, err := s.walletRepo.GetOrCreate(ctx, tx, payment.ReferrerID, s.currency)
			if err != nil {
				return false, err
			}
			_, err = s.walletRepo.Credit(ctx, tx, referrerWallet, walletrepo.LedgerEntry{
				Amount:        commission,
				Reason:        domain.ReasonReferralCommission,
				ReferenceType: domain.ReferenceTypePayment,
				ReferenceID:   payment.ID,
				Description:   fmt.Sprintf("commission for payment by %s", payment.UserID),
			})
			if err != nil {
				return false, err
			}
		}
	}

	if err := s.paymentRepo.MarkCompleted(ctx, tx, payment.ID, time.Now().UTC()); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info().
		Str("payment_id", payment.ID).
		Str("user_id", payment.UserID).
		Str("amount", payment.Amount.String()).
		Str("gateway", string(payment.Gateway)).
		Msg("Payment completion processed")

	return true, nil
}
