package withdrawalservice

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Beep206/CyberVPN-sub003/internal/domain"
	"github.com/Beep206/CyberVPN-sub003/internal/repositories/walletrepo"
	"github.com/Beep206/CyberVPN-sub003/internal/repositories/withdrawalrepo"
	"github.com/Beep206/CyberVPN-sub003/pkg/config"
	"github.com/Beep206/CyberVPN-sub003/pkg/money"
)

// EventPublisher pushes withdrawal status changes to backoffice clients.
type EventPublisher interface {
	PublishWithdrawal(withdrawal domain.WithdrawalRequest)
}

type WithdrawalService struct {
	withdrawalRepo withdrawalrepo.IWithdrawalRepository
	walletRepo     walletrepo.IWalletRepository
	events         EventPublisher
	cfg            config.WithdrawalConfig
	currency       string
	logger         zerolog.Logger
}

func New(withdrawalRepo withdrawalrepo.IWithdrawalRepository, walletRepo walletrepo.IWalletRepository, events EventPublisher, cfg config.WithdrawalConfig, currency string, logger zerolog.Logger) IWithdrawalService {
	return &WithdrawalService{
		withdrawalRepo: withdrawalRepo,
		walletRepo:     walletRepo,
		events:         events,
		cfg:            cfg,
		currency:       currency,
		logger:         logger,
	}
}

func (s *WithdrawalService) Request(ctx context.Context, userID string, amount decimal.Decimal, method domain.WithdrawalMethod, destination string) (*domain.WithdrawalRequest, error) {
	if !s.cfg.Enabled {
		return nil, domain.ErrWithdrawalsDisabled
	}
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	if !method.Valid() {
		return nil, fmt.Errorf("unknown withdrawal method %q", method)
	}
	if s.cfg.MinAmount != "" {
		minAmount, err := decimal.NewFromString(s.cfg.MinAmount)
		if err != nil {
			return nil, fmt.Errorf("invalid min_amount in config: %w", err)
		}
		if amount.LessThan(minAmount) {
			return nil, domain.ErrBelowMinWithdrawal
		}
	}

	tx, err := s.walletRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	wallet, err := s.walletRepo.GetForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	// The fee is frozen together with the amount so approval can always
	// debit both, however the available balance moved in the meantime.
	fee := money.Percent(amount, s.cfg.FeePercent)
	if err := s.walletRepo.Freeze(ctx, tx, wallet, amount.Add(fee)); err != nil {
		return nil, err
	}

	withdrawal := &domain.WithdrawalRequest{
		ID:          uuid.New().String(),
		UserID:      userID,
		WalletID:    wallet.ID,
		Amount:      amount,
		Fee:         fee,
		Currency:    s.currency,
		Method:      method,
		Destination: destination,
		Status:      domain.WithdrawalStatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.withdrawalRepo.Create(ctx, tx, withdrawal); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info().
		Str("withdrawal_id", withdrawal.ID).
		Str("user_id", userID).
		Str("amount", amount.String()).
		Str("method", string(method)).
		Msg("Withdrawal requested, funds frozen")

	s.publish(*withdrawal)
	return withdrawal, nil
}

func (s *WithdrawalService) Approve(ctx context.Context, withdrawalID, adminID, externalID string) (*domain.WithdrawalRequest, error) {
	tx, err := s.walletRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	withdrawal, err := s.withdrawalRepo.GetForUpdate(ctx, tx, withdrawalID)
	if err != nil {
		return nil, err
	}
	if withdrawal.Status != domain.WithdrawalStatusPending {
		return nil, domain.ErrWithdrawalNotPending
	}

	wallet, err := s.walletRepo.GetForUpdate(ctx, tx, withdrawal.UserID)
	if err != nil {
		return nil, err
	}

	if _, err := s.walletRepo.Unfreeze(ctx, tx, wallet, withdrawal.Amount.Add(withdrawal.Fee)); err != nil {
		return nil, err
	}
	walletTx, err := s.walletRepo.Debit(ctx, tx, wallet, walletrepo.LedgerEntry{
		Amount:        withdrawal.Amount,
		Reason:        domain.ReasonWithdrawal,
		ReferenceType: domain.ReferenceTypeWithdrawal,
		ReferenceID:   withdrawal.ID,
	})
	if err != nil {
		return nil, err
	}
	if withdrawal.Fee.IsPositive() {
		_, err = s.walletRepo.Debit(ctx, tx, wallet, walletrepo.LedgerEntry{
			Amount:        withdrawal.Fee,
			Reason:        domain.ReasonWithdrawalFee,
			ReferenceType: domain.ReferenceTypeWithdrawal,
			ReferenceID:   withdrawal.ID,
		})
		if err != nil {
			return nil, err
		}
	}

	processedAt := time.Now().UTC()
	err = s.withdrawalRepo.Resolve(ctx, tx, withdrawal.ID, withdrawalrepo.Resolution{
		Status:      domain.WithdrawalStatusCompleted,
		AdminID:     adminID,
		WalletTxID:  walletTx.ID,
		ExternalID:  externalID,
		ProcessedAt: processedAt,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	withdrawal.Status = domain.WithdrawalStatusCompleted
	withdrawal.ProcessedBy = adminID
	withdrawal.ProcessedAt = &processedAt
	withdrawal.WalletTxID = walletTx.ID
	withdrawal.ExternalID = externalID

	s.logger.Info().
		Str("withdrawal_id", withdrawal.ID).
		Str("admin_id", adminID).
		Str("amount", withdrawal.Amount.String()).
		Msg("Withdrawal approved and debited")

	s.publish(*withdrawal)
	return withdrawal, nil
}

func (s *WithdrawalService) Reject(ctx context.Context, withdrawalID, adminID, note string) (*domain.WithdrawalRequest, error) {
	tx, err := s.walletRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	withdrawal, err := s.withdrawalRepo.GetForUpdate(ctx, tx, withdrawalID)
	if err != nil {
		return nil, err
	}
	if withdrawal.Status != domain.WithdrawalStatusPending {
		return nil, domain.ErrWithdrawalNotPending
	}

	wallet, err := s.walletRepo.GetForUpdate(ctx, tx, withdrawal.UserID)
	if err != nil {
		return nil, err
	}
	if _, err := s.walletRepo.Unfreeze(ctx, tx, wallet, withdrawal.Amount.Add(withdrawal.Fee)); err != nil {
		return nil, err
	}

	processedAt := time.Now().UTC()
	err = s.withdrawalRepo.Resolve(ctx, tx, withdrawal.ID, withdrawalrepo.Resolution{
		Status:      domain.WithdrawalStatusCancelled,
		AdminID:     adminID,
		AdminNote:   note,
		ProcessedAt: processedAt,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	withdrawal.Status = domain.WithdrawalStatusCancelled
	withdrawal.ProcessedBy = adminID
	withdrawal.ProcessedAt = &processedAt
	withdrawal.AdminNote = note

	s.logger.Info().
		Str("withdrawal_id", withdrawal.ID).
		Str("admin_id", adminID).
		Msg("Withdrawal rejected, funds released")

	s.publish(*withdrawal)
	return withdrawal, nil
}

func (s *WithdrawalService) Get(ctx context.Context, withdrawalID string) (*domain.WithdrawalRequest, error) {
	return s.withdrawalRepo.Get(ctx, withdrawalID)
}

func (s *WithdrawalService) ListPending(ctx context.Context, limit, offset int) ([]domain.WithdrawalRequest, error) {
	return s.withdrawalRepo.ListPending(ctx, limit, offset)
}

func (s *WithdrawalService) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.WithdrawalRequest, error) {
	return s.withdrawalRepo.ListByUser(ctx, userID, limit, offset)
}

func (s *WithdrawalService) publish(withdrawal domain.WithdrawalRequest) {
	if s.events != nil {
		s.events.PublishWithdrawal(withdrawal)
	}
}
