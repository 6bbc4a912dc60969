package walletservice

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Beep206/CyberVPN-sub003/internal/domain"
	"github.com/Beep206/CyberVPN-sub003/internal/repositories/walletrepo"
)

// EventPublisher pushes ledger activity to connected backoffice clients.
// The websocket hub satisfies this; tests use a no-op.
type EventPublisher interface {
	PublishTransaction(tx domain.WalletTransaction)
}

type WalletService struct {
	walletRepo walletrepo.IWalletRepository
	events     EventPublisher
	currency   string
	logger     zerolog.Logger
}

func New(walletRepo walletrepo.IWalletRepository, events EventPublisher, currency string, logger zerolog.Logger) IWalletService {
	return &WalletService{
		walletRepo: walletRepo,
		events:     events,
		currency:   currency,
		logger:     logger,
	}
}

func (s *WalletService) GetBalance(ctx context.Context, userID string) (*domain.Wallet, error) {
	tx, err := s.walletRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	wallet, err := s.walletRepo.GetOrCreate(ctx, tx, userID, s.currency)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return wallet, nil
}

func (s *WalletService) GetTransactions(ctx context.Context, userID string, offset, limit int) ([]domain.WalletTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.walletRepo.ListTransactions(ctx, userID, offset, limit)
}

func (s *WalletService) Credit(ctx context.Context, userID string, amount decimal.Decimal, reason domain.TransactionReason, ref *Reference, description string) (*domain.WalletTransaction, error) {
	return s.mutate(ctx, userID, func(tx pgx.Tx, wallet *domain.Wallet) (*domain.WalletTransaction, error) {
		return s.walletRepo.Credit(ctx, tx, wallet, ledgerEntry(amount, reason, ref, description))
	})
}

func (s *WalletService) Debit(ctx context.Context, userID string, amount decimal.Decimal, reason domain.TransactionReason, ref *Reference, description string) (*domain.WalletTransaction, error) {
	return s.mutate(ctx, userID, func(tx pgx.Tx, wallet *domain.Wallet) (*domain.WalletTransaction, error) {
		return s.walletRepo.Debit(ctx, tx, wallet, ledgerEntry(amount, reason, ref, description))
	})
}

func (s *WalletService) Freeze(ctx context.Context, userID string, amount decimal.Decimal) error {
	_, err := s.mutate(ctx, userID, func(tx pgx.Tx, wallet *domain.Wallet) (*domain.WalletTransaction, error) {
		return nil, s.walletRepo.Freeze(ctx, tx, wallet, amount)
	})
	return err
}

func (s *WalletService) Unfreeze(ctx context.Context, userID string, amount decimal.Decimal) error {
	_, err := s.mutate(ctx, userID, func(tx pgx.Tx, wallet *domain.Wallet) (*domain.WalletTransaction, error) {
		_, err := s.walletRepo.Unfreeze(ctx, tx, wallet, amount)
		return nil, err
	})
	return err
}

func (s *WalletService) mutate(ctx context.Context, userID string, op func(tx pgx.Tx, wallet *domain.Wallet) (*domain.WalletTransaction, error)) (*domain.WalletTransaction, error) {
	tx, err := s.walletRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	wallet, err := s.walletRepo.GetForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	walletTx, err := op(tx, wallet)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if walletTx != nil {
		s.logger.Info().
			Str("user_id", userID).
			Str("type", string(walletTx.Type)).
			Str("amount", walletTx.Amount.String()).
			Str("reason", string(walletTx.Reason)).
			Str("balance_after", walletTx.BalanceAfter.String()).
			Msg("Wallet ledger entry appended")
		if s.events != nil {
			s.events.PublishTransaction(*walletTx)
		}
	}

	return walletTx, nil
}

func ledgerEntry(amount decimal.Decimal, reason domain.TransactionReason, ref *Reference, description string) walletrepo.LedgerEntry {
	entry := walletrepo.LedgerEntry{
		Amount:      amount,
		Reason:      reason,
		Description: description,
	}
	if ref != nil {
		entry.ReferenceType = ref.Type
		entry.ReferenceID = ref.ID
	}
	return entry
}
