package paymentservice_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Beep206/CyberVPN-sub003/internal/application/paymentservice"
	"github.com/Beep206/CyberVPN-sub003/internal/domain"
	"github.com/Beep206/CyberVPN-sub003/internal/repositories/walletrepo"
)

type fakeTx struct {
	pgx.Tx
}

func (fakeTx) Commit(ctx context.Context) error   { return nil }
func (fakeTx) Rollback(ctx context.Context) error { return nil }

type fakeWalletRepo struct {
	wallets map[string]*domain.Wallet
	ledger  []domain.WalletTransaction
}

func newFakeWalletRepo() *fakeWalletRepo {
	return &fakeWalletRepo{wallets: make(map[string]*domain.Wallet)}
}

func (f *fakeWalletRepo) seed(userID string, balance, frozen decimal.Decimal) *domain.Wallet {
	w := &domain.Wallet{
		ID:       uuid.New().String(),
		UserID:   userID,
		Balance:  balance,
		Frozen:   frozen,
		Currency: "USD",
	}
	f.wallets[userID] = w
	return w
}

func (f *fakeWalletRepo) BeginTx(ctx context.Context) (pgx.Tx, error) { return fakeTx{}, nil }

func (f *fakeWalletRepo) GetOrCreate(ctx context.Context, tx pgx.Tx, userID, currency string) (*domain.Wallet, error) {
	if w, ok := f.wallets[userID]; ok {
		return w, nil
	}
	return f.seed(userID, decimal.Zero, decimal.Zero), nil
}

func (f *fakeWalletRepo) Get(ctx context.Context, userID string) (*domain.Wallet, error) {
	return f.GetForUpdate(ctx, nil, userID)
}

func (f *fakeWalletRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, userID string) (*domain.Wallet, error) {
	w, ok := f.wallets[userID]
	if !ok {
		return nil, domain.ErrWalletNotFound
	}
	return w, nil
}

func (f *fakeWalletRepo) Credit(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet, entry walletrepo.LedgerEntry) (*domain.WalletTransaction, error) {
	wallet.Balance = wallet.Balance.Add(entry.Amount)
	return f.append(wallet, domain.TransactionTypeCredit, entry), nil
}

func (f *fakeWalletRepo) Debit(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet, entry walletrepo.LedgerEntry) (*domain.WalletTransaction, error) {
	if wallet.Available().LessThan(entry.Amount) {
		return nil, &domain.InsufficientBalanceError{
			UserID:    wallet.UserID,
			Available: wallet.Available(),
			Requested: entry.Amount,
		}
	}
	wallet.Balance = wallet.Balance.Sub(entry.Amount)
	return f.append(wallet, domain.TransactionTypeDebit, entry), nil
}

func (f *fakeWalletRepo) Freeze(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet, amount decimal.Decimal) error {
	wallet.Frozen = wallet.Frozen.Add(amount)
	return nil
}

func (f *fakeWalletRepo) Unfreeze(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet, amount decimal.Decimal) (decimal.Decimal, error) {
	released := amount
	if released.GreaterThan(wallet.Frozen) {
		released = wallet.Frozen
	}
	wallet.Frozen = wallet.Frozen.Sub(released)
	return released, nil
}

func (f *fakeWalletRepo) ListTransactions(ctx context.Context, userID string, offset, limit int) ([]domain.WalletTransaction, error) {
	return f.ledger, nil
}

func (f *fakeWalletRepo) append(wallet *domain.Wallet, txType domain.TransactionType, entry walletrepo.LedgerEntry) *domain.WalletTransaction {
	walletTx := domain.WalletTransaction{
		ID:            uuid.New().String(),
		WalletID:      wallet.ID,
		UserID:        wallet.UserID,
		Type:          txType,
		Amount:        entry.Amount,
		BalanceAfter:  wallet.Balance,
		Reason:        entry.Reason,
		ReferenceType: entry.ReferenceType,
		ReferenceID:   entry.ReferenceID,
	}
	f.ledger = append(f.ledger, walletTx)
	return &walletTx
}

type fakePaymentRepo struct {
	payments map[string]*domain.Payment
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: make(map[string]*domain.Payment)}
}

func (f *fakePaymentRepo) Create(ctx context.Context, tx pgx.Tx, payment *domain.Payment) error {
	clone := *payment
	f.payments[payment.ID] = &clone
	return nil
}

func (f *fakePaymentRepo) Get(ctx context.Context, paymentID string) (*domain.Payment, error) {
	p, ok := f.payments[paymentID]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	clone := *p
	return &clone, nil
}

func (f *fakePaymentRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, paymentID string) (*domain.Payment, error) {
	return f.Get(ctx, paymentID)
}

func (f *fakePaymentRepo) MarkCompleted(ctx context.Context, tx pgx.Tx, paymentID string, processedAt time.Time) error {
	p, ok := f.payments[paymentID]
	if !ok {
		return domain.ErrPaymentNotFound
	}
	p.Status = domain.PaymentStatusCompleted
	p.ProcessedAt = &processedAt
	return nil
}

func (f *fakePaymentRepo) ListExpiredHolds(ctx context.Context, cutoff time.Time) ([]domain.Payment, error) {
	var out []domain.Payment
	for _, p := range f.payments {
		if p.Status == domain.PaymentStatusPending && p.WalletAmountUsed.IsPositive() && p.CreatedAt.Before(cutoff) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePaymentRepo) ClearWalletHold(ctx context.Context, tx pgx.Tx, paymentID string) error {
	p, ok := f.payments[paymentID]
	if !ok {
		return domain.ErrPaymentNotFound
	}
	p.WalletAmountUsed = decimal.Zero
	return nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedPayment(repo *fakePaymentRepo, userID string, amount, walletUsed decimal.Decimal, referrerID string) *domain.Payment {
	payment := &domain.Payment{
		ID:               uuid.New().String(),
		UserID:           userID,
		Gateway:          domain.GatewayCryptoBot,
		Status:           domain.PaymentStatusPending,
		Amount:           amount,
		Currency:         "USD",
		WalletAmountUsed: walletUsed,
		ReferrerID:       referrerID,
		CreatedAt:        time.Now().UTC(),
	}
	repo.payments[payment.ID] = payment
	return payment
}

func TestPaymentService_CompletionDebitsWalletHold(t *testing.T) {
	walletRepo := newFakeWalletRepo()
	walletRepo.seed("user-1", dec("100"), dec("30"))
	paymentRepo := newFakePaymentRepo()
	payment := seedPayment(paymentRepo, "user-1", dec("50"), dec("30"), "")

	svc := paymentservice.New(paymentRepo, walletRepo, 10, "USD", zerolog.Nop())

	applied, err := svc.ProcessCompletion(context.Background(), payment.ID)
	require.NoError(t, err)
	assert.True(t, applied)

	wallet := walletRepo.wallets["user-1"]
	assert.True(t, wallet.Frozen.IsZero())
	assert.True(t, wallet.Balance.Equal(dec("70")))

	require.Len(t, walletRepo.ledger, 1)
	assert.Equal(t, domain.ReasonSubscriptionPayment, walletRepo.ledger[0].Reason)
	assert.Equal(t, payment.ID, walletRepo.ledger[0].ReferenceID)

	stored, err := svc.Get(context.Background(), payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, stored.Status)
	assert.True(t, stored.WalletAmountUsed.IsZero(), "hold must be cleared on completion")
}

func TestPaymentService_CompletionCreditsReferrerCommission(t *testing.T) {
	walletRepo := newFakeWalletRepo()
	walletRepo.seed("buyer", dec("10"), decimal.Zero)
	paymentRepo := newFakePaymentRepo()
	payment := seedPayment(paymentRepo, "buyer", dec("40"), decimal.Zero, "referrer-1")

	svc := paymentservice.New(paymentRepo, walletRepo, 10, "USD", zerolog.Nop())

	applied, err := svc.ProcessCompletion(context.Background(), payment.ID)
	require.NoError(t, err)
	assert.True(t, applied)

	// Referrer wallet is created on the fly and credited 10% of 40.
	referrerWallet, ok := walletRepo.wallets["referrer-1"]
	require.True(t, ok, "referrer wallet should be created")
	assert.True(t, referrerWallet.Balance.Equal(dec("4")))

	require.Len(t, walletRepo.ledger, 1)
	assert.Equal(t, domain.ReasonReferralCommission, walletRepo.ledger[0].Reason)
}

func TestPaymentService_CompletionIsIdempotent(t *testing.T) {
	walletRepo := newFakeWalletRepo()
	walletRepo.seed("user-1", dec("100"), dec("30"))
	paymentRepo := newFakePaymentRepo()
	payment := seedPayment(paymentRepo, "user-1", dec("50"), dec("30"), "referrer-1")

	svc := paymentservice.New(paymentRepo, walletRepo, 10, "USD", zerolog.Nop())
	ctx := context.Background()

	applied, err := svc.ProcessCompletion(ctx, payment.ID)
	require.NoError(t, err)
	assert.True(t, applied)

	balanceAfterFirst := walletRepo.wallets["user-1"].Balance
	ledgerAfterFirst := len(walletRepo.ledger)

	applied, err = svc.ProcessCompletion(ctx, payment.ID)
	require.NoError(t, err)
	assert.False(t, applied, "second completion must be a no-op")

	assert.True(t, walletRepo.wallets["user-1"].Balance.Equal(balanceAfterFirst))
	assert.Len(t, walletRepo.ledger, ledgerAfterFirst)
}

func TestPaymentService_CompletionUnknownPayment(t *testing.T) {
	svc := paymentservice.New(newFakePaymentRepo(), newFakeWalletRepo(), 10, "USD", zerolog.Nop())

	_, err := svc.ProcessCompletion(context.Background(), "missing")

	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
}

func TestPaymentService_NoCommissionWithoutReferrer(t *testing.T) {
	walletRepo := newFakeWalletRepo()
	walletRepo.seed("user-1", dec("10"), decimal.Zero)
	paymentRepo := newFakePaymentRepo()
	payment := seedPayment(paymentRepo, "user-1", dec("40"), decimal.Zero, "")

	svc := paymentservice.New(paymentRepo, walletRepo, 10, "USD", zerolog.Nop())

	applied, err := svc.ProcessCompletion(context.Background(), payment.ID)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Empty(t, walletRepo.ledger)
	assert.Len(t, walletRepo.wallets, 1, "no wallet should be created")
}
