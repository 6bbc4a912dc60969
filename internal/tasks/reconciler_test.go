package tasks_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Beep206/CyberVPN-sub003/internal/domain"
	"github.com/Beep206/CyberVPN-sub003/internal/repositories/walletrepo"
	"github.com/Beep206/CyberVPN-sub003/internal/tasks"
	"github.com/Beep206/CyberVPN-sub003/pkg/config"
)

type fakeTx struct {
	pgx.Tx
}

func (fakeTx) Commit(ctx context.Context) error   { return nil }
func (fakeTx) Rollback(ctx context.Context) error { return nil }

type fakeWalletRepo struct {
	wallets map[string]*domain.Wallet
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
	return &domain.WalletTransaction{ID: uuid.New().String()}, nil
}

func (f *fakeWalletRepo) Debit(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet, entry walletrepo.LedgerEntry) (*domain.WalletTransaction, error) {
	wallet.Balance = wallet.Balance.Sub(entry.Amount)
	return &domain.WalletTransaction{ID: uuid.New().String()}, nil
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
	return nil, nil
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

type fakeWebhookRepo struct {
	logs map[string]*domain.WebhookLog
}

func newFakeWebhookRepo() *fakeWebhookRepo {
	return &fakeWebhookRepo{logs: make(map[string]*domain.WebhookLog)}
}

func (f *fakeWebhookRepo) Insert(ctx context.Context, log *domain.WebhookLog) error {
	clone := *log
	f.logs[log.ID] = &clone
	return nil
}

func (f *fakeWebhookRepo) Get(ctx context.Context, id string) (*domain.WebhookLog, error) {
	l, ok := f.logs[id]
	if !ok {
		return nil, domain.ErrWebhookNotFound
	}
	clone := *l
	return &clone, nil
}

func (f *fakeWebhookRepo) ListRetryable(ctx context.Context, since time.Time, limit int) ([]domain.WebhookLog, error) {
	var out []domain.WebhookLog
	for _, l := range f.logs {
		if !l.Processed && l.SignatureValid && l.CreatedAt.After(since) {
			out = append(out, *l)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeWebhookRepo) IncrementRetry(ctx context.Context, id string, lastError string) error {
	l, ok := f.logs[id]
	if !ok {
		return domain.ErrWebhookNotFound
	}
	l.RetryCount++
	l.LastError = lastError
	return nil
}

func (f *fakeWebhookRepo) MarkProcessed(ctx context.Context, id string, lastError string) error {
	l, ok := f.logs[id]
	if !ok {
		return domain.ErrWebhookNotFound
	}
	l.Processed = true
	l.LastError = lastError
	now := time.Now().UTC()
	l.ProcessedAt = &now
	return nil
}

type fakePaymentService struct {
	err     error
	applied map[string]int
}

func newFakePaymentService(err error) *fakePaymentService {
	return &fakePaymentService{err: err, applied: make(map[string]int)}
}

func (f *fakePaymentService) ProcessCompletion(ctx context.Context, paymentID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.applied[paymentID]++
	return true, nil
}

func (f *fakePaymentService) Get(ctx context.Context, paymentID string) (*domain.Payment, error) {
	return nil, domain.ErrPaymentNotFound
}

func reconcileConfig() config.ReconcileConfig {
	return config.ReconcileConfig{
		UnfreezeAfter:      30 * time.Minute,
		WebhookRetryWindow: 24 * time.Hour,
		WebhookRetryBatch:  50,
		WebhookMaxAttempts: 3,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedExpiredHold(paymentRepo *fakePaymentRepo, userID string, held decimal.Decimal) *domain.Payment {
	payment := &domain.Payment{
		ID:               uuid.New().String(),
		UserID:           userID,
		Gateway:          domain.GatewayCryptoBot,
		Status:           domain.PaymentStatusPending,
		Amount:           held,
		Currency:         "USD",
		WalletAmountUsed: held,
		CreatedAt:        time.Now().UTC().Add(-time.Hour),
	}
	paymentRepo.payments[payment.ID] = payment
	return payment
}

func TestReconciler_UnfreezeExpiredReleasesHold(t *testing.T) {
	walletRepo := newFakeWalletRepo()
	walletRepo.seed("user-1", dec("100"), dec("30"))
	paymentRepo := newFakePaymentRepo()
	payment := seedExpiredHold(paymentRepo, "user-1", dec("30"))

	r := tasks.NewReconciler(walletRepo, paymentRepo, newFakeWebhookRepo(), newFakePaymentService(nil), reconcileConfig(), zerolog.Nop())

	require.NoError(t, r.UnfreezeExpired(context.Background()))

	wallet := walletRepo.wallets["user-1"]
	assert.True(t, wallet.Frozen.IsZero())
	assert.True(t, wallet.Balance.Equal(dec("100")), "release must not debit")
	assert.True(t, paymentRepo.payments[payment.ID].WalletAmountUsed.IsZero())
}

func TestReconciler_UnfreezeExpiredIsIdempotent(t *testing.T) {
	walletRepo := newFakeWalletRepo()
	walletRepo.seed("user-1", dec("100"), dec("30"))
	paymentRepo := newFakePaymentRepo()
	seedExpiredHold(paymentRepo, "user-1", dec("30"))

	r := tasks.NewReconciler(walletRepo, paymentRepo, newFakeWebhookRepo(), newFakePaymentService(nil), reconcileConfig(), zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, r.UnfreezeExpired(ctx))
	require.NoError(t, r.UnfreezeExpired(ctx))

	wallet := walletRepo.wallets["user-1"]
	assert.True(t, wallet.Frozen.IsZero())
	assert.True(t, wallet.Balance.Equal(dec("100")))
}

func TestReconciler_UnfreezeExpiredSkipsFreshHolds(t *testing.T) {
	walletRepo := newFakeWalletRepo()
	walletRepo.seed("user-1", dec("100"), dec("30"))
	paymentRepo := newFakePaymentRepo()
	payment := seedExpiredHold(paymentRepo, "user-1", dec("30"))
	payment.CreatedAt = time.Now().UTC() // still inside the hold timeout

	r := tasks.NewReconciler(walletRepo, paymentRepo, newFakeWebhookRepo(), newFakePaymentService(nil), reconcileConfig(), zerolog.Nop())

	require.NoError(t, r.UnfreezeExpired(context.Background()))

	assert.True(t, walletRepo.wallets["user-1"].Frozen.Equal(dec("30")))
}

func TestReconciler_UnfreezeExpiredIsolatesFailures(t *testing.T) {
	walletRepo := newFakeWalletRepo()
	walletRepo.seed("user-1", dec("100"), dec("30"))
	paymentRepo := newFakePaymentRepo()
	seedExpiredHold(paymentRepo, "user-1", dec("30"))
	seedExpiredHold(paymentRepo, "ghost", dec("10")) // no wallet, will fail

	r := tasks.NewReconciler(walletRepo, paymentRepo, newFakeWebhookRepo(), newFakePaymentService(nil), reconcileConfig(), zerolog.Nop())

	err := r.UnfreezeExpired(context.Background())

	require.Error(t, err, "one failed item must surface")
	assert.True(t, walletRepo.wallets["user-1"].Frozen.IsZero(), "healthy item still processed")
}

func seedWebhook(webhookRepo *fakeWebhookRepo, paymentID string, retryCount int) *domain.WebhookLog {
	payload, _ := json.Marshal(domain.WebhookPayload{PaymentID: paymentID, Event: "payment.completed"})
	log := &domain.WebhookLog{
		ID:             uuid.New().String(),
		Gateway:        domain.GatewayCryptoBot,
		Payload:        payload,
		SignatureValid: true,
		RetryCount:     retryCount,
		CreatedAt:      time.Now().UTC().Add(-time.Minute),
	}
	webhookRepo.logs[log.ID] = log
	return log
}

func TestReconciler_RetryFailedWebhooksMarksProcessedOnSuccess(t *testing.T) {
	webhookRepo := newFakeWebhookRepo()
	log := seedWebhook(webhookRepo, "payment-1", 0)
	paymentSvc := newFakePaymentService(nil)

	r := tasks.NewReconciler(newFakeWalletRepo(), newFakePaymentRepo(), webhookRepo, paymentSvc, reconcileConfig(), zerolog.Nop())

	require.NoError(t, r.RetryFailedWebhooks(context.Background()))

	stored := webhookRepo.logs[log.ID]
	assert.True(t, stored.Processed)
	assert.Empty(t, stored.LastError)
	assert.Equal(t, 1, paymentSvc.applied["payment-1"])
}

func TestReconciler_RetryFailedWebhooksIncrementsCounter(t *testing.T) {
	webhookRepo := newFakeWebhookRepo()
	log := seedWebhook(webhookRepo, "payment-1", 0)
	paymentSvc := newFakePaymentService(errors.New("gateway still down"))

	r := tasks.NewReconciler(newFakeWalletRepo(), newFakePaymentRepo(), webhookRepo, paymentSvc, reconcileConfig(), zerolog.Nop())

	require.NoError(t, r.RetryFailedWebhooks(context.Background()))

	stored := webhookRepo.logs[log.ID]
	assert.False(t, stored.Processed)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Equal(t, "gateway still down", stored.LastError)
}

func TestReconciler_RetryFailedWebhooksFinalizesAfterMaxAttempts(t *testing.T) {
	webhookRepo := newFakeWebhookRepo()
	log := seedWebhook(webhookRepo, "payment-1", 2) // next attempt is the third
	paymentSvc := newFakePaymentService(errors.New("permanent failure"))

	r := tasks.NewReconciler(newFakeWalletRepo(), newFakePaymentRepo(), webhookRepo, paymentSvc, reconcileConfig(), zerolog.Nop())

	require.NoError(t, r.RetryFailedWebhooks(context.Background()))

	stored := webhookRepo.logs[log.ID]
	assert.True(t, stored.Processed, "exhausted entries must stop coming back")
	assert.Equal(t, "permanent failure", stored.LastError)
}

func TestReconciler_RetryFailedWebhooksFinalizesUnusablePayload(t *testing.T) {
	webhookRepo := newFakeWebhookRepo()
	log := &domain.WebhookLog{
		ID:             uuid.New().String(),
		Gateway:        domain.GatewayYooKassa,
		Payload:        json.RawMessage(`{"event":"ping"}`),
		SignatureValid: true,
		CreatedAt:      time.Now().UTC().Add(-time.Minute),
	}
	webhookRepo.logs[log.ID] = log

	r := tasks.NewReconciler(newFakeWalletRepo(), newFakePaymentRepo(), webhookRepo, newFakePaymentService(nil), reconcileConfig(), zerolog.Nop())

	require.NoError(t, r.RetryFailedWebhooks(context.Background()))

	stored := webhookRepo.logs[log.ID]
	assert.True(t, stored.Processed)
	assert.Contains(t, stored.LastError, "no payment_id")
}
