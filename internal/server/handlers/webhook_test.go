package handlers_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Beep206/CyberVPN-sub003/internal/domain"
	"github.com/Beep206/CyberVPN-sub003/internal/server/handlers"
	"github.com/Beep206/CyberVPN-sub003/pkg/config"
)

type memoryWebhookRepo struct {
	inserted []*domain.WebhookLog
}

func (m *memoryWebhookRepo) Insert(ctx context.Context, log *domain.WebhookLog) error {
	m.inserted = append(m.inserted, log)
	return nil
}

func (m *memoryWebhookRepo) Get(ctx context.Context, id string) (*domain.WebhookLog, error) {
	return nil, domain.ErrWebhookNotFound
}

func (m *memoryWebhookRepo) ListRetryable(ctx context.Context, since time.Time, limit int) ([]domain.WebhookLog, error) {
	return nil, nil
}

func (m *memoryWebhookRepo) IncrementRetry(ctx context.Context, id string, lastError string) error {
	return nil
}

func (m *memoryWebhookRepo) MarkProcessed(ctx context.Context, id string, lastError string) error {
	return nil
}

type fakeEnqueuer struct {
	paymentIDs []string
	err        error
}

func (f *fakeEnqueuer) EnqueuePaymentCompletion(ctx context.Context, paymentID string) error {
	if f.err != nil {
		return f.err
	}
	f.paymentIDs = append(f.paymentIDs, paymentID)
	return nil
}

const testSecret = "webhook-secret"

func newWebhookRouter(repo *memoryWebhookRepo, enqueuer *fakeEnqueuer) *gin.Engine {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Gateways: map[string]config.GatewayConfig{
			"cryptobot": {WebhookSecret: testSecret},
		},
	}

	h := handlers.NewWebhookHandler(repo, enqueuer, cfg, zerolog.Nop())
	router := gin.New()
	router.POST("/webhooks/:gateway", h.HandleGatewayWebhook)
	return router
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookHandler_UnknownGateway(t *testing.T) {
	repo := &memoryWebhookRepo{}
	router := newWebhookRouter(repo, &fakeEnqueuer{})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/paypal", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, repo.inserted)
}

func TestWebhookHandler_MalformedPayload(t *testing.T) {
	repo := &memoryWebhookRepo{}
	router := newWebhookRouter(repo, &fakeEnqueuer{})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/cryptobot", bytes.NewBufferString(`not json`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, repo.inserted)
}

func TestWebhookHandler_InvalidSignatureIsRecordedNotProcessed(t *testing.T) {
	repo := &memoryWebhookRepo{}
	enqueuer := &fakeEnqueuer{}
	router := newWebhookRouter(repo, enqueuer)

	body := []byte(`{"payment_id":"pay-1","external_id":"ext-1","event":"payment.completed"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/cryptobot", bytes.NewBuffer(body))
	req.Header.Set("X-Webhook-Signature", "deadbeef")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Len(t, repo.inserted, 1)
	assert.False(t, repo.inserted[0].SignatureValid)
	assert.Equal(t, "ext-1", repo.inserted[0].ExternalID)
	assert.Empty(t, enqueuer.paymentIDs)
}

func TestWebhookHandler_MissingSignatureIsRecordedNotProcessed(t *testing.T) {
	repo := &memoryWebhookRepo{}
	router := newWebhookRouter(repo, &fakeEnqueuer{})

	body := []byte(`{"payment_id":"pay-1","event":"payment.completed"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/cryptobot", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Len(t, repo.inserted, 1)
	assert.False(t, repo.inserted[0].SignatureValid)
}

func TestWebhookHandler_ValidSignatureEnqueuesCompletion(t *testing.T) {
	repo := &memoryWebhookRepo{}
	enqueuer := &fakeEnqueuer{}
	router := newWebhookRouter(repo, enqueuer)

	body := []byte(`{"payment_id":"pay-9","external_id":"ext-2","event":"invoice.paid"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/cryptobot", bytes.NewBuffer(body))
	req.Header.Set("X-Webhook-Signature", sign(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, repo.inserted, 1)
	assert.True(t, repo.inserted[0].SignatureValid)
	assert.Equal(t, []string{"pay-9"}, enqueuer.paymentIDs)
}

func TestWebhookHandler_ValidSignatureWithoutPaymentIDIsNotEnqueued(t *testing.T) {
	repo := &memoryWebhookRepo{}
	enqueuer := &fakeEnqueuer{}
	router := newWebhookRouter(repo, enqueuer)

	// No payment_id, so the accepted entry is left for the retry sweep.
	body := []byte(`{"external_id":"ext-2","event":"invoice.paid"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/cryptobot", bytes.NewBuffer(body))
	req.Header.Set("X-Webhook-Signature", sign(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, repo.inserted, 1)
	assert.True(t, repo.inserted[0].SignatureValid)
	assert.Empty(t, enqueuer.paymentIDs)
}

func TestWebhookHandler_EnqueueFailureStillAcknowledges(t *testing.T) {
	repo := &memoryWebhookRepo{}
	enqueuer := &fakeEnqueuer{err: errors.New("redis down")}
	router := newWebhookRouter(repo, enqueuer)

	body := []byte(`{"payment_id":"pay-9","event":"invoice.paid"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/cryptobot", bytes.NewBuffer(body))
	req.Header.Set("X-Webhook-Signature", sign(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, "the gateway must not keep retrying, the sweep picks the entry up")
	require.Len(t, repo.inserted, 1)
}
