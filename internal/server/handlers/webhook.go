package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Beep206/CyberVPN-sub003/internal/domain"
	"github.com/Beep206/CyberVPN-sub003/internal/repositories/webhookrepo"
	"github.com/Beep206/CyberVPN-sub003/pkg/config"
)

type WebhookHandler struct {
	webhookRepo webhookrepo.IWebhookRepository
	enqueuer    PaymentEnqueuer
	config      *config.Config
	logger      zerolog.Logger
}

func NewWebhookHandler(webhookRepo webhookrepo.IWebhookRepository, enqueuer PaymentEnqueuer, config *config.Config, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		webhookRepo: webhookRepo,
		enqueuer:    enqueuer,
		config:      config,
		logger:      logger,
	}
}

// HandleGatewayWebhook receives a payment gateway callback. Every callback is
// persisted before processing; processing itself happens on the task queue so
// the gateway gets a fast acknowledgement and failures are retried by the
// reconciliation sweep.
func (h *WebhookHandler) HandleGatewayWebhook(c *gin.Context) {
	gateway := domain.PaymentGateway(c.Param("gateway"))
	if !gateway.Valid() {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Not Found",
			"message": "Unknown payment gateway",
		})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Bad Request",
			"message": "Failed to read request body",
		})
		return
	}

	var payload domain.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Bad Request",
			"message": "Invalid JSON payload",
		})
		return
	}

	signatureValid := h.verifySignature(string(gateway), body, c.GetHeader("X-Webhook-Signature"))

	entry := &domain.WebhookLog{
		ID:             uuid.New().String(),
		Gateway:        gateway,
		ExternalID:     payload.ExternalID,
		Payload:        body,
		SignatureValid: signatureValid,
		CreatedAt:      time.Now().UTC(),
	}

	if err := h.webhookRepo.Insert(c.Request.Context(), entry); err != nil {
		h.logger.Error().Err(err).Str("gateway", string(gateway)).Msg("Failed to persist webhook")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal Server Error",
			"message": "Failed to record webhook",
		})
		return
	}

	if !signatureValid {
		h.logger.Warn().
			Str("gateway", string(gateway)).
			Str("external_id", payload.ExternalID).
			Msg("Webhook signature invalid, recorded but not processed")
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "Unauthorized",
			"message": "Invalid webhook signature",
		})
		return
	}

	if payload.PaymentID != "" {
		if err := h.enqueuer.EnqueuePaymentCompletion(c.Request.Context(), payload.PaymentID); err != nil {
			// The retry sweep picks the entry up later; the gateway still
			// gets a success so it does not hammer us.
			h.logger.Error().Err(err).
				Str("payment_id", payload.PaymentID).
				Str("webhook_id", entry.ID).
				Msg("Failed to enqueue payment completion")
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "accepted", "webhook_id": entry.ID})
}

// verifySignature checks the hex HMAC-SHA256 of the raw body against the
// gateway's configured secret.
func (h *WebhookHandler) verifySignature(gateway string, body []byte, signature string) bool {
	gw, ok := h.config.Gateways[gateway]
	if !ok || gw.WebhookSecret == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(gw.WebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
