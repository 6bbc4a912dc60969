package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Beep206/CyberVPN-sub003/internal/application/paymentservice"
	"github.com/Beep206/CyberVPN-sub003/internal/domain"
)

// PaymentEnqueuer hands payment completion work to the task queue.
type PaymentEnqueuer interface {
	EnqueuePaymentCompletion(ctx context.Context, paymentID string) error
}

// PaymentHandler serves the service-to-service API the shop backend calls
// after it finishes the checkout flow.
type PaymentHandler struct {
	paymentSvc paymentservice.IPaymentService
	enqueuer   PaymentEnqueuer
	logger     zerolog.Logger
}

func NewPaymentHandler(paymentSvc paymentservice.IPaymentService, enqueuer PaymentEnqueuer, logger zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{
		paymentSvc: paymentSvc,
		enqueuer:   enqueuer,
		logger:     logger,
	}
}

// Get returns a payment by ID.
func (h *PaymentHandler) Get(c *gin.Context) {
	id := c.Param("id")

	payment, err := h.paymentSvc.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "Not Found",
				"message": "Payment not found",
			})
			return
		}

		h.logger.Error().Err(err).Str("payment_id", id).Msg("Failed to get payment")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal Server Error",
			"message": "Failed to retrieve payment",
		})
		return
	}

	c.JSON(http.StatusOK, payment)
}

// Complete queues completion processing for a payment. The queue gives the
// operation its retry policy; completion itself is idempotent so a duplicate
// call is harmless.
func (h *PaymentHandler) Complete(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Bad Request",
			"message": "Payment ID is required",
		})
		return
	}

	if err := h.enqueuer.EnqueuePaymentCompletion(c.Request.Context(), id); err != nil {
		h.logger.Error().Err(err).Str("payment_id", id).Msg("Failed to enqueue payment completion")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal Server Error",
			"message": "Failed to queue payment completion",
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "payment_id": id})
}
