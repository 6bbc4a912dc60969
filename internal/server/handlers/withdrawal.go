package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Beep206/CyberVPN-sub003/internal/application/withdrawalservice"
	"github.com/Beep206/CyberVPN-sub003/internal/domain"
	"github.com/Beep206/CyberVPN-sub003/pkg/config"
	"github.com/Beep206/CyberVPN-sub003/pkg/money"
)

type WithdrawalHandler struct {
	withdrawalSvc withdrawalservice.IWithdrawalService
	config        *config.Config
	logger        zerolog.Logger
}

func NewWithdrawalHandler(withdrawalSvc withdrawalservice.IWithdrawalService, config *config.Config, logger zerolog.Logger) *WithdrawalHandler {
	return &WithdrawalHandler{
		withdrawalSvc: withdrawalSvc,
		config:        config,
		logger:        logger,
	}
}

type createWithdrawalRequest struct {
	Amount      string `json:"amount" binding:"required"`
	Method      string `json:"method" binding:"required"`
	Destination string `json:"destination" binding:"required"`
}

// Create opens a withdrawal request for the authenticated user and freezes
// the requested amount.
func (h *WithdrawalHandler) Create(c *gin.Context) {
	userID := c.GetString("user_id")

	var req createWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Bad Request",
			"message": err.Error(),
		})
		return
	}

	amount, err := money.Parse(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Bad Request",
			"message": err.Error(),
		})
		return
	}

	withdrawal, err := h.withdrawalSvc.Request(c.Request.Context(), userID, amount, domain.WithdrawalMethod(req.Method), req.Destination)
	if err != nil {
		h.respondError(c, err, userID)
		return
	}

	c.JSON(http.StatusCreated, withdrawal)
}

// Get returns a withdrawal request. Users can only see their own; admins can
// see any.
func (h *WithdrawalHandler) Get(c *gin.Context) {
	id := c.Param("id")

	withdrawal, err := h.withdrawalSvc.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "")
		return
	}

	if withdrawal.UserID != c.GetString("user_id") && !c.GetBool("is_admin") {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Not Found",
			"message": "Withdrawal request not found",
		})
		return
	}

	c.JSON(http.StatusOK, withdrawal)
}

// ListByUser returns the authenticated user's withdrawal history.
func (h *WithdrawalHandler) ListByUser(c *gin.Context) {
	userID := c.GetString("user_id")
	limit, offset := pagination(c)

	withdrawals, err := h.withdrawalSvc.ListByUser(c.Request.Context(), userID, limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to list withdrawals")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal Server Error",
			"message": "Failed to retrieve withdrawals",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"withdrawals": withdrawals,
		"total":       len(withdrawals),
		"limit":       limit,
		"offset":      offset,
	})
}

// ListPending returns pending withdrawal requests for the admin review queue.
func (h *WithdrawalHandler) ListPending(c *gin.Context) {
	limit, offset := pagination(c)

	withdrawals, err := h.withdrawalSvc.ListPending(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list pending withdrawals")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal Server Error",
			"message": "Failed to retrieve withdrawals",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"withdrawals": withdrawals,
		"total":       len(withdrawals),
		"limit":       limit,
		"offset":      offset,
	})
}

type approveWithdrawalRequest struct {
	ExternalID string `json:"external_id"`
}

// Approve finalizes a pending withdrawal: the frozen amount is debited along
// with the fee and the request is marked completed.
func (h *WithdrawalHandler) Approve(c *gin.Context) {
	id := c.Param("id")
	adminID := c.GetString("user_id")

	// Body is optional; external_id links the payout on the gateway side.
	var req approveWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req.ExternalID = ""
	}

	withdrawal, err := h.withdrawalSvc.Approve(c.Request.Context(), id, adminID, req.ExternalID)
	if err != nil {
		h.respondError(c, err, "")
		return
	}

	c.JSON(http.StatusOK, withdrawal)
}

type rejectWithdrawalRequest struct {
	Note string `json:"note"`
}

// Reject cancels a pending withdrawal and releases the frozen amount.
func (h *WithdrawalHandler) Reject(c *gin.Context) {
	id := c.Param("id")
	adminID := c.GetString("user_id")

	var req rejectWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req.Note = ""
	}

	withdrawal, err := h.withdrawalSvc.Reject(c.Request.Context(), id, adminID, req.Note)
	if err != nil {
		h.respondError(c, err, "")
		return
	}

	c.JSON(http.StatusOK, withdrawal)
}

func (h *WithdrawalHandler) respondError(c *gin.Context, err error, userID string) {
	var insufficient *domain.InsufficientBalanceError

	switch {
	case errors.Is(err, domain.ErrWithdrawalNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Not Found",
			"message": "Withdrawal request not found",
		})
	case errors.Is(err, domain.ErrWithdrawalNotPending):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "Conflict",
			"message": "Withdrawal request is not pending",
		})
	case errors.Is(err, domain.ErrWithdrawalsDisabled):
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "Forbidden",
			"message": "Withdrawals are currently disabled",
		})
	case errors.As(err, &insufficient):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":     "Unprocessable Entity",
			"message":   "Insufficient available balance",
			"available": insufficient.Available,
			"requested": insufficient.Requested,
		})
	case errors.Is(err, domain.ErrBelowMinWithdrawal):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "Unprocessable Entity",
			"message": err.Error(),
			"minimum": h.config.Withdrawal.MinAmount,
		})
	case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrWalletNotFound):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Bad Request",
			"message": err.Error(),
		})
	default:
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Withdrawal operation failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal Server Error",
			"message": "Withdrawal operation failed",
		})
	}
}

func pagination(c *gin.Context) (limit, offset int) {
	limit = 50
	offset = 0

	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	return limit, offset
}
