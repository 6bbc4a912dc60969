package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Beep206/CyberVPN-sub003/internal/application/walletservice"
	"github.com/Beep206/CyberVPN-sub003/internal/domain"
	"github.com/Beep206/CyberVPN-sub003/pkg/money"
)

type WalletHandler struct {
	walletSvc walletservice.IWalletService
	logger    zerolog.Logger
}

func NewWalletHandler(walletSvc walletservice.IWalletService, logger zerolog.Logger) *WalletHandler {
	return &WalletHandler{
		walletSvc: walletSvc,
		logger:    logger,
	}
}

// GetBalance returns the wallet of the authenticated user, creating it on
// first access.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID := c.GetString("user_id")

	wallet, err := h.walletSvc.GetBalance(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to get wallet balance")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal Server Error",
			"message": "Failed to retrieve wallet",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"balance":   wallet.Balance,
		"frozen":    wallet.Frozen,
		"available": wallet.Available(),
		"currency":  wallet.Currency,
	})
}

// GetTransactions returns the authenticated user's ledger, newest first.
func (h *WalletHandler) GetTransactions(c *gin.Context) {
	userID := c.GetString("user_id")

	limit := 50
	offset := 0

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

	transactions, err := h.walletSvc.GetTransactions(c.Request.Context(), userID, offset, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to list wallet transactions")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal Server Error",
			"message": "Failed to retrieve transactions",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": transactions,
		"total":        len(transactions),
		"limit":        limit,
		"offset":       offset,
	})
}

type adminCreditRequest struct {
	Amount      string `json:"amount" binding:"required"`
	Reason      string `json:"reason"`
	Description string `json:"description"`
}

// AdminCredit tops up an arbitrary user's wallet. Admin only.
func (h *WalletHandler) AdminCredit(c *gin.Context) {
	targetUserID := c.Param("user_id")
	if targetUserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Bad Request",
			"message": "User ID is required",
		})
		return
	}

	var req adminCreditRequest
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

	reason := domain.ReasonAdminTopup
	if req.Reason != "" {
		reason = domain.TransactionReason(req.Reason)
	}

	tx, err := h.walletSvc.Credit(c.Request.Context(), targetUserID, amount, reason, nil, req.Description)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrWalletNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "Not Found",
				"message": "Wallet not found for user",
			})
		case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrInvalidReason):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Bad Request",
				"message": err.Error(),
			})
		default:
			h.logger.Error().Err(err).Str("user_id", targetUserID).Msg("Failed to credit wallet")
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Internal Server Error",
				"message": "Failed to credit wallet",
			})
		}
		return
	}

	c.JSON(http.StatusOK, tx)
}
