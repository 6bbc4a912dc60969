package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrWalletNotFound          = errors.New("wallet not found")
	ErrInsufficientBalance     = errors.New("insufficient wallet balance")
	ErrInvalidAmount           = errors.New("amount must be positive")
	ErrInvalidReason           = errors.New("unknown transaction reason")
	ErrPaymentNotFound         = errors.New("payment not found")
	ErrPaymentAlreadyCompleted = errors.New("payment already completed")
	ErrWithdrawalNotFound      = errors.New("withdrawal request not found")
	ErrWithdrawalNotPending    = errors.New("withdrawal request is not pending")
	ErrWithdrawalsDisabled     = errors.New("withdrawals are disabled")
	ErrBelowMinWithdrawal      = errors.New("amount is below the withdrawal minimum")
	ErrWebhookNotFound         = errors.New("webhook log entry not found")
)

// InsufficientBalanceError carries the shortfall details for callers that
// want to report what was available. Unwraps to ErrInsufficientBalance.
type InsufficientBalanceError struct {
	UserID    string
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient wallet balance for user %s: available %s, requested %s",
		e.UserID, e.Available.String(), e.Requested.String())
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}
