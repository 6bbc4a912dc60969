package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type WithdrawalStatus string

const (
	WithdrawalStatusPending   WithdrawalStatus = "pending"
	WithdrawalStatusCompleted WithdrawalStatus = "completed"
	WithdrawalStatusFailed    WithdrawalStatus = "failed"
	WithdrawalStatusCancelled WithdrawalStatus = "cancelled"
)

type WithdrawalMethod string

const (
	WithdrawalMethodCrypto WithdrawalMethod = "crypto"
	WithdrawalMethodCard   WithdrawalMethod = "card"
	WithdrawalMethodManual WithdrawalMethod = "manual"
)

func (m WithdrawalMethod) Valid() bool {
	switch m {
	case WithdrawalMethodCrypto, WithdrawalMethodCard, WithdrawalMethodManual:
		return true
	}
	return false
}

// WithdrawalRequest is a cash-out of wallet funds. The requested amount stays
// frozen on the wallet for the whole pending phase: approval debits and
// unfreezes it, rejection only unfreezes.
type WithdrawalRequest struct {
	ID          string           `json:"id" db:"id"`
	UserID      string           `json:"user_id" db:"user_id" binding:"required"`
	WalletID    string           `json:"wallet_id" db:"wallet_id"`
	Amount      decimal.Decimal  `json:"amount" db:"amount" binding:"required"`
	Fee         decimal.Decimal  `json:"fee" db:"fee"`
	Currency    string           `json:"currency" db:"currency"`
	Method      WithdrawalMethod `json:"method" db:"method" binding:"required"`
	Destination string           `json:"destination,omitempty" db:"destination"`
	Status      WithdrawalStatus `json:"status" db:"status"`
	ExternalID  string           `json:"external_id,omitempty" db:"external_id"`
	AdminNote   string           `json:"admin_note,omitempty" db:"admin_note"`
	ProcessedBy string           `json:"processed_by,omitempty" db:"processed_by"`
	ProcessedAt *time.Time       `json:"processed_at,omitempty" db:"processed_at"`
	WalletTxID  string           `json:"wallet_tx_id,omitempty" db:"wallet_tx_id"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at" db:"updated_at"`
}
