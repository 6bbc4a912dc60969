package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeCredit TransactionType = "credit"
	TransactionTypeDebit  TransactionType = "debit"
)

type TransactionReason string

const (
	ReasonReferralCommission  TransactionReason = "referral_commission"
	ReasonPartnerEarning      TransactionReason = "partner_earning"
	ReasonPartnerMarkup       TransactionReason = "partner_markup"
	ReasonAdminTopup          TransactionReason = "admin_topup"
	ReasonSubscriptionPayment TransactionReason = "subscription_payment"
	ReasonWithdrawal          TransactionReason = "withdrawal"
	ReasonWithdrawalFee       TransactionReason = "withdrawal_fee"
	ReasonRefund              TransactionReason = "refund"
	ReasonAdjustment          TransactionReason = "adjustment"
)

func (r TransactionReason) Valid() bool {
	switch r {
	case ReasonReferralCommission, ReasonPartnerEarning, ReasonPartnerMarkup,
		ReasonAdminTopup, ReasonSubscriptionPayment, ReasonWithdrawal,
		ReasonWithdrawalFee, ReasonRefund, ReasonAdjustment:
		return true
	}
	return false
}

type ReferenceType string

const (
	ReferenceTypePayment    ReferenceType = "payment"
	ReferenceTypeWithdrawal ReferenceType = "withdrawal"
)

// Wallet holds a user's balance together with the frozen sub-balance that
// backs pending withdrawals and wallet-funded payments.
// Invariants: Balance >= 0 and 0 <= Frozen <= Balance.
type Wallet struct {
	ID        string          `json:"id" db:"id"`
	UserID    string          `json:"user_id" db:"user_id" binding:"required"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	Frozen    decimal.Decimal `json:"frozen" db:"frozen"`
	Currency  string          `json:"currency" db:"currency"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// Available returns the spendable part of the balance.
func (w Wallet) Available() decimal.Decimal {
	return w.Balance.Sub(w.Frozen)
}

// WalletTransaction is an append-only ledger entry. Rows are never updated or
// deleted; replaying them from zero reproduces the wallet balance.
type WalletTransaction struct {
	ID            string            `json:"id" db:"id"`
	WalletID      string            `json:"wallet_id" db:"wallet_id"`
	UserID        string            `json:"user_id" db:"user_id"`
	Type          TransactionType   `json:"type" db:"type"`
	Amount        decimal.Decimal   `json:"amount" db:"amount"`
	Currency      string            `json:"currency" db:"currency"`
	BalanceAfter  decimal.Decimal   `json:"balance_after" db:"balance_after"`
	Reason        TransactionReason `json:"reason" db:"reason"`
	ReferenceType ReferenceType     `json:"reference_type,omitempty" db:"reference_type"`
	ReferenceID   string            `json:"reference_id,omitempty" db:"reference_id"`
	Description   string            `json:"description,omitempty" db:"description"`
	CreatedAt     time.Time         `json:"created_at" db:"created_at"`
}

// Signed returns the balance delta this entry represents.
func (t WalletTransaction) Signed() decimal.Decimal {
	if t.Type == TransactionTypeDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}
