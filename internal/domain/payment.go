package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentGateway string

const (
	GatewayCryptoBot PaymentGateway = "cryptobot"
	GatewayYooKassa  PaymentGateway = "yookassa"
	GatewayStars     PaymentGateway = "stars"
)

func (g PaymentGateway) Valid() bool {
	switch g {
	case GatewayCryptoBot, GatewayYooKassa, GatewayStars:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// Payment is a subscription purchase routed through an external gateway.
// WalletAmountUsed is the wallet portion frozen when the payment was created;
// it is debited on completion and released by the unfreeze-expired sweep when
// the payment never completes.
type Payment struct {
	ID               string          `json:"id" db:"id"`
	UserID           string          `json:"user_id" db:"user_id" binding:"required"`
	Gateway          PaymentGateway  `json:"gateway" db:"gateway" binding:"required"`
	Status           PaymentStatus   `json:"status" db:"status"`
	Amount           decimal.Decimal `json:"amount" db:"amount" binding:"required"`
	Currency         string          `json:"currency" db:"currency"`
	WalletAmountUsed decimal.Decimal `json:"wallet_amount_used" db:"wallet_amount_used"`
	PlanID           string          `json:"plan_id,omitempty" db:"plan_id"`
	ReferrerID       string          `json:"referrer_id,omitempty" db:"referrer_id"`
	ExternalID       string          `json:"external_id,omitempty" db:"external_id"`
	ProcessedAt      *time.Time      `json:"processed_at,omitempty" db:"processed_at"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}
