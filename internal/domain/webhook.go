package domain

import (
	"encoding/json"
	"time"
)

// WebhookLog records every inbound gateway callback. Unprocessed entries with
// a valid signature are replayed by the webhook retry sweep; RetryCount is a
// structured counter, bounded by the sweep's max-attempts limit.
type WebhookLog struct {
	ID             string          `json:"id" db:"id"`
	Gateway        PaymentGateway  `json:"gateway" db:"gateway"`
	ExternalID     string          `json:"external_id" db:"external_id"`
	Payload        json.RawMessage `json:"payload" db:"payload"`
	SignatureValid bool            `json:"signature_valid" db:"signature_valid"`
	Processed      bool            `json:"processed" db:"processed"`
	RetryCount     int             `json:"retry_count" db:"retry_count"`
	LastError      string          `json:"last_error,omitempty" db:"last_error"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt    *time.Time      `json:"processed_at,omitempty" db:"processed_at"`
}

// WebhookPayload is the minimal shape the billing core needs from a gateway
// callback: which payment it concerns and what the gateway says happened.
type WebhookPayload struct {
	PaymentID  string `json:"payment_id"`
	ExternalID string `json:"external_id"`
	Event      string `json:"event"`
}
