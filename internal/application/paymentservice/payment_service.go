package paymentservice

import (
	"context"

	"github.com/Beep206/CyberVPN-sub003/internal/domain"
)

type IPaymentService interface {
	// ProcessCompletion applies the side effects of a completed payment:
	// the wallet hold is released and debited, the referrer (if any) earns
	// commission, and the payment is marked completed. Idempotent: an
	// already-completed payment returns applied=false with no side effects.
	ProcessCompletion(ctx context.Context, paymentID string) (applied bool, err error)

	Get(ctx context.Context, paymentID string) (*domain.Payment, error)
}
