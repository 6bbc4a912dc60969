package money

import (
	"fmt"

	"github.com/Beep206/CyberVPN-sub003/internal/domain"
	"github.com/shopspring/decimal"
)

// Parse converts a decimal string ("10.50") into an amount, rejecting
// malformed and non-positive values. Wallet amounts are always positive;
// direction is carried by the transaction type.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if !d.IsPositive() {
		return decimal.Zero, domain.ErrInvalidAmount
	}
	return d.Round(2), nil
}

// Percent returns pct% of amount, rounded to cents half-up.
func Percent(amount decimal.Decimal, pct float64) decimal.Decimal {
	return amount.Mul(decimal.NewFromFloat(pct)).Div(decimal.NewFromInt(100)).Round(2)
}

// Format renders an amount with its currency code, e.g. "10.50 USD".
func Format(amount decimal.Decimal, currency string) string {
	return fmt.Sprintf("%s %s", amount.StringFixed(2), currency)
}
