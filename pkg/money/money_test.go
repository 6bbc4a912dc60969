package money_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Beep206/CyberVPN-sub003/internal/domain"
	"github.com/Beep206/CyberVPN-sub003/pkg/money"
)

func TestParse(t *testing.T) {
	amount, err := money.Parse("10.50")
	require.NoError(t, err)
	assert.True(t, amount.Equal(decimal.RequireFromString("10.50")))

	// Rounded to cents.
	amount, err = money.Parse("10.999")
	require.NoError(t, err)
	assert.Equal(t, "11.00", amount.StringFixed(2))

	_, err = money.Parse("0")
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = money.Parse("-3")
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = money.Parse("ten dollars")
	assert.Error(t, err)
}

func TestPercent(t *testing.T) {
	amount := decimal.RequireFromString("40")

	assert.Equal(t, "4.00", money.Percent(amount, 10).StringFixed(2))
	assert.Equal(t, "0.80", money.Percent(amount, 2).StringFixed(2))
	assert.Equal(t, "0.00", money.Percent(amount, 0).StringFixed(2))

	// Half-up rounding on fractional cents: 8.33 * 3% = 0.2499.
	assert.Equal(t, "0.25", money.Percent(decimal.RequireFromString("8.33"), 3).StringFixed(2))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "10.50 USD", money.Format(decimal.RequireFromString("10.5"), "USD"))
}
