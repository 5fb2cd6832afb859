package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(27000), ToMinorUnits(decimal.RequireFromString("270"), "usd"))
	assert.Equal(t, int64(1235), ToMinorUnits(decimal.RequireFromString("12.345"), "EUR"))
	assert.Equal(t, int64(500), ToMinorUnits(decimal.RequireFromString("500"), "JPY"))

	assert.True(t, FromMinorUnits(17000, "USD").Equal(decimal.RequireFromString("170")))
	assert.True(t, FromMinorUnits(500, "jpy").Equal(decimal.RequireFromString("500")))
}

func TestRefundable(t *testing.T) {
	p := Payment{Amount: decimal.RequireFromString("270"), RefundAmount: decimal.RequireFromString("100")}
	assert.True(t, p.Refundable().Equal(decimal.RequireFromString("170")))

	p.RefundAmount = decimal.RequireFromString("300")
	assert.True(t, p.Refundable().IsZero())
}
