package precise

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestArithmeticPropagatesUnknown(t *testing.T) {
	a := MustParse("0.1")
	b := MustParse("0.2")

	assert.Equal(t, "0.3", String(Add(a, b)))
	assert.Equal(t, "-0.1", String(Sub(a, b)))
	assert.Equal(t, "0.02", String(Mul(a, b)))
	assert.Equal(t, "0.5", String(Div(a, b)))

	unknown := Parse("")
	assert.False(t, Add(a, unknown).Valid)
	assert.False(t, Mul(unknown, b).Valid)
	assert.False(t, Div(a, Zero).Valid)
	assert.False(t, Parse("abc").Valid)
	assert.Equal(t, "0.2", String(Max(a, b)))
	assert.Equal(t, "0.1", String(Max(a, unknown)))
	assert.True(t, Ge(b, a))
	assert.False(t, Ge(unknown, a))
	assert.Equal(t, "0.6", String(Sum(a, b, MustParse("0.3"))))
	assert.Equal(t, "0.0001", String(ParsePrecision("4")))
}

func TestAmountToPrecisionTruncates(t *testing.T) {
	tests := []struct {
		amount string
		tick   string
		want   string
	}{
		{"1.23456789", "0.001", "1.234"},
		{"0.0009", "0.001", "0"},
		{"1", "0.00000001", "1"},
		{"25", "10", "20"},
		{"-1.999", "0.01", "-1.99"},
		{"7.5", "0.5", "7.5"},
	}

	for _, tt := range tests {
		t.Run(tt.amount+"/"+tt.tick, func(t *testing.T) {
			amount := decimal.RequireFromString(tt.amount)
			tick := MustParse(tt.tick)
			got := AmountToPrecision(amount, tick)
			assert.Equal(t, tt.want, got)

			result := decimal.RequireFromString(got)
			assert.True(t, result.Abs().LessThanOrEqual(amount.Abs()))
			assert.True(t, result.Mod(tick.Decimal).IsZero())
		})
	}
}

func TestPriceToPrecisionRounds(t *testing.T) {
	assert.Equal(t, "20000", PriceToPrecision(decimal.RequireFromString("20000"), MustParse("0.01")))
	assert.Equal(t, "100.13", PriceToPrecision(decimal.RequireFromString("100.125"), MustParse("0.01")))
	assert.Equal(t, "1.5", PriceToPrecision(decimal.RequireFromString("1.5"), Parse("")))
	assert.Equal(t, "99.9", CostToPrecision(decimal.RequireFromString("99.99"), MustParse("0.1")))
}
