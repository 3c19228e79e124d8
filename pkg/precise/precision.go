package precise

import (
	"github.com/shopspring/decimal"
)

type RoundingMode int

const (
	Truncate RoundingMode = iota
	Round
)

// ToPrecision quantizes value to a multiple of tick. An unknown or
// non-positive tick leaves the value untouched.
func ToPrecision(value decimal.Decimal, tick decimal.NullDecimal, mode RoundingMode) decimal.Decimal {
	if !tick.Valid || !tick.Decimal.IsPositive() {
		return value
	}
	steps := value.Div(tick.Decimal)
	if mode == Round {
		steps = steps.Round(0)
	} else {
		steps = steps.Truncate(0)
	}
	return steps.Mul(tick.Decimal)
}

// AmountToPrecision truncates toward zero so the result never exceeds the
// requested amount in magnitude.
func AmountToPrecision(amount decimal.Decimal, tick decimal.NullDecimal) string {
	return ToPrecision(amount, tick, Truncate).String()
}

func PriceToPrecision(price decimal.Decimal, tick decimal.NullDecimal) string {
	return ToPrecision(price, tick, Round).String()
}

func CostToPrecision(cost decimal.Decimal, tick decimal.NullDecimal) string {
	return ToPrecision(cost, tick, Truncate).String()
}
