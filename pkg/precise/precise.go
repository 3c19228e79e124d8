// Package precise does decimal-string arithmetic over optional values.
// An unknown operand makes the result unknown; nothing passes through
// float64.
package precise

import (
	"strings"

	"github.com/shopspring/decimal"
)

var (
	Zero    = decimal.NewNullDecimal(decimal.Zero)
	hundred = decimal.NewFromInt(100)
)

// Parse returns unknown for empty or unparsable input.
func Parse(s string) decimal.NullDecimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func MustParse(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func Known(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NewNullDecimal(d)
}

func Add(a, b decimal.NullDecimal) decimal.NullDecimal {
	if !a.Valid || !b.Valid {
		return decimal.NullDecimal{}
	}
	return Known(a.Decimal.Add(b.Decimal))
}

func Sub(a, b decimal.NullDecimal) decimal.NullDecimal {
	if !a.Valid || !b.Valid {
		return decimal.NullDecimal{}
	}
	return Known(a.Decimal.Sub(b.Decimal))
}

func Mul(a, b decimal.NullDecimal) decimal.NullDecimal {
	if !a.Valid || !b.Valid {
		return decimal.NullDecimal{}
	}
	return Known(a.Decimal.Mul(b.Decimal))
}

// Div is unknown when the divisor is zero.
func Div(a, b decimal.NullDecimal) decimal.NullDecimal {
	if !a.Valid || !b.Valid || b.Decimal.IsZero() {
		return decimal.NullDecimal{}
	}
	return Known(a.Decimal.Div(b.Decimal))
}

func Neg(a decimal.NullDecimal) decimal.NullDecimal {
	if !a.Valid {
		return a
	}
	return Known(a.Decimal.Neg())
}

func Abs(a decimal.NullDecimal) decimal.NullDecimal {
	if !a.Valid {
		return a
	}
	return Known(a.Decimal.Abs())
}

// Max ignores an unknown side.
func Max(a, b decimal.NullDecimal) decimal.NullDecimal {
	switch {
	case !a.Valid:
		return b
	case !b.Valid:
		return a
	case a.Decimal.GreaterThanOrEqual(b.Decimal):
		return a
	}
	return b
}

func Lt(a, b decimal.NullDecimal) bool {
	return a.Valid && b.Valid && a.Decimal.LessThan(b.Decimal)
}

func Ge(a, b decimal.NullDecimal) bool {
	return a.Valid && b.Valid && a.Decimal.GreaterThanOrEqual(b.Decimal)
}

func Gt(a, b decimal.NullDecimal) bool {
	return a.Valid && b.Valid && a.Decimal.GreaterThan(b.Decimal)
}

func Eq(a, b decimal.NullDecimal) bool {
	return a.Valid && b.Valid && a.Decimal.Equal(b.Decimal)
}

func IsZero(a decimal.NullDecimal) bool {
	return a.Valid && a.Decimal.IsZero()
}

// Percent returns change / base * 100.
func Percent(change, base decimal.NullDecimal) decimal.NullDecimal {
	return Mul(Div(change, base), Known(hundred))
}

// Sum is unknown if any term is unknown. The empty sum is zero.
func Sum(values ...decimal.NullDecimal) decimal.NullDecimal {
	total := Zero
	for _, v := range values {
		total = Add(total, v)
	}
	return total
}

// String renders a known value canonically and an unknown one as "".
func String(a decimal.NullDecimal) string {
	if !a.Valid {
		return ""
	}
	return a.Decimal.String()
}

// ParsePrecision turns a digit count into a tick size: 3 becomes 0.001.
func ParsePrecision(digits string) decimal.NullDecimal {
	n := Parse(digits)
	if !n.Valid {
		return n
	}
	return Known(decimal.New(1, -int32(n.Decimal.IntPart())))
}
