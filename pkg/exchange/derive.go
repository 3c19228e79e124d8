package exchange

import (
	"github.com/gregtusar/xchange/pkg/models"
	"github.com/gregtusar/xchange/pkg/precise"
	"github.com/shopspring/decimal"
)

// CompleteOrder fills the quantities a venue left out from the ones it
// sent. It never overrides a reported value. Afterwards, if amount,
// filled and remaining are all known, filled + remaining == amount holds
// unless the venue itself reported inconsistent numbers.
func CompleteOrder(o *models.Order) {
	if !o.Filled.Valid && len(o.Trades) > 0 {
		amounts := make([]decimal.NullDecimal, 0, len(o.Trades))
		for _, t := range o.Trades {
			amounts = append(amounts, t.Amount)
		}
		o.Filled = precise.Sum(amounts...)
	}
	switch {
	case !o.Amount.Valid && o.Filled.Valid && o.Remaining.Valid:
		o.Amount = precise.Add(o.Filled, o.Remaining)
	case !o.Remaining.Valid && o.Amount.Valid && o.Filled.Valid:
		o.Remaining = precise.Sub(o.Amount, o.Filled)
	case !o.Filled.Valid && o.Amount.Valid && o.Remaining.Valid:
		o.Filled = precise.Sub(o.Amount, o.Remaining)
	}
	if !o.Average.Valid && o.Cost.Valid && o.Filled.Valid && !o.Filled.Decimal.IsZero() {
		o.Average = precise.Div(o.Cost, o.Filled)
	}
	if !o.Cost.Valid && o.Filled.Valid {
		if o.Average.Valid {
			o.Cost = precise.Mul(o.Filled, o.Average)
		} else if o.Filled.Decimal.IsZero() {
			o.Cost = precise.Zero
		}
	}
	if o.Trades == nil {
		o.Trades = []models.Trade{}
	}
}

// CompleteTrade derives a linear cost from price and amount.
func CompleteTrade(t *models.Trade) {
	if !t.Cost.Valid {
		t.Cost = precise.Mul(t.Price, t.Amount)
	}
}
