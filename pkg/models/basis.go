package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BasisPair names a spot market and a derivative on the same underlying,
// possibly on different venues.
type BasisPair struct {
	SpotExchange   string `json:"spotExchange" mapstructure:"spot_exchange"`
	SpotSymbol     string `json:"spotSymbol" mapstructure:"spot_symbol"`
	FutureExchange string `json:"futureExchange" mapstructure:"future_exchange"`
	FutureSymbol   string `json:"futureSymbol" mapstructure:"future_symbol"`
}

type BasisSnapshot struct {
	BasisPair
	SpotPrice    decimal.Decimal `json:"spotPrice"`
	FuturePrice  decimal.Decimal `json:"futurePrice"`
	Basis        decimal.Decimal `json:"basis"`
	BasisPercent decimal.Decimal `json:"basisPercent"`
	Timestamp    time.Time       `json:"timestamp"`
}

// NewBasisSnapshot returns false when either last price is unknown or the
// spot price is zero.
func NewBasisSnapshot(pair BasisPair, spot, future Ticker, now time.Time) (BasisSnapshot, bool) {
	if !spot.Last.Valid || !future.Last.Valid || spot.Last.Decimal.IsZero() {
		return BasisSnapshot{}, false
	}
	basis := future.Last.Decimal.Sub(spot.Last.Decimal)
	return BasisSnapshot{
		BasisPair:    pair,
		SpotPrice:    spot.Last.Decimal,
		FuturePrice:  future.Last.Decimal,
		Basis:        basis,
		BasisPercent: basis.Div(spot.Last.Decimal).Mul(decimal.NewFromInt(100)),
		Timestamp:    now,
	}, true
}
