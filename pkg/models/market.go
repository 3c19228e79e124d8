package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Market identifies one tradable instrument on a venue.
type Market struct {
	ID       string     `json:"id"`
	Symbol   string     `json:"symbol"`
	Base     string     `json:"base"`
	Quote    string     `json:"quote"`
	Settle   string     `json:"settle"`
	BaseID   string     `json:"baseId"`
	QuoteID  string     `json:"quoteId"`
	SettleID string     `json:"settleId"`
	Kind     MarketKind `json:"type"`
	Spot     bool       `json:"spot"`
	Margin   bool       `json:"margin"`
	Swap     bool       `json:"swap"`
	Future   bool       `json:"future"`
	Option   bool       `json:"option"`
	Active   *bool      `json:"active"`
	Contract bool       `json:"contract"`
	Linear   *bool      `json:"linear"`
	Inverse  *bool      `json:"inverse"`

	ContractSize decimal.NullDecimal `json:"contractSize"`
	Expiry       *time.Time          `json:"expiry"`
	Taker        decimal.NullDecimal `json:"taker"`
	Maker        decimal.NullDecimal `json:"maker"`
	Precision    Precision           `json:"precision"`
	Limits       Limits              `json:"limits"`
	Info         any                 `json:"info"`
}

// Precision holds tick sizes, not digit counts.
type Precision struct {
	Amount decimal.NullDecimal `json:"amount"`
	Price  decimal.NullDecimal `json:"price"`
}

type MinMax struct {
	Min decimal.NullDecimal `json:"min"`
	Max decimal.NullDecimal `json:"max"`
}

type Limits struct {
	Amount   MinMax `json:"amount"`
	Price    MinMax `json:"price"`
	Cost     MinMax `json:"cost"`
	Leverage MinMax `json:"leverage"`
}

// IsLinear is false when linearity is unknown.
func (m Market) IsLinear() bool {
	return m.Linear != nil && *m.Linear
}

// BuildSymbol renders the unified symbol BASE/QUOTE[:SETTLE][-YYMMDD].
// Every adapter goes through here so a market id always yields the same
// symbol.
func BuildSymbol(base, quote, settle string, expiry *time.Time) string {
	symbol := base + "/" + quote
	if settle != "" {
		symbol += ":" + settle
	}
	if expiry != nil {
		symbol += "-" + expiry.UTC().Format("060102")
	}
	return symbol
}

type Network struct {
	ID       string              `json:"id"`
	Network  string              `json:"network"`
	Active   *bool               `json:"active"`
	Deposit  *bool               `json:"deposit"`
	Withdraw *bool               `json:"withdraw"`
	Fee      decimal.NullDecimal `json:"fee"`
	Limits   Limits              `json:"limits"`
}

// Currency is venue metadata for one asset.
type Currency struct {
	ID        string              `json:"id"`
	Code      string              `json:"code"`
	Name      string              `json:"name"`
	Type      string              `json:"type"`
	Active    *bool               `json:"active"`
	Deposit   *bool               `json:"deposit"`
	Withdraw  *bool               `json:"withdraw"`
	Fee       decimal.NullDecimal `json:"fee"`
	Precision decimal.NullDecimal `json:"precision"`
	Limits    Limits              `json:"limits"`
	Networks  map[string]Network  `json:"networks"`
	Info      any                 `json:"info"`
}

type Ticker struct {
	Symbol        string              `json:"symbol"`
	Timestamp     *time.Time          `json:"timestamp"`
	High          decimal.NullDecimal `json:"high"`
	Low           decimal.NullDecimal `json:"low"`
	Bid           decimal.NullDecimal `json:"bid"`
	BidVolume     decimal.NullDecimal `json:"bidVolume"`
	Ask           decimal.NullDecimal `json:"ask"`
	AskVolume     decimal.NullDecimal `json:"askVolume"`
	VWAP          decimal.NullDecimal `json:"vwap"`
	Open          decimal.NullDecimal `json:"open"`
	Close         decimal.NullDecimal `json:"close"`
	Last          decimal.NullDecimal `json:"last"`
	PreviousClose decimal.NullDecimal `json:"previousClose"`
	Change        decimal.NullDecimal `json:"change"`
	Percentage    decimal.NullDecimal `json:"percentage"`
	Average       decimal.NullDecimal `json:"average"`
	BaseVolume    decimal.NullDecimal `json:"baseVolume"`
	QuoteVolume   decimal.NullDecimal `json:"quoteVolume"`
	MarkPrice     decimal.NullDecimal `json:"markPrice"`
	IndexPrice    decimal.NullDecimal `json:"indexPrice"`
	Info          any                 `json:"info"`
}

type PriceLevel struct {
	Price  decimal.Decimal `json:"price"`
	Amount decimal.Decimal `json:"amount"`
}

type OrderBook struct {
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Timestamp *time.Time   `json:"timestamp"`
	Nonce     *int64       `json:"nonce"`
}

type OHLCV struct {
	Timestamp time.Time           `json:"timestamp"`
	Open      decimal.NullDecimal `json:"open"`
	High      decimal.NullDecimal `json:"high"`
	Low       decimal.NullDecimal `json:"low"`
	Close     decimal.NullDecimal `json:"close"`
	Volume    decimal.NullDecimal `json:"volume"`
}
