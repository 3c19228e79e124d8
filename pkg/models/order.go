package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Fee struct {
	Cost     decimal.NullDecimal `json:"cost"`
	Currency string              `json:"currency"`
	Rate     decimal.NullDecimal `json:"rate"`
}

// Known reports whether the fee carries a cost.
func (f *Fee) Known() bool {
	return f != nil && f.Cost.Valid
}

// Order is the canonical order state. When Filled and Remaining are both
// known, Filled + Remaining == Amount.
type Order struct {
	ID                 string              `json:"id"`
	ClientOrderID      string              `json:"clientOrderId"`
	Symbol             string              `json:"symbol"`
	Timestamp          *time.Time          `json:"timestamp"`
	LastTradeTimestamp *time.Time          `json:"lastTradeTimestamp"`
	LastUpdate         *time.Time          `json:"lastUpdateTimestamp"`
	Type               OrderType           `json:"type"`
	Side               OrderSide           `json:"side"`
	TimeInForce        TimeInForce         `json:"timeInForce"`
	PostOnly           *bool               `json:"postOnly"`
	ReduceOnly         *bool               `json:"reduceOnly"`
	Status             OrderStatus         `json:"status"`
	Price              decimal.NullDecimal `json:"price"`
	TriggerPrice       decimal.NullDecimal `json:"triggerPrice"`
	StopLossPrice      decimal.NullDecimal `json:"stopLossPrice"`
	TakeProfitPrice    decimal.NullDecimal `json:"takeProfitPrice"`
	Amount             decimal.NullDecimal `json:"amount"`
	Filled             decimal.NullDecimal `json:"filled"`
	Remaining          decimal.NullDecimal `json:"remaining"`
	Cost               decimal.NullDecimal `json:"cost"`
	Average            decimal.NullDecimal `json:"average"`
	Fee                *Fee                `json:"fee"`
	Trades             []Trade             `json:"trades"`
	Info               any                 `json:"info"`
}

// Trade is a single execution, public or private.
type Trade struct {
	ID           string              `json:"id"`
	Order        string              `json:"order"`
	Symbol       string              `json:"symbol"`
	Timestamp    *time.Time          `json:"timestamp"`
	Type         OrderType           `json:"type"`
	Side         OrderSide           `json:"side"`
	TakerOrMaker TakerOrMaker        `json:"takerOrMaker"`
	Price        decimal.NullDecimal `json:"price"`
	Amount       decimal.NullDecimal `json:"amount"`
	Cost         decimal.NullDecimal `json:"cost"`
	Fee          *Fee                `json:"fee"`
	Info         any                 `json:"info"`
}
