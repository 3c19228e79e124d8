package models

// Enumerations in this file are closed vocabularies with a pass-through
// escape hatch: a vendor code that does not map to a named constant is
// carried verbatim so callers can still see it. The empty string means
// the value was absent from the payload.

type MarketKind string

const (
	MarketKindSpot   MarketKind = "spot"
	MarketKindMargin MarketKind = "margin"
	MarketKindSwap   MarketKind = "swap"
	MarketKindFuture MarketKind = "future"
	MarketKindOption MarketKind = "option"
	MarketKindIndex  MarketKind = "index"
)

func (k MarketKind) Known() bool {
	switch k {
	case MarketKindSpot, MarketKindMargin, MarketKindSwap, MarketKindFuture, MarketKindOption, MarketKindIndex:
		return true
	}
	return false
}

// IsContract reports whether the kind settles as a derivative contract.
func (k MarketKind) IsContract() bool {
	return k == MarketKindSwap || k == MarketKindFuture || k == MarketKindOption
}

type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

func (s OrderSide) Known() bool {
	return s == OrderSideBuy || s == OrderSideSell
}

type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

func (t OrderType) Known() bool {
	return t == OrderTypeMarket || t == OrderTypeLimit
}

type OrderStatus string

const (
	OrderStatusOpen     OrderStatus = "open"
	OrderStatusClosed   OrderStatus = "closed"
	OrderStatusCanceled OrderStatus = "canceled"
	OrderStatusRejected OrderStatus = "rejected"
	OrderStatusExpired  OrderStatus = "expired"
)

func (s OrderStatus) Known() bool {
	switch s {
	case OrderStatusOpen, OrderStatusClosed, OrderStatusCanceled, OrderStatusRejected, OrderStatusExpired:
		return true
	}
	return false
}

// Final reports whether no further fills can happen.
func (s OrderStatus) Final() bool {
	return s == OrderStatusClosed || s == OrderStatusCanceled || s == OrderStatusRejected || s == OrderStatusExpired
}

type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC"
	TimeInForceGTD TimeInForce = "GTD"
	TimeInForceIOC TimeInForce = "IOC"
	TimeInForceFOK TimeInForce = "FOK"
	TimeInForcePO  TimeInForce = "PO"
)

func (t TimeInForce) Known() bool {
	switch t {
	case TimeInForceGTC, TimeInForceGTD, TimeInForceIOC, TimeInForceFOK, TimeInForcePO:
		return true
	}
	return false
}

type TakerOrMaker string

const (
	Taker TakerOrMaker = "taker"
	Maker TakerOrMaker = "maker"
)

func (t TakerOrMaker) Known() bool {
	return t == Taker || t == Maker
}

type TransactionStatus string

const (
	TransactionStatusPending  TransactionStatus = "pending"
	TransactionStatusOK       TransactionStatus = "ok"
	TransactionStatusCanceled TransactionStatus = "canceled"
	TransactionStatusFailed   TransactionStatus = "failed"
)

func (s TransactionStatus) Known() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusOK, TransactionStatusCanceled, TransactionStatusFailed:
		return true
	}
	return false
}

type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
)

func (t TransactionType) Known() bool {
	return t == TransactionTypeDeposit || t == TransactionTypeWithdrawal
}

type LedgerDirection string

const (
	LedgerDirectionIn  LedgerDirection = "in"
	LedgerDirectionOut LedgerDirection = "out"
)

func (d LedgerDirection) Known() bool {
	return d == LedgerDirectionIn || d == LedgerDirectionOut
}

type LedgerEntryType string

const (
	LedgerEntryTypeTrade       LedgerEntryType = "trade"
	LedgerEntryTypeTransaction LedgerEntryType = "transaction"
	LedgerEntryTypeFee         LedgerEntryType = "fee"
	LedgerEntryTypeRebate      LedgerEntryType = "rebate"
	LedgerEntryTypeTransfer    LedgerEntryType = "transfer"
	LedgerEntryTypeFunding     LedgerEntryType = "funding"
)

func (t LedgerEntryType) Known() bool {
	switch t {
	case LedgerEntryTypeTrade, LedgerEntryTypeTransaction, LedgerEntryTypeFee,
		LedgerEntryTypeRebate, LedgerEntryTypeTransfer, LedgerEntryTypeFunding:
		return true
	}
	return false
}

type MarginMode string

const (
	MarginModeCross    MarginMode = "cross"
	MarginModeIsolated MarginMode = "isolated"
)

func (m MarginMode) Known() bool {
	return m == MarginModeCross || m == MarginModeIsolated
}

type PositionSide string

const (
	PositionSideLong  PositionSide = "long"
	PositionSideShort PositionSide = "short"
)

func (s PositionSide) Known() bool {
	return s == PositionSideLong || s == PositionSideShort
}
