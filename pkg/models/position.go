package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is open derivatives exposure.
type Position struct {
	ID                     string              `json:"id"`
	Symbol                 string              `json:"symbol"`
	Timestamp              *time.Time          `json:"timestamp"`
	Side                   PositionSide        `json:"side"`
	MarginMode             MarginMode          `json:"marginMode"`
	Hedged                 *bool               `json:"hedged"`
	Contracts              decimal.NullDecimal `json:"contracts"`
	ContractSize           decimal.NullDecimal `json:"contractSize"`
	EntryPrice             decimal.NullDecimal `json:"entryPrice"`
	MarkPrice              decimal.NullDecimal `json:"markPrice"`
	LiquidationPrice       decimal.NullDecimal `json:"liquidationPrice"`
	Notional               decimal.NullDecimal `json:"notional"`
	Leverage               decimal.NullDecimal `json:"leverage"`
	Collateral             decimal.NullDecimal `json:"collateral"`
	InitialMargin          decimal.NullDecimal `json:"initialMargin"`
	MaintenanceMargin      decimal.NullDecimal `json:"maintenanceMargin"`
	UnrealizedPnl          decimal.NullDecimal `json:"unrealizedPnl"`
	RealizedPnl            decimal.NullDecimal `json:"realizedPnl"`
	Percentage             decimal.NullDecimal `json:"percentage"`
	MaintenanceMarginRatio decimal.NullDecimal `json:"maintenanceMarginPercentage"`
	Info                   any                 `json:"info"`
}

type FundingRate struct {
	Symbol              string              `json:"symbol"`
	Timestamp           *time.Time          `json:"timestamp"`
	MarkPrice           decimal.NullDecimal `json:"markPrice"`
	IndexPrice          decimal.NullDecimal `json:"indexPrice"`
	InterestRate        decimal.NullDecimal `json:"interestRate"`
	FundingRate         decimal.NullDecimal `json:"fundingRate"`
	FundingTimestamp    *time.Time          `json:"fundingTimestamp"`
	NextFundingRate     decimal.NullDecimal `json:"nextFundingRate"`
	NextFundingTime     *time.Time          `json:"nextFundingTimestamp"`
	PreviousFundingRate decimal.NullDecimal `json:"previousFundingRate"`
	Interval            string              `json:"interval"`
	Info                any                 `json:"info"`
}

type FundingRateHistory struct {
	Symbol      string              `json:"symbol"`
	Timestamp   *time.Time          `json:"timestamp"`
	FundingRate decimal.NullDecimal `json:"fundingRate"`
	Info        any                 `json:"info"`
}

type Leverage struct {
	Symbol        string              `json:"symbol"`
	MarginMode    MarginMode          `json:"marginMode"`
	LongLeverage  decimal.NullDecimal `json:"longLeverage"`
	ShortLeverage decimal.NullDecimal `json:"shortLeverage"`
	Info          any                 `json:"info"`
}

type LeverageTier struct {
	Tier                  int                 `json:"tier"`
	Currency              string              `json:"currency"`
	MinNotional           decimal.NullDecimal `json:"minNotional"`
	MaxNotional           decimal.NullDecimal `json:"maxNotional"`
	MaintenanceMarginRate decimal.NullDecimal `json:"maintenanceMarginRate"`
	MaxLeverage           decimal.NullDecimal `json:"maxLeverage"`
	Info                  any                 `json:"info"`
}

type MarginModeResult struct {
	Symbol     string     `json:"symbol"`
	MarginMode MarginMode `json:"marginMode"`
	Info       any        `json:"info"`
}
