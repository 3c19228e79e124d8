package krakenfutures

import (
	"time"

	"github.com/gregtusar/xchange/pkg/exchange"
	"github.com/shopspring/decimal"
)

const (
	ID = "krakenfutures"

	defaultBaseURL = "https://futures.kraken.com"
	sandboxBaseURL = "https://demo-futures.kraken.com"

	maxCandles = 5000
)

// settlementCurrencies are the collateral currencies of the flex
// (multi-collateral) account.
var settlementCurrencies = []string{"USDT", "BTC", "USD", "GBP", "EUR", "USDC"}

func describe() *exchange.Descriptor {
	return &exchange.Descriptor{
		ID:        ID,
		Name:      "Kraken Futures",
		Countries: []string{"US"},
		Version:   "v3",
		RateLimit: 600 * time.Millisecond,
		Pro:       true,
		Has: map[exchange.Operation]bool{
			exchange.OpFetchMarkets:            true,
			exchange.OpFetchCurrencies:         true,
			exchange.OpFetchTicker:             true,
			exchange.OpFetchTickers:            true,
			exchange.OpFetchOrderBook:          true,
			exchange.OpFetchTrades:             true,
			exchange.OpFetchOHLCV:              true,
			exchange.OpFetchBalance:            true,
			exchange.OpCreateOrder:             true,
			exchange.OpEditOrder:               true,
			exchange.OpCancelOrder:             true,
			exchange.OpCancelAllOrders:         true,
			exchange.OpFetchOpenOrders:         true,
			exchange.OpFetchMyTrades:           true,
			exchange.OpTransfer:                true,
			exchange.OpFetchPositions:          true,
			exchange.OpSetLeverage:             true,
			exchange.OpSetMarginMode:           true,
			exchange.OpFetchFundingRate:        true,
			exchange.OpFetchFundingRateHistory: true,
			exchange.OpFetchLeverageTiers:      true,
		},
		URLs: map[string]string{
			"rest": defaultBaseURL,
			"www":  "https://futures.kraken.com/",
			"doc":  "https://docs.futures.kraken.com/#introduction",
		},
		Timeframes: map[string]string{
			"1m":  "1m",
			"5m":  "5m",
			"15m": "15m",
			"30m": "30m",
			"1h":  "1h",
			"4h":  "4h",
			"12h": "12h",
			"1d":  "1d",
			"1w":  "1w",
		},
		Fees: exchange.Fees{
			Taker:      decimal.RequireFromString("0.00075"),
			Maker:      decimal.RequireFromString("-0.0002"),
			TierBased:  true,
			Percentage: true,
		},
		CommonCurrencies: map[string]string{
			"XBT": "BTC",
		},
		Exceptions: exchange.ErrorTable{
			Exact: map[string]exchange.Kind{
				"apiLimitExceeded":        exchange.KindRateLimitExceeded,
				"marketUnavailable":       exchange.KindExchangeNotAvailable,
				"requiredArgumentMissing": exchange.KindBadRequest,
				"unavailable":             exchange.KindExchangeNotAvailable,
				"authenticationError":     exchange.KindAuthenticationError,
				"accountInactive":         exchange.KindExchangeError,
				"invalidAccount":          exchange.KindBadRequest,
				"invalidAmount":           exchange.KindBadRequest,
				"insufficientFunds":       exchange.KindInsufficientFunds,
				"Bad Request":             exchange.KindBadRequest,
				"Unavailable":             exchange.KindInsufficientFunds,
			},
			Broad: map[string]exchange.Kind{
				"invalidArgument":     exchange.KindBadRequest,
				"nonceBelowThreshold": exchange.KindInvalidNonce,
				"nonceDuplicate":      exchange.KindInvalidNonce,
			},
		},
		RequiredCredentials: []exchange.Credential{exchange.CredentialAPIKey, exchange.CredentialSecret},
	}
}

// orderActionErrors maps the status of a rejected send, edit or cancel
// onto an error kind.
var orderActionErrors = map[string]exchange.Kind{
	"invalidOrderType":           exchange.KindInvalidOrder,
	"invalidSide":                exchange.KindInvalidOrder,
	"invalidSize":                exchange.KindInvalidOrder,
	"invalidPrice":               exchange.KindInvalidOrder,
	"insufficientAvailableFunds": exchange.KindInsufficientFunds,
	"selfFill":                   exchange.KindExchangeError,
	"tooManySmallOrders":         exchange.KindExchangeError,
	"maxPositionViolation":       exchange.KindBadRequest,
	"marketSuspended":            exchange.KindExchangeNotAvailable,
	"marketInactive":             exchange.KindExchangeNotAvailable,
	"clientOrderIdAlreadyExist":  exchange.KindDuplicateOrderID,
	"clientOrderIdTooLong":       exchange.KindBadRequest,
	"outsidePriceCollar":         exchange.KindInvalidOrder,
	"postWouldExecute":           exchange.KindOrderImmediatelyFillable,
	"iocWouldNotExecute":         exchange.KindOrderNotFillable,
	"wouldNotReducePosition":     exchange.KindExchangeError,
	"orderForEditNotFound":       exchange.KindOrderNotFound,
	"orderForEditNotAStop":       exchange.KindInvalidOrder,
	"filled":                     exchange.KindOrderNotFound,
	"notFound":                   exchange.KindOrderNotFound,
}
