package coinbase

import (
	"strings"
	"time"

	"github.com/gregtusar/xchange/pkg/exchange"
	"github.com/shopspring/decimal"
)

const (
	ID         = "coinbase"
	apiVersion = "2018-05-30"

	defaultBaseURL = "https://api.coinbase.com"
	defaultWSURL   = "wss://advanced-trade-ws.coinbase.com"
)

// stablePairs trade at the promotional stablecoin fee.
var stablePairs = map[string]bool{
	"BUSD-USD":  true,
	"CBETH-ETH": true,
	"DAI-USD":   true,
	"GUSD-USD":  true,
	"GYEN-USD":  true,
	"PAX-USD":   true,
	"PAX-USDT":  true,
	"USDC-EUR":  true,
	"USDC-GBP":  true,
	"USDT-EUR":  true,
	"USDT-GBP":  true,
	"USDT-USD":  true,
	"USDT-USDC": true,
	"WBTC-BTC":  true,
}

var (
	stableTaker = decimal.RequireFromString("0.00001")
	stableMaker = decimal.Zero
)

func describe() *exchange.Descriptor {
	return &exchange.Descriptor{
		ID:        ID,
		Name:      "Coinbase Advanced",
		Countries: []string{"US"},
		Version:   "v2",
		RateLimit: 34 * time.Millisecond,
		Pro:       true,
		Has: map[exchange.Operation]bool{
			exchange.OpFetchMarkets:      true,
			exchange.OpFetchCurrencies:   true,
			exchange.OpFetchTime:         true,
			exchange.OpFetchTicker:       true,
			exchange.OpFetchTickers:      true,
			exchange.OpFetchOrderBook:    true,
			exchange.OpFetchTrades:       true,
			exchange.OpFetchOHLCV:        true,
			exchange.OpFetchBalance:      true,
			exchange.OpFetchAccounts:     true,
			exchange.OpCreateOrder:       true,
			exchange.OpEditOrder:         true,
			exchange.OpCancelOrder:       true,
			exchange.OpCancelOrders:      true,
			exchange.OpFetchOrder:        true,
			exchange.OpFetchOrders:       true,
			exchange.OpFetchOpenOrders:   true,
			exchange.OpFetchClosedOrders: true,
			exchange.OpFetchMyTrades:     true,
			exchange.OpFetchDeposits:     true,
			exchange.OpFetchWithdrawals:  true,
			exchange.OpFetchLedger:       true,
			exchange.OpWithdraw:          true,
			exchange.OpWatchTicker:       true,
		},
		URLs: map[string]string{
			"rest": defaultBaseURL,
			"ws":   defaultWSURL,
			"www":  "https://www.coinbase.com",
			"doc":  "https://docs.cloud.coinbase.com/advanced-trade-api/docs",
		},
		Timeframes: map[string]string{
			"1m":  "ONE_MINUTE",
			"5m":  "FIVE_MINUTE",
			"15m": "FIFTEEN_MINUTE",
			"30m": "THIRTY_MINUTE",
			"1h":  "ONE_HOUR",
			"2h":  "TWO_HOUR",
			"6h":  "SIX_HOUR",
			"1d":  "ONE_DAY",
		},
		Fees: exchange.Fees{
			Taker:      decimal.RequireFromString("0.006"),
			Maker:      decimal.RequireFromString("0.004"),
			TierBased:  true,
			Percentage: true,
		},
		CommonCurrencies: map[string]string{
			"CGLD": "CELO",
		},
		Exceptions: exchange.ErrorTable{
			Exact: map[string]exchange.Kind{
				"two_factor_required":                    exchange.KindAuthenticationError,
				"param_required":                         exchange.KindExchangeError,
				"validation_error":                       exchange.KindExchangeError,
				"invalid_request":                        exchange.KindExchangeError,
				"personal_details_required":              exchange.KindAuthenticationError,
				"identity_verification_required":         exchange.KindAuthenticationError,
				"jumio_verification_required":            exchange.KindAuthenticationError,
				"jumio_face_match_verification_required": exchange.KindAuthenticationError,
				"unverified_email":                       exchange.KindAuthenticationError,
				"authentication_error":                   exchange.KindAuthenticationError,
				"invalid_authentication_method":          exchange.KindAuthenticationError,
				"invalid_token":                          exchange.KindAuthenticationError,
				"revoked_token":                          exchange.KindAuthenticationError,
				"expired_token":                          exchange.KindAuthenticationError,
				"invalid_scope":                          exchange.KindAuthenticationError,
				"not_found":                              exchange.KindExchangeError,
				"rate_limit_exceeded":                    exchange.KindRateLimitExceeded,
				"internal_server_error":                  exchange.KindExchangeError,
				"UNSUPPORTED_ORDER_CONFIGURATION":        exchange.KindBadRequest,
				"INSUFFICIENT_FUND":                      exchange.KindBadRequest,
			},
			Broad: map[string]exchange.Kind{
				"request timestamp expired":             exchange.KindInvalidNonce,
				"order with this orderID was not found": exchange.KindOrderNotFound,
			},
		},
		RequiredCredentials: []exchange.Credential{exchange.CredentialAPIKey, exchange.CredentialSecret},
	}
}

// Version selects between the legacy v2 API and Advanced Trade v3.
type Version string

const (
	V2 Version = "v2"
	V3 Version = "v3"
)

// Options is static per-instance configuration. Runtime caches live on
// the adapter, never here.
type Options struct {
	FetchMarkets  Version
	FetchTicker   Version
	FetchTickers  Version
	FetchAccounts Version
	FetchBalance  Version
	FetchTime     Version

	CreateMarketBuyOrderRequiresPrice bool

	// Accounts and V3Accounts filter balances by account type.
	Accounts   []string
	V3Accounts []string

	CurrenciesTTL time.Duration
}

func DefaultOptions() Options {
	return Options{
		FetchMarkets:                      V3,
		FetchTicker:                       V3,
		FetchTickers:                      V3,
		FetchAccounts:                     V3,
		FetchBalance:                      V3,
		FetchTime:                         V2,
		CreateMarketBuyOrderRequiresPrice: true,
		Accounts:                          []string{"wallet", "fiat"},
		V3Accounts:                        []string{"ACCOUNT_TYPE_CRYPTO", "ACCOUNT_TYPE_FIAT"},
		CurrenciesTTL:                     5 * time.Second,
	}
}

// applyOptions lays host-supplied overrides over the defaults. Keys match
// in any letter case, since config files arrive lower-cased.
func applyOptions(o Options, raw map[string]any) Options {
	raw = foldKeys(raw)
	version := func(key string, into *Version) {
		switch exchange.SafeString(raw, strings.ToLower(key)) {
		case string(V2):
			*into = V2
		case string(V3):
			*into = V3
		}
	}
	version("fetchMarkets", &o.FetchMarkets)
	version("fetchTicker", &o.FetchTicker)
	version("fetchTickers", &o.FetchTickers)
	version("fetchAccounts", &o.FetchAccounts)
	version("fetchBalance", &o.FetchBalance)
	version("fetchTime", &o.FetchTime)

	if b := exchange.SafeBool(raw, "createmarketbuyorderrequiresprice"); b != nil {
		o.CreateMarketBuyOrderRequiresPrice = *b
	}
	switch ttl := raw["currenciesttl"].(type) {
	case time.Duration:
		if ttl > 0 {
			o.CurrenciesTTL = ttl
		}
	case string:
		if d, err := time.ParseDuration(ttl); err == nil && d > 0 {
			o.CurrenciesTTL = d
		}
	}
	return o
}

func foldKeys(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[strings.ToLower(k)] = v
	}
	return out
}
