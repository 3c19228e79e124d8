package exchange

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Operation names one call on the unified surface.
type Operation string

const (
	OpFetchMarkets            Operation = "fetchMarkets"
	OpFetchCurrencies         Operation = "fetchCurrencies"
	OpFetchTime               Operation = "fetchTime"
	OpFetchTicker             Operation = "fetchTicker"
	OpFetchTickers            Operation = "fetchTickers"
	OpFetchOrderBook          Operation = "fetchOrderBook"
	OpFetchTrades             Operation = "fetchTrades"
	OpFetchOHLCV              Operation = "fetchOHLCV"
	OpFetchBalance            Operation = "fetchBalance"
	OpFetchAccounts           Operation = "fetchAccounts"
	OpCreateOrder             Operation = "createOrder"
	OpEditOrder               Operation = "editOrder"
	OpCancelOrder             Operation = "cancelOrder"
	OpCancelOrders            Operation = "cancelOrders"
	OpCancelAllOrders         Operation = "cancelAllOrders"
	OpFetchOrder              Operation = "fetchOrder"
	OpFetchOrders             Operation = "fetchOrders"
	OpFetchOpenOrders         Operation = "fetchOpenOrders"
	OpFetchClosedOrders       Operation = "fetchClosedOrders"
	OpFetchMyTrades           Operation = "fetchMyTrades"
	OpFetchDeposits           Operation = "fetchDeposits"
	OpFetchWithdrawals        Operation = "fetchWithdrawals"
	OpFetchLedger             Operation = "fetchLedger"
	OpTransfer                Operation = "transfer"
	OpWithdraw                Operation = "withdraw"
	OpFetchPositions          Operation = "fetchPositions"
	OpSetLeverage             Operation = "setLeverage"
	OpSetMarginMode           Operation = "setMarginMode"
	OpFetchFundingRate        Operation = "fetchFundingRate"
	OpFetchFundingRateHistory Operation = "fetchFundingRateHistory"
	OpFetchLeverageTiers      Operation = "fetchLeverageTiers"
	OpWatchTicker             Operation = "watchTicker"
)

type Fees struct {
	Taker      decimal.Decimal
	Maker      decimal.Decimal
	TierBased  bool
	Percentage bool
}

// Descriptor is the static capability declaration of one venue.
type Descriptor struct {
	ID                  string
	Name                string
	Countries           []string
	Version             string
	RateLimit           time.Duration
	Pro                 bool
	Has                 map[Operation]bool
	URLs                map[string]string
	Timeframes          map[string]string
	Fees                Fees
	CommonCurrencies    map[string]string
	Exceptions          ErrorTable
	RequiredCredentials []Credential
}

func (d *Descriptor) Supports(op Operation) bool {
	return d.Has[op]
}

// SafeCurrencyCode upper-cases a vendor currency id and applies the
// venue's aliases.
func (d *Descriptor) SafeCurrencyCode(id string) string {
	if id == "" {
		return ""
	}
	code := strings.ToUpper(id)
	if alias, ok := d.CommonCurrencies[code]; ok {
		return alias
	}
	return code
}

// CurrencyID reverses SafeCurrencyCode.
func (d *Descriptor) CurrencyID(code string) string {
	for id, alias := range d.CommonCurrencies {
		if alias == code {
			return id
		}
	}
	return code
}

// TimeframeDuration parses "1m", "4h", "1d", "1w" and the like.
func TimeframeDuration(timeframe string) (time.Duration, bool) {
	if len(timeframe) < 2 {
		return 0, false
	}
	n := 0
	for _, r := range timeframe[:len(timeframe)-1] {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	unit := map[byte]time.Duration{
		's': time.Second,
		'm': time.Minute,
		'h': time.Hour,
		'd': 24 * time.Hour,
		'w': 7 * 24 * time.Hour,
	}[timeframe[len(timeframe)-1]]
	if unit == 0 || n == 0 {
		return 0, false
	}
	return time.Duration(n) * unit, true
}
