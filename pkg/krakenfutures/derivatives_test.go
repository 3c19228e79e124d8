package krakenfutures

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gregtusar/xchange/pkg/exchange"
	"github.com/gregtusar/xchange/pkg/models"
	"github.com/gregtusar/xchange/pkg/precise"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchPositions(t *testing.T) {
	k := newTestKraken(t, testCredentials, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/derivatives/api/v3/openpositions", r.URL.Path)
		writeJSON(w, http.StatusOK, `{
			"result": "success",
			"openPositions": [
				{"side": "short", "symbol": "PI_XBTUSD", "price": 30000, "fillTime": "2024-01-01T00:00:00.000Z", "size": 100, "unrealizedFunding": 0.0001},
				{"side": "long", "symbol": "PF_ETHUSD", "price": 2000, "fillTime": "2024-01-01T00:00:00.000Z", "size": 1.5, "maxFixedLeverage": 5}
			]
		}`)
	})

	positions, err := k.FetchPositions(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Len(t, positions, 2)

	short := positions[0]
	assert.Equal(t, "BTC/USD:BTC", short.Symbol)
	assert.Equal(t, models.PositionSideShort, short.Side)
	assert.Equal(t, models.MarginModeCross, short.MarginMode)
	assert.Equal(t, "100", precise.String(short.Contracts))
	assert.Equal(t, "30000", precise.String(short.EntryPrice))
	assert.Equal(t, "0.0001", precise.String(short.UnrealizedPnl))
	assert.False(t, short.Leverage.Valid)

	long := positions[1]
	assert.Equal(t, models.MarginModeIsolated, long.MarginMode)
	assert.Equal(t, "5", precise.String(long.Leverage))
	assert.Equal(t, "1", precise.String(long.ContractSize))

	positions, err = k.FetchPositions(context.Background(), []string{"ETH/USD:USD"}, nil)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "ETH/USD:USD", positions[0].Symbol)
}

func TestFetchFundingRate(t *testing.T) {
	k := newTestKraken(t, exchange.Credentials{}, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, tickersBody)
	})

	rate, err := k.FetchFundingRate(context.Background(), "BTC/USD:BTC", nil)
	require.NoError(t, err)
	assert.Equal(t, "0.0000012", precise.String(rate.FundingRate))
	assert.Equal(t, "0.0000009", precise.String(rate.NextFundingRate))
	assert.Equal(t, "30001", precise.String(rate.MarkPrice))
	require.NotNil(t, rate.NextFundingTime)
	assert.Equal(t, int64(1704070800000), rate.NextFundingTime.UnixMilli())

	_, err = k.FetchFundingRate(context.Background(), "ETH/USD:USD", nil)
	assert.Equal(t, exchange.KindBadResponse, exchange.KindOf(err))
}

func TestFetchFundingRateHistory(t *testing.T) {
	k := newTestKraken(t, exchange.Credentials{}, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/derivatives/api/v4/historicalfundingrates", r.URL.Path)
		assert.Equal(t, "PI_XBTUSD", r.URL.Query().Get("symbol"))
		writeJSON(w, http.StatusOK, `{
			"rates": [
				{"timestamp": "2024-01-01T02:00:00.000Z", "fundingRate": 0.0000003, "relativeFundingRate": 0.00001},
				{"timestamp": "2024-01-01T00:00:00.000Z", "fundingRate": 0.0000001, "relativeFundingRate": 0.000003},
				{"timestamp": "2024-01-01T01:00:00.000Z", "fundingRate": 0.0000002, "relativeFundingRate": 0.000006}
			]
		}`)
	})

	since := time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)
	history, err := k.FetchFundingRateHistory(context.Background(), "BTC/USD:BTC", &since, 0, nil)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "0.0000002", precise.String(history[0].FundingRate))
	assert.Equal(t, "0.0000003", precise.String(history[1].FundingRate))
	assert.Equal(t, "BTC/USD:BTC", history[1].Symbol)
}

func TestFetchFundingRateHistorySwapOnly(t *testing.T) {
	var hits int32
	k := newTestKraken(t, exchange.Credentials{}, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	})

	_, err := k.FetchFundingRateHistory(context.Background(), "", nil, 0, nil)
	assert.Equal(t, exchange.KindArgumentsRequired, exchange.KindOf(err))

	_, err = k.FetchFundingRateHistory(context.Background(), "BTC/USD:BTC-250627", nil, 0, nil)
	assert.Equal(t, exchange.KindBadRequest, exchange.KindOf(err))
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestFetchLeverageTiers(t *testing.T) {
	k := newTestKraken(t, exchange.Credentials{}, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, instrumentsBody)
	})

	tiers, err := k.FetchLeverageTiers(context.Background(), []string{"BTC/USD:BTC"}, nil)
	require.NoError(t, err)
	require.Len(t, tiers, 1)

	btc := tiers["BTC/USD:BTC"]
	require.Len(t, btc, 3)
	assert.Equal(t, 1, btc[0].Tier)
	assert.Equal(t, "USD", btc[0].Currency)
	assert.Equal(t, "0", precise.String(btc[0].MinNotional))
	assert.Equal(t, "500000", precise.String(btc[0].MaxNotional))
	assert.Equal(t, "50", precise.String(btc[0].MaxLeverage))
	assert.Equal(t, "0.01", precise.String(btc[0].MaintenanceMarginRate))
	assert.Equal(t, "1000000", precise.String(btc[1].MaxNotional))
	assert.False(t, btc[2].MaxNotional.Valid)

	all, err := k.FetchLeverageTiers(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, "0", precise.String(all["ETH/USD:USD"][0].MinNotional))
}

func TestSetLeverage(t *testing.T) {
	k := newTestKraken(t, testCredentials, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/derivatives/api/v3/leveragepreferences", r.URL.Path)
		assert.Equal(t, "PF_ETHUSD", r.URL.Query().Get("symbol"))
		assert.Equal(t, "10", r.URL.Query().Get("maxLeverage"))
		writeJSON(w, http.StatusOK, `{"result":"success","serverTime":"2024-01-01T00:00:00.000Z"}`)
	})

	leverage, err := k.SetLeverage(context.Background(), decimal.NewFromInt(10), "ETH/USD:USD", nil)
	require.NoError(t, err)
	assert.Equal(t, "ETH/USD:USD", leverage.Symbol)
	assert.Equal(t, models.MarginModeIsolated, leverage.MarginMode)
	assert.Equal(t, "10", precise.String(leverage.LongLeverage))

	_, err = k.SetLeverage(context.Background(), decimal.NewFromInt(10), "", nil)
	assert.Equal(t, exchange.KindArgumentsRequired, exchange.KindOf(err))
}

func TestSetMarginMode(t *testing.T) {
	var sawLeverage atomic.Value
	k := newTestKraken(t, testCredentials, func(w http.ResponseWriter, r *http.Request) {
		sawLeverage.Store(r.URL.Query().Get("maxLeverage"))
		writeJSON(w, http.StatusOK, `{"result":"success"}`)
	})

	result, err := k.SetMarginMode(context.Background(), models.MarginModeCross, "ETH/USD:USD", nil)
	require.NoError(t, err)
	assert.Equal(t, models.MarginModeCross, result.MarginMode)
	assert.Equal(t, "", sawLeverage.Load())

	_, err = k.SetMarginMode(context.Background(), models.MarginModeIsolated, "ETH/USD:USD", exchange.Params{"leverage": 4})
	require.NoError(t, err)
	assert.Equal(t, "4", sawLeverage.Load())

	_, err = k.SetMarginMode(context.Background(), models.MarginModeIsolated, "ETH/USD:USD", nil)
	assert.Equal(t, exchange.KindArgumentsRequired, exchange.KindOf(err))

	_, err = k.SetMarginMode(context.Background(), models.MarginMode("portfolio"), "ETH/USD:USD", nil)
	assert.Equal(t, exchange.KindBadRequest, exchange.KindOf(err))
}
