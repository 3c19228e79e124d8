package coinbase

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gregtusar/xchange/pkg/exchange"
	"github.com/gregtusar/xchange/pkg/models"
	"github.com/gregtusar/xchange/pkg/precise"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchTicker(t *testing.T) {
	c := newTestCoinbase(t, exchange.Credentials{}, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/brokerage/market/products/BTC-USD/ticker", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		writeJSON(w, http.StatusOK, `{
			"trades": [{
				"trade_id": "518078013",
				"product_id": "BTC-USD",
				"price": "28208.1",
				"size": "0.00659179",
				"time": "2023-04-04T23:05:34.492746Z",
				"side": "BUY"
			}],
			"best_bid": "28208.61",
			"best_ask": "28208.62"
		}`)
	})

	ticker, err := c.FetchTicker(context.Background(), "BTC/USD", nil)
	require.NoError(t, err)
	assert.Equal(t, "BTC/USD", ticker.Symbol)
	assert.Equal(t, "28208.1", precise.String(ticker.Last))
	assert.Equal(t, "28208.1", precise.String(ticker.Close))
	assert.Equal(t, "28208.61", precise.String(ticker.Bid))
	assert.Equal(t, "28208.62", precise.String(ticker.Ask))
	require.NotNil(t, ticker.Timestamp)
}

func TestFetchTickerUsesPrivateRouteWithCredentials(t *testing.T) {
	c := newTestCoinbase(t, testCredentials, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/brokerage/products/BTC-USD/ticker", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("CB-ACCESS-SIGN"))
		writeJSON(w, http.StatusOK, `{"trades":[],"best_bid":"1","best_ask":"2"}`)
	})

	ticker, err := c.FetchTicker(context.Background(), "BTC/USD", nil)
	require.NoError(t, err)
	assert.Equal(t, "BTC/USD", ticker.Symbol)
	assert.False(t, ticker.Last.Valid)
}

func TestFetchTickersV2InvertsRates(t *testing.T) {
	c := newTestCoinbase(t, exchange.Credentials{}, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/exchange-rates", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"data":{"currency":"USD","rates":{"BTC":"0.00004","ETH":"0.0005"}}}`)
	})

	tickers, err := c.FetchTickers(context.Background(), nil, exchange.Params{"api": "v2"})
	require.NoError(t, err)
	require.Contains(t, tickers, "BTC/USD")
	assert.Equal(t, "25000", precise.String(tickers["BTC/USD"].Last))
	assert.Equal(t, "2000", precise.String(tickers["ETH/USD"].Last))
}

func TestFetchTradesRequiresUntilWithSince(t *testing.T) {
	var hits int32
	c := newTestCoinbase(t, exchange.Credentials{}, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		writeJSON(w, http.StatusOK, `{"trades":[]}`)
	})

	since := time.Now().Add(-time.Hour)
	_, err := c.FetchTrades(context.Background(), "BTC/USD", &since, 10, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, exchange.ErrArgumentsRequired)
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestFetchTradesWindow(t *testing.T) {
	since := time.Unix(1700000000, 0)
	until := since.Add(time.Hour)
	c := newTestCoinbase(t, exchange.Credentials{}, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "1700000000", q.Get("start"))
		assert.Equal(t, "1700003600", q.Get("end"))
		assert.Equal(t, "1000", q.Get("limit"))
		writeJSON(w, http.StatusOK, `{"trades":[
			{"trade_id":"2","product_id":"BTC-USD","price":"100","size":"2","time":"2023-11-14T22:30:00Z","side":"SELL"},
			{"trade_id":"1","product_id":"BTC-USD","price":"99","size":"1","time":"2023-11-14T22:20:00Z","side":"UNKNOWN_ORDER_SIDE"}
		]}`)
	})

	trades, err := c.FetchTrades(context.Background(), "BTC/USD", &since, 5000, exchange.Params{"until": until.UnixMilli()})
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "200", precise.String(trades[0].Cost))
	assert.Equal(t, models.OrderSideSell, trades[0].Side)
	assert.Equal(t, models.OrderSide(""), trades[1].Side)
}

func TestFetchOHLCVOldestFirst(t *testing.T) {
	c := newTestCoinbase(t, exchange.Credentials{}, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ONE_HOUR", r.URL.Query().Get("granularity"))
		writeJSON(w, http.StatusOK, `{"candles":[
			{"start":"1700007200","low":"1","high":"3","open":"2","close":"2.5","volume":"10"},
			{"start":"1700003600","low":"1","high":"3","open":"2","close":"2.5","volume":"10"}
		]}`)
	})

	since := time.Unix(1700003600, 0)
	candles, err := c.FetchOHLCV(context.Background(), "BTC/USD", "1h", &since, 2, nil)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.True(t, candles[0].Timestamp.Before(candles[1].Timestamp))

	_, err = c.FetchOHLCV(context.Background(), "BTC/USD", "3h", nil, 0, nil)
	assert.Equal(t, exchange.KindBadRequest, exchange.KindOf(err))
}

func TestFetchOrderBook(t *testing.T) {
	c := newTestCoinbase(t, exchange.Credentials{}, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/brokerage/market/product_book", r.URL.Path)
		assert.Equal(t, "BTC-USD", r.URL.Query().Get("product_id"))
		writeJSON(w, http.StatusOK, `{"pricebook":{
			"product_id":"BTC-USD",
			"bids":[{"price":"100","size":"1"},{"price":"99","size":"2"}],
			"asks":[{"price":"101","size":"3"}],
			"time":"2023-04-04T23:05:34Z"
		}}`)
	})

	book, err := c.FetchOrderBook(context.Background(), "BTC/USD", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, "BTC/USD", book.Symbol)
	require.Len(t, book.Bids, 2)
	require.Len(t, book.Asks, 1)
	assert.Equal(t, "100", book.Bids[0].Price.String())
	assert.Equal(t, "3", book.Asks[0].Amount.String())
}

func TestUnknownSymbolIsBadSymbol(t *testing.T) {
	c := newTestCoinbase(t, exchange.Credentials{}, nil)
	_, err := c.FetchTicker(context.Background(), "DOGE/EUR", nil)
	assert.ErrorIs(t, err, exchange.ErrBadSymbol)
}

func TestParseTickerMessage(t *testing.T) {
	c := newTestCoinbase(t, exchange.Credentials{}, nil)

	tickers := c.parseTickerMessage([]byte(`{
		"channel": "ticker",
		"timestamp": "2023-02-09T20:30:37.167359596Z",
		"sequence_num": 0,
		"events": [{
			"type": "snapshot",
			"tickers": [{
				"type": "ticker",
				"product_id": "BTC-USD",
				"price": "21932.98",
				"volume_24_h": "16038.28770938",
				"best_bid": "21932.97",
				"best_ask": "21933.00",
				"price_percentage_change_24h": "-1.85"
			}]
		}]
	}`))
	require.Len(t, tickers, 1)
	assert.Equal(t, "BTC/USD", tickers[0].Symbol)
	assert.Equal(t, "21932.98", precise.String(tickers[0].Last))
	assert.Equal(t, "21932.97", precise.String(tickers[0].Bid))
	assert.Equal(t, "-1.85", precise.String(tickers[0].Percentage))

	assert.Empty(t, c.parseTickerMessage([]byte(`{"channel":"subscriptions","events":[]}`)))
	assert.Empty(t, c.parseTickerMessage([]byte(`not json`)))
}
