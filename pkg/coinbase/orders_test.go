package coinbase

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"
	"github.com/gregtusar/xchange/pkg/exchange"
	"github.com/gregtusar/xchange/pkg/models"
	"github.com/gregtusar/xchange/pkg/precise"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func btcUSD(t *testing.T, c *Coinbase) *models.Market {
	t.Helper()
	m, err := c.Markets.Market("BTC/USD")
	require.NoError(t, err)
	return m
}

func TestBuildLimitBuy(t *testing.T) {
	c := newTestCoinbase(t, testCredentials, nil)

	built, err := c.buildOrderRequest(btcUSD(t, c), models.OrderTypeLimit, models.OrderSideBuy,
		decimal.RequireFromString("1"), precise.MustParse("20000"), exchange.Params{"clientOrderId": "my-id"})
	require.NoError(t, err)

	assert.Equal(t, "BTC-USD", built.body["product_id"])
	assert.Equal(t, "BUY", built.body["side"])
	assert.Equal(t, "my-id", built.body["client_order_id"])
	assert.NotContains(t, built.body, "clientOrderId")

	config := built.body["order_configuration"].(map[string]any)
	require.Contains(t, config, "limit_limit_gtc")
	shape := config["limit_limit_gtc"].(map[string]any)
	assert.Equal(t, "1", shape["base_size"])
	assert.Equal(t, "20000", shape["limit_price"])
	assert.Equal(t, false, shape["post_only"])
	assert.NotContains(t, shape, "stop_price")
	assert.NotContains(t, shape, "stop_direction")
}

func TestBuildOrderVariants(t *testing.T) {
	c := newTestCoinbase(t, testCredentials, nil)
	market := btcUSD(t, c)
	amount := decimal.RequireFromString("0.123456789")

	tests := []struct {
		name   string
		typ    models.OrderType
		side   models.OrderSide
		price  decimal.NullDecimal
		params exchange.Params
		key    string
		check  func(t *testing.T, shape map[string]any)
	}{
		{
			name:   "stop limit sell defaults up",
			typ:    models.OrderTypeLimit,
			side:   models.OrderSideSell,
			price:  precise.MustParse("30000.005"),
			params: exchange.Params{"stopPrice": "29999.999"},
			key:    "stop_limit_stop_limit_gtc",
			check: func(t *testing.T, shape map[string]any) {
				assert.Equal(t, "0.12345678", shape["base_size"])
				assert.Equal(t, "30000.01", shape["limit_price"])
				assert.Equal(t, "30000", shape["stop_price"])
				assert.Equal(t, stopDirectionUp, shape["stop_direction"])
			},
		},
		{
			name:   "stop loss buy goes up",
			typ:    models.OrderTypeLimit,
			side:   models.OrderSideBuy,
			price:  precise.MustParse("100"),
			params: exchange.Params{"stopLossPrice": "90"},
			key:    "stop_limit_stop_limit_gtc",
			check: func(t *testing.T, shape map[string]any) {
				assert.Equal(t, stopDirectionUp, shape["stop_direction"])
				assert.Equal(t, "90", shape["stop_price"])
			},
		},
		{
			name:   "take profit sell goes up",
			typ:    models.OrderTypeLimit,
			side:   models.OrderSideSell,
			price:  precise.MustParse("100"),
			params: exchange.Params{"takeProfitPrice": "110"},
			key:    "stop_limit_stop_limit_gtc",
			check: func(t *testing.T, shape map[string]any) {
				assert.Equal(t, stopDirectionUp, shape["stop_direction"])
			},
		},
		{
			name:   "gtd limit carries end time",
			typ:    models.OrderTypeLimit,
			side:   models.OrderSideBuy,
			price:  precise.MustParse("100"),
			params: exchange.Params{"end_time": "2030-01-01T00:00:00Z", "timeInForce": "PO"},
			key:    "limit_limit_gtd",
			check: func(t *testing.T, shape map[string]any) {
				assert.Equal(t, "2030-01-01T00:00:00Z", shape["end_time"])
				assert.Equal(t, true, shape["post_only"])
			},
		},
		{
			name:  "market buy spends amount times price",
			typ:   models.OrderTypeMarket,
			side:  models.OrderSideBuy,
			price: precise.MustParse("100"),
			key:   "market_market_ioc",
			check: func(t *testing.T, shape map[string]any) {
				assert.Equal(t, "12.34", shape["quote_size"])
			},
		},
		{
			name:   "market buy with explicit cost",
			typ:    models.OrderTypeMarket,
			side:   models.OrderSideBuy,
			params: exchange.Params{"cost": "50"},
			key:    "market_market_ioc",
			check: func(t *testing.T, shape map[string]any) {
				assert.Equal(t, "50", shape["quote_size"])
			},
		},
		{
			name: "market sell uses base size",
			typ:  models.OrderTypeMarket,
			side: models.OrderSideSell,
			key:  "market_market_ioc",
			check: func(t *testing.T, shape map[string]any) {
				assert.Equal(t, "0.12345678", shape["base_size"])
				assert.NotContains(t, shape, "quote_size")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			built, err := c.buildOrderRequest(market, tt.typ, tt.side, amount, tt.price, tt.params)
			require.NoError(t, err)
			config := built.body["order_configuration"].(map[string]any)
			require.Contains(t, config, tt.key)
			tt.check(t, config[tt.key].(map[string]any))
		})
	}
}

func TestBuildOrderRejects(t *testing.T) {
	c := newTestCoinbase(t, testCredentials, nil)
	market := btcUSD(t, c)
	one := decimal.RequireFromString("1")

	_, err := c.buildOrderRequest(market, models.OrderTypeMarket, models.OrderSideSell, one, decimal.NullDecimal{}, exchange.Params{"stopPrice": "10"})
	assert.Equal(t, exchange.KindNotSupported, exchange.KindOf(err))

	_, err = c.buildOrderRequest(market, models.OrderTypeMarket, models.OrderSideBuy, one, decimal.NullDecimal{}, nil)
	assert.Equal(t, exchange.KindInvalidOrder, exchange.KindOf(err))

	_, err = c.buildOrderRequest(market, models.OrderTypeLimit, models.OrderSideBuy, one, decimal.NullDecimal{}, nil)
	assert.Equal(t, exchange.KindInvalidOrder, exchange.KindOf(err))

	_, err = c.buildOrderRequest(market, models.OrderTypeLimit, models.OrderSideBuy, one, precise.MustParse("1"), exchange.Params{"timeInForce": "GTD"})
	assert.Equal(t, exchange.KindExchangeError, exchange.KindOf(err))

	built, err := c.buildOrderRequest(market, models.OrderTypeMarket, models.OrderSideBuy, one, decimal.NullDecimal{},
		exchange.Params{"createMarketBuyOrderRequiresPrice": false, "preview": true})
	require.NoError(t, err)
	assert.True(t, built.preview)
	assert.NotContains(t, built.body, "client_order_id")
}

func TestBuildOrderGTDEndTime(t *testing.T) {
	c := newTestCoinbase(t, testCredentials, nil)
	market := btcUSD(t, c)
	one := decimal.RequireFromString("1")
	price := precise.MustParse("20000")

	_, err := c.buildOrderRequest(market, models.OrderTypeLimit, models.OrderSideBuy, one, price,
		exchange.Params{"timeInForce": "GTD", "stopPrice": "19000"})
	assert.Equal(t, exchange.KindExchangeError, exchange.KindOf(err))

	// Stop-loss and take-profit orders are always GTC.
	for _, key := range []string{"stopLossPrice", "takeProfitPrice"} {
		built, err := c.buildOrderRequest(market, models.OrderTypeLimit, models.OrderSideSell, one, price,
			exchange.Params{"timeInForce": "GTD", key: "19500"})
		require.NoError(t, err, key)
		config := built.body["order_configuration"].(map[string]any)
		assert.Contains(t, config, "stop_limit_stop_limit_gtc", key)
	}
}

func TestCreateOrder(t *testing.T) {
	c := newTestCoinbase(t, testCredentials, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v3/brokerage/orders", r.URL.Path)
		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var body map[string]any
		assert.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "BTC-USD", body["product_id"])

		writeJSON(w, http.StatusOK, `{
			"success": true,
			"order_id": "11111-00000-000000",
			"success_response": {
				"order_id": "11111-00000-000000",
				"product_id": "BTC-USD",
				"side": "BUY",
				"client_order_id": "abc"
			}
		}`)
	})

	order, err := c.CreateOrder(context.Background(), "BTC/USD", models.OrderTypeLimit, models.OrderSideBuy,
		decimal.RequireFromString("1"), precise.MustParse("20000"), nil)
	require.NoError(t, err)
	assert.Equal(t, "11111-00000-000000", order.ID)
	assert.Equal(t, "BTC/USD", order.Symbol)
	assert.Equal(t, models.OrderSideBuy, order.Side)
	assert.Equal(t, "abc", order.ClientOrderID)
}

func TestCreateOrderFailureIsClassified(t *testing.T) {
	c := newTestCoinbase(t, testCredentials, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{
			"success": false,
			"failure_reason": "UNKNOWN_FAILURE_REASON",
			"error_response": {"error": "INSUFFICIENT_FUND", "message": "Insufficient balance in source account"}
		}`)
	})

	_, err := c.CreateOrder(context.Background(), "BTC/USD", models.OrderTypeMarket, models.OrderSideSell,
		decimal.RequireFromString("1"), decimal.NullDecimal{}, nil)
	require.Error(t, err)
	assert.Equal(t, exchange.KindBadRequest, exchange.KindOf(err))
	assert.Contains(t, err.Error(), "Insufficient balance")
}

func TestCancelOrderFailure(t *testing.T) {
	c := newTestCoinbase(t, testCredentials, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/brokerage/orders/batch_cancel", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"results":[{"success":false,"failure_reason":"UNKNOWN_CANCEL_ORDER","order_id":"x"}]}`)
	})

	_, err := c.CancelOrder(context.Background(), "x", "", nil)
	require.Error(t, err)
	assert.Equal(t, exchange.KindBadRequest, exchange.KindOf(err))
}

func TestCancelOrderSuccess(t *testing.T) {
	c := newTestCoinbase(t, testCredentials, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"results":[{"success":true,"failure_reason":"UNKNOWN_CANCEL_FAILURE_REASON","order_id":"x"}]}`)
	})

	order, err := c.CancelOrder(context.Background(), "x", "BTC/USD", nil)
	require.NoError(t, err)
	assert.Equal(t, "x", order.ID)
	assert.Equal(t, "BTC/USD", order.Symbol)
}

func TestParseOrderFilled(t *testing.T) {
	c := newTestCoinbase(t, testCredentials, nil)
	decoded, err := exchange.DecodeJSON([]byte(`{
		"order_id": "0000-000000-000000",
		"product_id": "BTC-USD",
		"side": "SELL",
		"client_order_id": "11111-000000-000000",
		"status": "FILLED",
		"time_in_force": "GOOD_UNTIL_CANCELLED",
		"created_time": "2021-05-31T09:59:59Z",
		"order_type": "LIMIT",
		"filled_size": "0.001",
		"average_filled_price": "50000",
		"total_fees": "0.25",
		"order_configuration": {
			"limit_limit_gtc": {"base_size": "0.001", "limit_price": "50000", "post_only": false}
		}
	}`))
	require.NoError(t, err)

	order := c.parseOrder(decoded.(map[string]any), nil)
	assert.Equal(t, "BTC/USD", order.Symbol)
	assert.Equal(t, models.OrderStatusClosed, order.Status)
	assert.Equal(t, models.OrderTypeLimit, order.Type)
	assert.Equal(t, models.OrderSideSell, order.Side)
	assert.Equal(t, models.TimeInForceGTC, order.TimeInForce)
	assert.Equal(t, "0", precise.String(order.Remaining))
	assert.Equal(t, "50", precise.String(order.Cost))
	require.NotNil(t, order.Fee)
	assert.Equal(t, "USD", order.Fee.Currency)
	require.NotNil(t, order.PostOnly)
	assert.False(t, *order.PostOnly)
	require.NotNil(t, order.Timestamp)
	assert.Equal(t, int64(1622455199000), order.Timestamp.UnixMilli())
}

func TestFetchOpenOrdersRequest(t *testing.T) {
	var hits int32
	c := newTestCoinbase(t, testCredentials, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "/api/v3/brokerage/orders/historical/batch", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "OPEN", q.Get("order_status"))
		assert.Equal(t, "BTC-USD", q.Get("product_id"))
		assert.Equal(t, "100", q.Get("limit"))
		writeJSON(w, http.StatusOK, `{"orders":[{"order_id":"1","product_id":"BTC-USD","status":"OPEN","side":"BUY"}]}`)
	})

	orders, err := c.FetchOpenOrders(context.Background(), "BTC/USD", nil, 0, nil)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, models.OrderStatusOpen, orders[0].Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}
