package krakenfutures

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gregtusar/xchange/pkg/exchange"
	"github.com/gregtusar/xchange/pkg/models"
	"github.com/gregtusar/xchange/pkg/precise"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCredentials = exchange.Credentials{
	APIKey: "test-key",
	Secret: base64.StdEncoding.EncodeToString([]byte("test-secret")),
}

func testMarkets() []models.Market {
	expiry := time.Date(2025, 6, 27, 8, 0, 0, 0, time.UTC)
	return []models.Market{
		{
			ID:           "PI_XBTUSD",
			Symbol:       "BTC/USD:BTC",
			Base:         "BTC",
			Quote:        "USD",
			Settle:       "BTC",
			BaseID:       "xbt",
			QuoteID:      "usd",
			SettleID:     "xbt",
			Kind:         models.MarketKindSwap,
			Swap:         true,
			Contract:     true,
			Linear:       exchange.Bool(false),
			Inverse:      exchange.Bool(true),
			ContractSize: precise.MustParse("1"),
			Precision: models.Precision{
				Amount: precise.MustParse("1"),
				Price:  precise.MustParse("0.5"),
			},
		},
		{
			ID:           "PF_ETHUSD",
			Symbol:       "ETH/USD:USD",
			Base:         "ETH",
			Quote:        "USD",
			Settle:       "USD",
			BaseID:       "eth",
			QuoteID:      "usd",
			SettleID:     "usd",
			Kind:         models.MarketKindSwap,
			Swap:         true,
			Contract:     true,
			Linear:       exchange.Bool(true),
			Inverse:      exchange.Bool(false),
			ContractSize: precise.MustParse("1"),
			Precision: models.Precision{
				Amount: precise.MustParse("0.001"),
				Price:  precise.MustParse("0.1"),
			},
		},
		{
			ID:           "FI_XBTUSD_250627",
			Symbol:       "BTC/USD:BTC-250627",
			Base:         "BTC",
			Quote:        "USD",
			Settle:       "BTC",
			BaseID:       "xbt",
			QuoteID:      "usd",
			SettleID:     "xbt",
			Kind:         models.MarketKindFuture,
			Future:       true,
			Contract:     true,
			Linear:       exchange.Bool(false),
			Inverse:      exchange.Bool(true),
			ContractSize: precise.MustParse("1"),
			Expiry:       &expiry,
			Precision: models.Precision{
				Amount: precise.MustParse("1"),
				Price:  precise.MustParse("0.5"),
			},
		},
	}
}

// newTestKraken points an adapter at handler with the market table
// preloaded, so no test depends on the instrument list.
func newTestKraken(t *testing.T, creds exchange.Credentials, handler http.HandlerFunc) *KrakenFutures {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	k, err := New(exchange.Config{
		BaseURL:     server.URL,
		Credentials: creds,
		Timeout:     2 * time.Second,
		RateLimit:   time.Millisecond,
	})
	require.NoError(t, err)
	k.Markets.Set(testMarkets())
	return k
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestSignPrivateRequest(t *testing.T) {
	k, err := New(exchange.Config{Credentials: testCredentials})
	require.NoError(t, err)

	req, err := k.sign(private(http.MethodPost, "sendorder", "sendStatus"), exchange.Params{
		"symbol": "PI_XBTUSD",
		"size":   "1",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://futures.kraken.com/derivatives/api/v3/sendorder", req.URL)
	assert.Equal(t, "size=1&symbol=PI_XBTUSD", req.Query)
	assert.Equal(t, "test-key", req.Headers["APIKey"])
	require.NotEmpty(t, req.Headers["Nonce"])

	message := "size=1&symbol=PI_XBTUSD" + req.Headers["Nonce"] + "/api/v3/sendorder"
	hash := sha256.Sum256([]byte(message))
	mac := hmac.New(sha512.New, []byte("test-secret"))
	mac.Write(hash[:])
	assert.Equal(t, base64.StdEncoding.EncodeToString(mac.Sum(nil)), req.Headers["Authent"])
}

func TestSignNonceIncreases(t *testing.T) {
	k, err := New(exchange.Config{Credentials: testCredentials})
	require.NoError(t, err)

	a, err := k.sign(private(http.MethodGet, "accounts", "accounts"), nil)
	require.NoError(t, err)
	b, err := k.sign(private(http.MethodGet, "accounts", "accounts"), nil)
	require.NoError(t, err)
	assert.Less(t, a.Headers["Nonce"], b.Headers["Nonce"])
	assert.NotEqual(t, a.Headers["Authent"], b.Headers["Authent"])
}

func TestSignRoutes(t *testing.T) {
	k, err := New(exchange.Config{Sandbox: true})
	require.NoError(t, err)

	req, err := k.sign(charts("{price_type}/{symbol}/{interval}"), exchange.Params{
		"price_type": "trade",
		"symbol":     "PI_XBTUSD",
		"interval":   "1h",
		"from":       int64(1700000000),
	})
	require.NoError(t, err)
	assert.Equal(t, "https://demo-futures.kraken.com/api/charts/v1/trade/PI_XBTUSD/1h", req.URL)
	assert.Equal(t, "from=1700000000", req.Query)
	assert.Nil(t, req.Headers)

	ep := public("historicalfundingrates", "rates")
	ep.version = "v4"
	req, err = k.sign(ep, exchange.Params{"symbol": "PI_XBTUSD"})
	require.NoError(t, err)
	assert.Equal(t, "https://demo-futures.kraken.com/derivatives/api/v4/historicalfundingrates", req.URL)
}

func TestPrivateCallWithoutCredentialsFailsBeforeNetwork(t *testing.T) {
	var hits int32
	k := newTestKraken(t, exchange.Credentials{}, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		writeJSON(w, http.StatusOK, `{}`)
	})

	_, err := k.FetchOpenOrders(context.Background(), "", nil, 0, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, exchange.ErrAuthentication)
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestSecretMustBeBase64(t *testing.T) {
	k := newTestKraken(t, exchange.Credentials{APIKey: "k", Secret: "not base64!"}, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{}`)
	})

	_, err := k.FetchOpenOrders(context.Background(), "", nil, 0, nil)
	require.Error(t, err)
	assert.Equal(t, exchange.KindAuthenticationError, exchange.KindOf(err))
	assert.NotContains(t, err.Error(), "not base64!")
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   exchange.Kind
	}{
		{"throttled", http.StatusTooManyRequests, `{"result":"error","error":"apiLimitExceeded"}`, exchange.KindDDoSProtection},
		{"exact code", http.StatusOK, `{"result":"error","error":"apiLimitExceeded"}`, exchange.KindRateLimitExceeded},
		{"auth", http.StatusUnauthorized, `{"result":"error","error":"authenticationError"}`, exchange.KindAuthenticationError},
		{"broad fragment", http.StatusOK, `{"result":"error","error":"nonceBelowThreshold: 12"}`, exchange.KindInvalidNonce},
		{"unknown on 400", http.StatusBadRequest, `{"result":"error","error":"somethingOdd"}`, exchange.KindBadRequest},
		{"unknown on 500", http.StatusInternalServerError, `{"result":"error","error":"somethingOdd"}`, exchange.KindExchangeError},
		{"error result without message", http.StatusOK, `{"result":"error"}`, exchange.KindExchangeError},
		{"missing envelope", http.StatusOK, `{"result":"success"}`, exchange.KindBadResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := newTestKraken(t, testCredentials, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			_, err := k.FetchOpenOrders(context.Background(), "", nil, 0, nil)
			require.Error(t, err)
			assert.Equal(t, tt.want, exchange.KindOf(err))
			assert.Contains(t, err.Error(), "krakenfutures")
		})
	}
}

func TestSafeMarketIgnoresCase(t *testing.T) {
	k := newTestKraken(t, exchange.Credentials{}, func(w http.ResponseWriter, r *http.Request) {})

	assert.Equal(t, "BTC/USD:BTC", k.safeMarket("pi_xbtusd", nil).Symbol)
	assert.Equal(t, "ETH/USD:USD", k.safeMarket("PF_ETHUSD", nil).Symbol)
	assert.Equal(t, "PF_UNKNOWN", k.safeMarket("PF_UNKNOWN", nil).Symbol)
}
