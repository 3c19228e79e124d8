package exchange

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gregtusar/xchange/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarketCacheLoadsOnce(t *testing.T) {
	cache := NewMarketCache("test")
	var calls int32
	fetch := func(ctx context.Context) ([]models.Market, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(10 * time.Millisecond)
		return []models.Market{{ID: "BTC-USD", Symbol: "BTC/USD", Base: "BTC", Quote: "USD"}}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Load(context.Background(), false, fetch)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	_, err := cache.Load(context.Background(), true, fetch)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	m, err := cache.Market("BTC/USD")
	require.NoError(t, err)
	assert.Equal(t, "BTC-USD", m.ID)

	_, err = cache.Market("DOGE/USD")
	assert.ErrorIs(t, err, ErrBadSymbol)
}

func TestMarketCacheSafeMarket(t *testing.T) {
	cache := NewMarketCache("test")
	cache.Set([]models.Market{{ID: "BTC-USD", Symbol: "BTC/USD"}})

	assert.Equal(t, "BTC/USD", cache.SafeSymbol("BTC-USD", nil, "-"))
	assert.Equal(t, "ETH/EUR", cache.SafeSymbol("eth-eur", nil, "-"))
	assert.Equal(t, "WEIRD", cache.SafeSymbol("WEIRD", nil, "-"))

	caller := &models.Market{ID: "X", Symbol: "X/Y"}
	assert.Same(t, caller, cache.SafeMarket("BTC-USD", caller, "-"))
}

func TestTTLCacheExpires(t *testing.T) {
	cache := NewTTLCache[int](5 * time.Second)
	now := time.Unix(1000, 0)
	cache.now = func() time.Time { return now }

	n := 0
	refresh := func(ctx context.Context) (int, error) {
		n++
		return n, nil
	}

	v, err := cache.Get(context.Background(), refresh)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	now = now.Add(4 * time.Second)
	v, _ = cache.Get(context.Background(), refresh)
	assert.Equal(t, 1, v)

	now = now.Add(2 * time.Second)
	v, _ = cache.Get(context.Background(), refresh)
	assert.Equal(t, 2, v)

	cache.Invalidate()
	v, _ = cache.Get(context.Background(), refresh)
	assert.Equal(t, 3, v)

	cache.Invalidate()
	_, err = cache.Get(context.Background(), func(ctx context.Context) (int, error) {
		return 0, errors.New("boom")
	})
	assert.Error(t, err)
	v, _ = cache.Get(context.Background(), refresh)
	assert.Equal(t, 4, v)
}

func TestNonceStrictlyIncreasing(t *testing.T) {
	n := NewNonce()
	frozen := time.UnixMilli(1700000000000)
	n.now = func() time.Time { return frozen }

	const workers, per = 8, 50
	results := make(chan int64, workers*per)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < per; j++ {
				results <- n.Next()
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]bool)
	for v := range results {
		assert.False(t, seen[v], "duplicate nonce %d", v)
		seen[v] = true
	}
	assert.Len(t, seen, workers*per)
	assert.Greater(t, n.Next(), int64(1700000000000+workers*per-1))
}

func TestCredentialsRedact(t *testing.T) {
	c := Credentials{APIKey: "key-123", Secret: "very-secret"}
	s := c.String()
	assert.NotContains(t, s, "key-123")
	assert.NotContains(t, s, "very-secret")
	assert.Contains(t, s, "apiKey=<redacted>")

	err := c.Check("coinbase", CredentialAPIKey, CredentialSecret, CredentialToken)
	assert.ErrorIs(t, err, ErrAuthentication)
	assert.Contains(t, err.Error(), "token")
	assert.NoError(t, c.Check("coinbase", CredentialAPIKey, CredentialSecret))
}
