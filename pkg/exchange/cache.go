package exchange

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gregtusar/xchange/pkg/models"
)

// MarketCache holds the venue's market table. The first Load fetches it;
// concurrent callers wait on that one fetch and read afterwards.
type MarketCache struct {
	exchange string

	mu       sync.Mutex
	loaded   bool
	bySymbol map[string]*models.Market
	byID     map[string][]*models.Market
}

func NewMarketCache(exchange string) *MarketCache {
	return &MarketCache{exchange: exchange}
}

// Load runs fetch unless markets are already cached. reload forces it.
func (c *MarketCache) Load(ctx context.Context, reload bool, fetch func(context.Context) ([]models.Market, error)) (map[string]*models.Market, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded && !reload {
		return c.bySymbol, nil
	}
	markets, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	c.set(markets)
	return c.bySymbol, nil
}

// Set replaces the table.
func (c *MarketCache) Set(markets []models.Market) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set(markets)
}

func (c *MarketCache) set(markets []models.Market) {
	bySymbol := make(map[string]*models.Market, len(markets))
	byID := make(map[string][]*models.Market, len(markets))
	for i := range markets {
		m := &markets[i]
		bySymbol[m.Symbol] = m
		byID[m.ID] = append(byID[m.ID], m)
	}
	c.bySymbol = bySymbol
	c.byID = byID
	c.loaded = true
}

func (c *MarketCache) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Market resolves a unified symbol. An id is accepted as a fallback.
func (c *MarketCache) Market(symbol string) (*models.Market, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.bySymbol[symbol]; ok {
		return m, nil
	}
	if ms, ok := c.byID[symbol]; ok && len(ms) > 0 {
		return ms[0], nil
	}
	return nil, NewError(KindBadSymbol, c.exchange, "does not have market symbol %s", symbol)
}

func (c *MarketCache) MarketByID(id string) (*models.Market, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ms, ok := c.byID[id]
	if !ok || len(ms) == 0 {
		return nil, false
	}
	return ms[0], true
}

// SafeMarket resolves a vendor id, preferring the caller's market. For an
// unknown id it synthesizes a spot market from BASE<delimiter>QUOTE, or
// returns a market carrying only the id.
func (c *MarketCache) SafeMarket(id string, market *models.Market, delimiter string) *models.Market {
	if market != nil {
		return market
	}
	if id != "" {
		if m, ok := c.MarketByID(id); ok {
			return m
		}
		if delimiter != "" {
			if parts := strings.Split(id, delimiter); len(parts) == 2 && parts[0] != "" && parts[1] != "" {
				base, quote := strings.ToUpper(parts[0]), strings.ToUpper(parts[1])
				return &models.Market{
					ID:      id,
					Symbol:  models.BuildSymbol(base, quote, "", nil),
					Base:    base,
					Quote:   quote,
					BaseID:  parts[0],
					QuoteID: parts[1],
				}
			}
		}
	}
	return &models.Market{ID: id, Symbol: id}
}

// SafeSymbol is SafeMarket(...).Symbol.
func (c *MarketCache) SafeSymbol(id string, market *models.Market, delimiter string) string {
	return c.SafeMarket(id, market, delimiter).Symbol
}

// Symbols returns the cached symbols in sorted order.
func (c *MarketCache) Symbols() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, len(c.bySymbol))
	for s := range c.bySymbol {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// TTLCache keeps one value for a fixed time. It is separate from static
// configuration: the value is refreshed through Get and dropped through
// Invalidate.
type TTLCache[T any] struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	value   T
	fetched time.Time
	valid   bool
}

func NewTTLCache[T any](ttl time.Duration) *TTLCache[T] {
	return &TTLCache[T]{ttl: ttl, now: time.Now}
}

// Get returns the cached value while it is fresh, otherwise it calls
// refresh and caches the result. Failed refreshes are not cached.
func (c *TTLCache[T]) Get(ctx context.Context, refresh func(context.Context) (T, error)) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid && c.now().Sub(c.fetched) < c.ttl {
		return c.value, nil
	}
	v, err := refresh(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	c.value = v
	c.fetched = c.now()
	c.valid = true
	return v, nil
}

func (c *TTLCache[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid = false
}
