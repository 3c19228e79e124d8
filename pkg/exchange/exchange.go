package exchange

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gregtusar/xchange/pkg/metrics"
	"github.com/gregtusar/xchange/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Exchange is the unified call surface. limit <= 0 and a nil since mean
// "not given"; params is always passed through to the venue after the
// adapter consumes the keys it understands.
type Exchange interface {
	ID() string
	Describe() *Descriptor
	LoadMarkets(ctx context.Context, reload bool) (map[string]*models.Market, error)

	FetchMarkets(ctx context.Context, params Params) ([]models.Market, error)
	FetchCurrencies(ctx context.Context, params Params) (map[string]models.Currency, error)
	FetchTicker(ctx context.Context, symbol string, params Params) (*models.Ticker, error)
	FetchTickers(ctx context.Context, symbols []string, params Params) (map[string]models.Ticker, error)
	FetchOrderBook(ctx context.Context, symbol string, limit int, params Params) (*models.OrderBook, error)
	FetchTrades(ctx context.Context, symbol string, since *time.Time, limit int, params Params) ([]models.Trade, error)
	FetchOHLCV(ctx context.Context, symbol, timeframe string, since *time.Time, limit int, params Params) ([]models.OHLCV, error)

	FetchBalance(ctx context.Context, params Params) (*models.Balances, error)
	CreateOrder(ctx context.Context, symbol string, typ models.OrderType, side models.OrderSide, amount decimal.Decimal, price decimal.NullDecimal, params Params) (*models.Order, error)
	CancelOrder(ctx context.Context, id, symbol string, params Params) (*models.Order, error)
	FetchOrder(ctx context.Context, id, symbol string, params Params) (*models.Order, error)
	FetchOpenOrders(ctx context.Context, symbol string, since *time.Time, limit int, params Params) ([]models.Order, error)
	FetchClosedOrders(ctx context.Context, symbol string, since *time.Time, limit int, params Params) ([]models.Order, error)
	FetchMyTrades(ctx context.Context, symbol string, since *time.Time, limit int, params Params) ([]models.Trade, error)

	FetchDeposits(ctx context.Context, code string, since *time.Time, limit int, params Params) ([]models.Transaction, error)
	FetchWithdrawals(ctx context.Context, code string, since *time.Time, limit int, params Params) ([]models.Transaction, error)
	FetchLedger(ctx context.Context, code string, since *time.Time, limit int, params Params) ([]models.LedgerEntry, error)
	Transfer(ctx context.Context, code string, amount decimal.Decimal, fromAccount, toAccount string, params Params) (*models.Transfer, error)
	Withdraw(ctx context.Context, code string, amount decimal.Decimal, address, tag string, params Params) (*models.Transaction, error)

	FetchPositions(ctx context.Context, symbols []string, params Params) ([]models.Position, error)
	SetLeverage(ctx context.Context, leverage decimal.Decimal, symbol string, params Params) (*models.Leverage, error)
	SetMarginMode(ctx context.Context, mode models.MarginMode, symbol string, params Params) (*models.MarginModeResult, error)
}

type OrderEditor interface {
	EditOrder(ctx context.Context, id, symbol string, typ models.OrderType, side models.OrderSide, amount, price decimal.NullDecimal, params Params) (*models.Order, error)
}

type BulkCanceler interface {
	CancelOrders(ctx context.Context, ids []string, symbol string, params Params) ([]models.Order, error)
	CancelAllOrders(ctx context.Context, symbol string, params Params) ([]models.Order, error)
}

type TimeFetcher interface {
	FetchTime(ctx context.Context, params Params) (time.Time, error)
}

type AccountFetcher interface {
	FetchAccounts(ctx context.Context, params Params) ([]models.Account, error)
}

type FundingRateFetcher interface {
	FetchFundingRate(ctx context.Context, symbol string, params Params) (*models.FundingRate, error)
	FetchFundingRateHistory(ctx context.Context, symbol string, since *time.Time, limit int, params Params) ([]models.FundingRateHistory, error)
}

type LeverageTierFetcher interface {
	FetchLeverageTiers(ctx context.Context, symbols []string, params Params) (map[string][]models.LeverageTier, error)
}

type TickerWatcher interface {
	WatchTicker(ctx context.Context, symbols []string, handler func(models.Ticker)) error
}

// Config carries what a host application hands to an adapter.
type Config struct {
	Credentials Credentials
	Sandbox     bool
	BaseURL     string
	Timeout     time.Duration
	RateLimit   time.Duration
	Options     map[string]any
	HTTPClient  *http.Client
	Logger      *logrus.Entry
	Metrics     *metrics.Metrics
}

// Base carries the state every adapter shares and answers NotSupported
// for every operation. Adapters embed it and override what the venue
// offers.
type Base struct {
	Desc        *Descriptor
	Credentials Credentials
	Transport   *Transport
	Markets     *MarketCache
	Logger      *logrus.Entry
}

func NewBase(desc *Descriptor, cfg Config) *Base {
	rateLimit := cfg.RateLimit
	if rateLimit <= 0 {
		rateLimit = desc.RateLimit
	}
	transport := NewTransport(desc.ID, TransportConfig{
		Timeout:    cfg.Timeout,
		RateLimit:  rateLimit,
		HTTPClient: cfg.HTTPClient,
		Logger:     cfg.Logger,
		Metrics:    cfg.Metrics,
	})
	return &Base{
		Desc:        desc,
		Credentials: cfg.Credentials,
		Transport:   transport,
		Markets:     NewMarketCache(desc.ID),
		Logger:      transport.Logger(),
	}
}

func (b *Base) ID() string {
	return b.Desc.ID
}

func (b *Base) Describe() *Descriptor {
	return b.Desc
}

func (b *Base) NotSupported(op Operation) error {
	return NewError(KindNotSupported, b.Desc.ID, "%s() is not supported yet", op)
}

func (b *Base) ArgumentsRequired(op Operation, arg string) error {
	return NewError(KindArgumentsRequired, b.Desc.ID, "%s() requires a %s argument", op, arg)
}

func (b *Base) FetchCurrencies(ctx context.Context, params Params) (map[string]models.Currency, error) {
	return nil, b.NotSupported(OpFetchCurrencies)
}

func (b *Base) FetchTicker(ctx context.Context, symbol string, params Params) (*models.Ticker, error) {
	return nil, b.NotSupported(OpFetchTicker)
}

func (b *Base) FetchTickers(ctx context.Context, symbols []string, params Params) (map[string]models.Ticker, error) {
	return nil, b.NotSupported(OpFetchTickers)
}

func (b *Base) FetchOrderBook(ctx context.Context, symbol string, limit int, params Params) (*models.OrderBook, error) {
	return nil, b.NotSupported(OpFetchOrderBook)
}

func (b *Base) FetchTrades(ctx context.Context, symbol string, since *time.Time, limit int, params Params) ([]models.Trade, error) {
	return nil, b.NotSupported(OpFetchTrades)
}

func (b *Base) FetchOHLCV(ctx context.Context, symbol, timeframe string, since *time.Time, limit int, params Params) ([]models.OHLCV, error) {
	return nil, b.NotSupported(OpFetchOHLCV)
}

func (b *Base) FetchBalance(ctx context.Context, params Params) (*models.Balances, error) {
	return nil, b.NotSupported(OpFetchBalance)
}

func (b *Base) CreateOrder(ctx context.Context, symbol string, typ models.OrderType, side models.OrderSide, amount decimal.Decimal, price decimal.NullDecimal, params Params) (*models.Order, error) {
	return nil, b.NotSupported(OpCreateOrder)
}

func (b *Base) CancelOrder(ctx context.Context, id, symbol string, params Params) (*models.Order, error) {
	return nil, b.NotSupported(OpCancelOrder)
}

func (b *Base) FetchOrder(ctx context.Context, id, symbol string, params Params) (*models.Order, error) {
	return nil, b.NotSupported(OpFetchOrder)
}

func (b *Base) FetchOpenOrders(ctx context.Context, symbol string, since *time.Time, limit int, params Params) ([]models.Order, error) {
	return nil, b.NotSupported(OpFetchOpenOrders)
}

func (b *Base) FetchClosedOrders(ctx context.Context, symbol string, since *time.Time, limit int, params Params) ([]models.Order, error) {
	return nil, b.NotSupported(OpFetchClosedOrders)
}

func (b *Base) FetchMyTrades(ctx context.Context, symbol string, since *time.Time, limit int, params Params) ([]models.Trade, error) {
	return nil, b.NotSupported(OpFetchMyTrades)
}

func (b *Base) FetchDeposits(ctx context.Context, code string, since *time.Time, limit int, params Params) ([]models.Transaction, error) {
	return nil, b.NotSupported(OpFetchDeposits)
}

func (b *Base) FetchWithdrawals(ctx context.Context, code string, since *time.Time, limit int, params Params) ([]models.Transaction, error) {
	return nil, b.NotSupported(OpFetchWithdrawals)
}

func (b *Base) FetchLedger(ctx context.Context, code string, since *time.Time, limit int, params Params) ([]models.LedgerEntry, error) {
	return nil, b.NotSupported(OpFetchLedger)
}

func (b *Base) Transfer(ctx context.Context, code string, amount decimal.Decimal, fromAccount, toAccount string, params Params) (*models.Transfer, error) {
	return nil, b.NotSupported(OpTransfer)
}

func (b *Base) Withdraw(ctx context.Context, code string, amount decimal.Decimal, address, tag string, params Params) (*models.Transaction, error) {
	return nil, b.NotSupported(OpWithdraw)
}

func (b *Base) FetchPositions(ctx context.Context, symbols []string, params Params) ([]models.Position, error) {
	return nil, b.NotSupported(OpFetchPositions)
}

func (b *Base) SetLeverage(ctx context.Context, leverage decimal.Decimal, symbol string, params Params) (*models.Leverage, error) {
	return nil, b.NotSupported(OpSetLeverage)
}

func (b *Base) SetMarginMode(ctx context.Context, mode models.MarginMode, symbol string, params Params) (*models.MarginModeResult, error) {
	return nil, b.NotSupported(OpSetMarginMode)
}

// FilterBySince keeps items at or after since and trims to limit.
func FilterBySince[T any](items []T, at func(T) *time.Time, since *time.Time, limit int) []T {
	out := items
	if since != nil {
		out = make([]T, 0, len(items))
		for _, item := range items {
			if ts := at(item); ts != nil && !ts.Before(*since) {
				out = append(out, item)
			}
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// Constructor builds an adapter from host configuration.
type Constructor func(cfg Config) (Exchange, error)

type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

func (r *Registry) Register(id string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[id] = ctor
}

func (r *Registry) New(id string, cfg Config) (Exchange, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[id]
	r.mu.RUnlock()
	if !ok {
		return nil, NewError(KindNotSupported, id, "exchange %q is not registered", id)
	}
	return ctor(cfg)
}

func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.ctors))
	for id := range r.ctors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
