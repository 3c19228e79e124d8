package coinbase

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gregtusar/xchange/pkg/exchange"
	"github.com/gregtusar/xchange/pkg/models"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// currencyBundle is the v2 currency and exchange-rate snapshot shared by
// FetchCurrencies and the v2 market list.
type currencyBundle struct {
	fiat   []map[string]any
	crypto []map[string]any
	rates  map[string]any
}

func (c *Coinbase) LoadMarkets(ctx context.Context, reload bool) (map[string]*models.Market, error) {
	return c.Markets.Load(ctx, reload, func(ctx context.Context) ([]models.Market, error) {
		return c.FetchMarkets(ctx, nil)
	})
}

// apiFor resolves the per-call API choice: an "api" param wins over
// the configured default.
func apiFor(params exchange.Params, fallback Version) Version {
	switch Version(params.PopString("api")) {
	case V2:
		return V2
	case V3:
		return V3
	}
	return fallback
}

func (c *Coinbase) FetchMarkets(ctx context.Context, params exchange.Params) ([]models.Market, error) {
	params = params.Clone()
	handlers := map[Version]func(context.Context, exchange.Params) ([]models.Market, error){
		V2: c.fetchMarketsV2,
		V3: c.fetchMarketsV3,
	}
	return handlers[apiFor(params, c.options.FetchMarkets)](ctx, params)
}

// productEndpoint picks the authenticated product routes when credentials
// are configured and the public market routes otherwise.
func (c *Coinbase) productEndpoint(path, envelope string) endpoint {
	if c.auth != nil {
		return v3Private(http.MethodGet, "brokerage/"+path, envelope)
	}
	return v3Public("brokerage/market/"+path, envelope)
}

func (c *Coinbase) fetchMarketsV3(ctx context.Context, params exchange.Params) ([]models.Market, error) {
	var products, fees map[string]any

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, err = c.request(gctx, c.productEndpoint("products", "products"), params)
		return err
	})
	if c.auth != nil {
		g.Go(func() error {
			var err error
			fees, err = c.request(gctx, v3Private(http.MethodGet, "brokerage/transaction_summary", ""), nil)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	feeTier := exchange.SafeMap(fees, "fee_tier")
	list := exchange.SafeMapList(products, "products")
	markets := make([]models.Market, 0, len(list))
	for _, product := range list {
		kind := models.MarketKind(exchange.SafeStringLower(product, "product_type"))
		parse, ok := productParsers[kind]
		if !ok {
			parse = (*Coinbase).parseSpotMarket
		}
		markets = append(markets, parse(c, product, feeTier))
	}
	return markets, nil
}

// productParsers dispatches on the vendor product type.
var productParsers = map[models.MarketKind]func(*Coinbase, map[string]any, map[string]any) models.Market{
	models.MarketKindSpot:   (*Coinbase).parseSpotMarket,
	models.MarketKindFuture: (*Coinbase).parseContractMarket,
}

func (c *Coinbase) parseSpotMarket(product, feeTier map[string]any) models.Market {
	id := exchange.SafeString(product, "product_id")
	baseID := exchange.SafeString(product, "base_currency_id")
	quoteID := exchange.SafeString(product, "quote_currency_id")
	base := c.Desc.SafeCurrencyCode(baseID)
	quote := c.Desc.SafeCurrencyCode(quoteID)
	kind := models.MarketKind(exchange.SafeStringLower(product, "product_type"))

	m := models.Market{
		ID:      id,
		Symbol:  models.BuildSymbol(base, quote, "", nil),
		Base:    base,
		Quote:   quote,
		BaseID:  baseID,
		QuoteID: quoteID,
		Kind:    kind,
		Spot:    kind == models.MarketKindSpot,
		Active:  active(product),
		Info:    product,
	}
	c.applyFees(&m, feeTier)
	applyProductLimits(&m, product)
	return m
}

func (c *Coinbase) parseContractMarket(product, feeTier map[string]any) models.Market {
	id := exchange.SafeString(product, "product_id")
	details := exchange.SafeMap(product, "future_product_details")
	baseID := exchange.SafeString(details, "contract_root_unit")
	if baseID == "" {
		baseID = exchange.SafeString(product, "base_currency_id")
	}
	quoteID := exchange.SafeString(product, "quote_currency_id")
	base := c.Desc.SafeCurrencyCode(baseID)
	quote := c.Desc.SafeCurrencyCode(quoteID)

	perpetual := exchange.SafeString(details, "contract_expiry_type") == "PERPETUAL"
	var expiry *time.Time
	kind := models.MarketKindSwap
	if !perpetual {
		kind = models.MarketKindFuture
		expiry = exchange.SafeTime(details, "contract_expiry")
	}

	m := models.Market{
		ID:           id,
		Symbol:       models.BuildSymbol(base, quote, quote, expiry),
		Base:         base,
		Quote:        quote,
		Settle:       quote,
		BaseID:       baseID,
		QuoteID:      quoteID,
		SettleID:     quoteID,
		Kind:         kind,
		Swap:         perpetual,
		Future:       !perpetual,
		Active:       active(product),
		Contract:     true,
		Linear:       exchange.Bool(true),
		Inverse:      exchange.Bool(false),
		ContractSize: exchange.SafeDecimal(details, "contract_size"),
		Expiry:       expiry,
		Info:         product,
	}
	c.applyFees(&m, feeTier)
	applyProductLimits(&m, product)
	return m
}

func active(product map[string]any) *bool {
	disabled := exchange.SafeBool(product, "trading_disabled")
	if disabled == nil {
		return exchange.Bool(true)
	}
	return exchange.Bool(!*disabled)
}

func (c *Coinbase) applyFees(m *models.Market, feeTier map[string]any) {
	switch {
	case stablePairs[m.ID]:
		m.Taker = decimal.NewNullDecimal(stableTaker)
		m.Maker = decimal.NewNullDecimal(stableMaker)
	case feeTier != nil:
		m.Taker = exchange.SafeDecimal(feeTier, "taker_fee_rate")
		m.Maker = exchange.SafeDecimal(feeTier, "maker_fee_rate")
	default:
		m.Taker = decimal.NewNullDecimal(c.Desc.Fees.Taker)
		m.Maker = decimal.NewNullDecimal(c.Desc.Fees.Maker)
	}
}

func applyProductLimits(m *models.Market, product map[string]any) {
	m.Precision = models.Precision{
		Amount: exchange.SafeDecimal(product, "base_increment"),
		Price:  exchange.SafeDecimal(product, "price_increment", "quote_increment"),
	}
	m.Limits.Amount = models.MinMax{
		Min: exchange.SafeDecimal(product, "base_min_size"),
		Max: exchange.SafeDecimal(product, "base_max_size"),
	}
	m.Limits.Cost = models.MinMax{
		Min: exchange.SafeDecimal(product, "quote_min_size"),
		Max: exchange.SafeDecimal(product, "quote_max_size"),
	}
}

// fetchMarketsV2 pairs every crypto currency quoted in the exchange rates
// with every fiat currency.
func (c *Coinbase) fetchMarketsV2(ctx context.Context, params exchange.Params) ([]models.Market, error) {
	bundle, err := c.fetchCurrencyBundle(ctx, params)
	if err != nil {
		return nil, err
	}
	fiatIDs := make(map[string]bool, len(bundle.fiat))
	for _, f := range bundle.fiat {
		fiatIDs[exchange.SafeString(f, "id")] = true
	}

	var markets []models.Market
	for _, baseID := range sortedKeys(bundle.rates) {
		if fiatIDs[baseID] {
			continue
		}
		base := c.Desc.SafeCurrencyCode(baseID)
		for _, quoteCurrency := range bundle.fiat {
			quoteID := exchange.SafeString(quoteCurrency, "id")
			quote := c.Desc.SafeCurrencyCode(quoteID)
			m := models.Market{
				ID:      baseID + "-" + quoteID,
				Symbol:  models.BuildSymbol(base, quote, "", nil),
				Base:    base,
				Quote:   quote,
				BaseID:  baseID,
				QuoteID: quoteID,
				Kind:    models.MarketKindSpot,
				Spot:    true,
				Info:    quoteCurrency,
			}
			m.Limits.Cost.Min = exchange.SafeDecimal(quoteCurrency, "min_size")
			markets = append(markets, m)
		}
	}
	return markets, nil
}

func (c *Coinbase) fetchCurrencyBundle(ctx context.Context, params exchange.Params) (currencyBundle, error) {
	return c.currencies.Get(ctx, func(ctx context.Context) (currencyBundle, error) {
		var fiat, crypto, rates map[string]any
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			fiat, err = c.request(gctx, v2Public("currencies"), params)
			return err
		})
		g.Go(func() error {
			var err error
			crypto, err = c.request(gctx, v2Public("currencies/crypto"), params)
			return err
		})
		g.Go(func() error {
			var err error
			rates, err = c.request(gctx, v2Public("exchange-rates"), params)
			return err
		})
		if err := g.Wait(); err != nil {
			return currencyBundle{}, err
		}
		return currencyBundle{
			fiat:   exchange.SafeMapList(fiat, "data"),
			crypto: exchange.SafeMapList(crypto, "data"),
			rates:  exchange.SafeMap(exchange.SafeMap(rates, "data"), "rates"),
		}, nil
	})
}

func (c *Coinbase) FetchCurrencies(ctx context.Context, params exchange.Params) (map[string]models.Currency, error) {
	bundle, err := c.fetchCurrencyBundle(ctx, params)
	if err != nil {
		return nil, err
	}
	result := make(map[string]models.Currency, len(bundle.fiat)+len(bundle.crypto))
	for _, list := range [][]map[string]any{bundle.fiat, bundle.crypto} {
		for _, raw := range list {
			cur := c.parseCurrency(raw)
			result[cur.Code] = cur
		}
	}
	return result, nil
}

func (c *Coinbase) parseCurrency(raw map[string]any) models.Currency {
	id := exchange.SafeString(raw, "id", "code")
	typ := "fiat"
	if exchange.SafeString(raw, "asset_id") != "" {
		typ = "crypto"
	}
	cur := models.Currency{
		ID:     id,
		Code:   c.Desc.SafeCurrencyCode(id),
		Name:   exchange.SafeString(raw, "name"),
		Type:   typ,
		Active: exchange.Bool(true),
		Info:   raw,
	}
	cur.Limits.Amount.Min = exchange.SafeDecimal(raw, "min_size")
	if typ == "crypto" && cur.Name != "" {
		network := strings.ToLower(cur.Name)
		cur.Networks = map[string]models.Network{
			network: {ID: network, Network: network},
		}
	}
	return cur
}

func (c *Coinbase) FetchTime(ctx context.Context, params exchange.Params) (time.Time, error) {
	params = params.Clone()
	if apiFor(params, c.options.FetchTime) == V3 {
		response, err := c.request(ctx, v3Public("brokerage/time", "epochSeconds"), params)
		if err != nil {
			return time.Time{}, err
		}
		return timeOrError(exchange.SafeTimestampSeconds(response, "epochSeconds"))
	}
	response, err := c.request(ctx, v2Public("time"), params)
	if err != nil {
		return time.Time{}, err
	}
	return timeOrError(exchange.SafeTimestampSeconds(exchange.SafeMap(response, "data"), "epoch"))
}

func timeOrError(t *time.Time) (time.Time, error) {
	if t == nil {
		return time.Time{}, exchange.NewError(exchange.KindBadResponse, ID, "response carries no server time")
	}
	return *t, nil
}
