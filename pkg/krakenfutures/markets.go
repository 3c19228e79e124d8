package krakenfutures

import (
	"context"
	"strings"

	"github.com/gregtusar/xchange/pkg/exchange"
	"github.com/gregtusar/xchange/pkg/models"
	"github.com/gregtusar/xchange/pkg/precise"
	"github.com/shopspring/decimal"
)

func (k *KrakenFutures) LoadMarkets(ctx context.Context, reload bool) (map[string]*models.Market, error) {
	return k.Markets.Load(ctx, reload, func(ctx context.Context) ([]models.Market, error) {
		return k.FetchMarkets(ctx, nil)
	})
}

func (k *KrakenFutures) FetchMarkets(ctx context.Context, params exchange.Params) ([]models.Market, error) {
	response, err := k.request(ctx, public("instruments", "instruments"), params.Clone())
	if err != nil {
		return nil, err
	}
	list := exchange.SafeMapList(response, "instruments")
	markets := make([]models.Market, 0, len(list))
	for _, instrument := range list {
		kind := instrumentKind(instrument)
		markets = append(markets, marketParsers[kind](k, instrument, kind))
	}
	return markets, nil
}

// instrumentKind classifies an instrument: index types carry " index",
// and a tradeable contract with a last trading time is a dated future.
func instrumentKind(instrument map[string]any) models.MarketKind {
	if strings.Contains(exchange.SafeString(instrument, "type"), " index") {
		return models.MarketKindIndex
	}
	if exchange.SafeString(instrument, "lastTradingTime") == "" {
		return models.MarketKindSwap
	}
	return models.MarketKindFuture
}

var marketParsers = map[models.MarketKind]func(*KrakenFutures, map[string]any, models.MarketKind) models.Market{
	models.MarketKindIndex:  (*KrakenFutures).parseIndexMarket,
	models.MarketKindSwap:   (*KrakenFutures).parseContractMarket,
	models.MarketKindFuture: (*KrakenFutures).parseContractMarket,
}

// instrumentBaseID reads the base out of ids like pi_xbtusd or
// fi_ethusd_220624. The quote is always usd.
func instrumentBaseID(id string) string {
	parts := strings.Split(id, "_")
	if len(parts) < 2 || len(parts[1]) <= 3 {
		return ""
	}
	return parts[1][:len(parts[1])-3]
}

func (k *KrakenFutures) baseMarket(instrument map[string]any, kind models.MarketKind) models.Market {
	id := exchange.SafeString(instrument, "symbol")
	baseID := instrumentBaseID(id)
	quoteID := "usd"

	precision := exchange.SafeString(instrument, "contractValueTradePrecision")
	if precision == "" {
		precision = "0"
	}
	return models.Market{
		ID:           id,
		Symbol:       id,
		Base:         k.Desc.SafeCurrencyCode(baseID),
		Quote:        k.Desc.SafeCurrencyCode(quoteID),
		BaseID:       baseID,
		QuoteID:      quoteID,
		Kind:         kind,
		Contract:     true,
		Active:       exchange.SafeBool(instrument, "tradeable"),
		ContractSize: exchange.SafeDecimal(instrument, "contractSize"),
		Taker:        decimal.NewNullDecimal(k.Desc.Fees.Taker),
		Maker:        decimal.NewNullDecimal(k.Desc.Fees.Maker),
		Precision: models.Precision{
			Amount: precise.ParsePrecision(precision),
			Price:  exchange.SafeDecimal(instrument, "tickSize"),
		},
		Info: instrument,
	}
}

func (k *KrakenFutures) parseIndexMarket(instrument map[string]any, kind models.MarketKind) models.Market {
	return k.baseMarket(instrument, kind)
}

// parseContractMarket handles swaps and futures. Only futures_inverse
// settles in the base currency; vanilla and flexible contracts settle in
// the quote.
func (k *KrakenFutures) parseContractMarket(instrument map[string]any, kind models.MarketKind) models.Market {
	m := k.baseMarket(instrument, kind)
	inverse := exchange.SafeString(instrument, "type") == "futures_inverse"
	m.Linear = exchange.Bool(!inverse)
	m.Inverse = exchange.Bool(inverse)
	m.Swap = kind == models.MarketKindSwap
	m.Future = kind == models.MarketKindFuture
	if inverse {
		m.Settle, m.SettleID = m.Base, m.BaseID
	} else {
		m.Settle, m.SettleID = m.Quote, m.QuoteID
	}
	if m.Future {
		m.Expiry = exchange.SafeTime(instrument, "lastTradingTime")
	}
	m.Symbol = models.BuildSymbol(m.Base, m.Quote, m.Settle, m.Expiry)

	if levels := exchange.SafeMapList(instrument, "marginLevels"); len(levels) > 0 {
		m.Limits.Leverage.Max = precise.Div(precise.MustParse("1"), exchange.SafeDecimal(levels[0], "initialMargin"))
	}
	return m
}

// FetchCurrencies lists the flex account collateral currencies; the
// venue has no currency endpoint.
func (k *KrakenFutures) FetchCurrencies(ctx context.Context, params exchange.Params) (map[string]models.Currency, error) {
	result := make(map[string]models.Currency, len(settlementCurrencies))
	for _, code := range settlementCurrencies {
		result[code] = models.Currency{
			ID:     strings.ToLower(k.Desc.CurrencyID(code)),
			Code:   code,
			Active: exchange.Bool(true),
		}
	}
	return result, nil
}
