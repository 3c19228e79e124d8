package krakenfutures

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gregtusar/xchange/pkg/exchange"
	"github.com/gregtusar/xchange/pkg/models"
	"github.com/gregtusar/xchange/pkg/precise"
	"github.com/shopspring/decimal"
)

var (
	_ exchange.FundingRateFetcher  = (*KrakenFutures)(nil)
	_ exchange.LeverageTierFetcher = (*KrakenFutures)(nil)
	_ exchange.OrderEditor         = (*KrakenFutures)(nil)
	_ exchange.BulkCanceler        = (*KrakenFutures)(nil)
)

func (k *KrakenFutures) FetchPositions(ctx context.Context, symbols []string, params exchange.Params) ([]models.Position, error) {
	if _, err := k.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	response, err := k.request(ctx, private(http.MethodGet, "openpositions", "openPositions"), params.Clone())
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		wanted[s] = true
	}
	positions := make([]models.Position, 0)
	for _, raw := range exchange.SafeMapList(response, "openPositions") {
		p := k.parsePosition(raw, nil)
		if len(wanted) > 0 && !wanted[p.Symbol] {
			continue
		}
		positions = append(positions, p)
	}
	return positions, nil
}

// parsePosition treats a position with a fixed max leverage as isolated.
func (k *KrakenFutures) parsePosition(position map[string]any, market *models.Market) models.Position {
	leverage := exchange.SafeDecimal(position, "maxFixedLeverage")
	mode := models.MarginModeCross
	if leverage.Valid {
		mode = models.MarginModeIsolated
	}
	market = k.safeMarket(exchange.SafeString(position, "symbol"), market)
	return models.Position{
		Symbol:        market.Symbol,
		Timestamp:     exchange.SafeTime(position, "fillTime"),
		Side:          models.PositionSide(exchange.SafeStringLower(position, "side")),
		MarginMode:    mode,
		Contracts:     exchange.SafeDecimal(position, "size"),
		ContractSize:  market.ContractSize,
		EntryPrice:    exchange.SafeDecimal(position, "price"),
		Leverage:      leverage,
		UnrealizedPnl: exchange.SafeDecimal(position, "unrealizedFunding"),
		Info:          position,
	}
}

// FetchFundingRate reads the current rate from the ticker list.
func (k *KrakenFutures) FetchFundingRate(ctx context.Context, symbol string, params exchange.Params) (*models.FundingRate, error) {
	market, err := k.market(ctx, symbol)
	if err != nil {
		return nil, err
	}
	rates, err := k.FetchFundingRates(ctx, []string{market.Symbol}, params)
	if err != nil {
		return nil, err
	}
	rate, ok := rates[market.Symbol]
	if !ok {
		return nil, exchange.NewError(exchange.KindBadResponse, ID, "no funding rate returned for %s", market.Symbol)
	}
	return &rate, nil
}

// FetchFundingRates returns the rates of every perpetual, or of symbols.
func (k *KrakenFutures) FetchFundingRates(ctx context.Context, symbols []string, params exchange.Params) (map[string]models.FundingRate, error) {
	if _, err := k.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	response, err := k.request(ctx, public("tickers", "tickers"), params.Clone())
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		wanted[s] = true
	}
	result := make(map[string]models.FundingRate)
	for _, raw := range exchange.SafeMapList(response, "tickers") {
		if !exchange.Has(raw, "fundingRate") {
			continue
		}
		rate := k.parseFundingRate(raw, nil)
		if len(wanted) > 0 && !wanted[rate.Symbol] {
			continue
		}
		result[rate.Symbol] = rate
	}
	return result, nil
}

// parseFundingRate carries the venue's hourly rates as reported.
func (k *KrakenFutures) parseFundingRate(ticker map[string]any, market *models.Market) models.FundingRate {
	market = k.safeMarket(exchange.SafeString(ticker, "symbol"), market)
	return models.FundingRate{
		Symbol:          market.Symbol,
		Timestamp:       exchange.SafeTime(ticker, "lastTime"),
		MarkPrice:       exchange.SafeDecimal(ticker, "markPrice"),
		IndexPrice:      exchange.SafeDecimal(ticker, "indexPrice"),
		FundingRate:     exchange.SafeDecimal(ticker, "fundingRate"),
		NextFundingRate: exchange.SafeDecimal(ticker, "fundingRatePrediction"),
		NextFundingTime: exchange.SafeTimeAny(ticker, "nextFundingRateTime"),
		Interval:        "1h",
		Info:            ticker,
	}
}

func (k *KrakenFutures) FetchFundingRateHistory(ctx context.Context, symbol string, since *time.Time, limit int, params exchange.Params) ([]models.FundingRateHistory, error) {
	if symbol == "" {
		return nil, k.ArgumentsRequired(exchange.OpFetchFundingRateHistory, "symbol")
	}
	market, err := k.market(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if !market.Swap {
		return nil, exchange.NewError(exchange.KindBadRequest, ID, "fetchFundingRateHistory() supports swap contracts only")
	}
	ep := public("historicalfundingrates", "rates")
	ep.version = "v4"
	request := params.Extend(map[string]any{"symbol": strings.ToUpper(market.ID)})
	response, err := k.request(ctx, ep, request)
	if err != nil {
		return nil, err
	}

	list := exchange.SafeMapList(response, "rates")
	history := make([]models.FundingRateHistory, 0, len(list))
	for _, raw := range list {
		history = append(history, models.FundingRateHistory{
			Symbol:      market.Symbol,
			Timestamp:   exchange.SafeTime(raw, "timestamp"),
			FundingRate: exchange.SafeDecimal(raw, "fundingRate"),
			Info:        raw,
		})
	}
	sort.SliceStable(history, func(i, j int) bool {
		a, b := history[i].Timestamp, history[j].Timestamp
		if a == nil || b == nil {
			return a == nil && b != nil
		}
		return a.Before(*b)
	})
	return exchange.FilterBySince(history, func(h models.FundingRateHistory) *time.Time { return h.Timestamp }, since, limit), nil
}

// FetchLeverageTiers reads the margin schedule each instrument carries.
// A tier's notional cap is the next tier's floor.
func (k *KrakenFutures) FetchLeverageTiers(ctx context.Context, symbols []string, params exchange.Params) (map[string][]models.LeverageTier, error) {
	if _, err := k.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	response, err := k.request(ctx, public("instruments", "instruments"), params.Clone())
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		wanted[s] = true
	}
	result := make(map[string][]models.LeverageTier)
	for _, instrument := range exchange.SafeMapList(response, "instruments") {
		if !exchange.Has(instrument, "marginLevels") {
			continue
		}
		market := k.safeMarket(exchange.SafeString(instrument, "symbol"), nil)
		if len(wanted) > 0 && !wanted[market.Symbol] {
			continue
		}
		result[market.Symbol] = parseLeverageTiers(exchange.SafeMapList(instrument, "marginLevels"), market)
	}
	return result, nil
}

func parseLeverageTiers(levels []map[string]any, market *models.Market) []models.LeverageTier {
	one := precise.MustParse("1")
	tiers := make([]models.LeverageTier, 0, len(levels))
	for i, level := range levels {
		floor := exchange.SafeDecimal(level, "contracts", "numNonContractUnits")
		if i > 0 {
			tiers[i-1].MaxNotional = floor
		}
		tiers = append(tiers, models.LeverageTier{
			Tier:                  i + 1,
			Currency:              market.Quote,
			MinNotional:           floor,
			MaintenanceMarginRate: exchange.SafeDecimal(level, "maintenanceMargin"),
			MaxLeverage:           precise.Div(one, exchange.SafeDecimal(level, "initialMargin")),
			Info:                  level,
		})
	}
	return tiers
}

// SetLeverage fixes the max leverage of a market, which makes its
// position isolated.
func (k *KrakenFutures) SetLeverage(ctx context.Context, leverage decimal.Decimal, symbol string, params exchange.Params) (*models.Leverage, error) {
	if symbol == "" {
		return nil, k.ArgumentsRequired(exchange.OpSetLeverage, "symbol")
	}
	market, err := k.market(ctx, symbol)
	if err != nil {
		return nil, err
	}
	request := params.Extend(map[string]any{
		"symbol":      strings.ToUpper(market.ID),
		"maxLeverage": leverage.String(),
	})
	response, err := k.request(ctx, private(http.MethodPut, "leveragepreferences", ""), request)
	if err != nil {
		return nil, err
	}
	return &models.Leverage{
		Symbol:        market.Symbol,
		MarginMode:    models.MarginModeIsolated,
		LongLeverage:  decimal.NewNullDecimal(leverage),
		ShortLeverage: decimal.NewNullDecimal(leverage),
		Info:          response,
	}, nil
}

// SetMarginMode switches a market between cross and isolated margin.
// Isolated needs params["leverage"]; cross clears the fixed leverage.
func (k *KrakenFutures) SetMarginMode(ctx context.Context, mode models.MarginMode, symbol string, params exchange.Params) (*models.MarginModeResult, error) {
	if symbol == "" {
		return nil, k.ArgumentsRequired(exchange.OpSetMarginMode, "symbol")
	}
	params = params.Clone()
	leverage := params.PopDecimal("leverage")
	switch mode {
	case models.MarginModeIsolated:
		if !leverage.Valid {
			return nil, exchange.NewError(exchange.KindArgumentsRequired, ID, "setMarginMode() requires a leverage param for isolated margin")
		}
	case models.MarginModeCross:
	default:
		return nil, exchange.NewError(exchange.KindBadRequest, ID, "setMarginMode() mode must be cross or isolated, got %q", mode)
	}
	market, err := k.market(ctx, symbol)
	if err != nil {
		return nil, err
	}
	request := params.Extend(map[string]any{"symbol": strings.ToUpper(market.ID)})
	if mode == models.MarginModeIsolated {
		request["maxLeverage"] = leverage.Decimal.String()
	}
	response, err := k.request(ctx, private(http.MethodPut, "leveragepreferences", ""), request)
	if err != nil {
		return nil, err
	}
	return &models.MarginModeResult{
		Symbol:     market.Symbol,
		MarginMode: mode,
		Info:       response,
	}, nil
}
