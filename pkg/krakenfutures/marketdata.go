package krakenfutures

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/gregtusar/xchange/pkg/exchange"
	"github.com/gregtusar/xchange/pkg/models"
	"github.com/gregtusar/xchange/pkg/precise"
	"github.com/shopspring/decimal"
)

func (k *KrakenFutures) FetchOrderBook(ctx context.Context, symbol string, limit int, params exchange.Params) (*models.OrderBook, error) {
	market, err := k.market(ctx, symbol)
	if err != nil {
		return nil, err
	}
	request := params.Extend(map[string]any{"symbol": market.ID})
	response, err := k.request(ctx, public("orderbook", "orderBook"), request)
	if err != nil {
		return nil, err
	}
	book := exchange.SafeMap(response, "orderBook")
	return &models.OrderBook{
		Symbol:    market.Symbol,
		Bids:      parseLevels(exchange.SafeList(book, "bids"), limit),
		Asks:      parseLevels(exchange.SafeList(book, "asks"), limit),
		Timestamp: exchange.SafeTime(response, "serverTime"),
	}, nil
}

// parseLevels reads [price, size] pairs. The venue ignores depth
// requests, so limit is applied here.
func parseLevels(levels []any, limit int) []models.PriceLevel {
	out := make([]models.PriceLevel, 0, len(levels))
	for _, raw := range levels {
		level, ok := raw.([]any)
		if !ok {
			continue
		}
		price := exchange.DecimalAt(level, 0)
		size := exchange.DecimalAt(level, 1)
		if !price.Valid || !size.Valid {
			continue
		}
		out = append(out, models.PriceLevel{Price: price.Decimal, Amount: size.Decimal})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func (k *KrakenFutures) FetchTickers(ctx context.Context, symbols []string, params exchange.Params) (map[string]models.Ticker, error) {
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
	result := make(map[string]models.Ticker)
	for _, raw := range exchange.SafeMapList(response, "tickers") {
		ticker := k.parseTicker(raw, nil)
		if len(wanted) > 0 && !wanted[ticker.Symbol] {
			continue
		}
		result[ticker.Symbol] = ticker
	}
	return result, nil
}

// FetchTicker reads the full ticker list; the venue has no single-market
// route.
func (k *KrakenFutures) FetchTicker(ctx context.Context, symbol string, params exchange.Params) (*models.Ticker, error) {
	market, err := k.market(ctx, symbol)
	if err != nil {
		return nil, err
	}
	tickers, err := k.FetchTickers(ctx, []string{market.Symbol}, params)
	if err != nil {
		return nil, err
	}
	ticker, ok := tickers[market.Symbol]
	if !ok {
		return nil, exchange.NewError(exchange.KindBadResponse, ID, "no ticker returned for %s", market.Symbol)
	}
	return &ticker, nil
}

var two = precise.MustParse("2")

func (k *KrakenFutures) parseTicker(ticker map[string]any, market *models.Market) models.Ticker {
	market = k.safeMarket(exchange.SafeString(ticker, "symbol"), market)
	open := exchange.SafeDecimal(ticker, "open24h")
	last := exchange.SafeDecimal(ticker, "last")
	change := precise.Sub(last, open)

	var baseVolume, quoteVolume decimal.NullDecimal
	volume := exchange.SafeDecimal(ticker, "vol24h")
	if market.Kind != models.MarketKindIndex {
		switch {
		case isTrue(market.Linear):
			baseVolume = volume
		case isTrue(market.Inverse):
			quoteVolume = volume
		}
	}
	return models.Ticker{
		Symbol:      market.Symbol,
		Timestamp:   exchange.SafeTime(ticker, "lastTime"),
		Bid:         exchange.SafeDecimal(ticker, "bid"),
		BidVolume:   exchange.SafeDecimal(ticker, "bidSize"),
		Ask:         exchange.SafeDecimal(ticker, "ask"),
		AskVolume:   exchange.SafeDecimal(ticker, "askSize"),
		Open:        open,
		Close:       last,
		Last:        last,
		Change:      change,
		Percentage:  precise.Percent(change, open),
		Average:     precise.Div(precise.Add(open, last), two),
		BaseVolume:  baseVolume,
		QuoteVolume: quoteVolume,
		MarkPrice:   exchange.SafeDecimal(ticker, "markPrice"),
		IndexPrice:  exchange.SafeDecimal(ticker, "indexPrice"),
		Info:        ticker,
	}
}

// FetchOHLCV reads candles from the charts API. price_type defaults to
// trade; pass params["price"] = "mark" or "spot" for the others.
func (k *KrakenFutures) FetchOHLCV(ctx context.Context, symbol, timeframe string, since *time.Time, limit int, params exchange.Params) ([]models.OHLCV, error) {
	params = params.Clone()
	interval, ok := k.Desc.Timeframes[timeframe]
	if !ok {
		return nil, exchange.NewError(exchange.KindBadRequest, ID, "unsupported timeframe %q", timeframe)
	}
	if limit > maxCandles {
		return nil, exchange.NewError(exchange.KindBadRequest, ID, "fetchOHLCV() limit cannot exceed %d", maxCandles)
	}
	duration, _ := exchange.TimeframeDuration(timeframe)
	seconds := int64(duration / time.Second)

	market, err := k.market(ctx, symbol)
	if err != nil {
		return nil, err
	}
	priceType := params.PopString("price")
	if priceType == "" {
		priceType = "trade"
	}
	request := params.Extend(map[string]any{
		"symbol":     market.ID,
		"price_type": priceType,
		"interval":   interval,
	})
	now := time.Now().Unix()
	switch {
	case since != nil:
		if limit <= 0 {
			limit = maxCandles
		}
		from := since.Unix()
		request["from"] = from
		request["to"] = min(from+int64(limit)*seconds-1, now)
	case limit > 0:
		request["to"] = now
		request["from"] = now - seconds*int64(limit)
	}

	response, err := k.request(ctx, charts("{price_type}/{symbol}/{interval}"), request)
	if err != nil {
		return nil, err
	}
	candles := exchange.SafeMapList(response, "candles")
	out := make([]models.OHLCV, 0, len(candles))
	for _, c := range candles {
		ts := exchange.SafeTimestampMillis(c, "time")
		if ts == nil {
			continue
		}
		out = append(out, models.OHLCV{
			Timestamp: *ts,
			Open:      exchange.SafeDecimal(c, "open"),
			High:      exchange.SafeDecimal(c, "high"),
			Low:       exchange.SafeDecimal(c, "low"),
			Close:     exchange.SafeDecimal(c, "close"),
			Volume:    exchange.SafeDecimal(c, "volume"),
		})
	}
	return exchange.FilterBySince(out, func(o models.OHLCV) *time.Time { return &o.Timestamp }, since, limit), nil
}

// FetchTrades reads the public trade history. The venue pages backwards
// from lastTime, so since only filters; pass params["until"] to move the
// window.
func (k *KrakenFutures) FetchTrades(ctx context.Context, symbol string, since *time.Time, limit int, params exchange.Params) ([]models.Trade, error) {
	params = params.Clone()
	market, err := k.market(ctx, symbol)
	if err != nil {
		return nil, err
	}
	request := params.Extend(map[string]any{"symbol": market.ID})
	if until := request.PopTime("until"); until != nil {
		request["lastTime"] = exchange.ISO8601(*until)
	}
	response, err := k.request(ctx, public("history", "history"), request)
	if err != nil {
		return nil, err
	}
	return k.parseTrades(exchange.SafeMapList(response, "history"), market, since, limit), nil
}

func (k *KrakenFutures) parseTrades(list []map[string]any, market *models.Market, since *time.Time, limit int) []models.Trade {
	trades := make([]models.Trade, 0, len(list))
	for _, raw := range list {
		trades = append(trades, k.parseTrade(raw, market))
	}
	sortTrades(trades)
	return exchange.FilterBySince(trades, func(t models.Trade) *time.Time { return t.Timestamp }, since, limit)
}

// parseTrade reads public history entries, private fills and order
// execution events. An execution carries the order it hit in
// orderPriorExecution, which wins over the top-level fields.
func (k *KrakenFutures) parseTrade(trade map[string]any, market *models.Market) models.Trade {
	orderID := exchange.SafeString(trade, "order_id")
	symbolID := exchange.SafeString(trade, "symbol")
	side := exchange.SafeString(trade, "side")
	var typ string

	if prior := exchange.SafeMap(trade, "orderPriorExecution"); prior != nil {
		orderID = exchange.SafeString(prior, "orderId")
		symbolID = exchange.SafeString(prior, "symbol")
		side = exchange.SafeString(prior, "side")
		typ = exchange.SafeString(prior, "type")
	} else if prior := exchange.SafeMap(trade, "orderPriorEdit"); prior != nil {
		orderID = exchange.SafeString(prior, "orderId")
		symbolID = exchange.SafeString(prior, "symbol")
		// Edit reports carry the order type where the side would be.
		side = exchange.SafeString(prior, "type")
		typ = exchange.SafeString(prior, "type")
	}
	if symbolID != "" {
		market = k.safeMarket(symbolID, nil)
	}

	price := exchange.SafeDecimal(trade, "price")
	amount := exchange.SafeDecimal(trade, "size", "amount")
	if !amount.Valid {
		amount = precise.Zero
	}

	var cost decimal.NullDecimal
	symbol := ""
	if market != nil {
		symbol = market.Symbol
		if isTrue(market.Linear) {
			cost = precise.Mul(amount, price)
		} else {
			cost = precise.Div(amount, price)
		}
		cost = precise.Mul(cost, market.ContractSize)
	}

	return models.Trade{
		ID:           exchange.SafeString(trade, "uid", "fill_id", "executionId"),
		Order:        orderID,
		Symbol:       symbol,
		Timestamp:    exchange.SafeTime(trade, "time", "fillTime"),
		Type:         parseOrderType(typ),
		Side:         models.OrderSide(side),
		TakerOrMaker: parseTakerOrMaker(exchange.SafeString(trade, "fillType")),
		Price:        price,
		Amount:       amount,
		Cost:         cost,
		Info:         trade,
	}
}

// sortTrades orders oldest first. Trades without a time keep their
// relative order ahead of the rest.
func sortTrades(trades []models.Trade) {
	sort.SliceStable(trades, func(i, j int) bool {
		a, b := trades[i].Timestamp, trades[j].Timestamp
		if a == nil || b == nil {
			return a == nil && b != nil
		}
		return a.Before(*b)
	})
}

func parseTakerOrMaker(fillType string) models.TakerOrMaker {
	switch {
	case fillType == "":
		return ""
	case strings.Contains(fillType, "taker"):
		return models.Taker
	case strings.Contains(fillType, "maker"):
		return models.Maker
	}
	return ""
}
