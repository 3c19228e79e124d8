package coinbase

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gregtusar/xchange/pkg/exchange"
	"github.com/gregtusar/xchange/pkg/models"
	"github.com/gregtusar/xchange/pkg/precise"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	maxCandles = 300
	maxTrades  = 1000
)

func (c *Coinbase) FetchTicker(ctx context.Context, symbol string, params exchange.Params) (*models.Ticker, error) {
	params = params.Clone()
	market, err := c.market(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if apiFor(params, c.options.FetchTicker) == V2 {
		return c.fetchTickerV2(ctx, market, params)
	}
	return c.fetchTickerV3(ctx, market, params)
}

func (c *Coinbase) fetchTickerV3(ctx context.Context, market *models.Market, params exchange.Params) (*models.Ticker, error) {
	request := params.Extend(map[string]any{
		"product_id": market.ID,
		"limit":      1,
	})
	response, err := c.request(ctx, c.productEndpoint("products/{product_id}/ticker", "trades"), request)
	if err != nil {
		return nil, err
	}
	var last map[string]any
	if trades := exchange.SafeMapList(response, "trades"); len(trades) > 0 {
		last = trades[0]
	}
	ticker := c.parseTicker(last, market)
	ticker.Bid = exchange.SafeDecimal(response, "best_bid")
	ticker.Ask = exchange.SafeDecimal(response, "best_ask")
	return &ticker, nil
}

func (c *Coinbase) fetchTickerV2(ctx context.Context, market *models.Market, params exchange.Params) (*models.Ticker, error) {
	request := params.Extend(map[string]any{"symbol": market.ID})
	var spot, buy, sell map[string]any
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		spot, err = c.request(gctx, v2Public("prices/{symbol}/spot"), request)
		return err
	})
	g.Go(func() (err error) {
		buy, err = c.request(gctx, v2Public("prices/{symbol}/buy"), request)
		return err
	})
	g.Go(func() (err error) {
		sell, err = c.request(gctx, v2Public("prices/{symbol}/sell"), request)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	ticker := c.parseTicker(map[string]any{
		"bid":   exchange.SafeString(exchange.SafeMap(sell, "data"), "amount"),
		"ask":   exchange.SafeString(exchange.SafeMap(buy, "data"), "amount"),
		"price": exchange.SafeString(exchange.SafeMap(spot, "data"), "amount"),
	}, market)
	return &ticker, nil
}

func (c *Coinbase) FetchTickers(ctx context.Context, symbols []string, params exchange.Params) (map[string]models.Ticker, error) {
	params = params.Clone()
	if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	var (
		result map[string]models.Ticker
		err    error
	)
	if apiFor(params, c.options.FetchTickers) == V2 {
		result, err = c.fetchTickersV2(ctx, params)
	} else {
		result, err = c.fetchTickersV3(ctx, symbols, params)
	}
	if err != nil {
		return nil, err
	}
	return filterTickers(result, symbols), nil
}

func (c *Coinbase) marketIDs(symbols []string) ([]string, error) {
	ids := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		m, err := c.Markets.Market(symbol)
		if err != nil {
			return nil, err
		}
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func (c *Coinbase) fetchTickersV3(ctx context.Context, symbols []string, params exchange.Params) (map[string]models.Ticker, error) {
	if len(symbols) > 0 {
		ids, err := c.marketIDs(symbols)
		if err != nil {
			return nil, err
		}
		params["product_ids"] = ids
	}
	response, err := c.request(ctx, c.productEndpoint("products", "products"), params)
	if err != nil {
		return nil, err
	}
	result := make(map[string]models.Ticker)
	for _, entry := range exchange.SafeMapList(response, "products") {
		market := c.Markets.SafeMarket(exchange.SafeString(entry, "product_id"), nil, "-")
		result[market.Symbol] = c.parseTicker(entry, market)
	}
	return result, nil
}

// fetchTickersV2 reads the exchange-rate table: each rate is how much of
// the base one unit of the quote buys, so the price is its inverse.
func (c *Coinbase) fetchTickersV2(ctx context.Context, params exchange.Params) (map[string]models.Ticker, error) {
	response, err := c.request(ctx, v2Public("exchange-rates"), params)
	if err != nil {
		return nil, err
	}
	data := exchange.SafeMap(response, "data")
	rates := exchange.SafeMap(data, "rates")
	quoteID := exchange.SafeString(data, "currency")

	result := make(map[string]models.Ticker, len(rates))
	for _, baseID := range sortedKeys(rates) {
		market := c.Markets.SafeMarket(baseID+"-"+quoteID, nil, "-")
		rate := exchange.SafeDecimal(rates, baseID)
		price := precise.Div(precise.Known(decimal.NewFromInt(1)), rate)
		result[market.Symbol] = models.Ticker{
			Symbol: market.Symbol,
			Last:   price,
			Close:  price,
			Info:   rates[baseID],
		}
	}
	return result, nil
}

func filterTickers(tickers map[string]models.Ticker, symbols []string) map[string]models.Ticker {
	if len(symbols) == 0 {
		return tickers
	}
	out := make(map[string]models.Ticker, len(symbols))
	for _, s := range symbols {
		if t, ok := tickers[s]; ok {
			out[s] = t
		}
	}
	return out
}

// FetchBidsAsks returns the top of book for symbols, or for every product
// when symbols is empty.
func (c *Coinbase) FetchBidsAsks(ctx context.Context, symbols []string, params exchange.Params) (map[string]models.Ticker, error) {
	params = params.Clone()
	if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	if len(symbols) > 0 {
		ids, err := c.marketIDs(symbols)
		if err != nil {
			return nil, err
		}
		params["product_ids"] = ids
	}
	response, err := c.request(ctx, v3Private(http.MethodGet, "brokerage/best_bid_ask", "pricebooks"), params)
	if err != nil {
		return nil, err
	}
	result := make(map[string]models.Ticker)
	for _, book := range exchange.SafeMapList(response, "pricebooks") {
		ticker := c.parseTicker(book, nil)
		result[ticker.Symbol] = ticker
	}
	return filterTickers(result, symbols), nil
}

// parseTicker reads the v3 ticker trade, a product, a pricebook or the
// synthesized v2 price triple. The caller's market wins over product_id.
func (c *Coinbase) parseTicker(ticker map[string]any, market *models.Market) models.Ticker {
	bid := exchange.SafeDecimal(ticker, "bid", "best_bid")
	ask := exchange.SafeDecimal(ticker, "ask", "best_ask")
	var bidVolume, askVolume decimal.NullDecimal
	if exchange.Has(ticker, "bids") {
		var top map[string]any
		if bids := exchange.SafeMapList(ticker, "bids"); len(bids) > 0 {
			top = bids[0]
		}
		bid = exchange.SafeDecimal(top, "price")
		bidVolume = exchange.SafeDecimal(top, "size")

		top = nil
		if asks := exchange.SafeMapList(ticker, "asks"); len(asks) > 0 {
			top = asks[0]
		}
		ask = exchange.SafeDecimal(top, "price")
		askVolume = exchange.SafeDecimal(top, "size")
	}
	market = c.Markets.SafeMarket(exchange.SafeString(ticker, "product_id"), market, "-")
	last := exchange.SafeDecimal(ticker, "price")
	return models.Ticker{
		Symbol:     market.Symbol,
		Timestamp:  exchange.SafeTime(ticker, "time"),
		Bid:        bid,
		BidVolume:  bidVolume,
		Ask:        ask,
		AskVolume:  askVolume,
		Last:       last,
		Close:      last,
		Percentage: exchange.SafeDecimal(ticker, "price_percentage_change_24h"),
		Info:       ticker,
	}
}

func (c *Coinbase) FetchOrderBook(ctx context.Context, symbol string, limit int, params exchange.Params) (*models.OrderBook, error) {
	market, err := c.market(ctx, symbol)
	if err != nil {
		return nil, err
	}
	request := params.Extend(map[string]any{"product_id": market.ID})
	if limit > 0 {
		request["limit"] = limit
	}
	response, err := c.request(ctx, c.productEndpoint("product_book", "pricebook"), request)
	if err != nil {
		return nil, err
	}
	book := exchange.SafeMap(response, "pricebook")
	return &models.OrderBook{
		Symbol:    market.Symbol,
		Bids:      parseLevels(exchange.SafeMapList(book, "bids")),
		Asks:      parseLevels(exchange.SafeMapList(book, "asks")),
		Timestamp: exchange.SafeTime(book, "time"),
	}, nil
}

func parseLevels(levels []map[string]any) []models.PriceLevel {
	out := make([]models.PriceLevel, 0, len(levels))
	for _, level := range levels {
		price := exchange.SafeDecimal(level, "price")
		size := exchange.SafeDecimal(level, "size")
		if !price.Valid || !size.Valid {
			continue
		}
		out = append(out, models.PriceLevel{Price: price.Decimal, Amount: size.Decimal})
	}
	return out
}

// FetchTrades reads the public trade tape. A since without an until is
// rejected: the venue only accepts a closed window.
func (c *Coinbase) FetchTrades(ctx context.Context, symbol string, since *time.Time, limit int, params exchange.Params) ([]models.Trade, error) {
	params = params.Clone()
	until := params.PopTime("until", "till")
	if since != nil && until == nil {
		return nil, exchange.NewError(exchange.KindArgumentsRequired, ID, "fetchTrades() requires an until parameter when since is given")
	}
	market, err := c.market(ctx, symbol)
	if err != nil {
		return nil, err
	}
	request := params.Extend(map[string]any{"product_id": market.ID})
	if since != nil {
		request["start"] = since.Unix()
	}
	if until != nil {
		request["end"] = until.Unix()
	}
	if limit > 0 {
		request["limit"] = min(limit, maxTrades)
	}
	response, err := c.request(ctx, c.productEndpoint("products/{product_id}/ticker", "trades"), request)
	if err != nil {
		return nil, err
	}
	return c.parseTrades(exchange.SafeMapList(response, "trades"), market, since, limit), nil
}

func (c *Coinbase) FetchOHLCV(ctx context.Context, symbol, timeframe string, since *time.Time, limit int, params exchange.Params) ([]models.OHLCV, error) {
	params = params.Clone()
	granularity, ok := c.Desc.Timeframes[timeframe]
	if !ok {
		return nil, exchange.NewError(exchange.KindBadRequest, ID, "unsupported timeframe %q", timeframe)
	}
	duration, _ := exchange.TimeframeDuration(timeframe)
	market, err := c.market(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxCandles {
		limit = maxCandles
	}
	window := time.Duration(limit) * duration

	until := params.PopTime("until", "till")
	var start time.Time
	if since != nil {
		start = *since
	} else {
		start = time.Now().Add(-window)
	}
	end := start.Add(window)
	if until != nil {
		end = *until
	}

	request := params.Extend(map[string]any{
		"product_id":  market.ID,
		"granularity": granularity,
		"start":       start.Unix(),
		"end":         end.Unix(),
	})
	response, err := c.request(ctx, c.productEndpoint("products/{product_id}/candles", "candles"), request)
	if err != nil {
		return nil, err
	}
	candles := exchange.SafeMapList(response, "candles")
	out := make([]models.OHLCV, 0, len(candles))
	for _, candle := range candles {
		ts := exchange.SafeTimestampSeconds(candle, "start")
		if ts == nil {
			continue
		}
		out = append(out, models.OHLCV{
			Timestamp: *ts,
			Open:      exchange.SafeDecimal(candle, "open"),
			High:      exchange.SafeDecimal(candle, "high"),
			Low:       exchange.SafeDecimal(candle, "low"),
			Close:     exchange.SafeDecimal(candle, "close"),
			Volume:    exchange.SafeDecimal(candle, "volume"),
		})
	}
	// Candles arrive newest first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (c *Coinbase) parseTrades(raw []map[string]any, market *models.Market, since *time.Time, limit int) []models.Trade {
	trades := make([]models.Trade, 0, len(raw))
	for _, r := range raw {
		trades = append(trades, c.parseTrade(r, market))
	}
	return exchange.FilterBySince(trades, func(t models.Trade) *time.Time { return t.Timestamp }, since, limit)
}

// parseTrade handles v2 buys/sells, v3 public trades and v3 fills.
func (c *Coinbase) parseTrade(trade map[string]any, market *models.Market) models.Trade {
	amountObject := exchange.SafeMap(trade, "amount")
	totalObject := exchange.SafeMap(trade, "total")
	subtotalObject := exchange.SafeMap(trade, "subtotal")
	feeObject := exchange.SafeMap(trade, "fee")

	var symbol string
	if marketID := exchange.SafeString(trade, "product_id"); marketID != "" || market != nil {
		market = c.Markets.SafeMarket(marketID, market, "-")
		symbol = market.Symbol
	} else {
		baseID := exchange.SafeString(amountObject, "currency")
		quoteID := exchange.SafeString(totalObject, "currency")
		if baseID != "" && quoteID != "" {
			symbol = models.BuildSymbol(c.Desc.SafeCurrencyCode(baseID), c.Desc.SafeCurrencyCode(quoteID), "", nil)
		}
	}

	v3Price := exchange.SafeDecimal(trade, "price")
	var v3Cost decimal.NullDecimal
	var v3Amount decimal.NullDecimal
	if amountObject == nil {
		v3Amount = exchange.SafeDecimal(trade, "size")
	}
	if sizeInQuote := exchange.SafeBool(trade, "size_in_quote"); sizeInQuote != nil && *sizeInQuote {
		v3Cost = v3Amount
		v3Amount = precise.Div(v3Amount, v3Price)
	}

	amount := orElse(exchange.SafeDecimal(amountObject, "amount"), v3Amount)
	cost := orElse(exchange.SafeDecimal(subtotalObject, "amount"), v3Cost)
	var price decimal.NullDecimal
	if cost.Valid && amount.Valid {
		price = precise.Div(cost, amount)
	} else {
		price = v3Price
	}
	if price.Valid && amount.Valid {
		cost = precise.Mul(price, amount)
	}

	var fee *models.Fee
	feeCost := orElse(exchange.SafeDecimal(feeObject, "amount"), exchange.SafeDecimal(trade, "commission"))
	if feeCost.Valid {
		currency := c.Desc.SafeCurrencyCode(exchange.SafeString(feeObject, "currency"))
		if currency == "" && market != nil {
			currency = market.Quote
		}
		fee = &models.Fee{Cost: feeCost, Currency: currency}
	}

	side := exchange.SafeStringLower(trade, "resource", "side")
	if side == "unknown_order_side" {
		side = ""
	}
	takerOrMaker := exchange.SafeStringLower(trade, "liquidity_indicator")
	if takerOrMaker == "unknown_liquidity_indicator" {
		takerOrMaker = ""
	}

	t := models.Trade{
		ID:           exchange.SafeString(trade, "id", "trade_id"),
		Order:        exchange.SafeString(trade, "order_id"),
		Symbol:       symbol,
		Timestamp:    exchange.SafeTime(trade, "created_at", "trade_time", "time"),
		Side:         models.OrderSide(side),
		TakerOrMaker: models.TakerOrMaker(takerOrMaker),
		Price:        price,
		Amount:       amount,
		Cost:         cost,
		Fee:          fee,
		Info:         trade,
	}
	exchange.CompleteTrade(&t)
	return t
}

func orElse(a, b decimal.NullDecimal) decimal.NullDecimal {
	if a.Valid {
		return a
	}
	return b
}

// splitFirstWord returns the first whitespace-separated word of s.
func splitFirstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
