package coinbase

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gregtusar/xchange/pkg/exchange"
	"github.com/gregtusar/xchange/pkg/models"
	"github.com/gregtusar/xchange/pkg/precise"
	"github.com/shopspring/decimal"
)

const (
	stopDirectionUp   = "STOP_DIRECTION_STOP_UP"
	stopDirectionDown = "STOP_DIRECTION_STOP_DOWN"
)

// orderRequest is a built but unsent order.
type orderRequest struct {
	body    map[string]any
	preview bool
}

// buildOrderRequest maps the unified order arguments onto the nested
// order_configuration object. Every recognized param is consumed and the
// rest is forwarded as is.
func (c *Coinbase) buildOrderRequest(market *models.Market, typ models.OrderType, side models.OrderSide, amount decimal.Decimal, price decimal.NullDecimal, params exchange.Params) (orderRequest, error) {
	params = params.Clone()

	clientOrderID := params.PopString("clientOrderId", "client_order_id")
	if clientOrderID == "" {
		clientOrderID = uuid.NewString()
	}
	stopPrice := params.PopDecimal("stopPrice", "stop_price", "triggerPrice")
	stopLossPrice := params.PopDecimal("stopLossPrice")
	takeProfitPrice := params.PopDecimal("takeProfitPrice")
	timeInForce := models.TimeInForce(params.PopString("timeInForce"))
	postOnly, _ := params.PopBool("postOnly", "post_only")
	if timeInForce == models.TimeInForcePO {
		postOnly = true
	}
	endTime := params.PopString("end_time")
	stopDirection := params.PopString("stop_direction", "stopDirection")
	cost := params.PopDecimal("cost")
	requiresPrice := c.options.CreateMarketBuyOrderRequiresPrice
	if v, ok := params.PopBool("createMarketBuyOrderRequiresPrice"); ok {
		requiresPrice = v
	}
	preview, _ := params.PopBool("preview", "test")

	isStop := stopPrice.Valid
	isStopLoss := stopLossPrice.Valid
	isTakeProfit := takeProfitPrice.Valid
	isGTD := timeInForce == models.TimeInForceGTD || endTime != ""

	amountString := precise.AmountToPrecision(amount, market.Precision.Amount)
	priceString := func(p decimal.NullDecimal) string {
		return precise.PriceToPrecision(p.Decimal, market.Precision.Price)
	}

	var configuration map[string]any
	switch typ {
	case models.OrderTypeLimit:
		if !price.Valid {
			return orderRequest{}, exchange.NewError(exchange.KindInvalidOrder, ID, "createOrder() requires a price argument for limit orders")
		}
		switch {
		case isStop:
			if isGTD && endTime == "" {
				return orderRequest{}, errGTDEndTime()
			}
			if stopDirection == "" {
				stopDirection = pick(side == models.OrderSideBuy, stopDirectionDown, stopDirectionUp)
			}
			shape := map[string]any{
				"base_size":      amountString,
				"limit_price":    priceString(price),
				"stop_price":     priceString(stopPrice),
				"stop_direction": stopDirection,
			}
			if isGTD {
				shape["end_time"] = endTime
				configuration = map[string]any{"stop_limit_stop_limit_gtd": shape}
			} else {
				configuration = map[string]any{"stop_limit_stop_limit_gtc": shape}
			}
		case isStopLoss || isTakeProfit:
			trigger := takeProfitPrice
			if isStopLoss {
				trigger = stopLossPrice
				if stopDirection == "" {
					stopDirection = pick(side == models.OrderSideBuy, stopDirectionUp, stopDirectionDown)
				}
			} else if stopDirection == "" {
				stopDirection = pick(side == models.OrderSideBuy, stopDirectionDown, stopDirectionUp)
			}
			configuration = map[string]any{
				"stop_limit_stop_limit_gtc": map[string]any{
					"base_size":      amountString,
					"limit_price":    priceString(price),
					"stop_price":     priceString(trigger),
					"stop_direction": stopDirection,
				},
			}
		case isGTD:
			if endTime == "" {
				return orderRequest{}, errGTDEndTime()
			}
			configuration = map[string]any{
				"limit_limit_gtd": map[string]any{
					"base_size":   amountString,
					"limit_price": priceString(price),
					"end_time":    endTime,
					"post_only":   postOnly,
				},
			}
		default:
			configuration = map[string]any{
				"limit_limit_gtc": map[string]any{
					"base_size":   amountString,
					"limit_price": priceString(price),
					"post_only":   postOnly,
				},
			}
		}

	case models.OrderTypeMarket:
		if isStop || isStopLoss || isTakeProfit {
			return orderRequest{}, exchange.NewError(exchange.KindNotSupported, ID, "createOrder() only stop limit orders are supported")
		}
		if side == models.OrderSideBuy {
			var total string
			switch {
			case cost.Valid:
				total = precise.CostToPrecision(cost.Decimal, market.Precision.Price)
			case requiresPrice:
				if !price.Valid {
					return orderRequest{}, exchange.NewError(exchange.KindInvalidOrder, ID,
						"createOrder() requires a price argument for market buy orders to calculate the total cost to spend (amount * price), "+
							"alternatively set the createMarketBuyOrderRequiresPrice option or param to false and pass the cost to spend in the amount argument")
				}
				total = precise.CostToPrecision(amount.Mul(price.Decimal), market.Precision.Price)
			default:
				total = precise.CostToPrecision(amount, market.Precision.Price)
			}
			configuration = map[string]any{"market_market_ioc": map[string]any{"quote_size": total}}
		} else {
			configuration = map[string]any{"market_market_ioc": map[string]any{"base_size": amountString}}
		}

	default:
		return orderRequest{}, exchange.NewError(exchange.KindInvalidOrder, ID, "unsupported order type %q", typ)
	}

	body := params.Extend(map[string]any{
		"product_id":          market.ID,
		"side":                strings.ToUpper(string(side)),
		"order_configuration": configuration,
	})
	if !preview {
		body["client_order_id"] = clientOrderID
	}
	return orderRequest{body: body, preview: preview}, nil
}

func pick(cond bool, a, b string) string {
	if cond {
		return a
	}
	return b
}

func (c *Coinbase) CreateOrder(ctx context.Context, symbol string, typ models.OrderType, side models.OrderSide, amount decimal.Decimal, price decimal.NullDecimal, params exchange.Params) (*models.Order, error) {
	market, err := c.market(ctx, symbol)
	if err != nil {
		return nil, err
	}
	built, err := c.buildOrderRequest(market, typ, side, amount, price, params)
	if err != nil {
		return nil, err
	}
	if built.preview {
		response, err := c.request(ctx, v3Private(http.MethodPost, "brokerage/orders/preview", ""), built.body)
		if err != nil {
			return nil, err
		}
		order := c.parseOrder(map[string]any{}, market)
		order.Info = response
		return &order, nil
	}
	response, err := c.request(ctx, v3Private(http.MethodPost, "brokerage/orders", "success"), built.body)
	if err != nil {
		return nil, err
	}
	if err := c.checkOrderSuccess(response); err != nil {
		return nil, err
	}
	order := c.parseOrder(exchange.SafeMap(response, "success_response"), market)
	return &order, nil
}

// CreateMarketBuyOrderWithCost spends cost units of the quote currency.
func (c *Coinbase) CreateMarketBuyOrderWithCost(ctx context.Context, symbol string, cost decimal.Decimal, params exchange.Params) (*models.Order, error) {
	params = params.Extend(map[string]any{"cost": cost})
	return c.CreateOrder(ctx, symbol, models.OrderTypeMarket, models.OrderSideBuy, cost, decimal.NullDecimal{}, params)
}

// checkOrderSuccess classifies a {success:false, error_response:{...}}
// body, which the venue sends with a 200.
func (c *Coinbase) checkOrderSuccess(response map[string]any) error {
	if success := exchange.SafeBool(response, "success"); success != nil && *success {
		return nil
	}
	errorResponse := exchange.SafeMap(response, "error_response")
	title := exchange.SafeString(errorResponse, "error", "failure_reason", "preview_failure_reason")
	message := exchange.SafeString(errorResponse, "message", "error_details")
	if message == "" {
		message = title
	}
	if kind, ok := c.Desc.Exceptions.MatchExact(title); ok {
		return exchange.NewError(kind, ID, "%s", message)
	}
	if kind, ok := c.Desc.Exceptions.MatchBroad(title); ok {
		return exchange.NewError(kind, ID, "%s", message)
	}
	return exchange.NewError(exchange.KindExchangeError, ID, "%s", message)
}

func (c *Coinbase) EditOrder(ctx context.Context, id, symbol string, typ models.OrderType, side models.OrderSide, amount, price decimal.NullDecimal, params exchange.Params) (*models.Order, error) {
	params = params.Clone()
	market, err := c.market(ctx, symbol)
	if err != nil {
		return nil, err
	}
	preview, _ := params.PopBool("preview", "test")
	request := params.Extend(map[string]any{"order_id": id})
	if amount.Valid {
		request["size"] = precise.AmountToPrecision(amount.Decimal, market.Precision.Amount)
	}
	if price.Valid {
		request["price"] = precise.PriceToPrecision(price.Decimal, market.Precision.Price)
	}
	path := "brokerage/orders/edit"
	if preview {
		path = "brokerage/orders/edit_preview"
	}
	response, err := c.request(ctx, v3Private(http.MethodPost, path, ""), request)
	if err != nil {
		return nil, err
	}
	if !preview {
		if err := c.checkEditSuccess(response); err != nil {
			return nil, err
		}
	}
	order := c.parseOrder(response, market)
	order.ID = id
	return &order, nil
}

func (c *Coinbase) checkEditSuccess(response map[string]any) error {
	success := exchange.SafeBool(response, "success")
	if success == nil || *success {
		return nil
	}
	var reason string
	if errs := exchange.SafeMapList(response, "errors"); len(errs) > 0 {
		reason = exchange.SafeString(errs[0], "edit_failure_reason", "preview_failure_reason")
	}
	if kind, ok := c.Desc.Exceptions.MatchExact(reason); ok {
		return exchange.NewError(kind, ID, "editOrder() failed: %s", reason)
	}
	return exchange.NewError(exchange.KindInvalidOrder, ID, "editOrder() failed: %s", reason)
}

func (c *Coinbase) CancelOrder(ctx context.Context, id, symbol string, params exchange.Params) (*models.Order, error) {
	orders, err := c.CancelOrders(ctx, []string{id}, symbol, params)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, exchange.NewError(exchange.KindBadResponse, ID, "cancelOrder() returned no result for order %s", id)
	}
	return &orders[0], nil
}

func (c *Coinbase) CancelOrders(ctx context.Context, ids []string, symbol string, params exchange.Params) ([]models.Order, error) {
	var market *models.Market
	if symbol != "" {
		m, err := c.market(ctx, symbol)
		if err != nil {
			return nil, err
		}
		market = m
	}
	request := params.Extend(map[string]any{"order_ids": ids})
	response, err := c.request(ctx, v3Private(http.MethodPost, "brokerage/orders/batch_cancel", "results"), request)
	if err != nil {
		return nil, err
	}
	results := exchange.SafeMapList(response, "results")
	orders := make([]models.Order, 0, len(results))
	for _, result := range results {
		if ok := exchange.SafeBool(result, "success"); ok == nil || !*ok {
			return nil, exchange.NewError(exchange.KindBadRequest, ID, "cancelOrders() has failed, check your arguments and parameters: %s",
				exchange.SafeString(result, "failure_reason"))
		}
		orders = append(orders, c.parseOrder(result, market))
	}
	return orders, nil
}

// CancelAllOrders cancels every open order, optionally within one market.
func (c *Coinbase) CancelAllOrders(ctx context.Context, symbol string, params exchange.Params) ([]models.Order, error) {
	open, err := c.FetchOpenOrders(ctx, symbol, nil, 0, nil)
	if err != nil {
		return nil, err
	}
	if len(open) == 0 {
		return []models.Order{}, nil
	}
	ids := make([]string, 0, len(open))
	for _, o := range open {
		ids = append(ids, o.ID)
	}
	return c.CancelOrders(ctx, ids, symbol, params)
}

func (c *Coinbase) FetchOrder(ctx context.Context, id, symbol string, params exchange.Params) (*models.Order, error) {
	var market *models.Market
	if symbol != "" {
		m, err := c.market(ctx, symbol)
		if err != nil {
			return nil, err
		}
		market = m
	} else if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	request := params.Extend(map[string]any{"order_id": id})
	response, err := c.request(ctx, v3Private(http.MethodGet, "brokerage/orders/historical/{order_id}", "order"), request)
	if err != nil {
		return nil, err
	}
	order := c.parseOrder(exchange.SafeMap(response, "order"), market)
	return &order, nil
}

// FetchOrders lists historical orders of every status.
func (c *Coinbase) FetchOrders(ctx context.Context, symbol string, since *time.Time, limit int, params exchange.Params) ([]models.Order, error) {
	return c.fetchOrdersByStatus(ctx, "", symbol, since, limit, params)
}

func (c *Coinbase) FetchOpenOrders(ctx context.Context, symbol string, since *time.Time, limit int, params exchange.Params) ([]models.Order, error) {
	return c.fetchOrdersByStatus(ctx, "OPEN", symbol, since, limit, params)
}

func (c *Coinbase) FetchClosedOrders(ctx context.Context, symbol string, since *time.Time, limit int, params exchange.Params) ([]models.Order, error) {
	return c.fetchOrdersByStatus(ctx, "FILLED", symbol, since, limit, params)
}

func (c *Coinbase) FetchCanceledOrders(ctx context.Context, symbol string, since *time.Time, limit int, params exchange.Params) ([]models.Order, error) {
	return c.fetchOrdersByStatus(ctx, "CANCELLED", symbol, since, limit, params)
}

func (c *Coinbase) fetchOrdersByStatus(ctx context.Context, status, symbol string, since *time.Time, limit int, params exchange.Params) ([]models.Order, error) {
	params = params.Clone()
	var market *models.Market
	if symbol != "" {
		m, err := c.market(ctx, symbol)
		if err != nil {
			return nil, err
		}
		market = m
	} else if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	until := params.PopTime("until", "till")

	if limit <= 0 {
		limit = 100
	}
	request := params.Extend(map[string]any{"limit": limit})
	if status != "" {
		request["order_status"] = status
	}
	if market != nil {
		request["product_id"] = market.ID
	}
	if since != nil {
		request["start_date"] = exchange.ISO8601(*since)
	}
	if until != nil {
		request["end_date"] = exchange.ISO8601(*until)
	}
	response, err := c.request(ctx, v3Private(http.MethodGet, "brokerage/orders/historical/batch", "orders"), request)
	if err != nil {
		return nil, err
	}
	raw := exchange.SafeMapList(response, "orders")
	orders := make([]models.Order, 0, len(raw))
	for _, r := range raw {
		orders = append(orders, c.parseOrder(r, market))
	}
	return exchange.FilterBySince(orders, func(o models.Order) *time.Time { return o.Timestamp }, since, limit), nil
}

func (c *Coinbase) FetchMyTrades(ctx context.Context, symbol string, since *time.Time, limit int, params exchange.Params) ([]models.Trade, error) {
	params = params.Clone()
	var market *models.Market
	if symbol != "" {
		m, err := c.market(ctx, symbol)
		if err != nil {
			return nil, err
		}
		market = m
	} else if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	until := params.PopTime("until", "till")

	request := params.Clone()
	if market != nil {
		request["product_id"] = market.ID
	}
	if limit > 0 {
		request["limit"] = limit
	}
	if since != nil {
		request["start_sequence_timestamp"] = exchange.ISO8601(*since)
	}
	if until != nil {
		request["end_sequence_timestamp"] = exchange.ISO8601(*until)
	}
	response, err := c.request(ctx, v3Private(http.MethodGet, "brokerage/orders/historical/fills", "fills"), request)
	if err != nil {
		return nil, err
	}
	return c.parseTrades(exchange.SafeMapList(response, "fills"), market, since, limit), nil
}

var orderStatuses = map[string]models.OrderStatus{
	"OPEN":                 models.OrderStatusOpen,
	"FILLED":               models.OrderStatusClosed,
	"CANCELLED":            models.OrderStatusCanceled,
	"EXPIRED":              models.OrderStatusCanceled,
	"FAILED":               models.OrderStatusCanceled,
	"UNKNOWN_ORDER_STATUS": "",
}

var orderTypes = map[string]models.OrderType{
	"MARKET":             models.OrderTypeMarket,
	"LIMIT":              models.OrderTypeLimit,
	"STOP":               models.OrderTypeLimit,
	"STOP_LIMIT":         models.OrderTypeLimit,
	"UNKNOWN_ORDER_TYPE": "",
}

var timeInForces = map[string]models.TimeInForce{
	"GOOD_UNTIL_CANCELLED":  models.TimeInForceGTC,
	"GOOD_UNTIL_DATE_TIME":  models.TimeInForceGTD,
	"IMMEDIATE_OR_CANCEL":   models.TimeInForceIOC,
	"FILL_OR_KILL":          models.TimeInForceFOK,
	"UNKNOWN_TIME_IN_FORCE": "",
}

func parseOrderStatus(status string) models.OrderStatus {
	if s, ok := orderStatuses[status]; ok {
		return s
	}
	return models.OrderStatus(status)
}

func parseOrderType(typ string) models.OrderType {
	if t, ok := orderTypes[typ]; ok {
		return t
	}
	return models.OrderType(strings.ToLower(typ))
}

func parseTimeInForce(tif string) models.TimeInForce {
	if t, ok := timeInForces[tif]; ok {
		return t
	}
	return models.TimeInForce(tif)
}

func (c *Coinbase) parseOrder(order map[string]any, market *models.Market) models.Order {
	if marketID := exchange.SafeString(order, "product_id"); marketID != "" || market != nil {
		market = c.Markets.SafeMarket(marketID, market, "-")
	}

	configuration := exchange.SafeMap(order, "order_configuration")
	var price, amount, triggerPrice decimal.NullDecimal
	var postOnly *bool
	if target := exchange.SafeMap(configuration, "limit_limit_gtc", "limit_limit_gtd"); target != nil {
		price = exchange.SafeDecimal(target, "limit_price")
		amount = exchange.SafeDecimal(target, "base_size")
		postOnly = exchange.SafeBool(target, "post_only")
	} else if target := exchange.SafeMap(configuration, "stop_limit_stop_limit_gtc", "stop_limit_stop_limit_gtd"); target != nil {
		price = exchange.SafeDecimal(target, "limit_price")
		amount = exchange.SafeDecimal(target, "base_size")
		postOnly = exchange.SafeBool(target, "post_only")
		triggerPrice = exchange.SafeDecimal(target, "stop_price")
	} else {
		amount = exchange.SafeDecimal(exchange.SafeMap(configuration, "market_market_ioc"), "base_size")
	}

	var fee *models.Fee
	if totalFees := exchange.SafeDecimal(order, "total_fees"); totalFees.Valid {
		fee = &models.Fee{Cost: totalFees}
		if market != nil {
			fee.Currency = market.Quote
		}
	}

	o := models.Order{
		ID:            exchange.SafeString(order, "order_id"),
		ClientOrderID: exchange.SafeString(order, "client_order_id"),
		Timestamp:     exchange.SafeTime(order, "created_time"),
		Type:          parseOrderType(exchange.SafeString(order, "order_type")),
		Side:          models.OrderSide(exchange.SafeStringLower(order, "side")),
		TimeInForce:   parseTimeInForce(exchange.SafeString(order, "time_in_force")),
		PostOnly:      postOnly,
		Status:        parseOrderStatus(exchange.SafeString(order, "status")),
		Price:         price,
		TriggerPrice:  triggerPrice,
		Amount:        amount,
		Filled:        exchange.SafeDecimal(order, "filled_size"),
		Average:       exchange.SafeDecimal(order, "average_filled_price"),
		Fee:           fee,
		Info:          order,
	}
	if market != nil {
		o.Symbol = market.Symbol
	}
	exchange.CompleteOrder(&o)
	return o
}

func errGTDEndTime() error {
	return exchange.NewError(exchange.KindExchangeError, ID, "createOrder() requires an end_time parameter for a GTD order")
}
