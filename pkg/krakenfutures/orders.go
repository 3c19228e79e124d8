package krakenfutures

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gregtusar/xchange/pkg/exchange"
	"github.com/gregtusar/xchange/pkg/models"
	"github.com/gregtusar/xchange/pkg/precise"
	"github.com/shopspring/decimal"
)

// buildOrderRequest resolves the venue order type from the unified type
// and the stopPrice, postOnly and timeInForce params, checked in that
// order.
func (k *KrakenFutures) buildOrderRequest(market *models.Market, typ models.OrderType, side models.OrderSide, amount decimal.Decimal, price decimal.NullDecimal, params exchange.Params) (exchange.Params, error) {
	orderType := params.PopString("orderType")
	if orderType == "" {
		orderType = string(typ)
	}
	timeInForce := strings.ToLower(params.PopString("timeInForce"))
	stopPrice := params.PopDecimal("stopPrice", "triggerPrice")
	postOnly, _ := params.PopBool("postOnly")
	if orderType == "post" {
		postOnly = true
	}
	if postOnly && orderType == string(models.OrderTypeMarket) {
		return nil, exchange.NewError(exchange.KindInvalidOrder, ID, "createOrder() does not support postOnly market orders")
	}
	clientOrderID := params.PopString("clientOrderId", "cliOrdId")

	if (orderType == "stp" || orderType == "take_profit") && !stopPrice.Valid {
		return nil, exchange.NewError(exchange.KindArgumentsRequired, ID, "createOrder() requires params.stopPrice when type is %s", orderType)
	}
	switch {
	case stopPrice.Valid && orderType != "take_profit":
		orderType = "stp"
	case postOnly:
		orderType = "post"
	case timeInForce == "ioc":
		orderType = "ioc"
	case orderType == string(models.OrderTypeLimit):
		orderType = "lmt"
	case orderType == string(models.OrderTypeMarket):
		orderType = "mkt"
	}

	request := params.Extend(map[string]any{
		"orderType": orderType,
		"symbol":    market.ID,
		"side":      string(side),
		"size":      precise.AmountToPrecision(amount, market.Precision.Amount),
	})
	if price.Valid {
		request["limitPrice"] = precise.PriceToPrecision(price.Decimal, market.Precision.Price)
	}
	if stopPrice.Valid {
		request["stopPrice"] = precise.PriceToPrecision(stopPrice.Decimal, market.Precision.Price)
	}
	if clientOrderID != "" {
		request["cliOrdId"] = clientOrderID
	}
	return request, nil
}

func (k *KrakenFutures) CreateOrder(ctx context.Context, symbol string, typ models.OrderType, side models.OrderSide, amount decimal.Decimal, price decimal.NullDecimal, params exchange.Params) (*models.Order, error) {
	params = params.Clone()
	market, err := k.market(ctx, symbol)
	if err != nil {
		return nil, err
	}
	request, err := k.buildOrderRequest(market, typ, side, amount, price, params)
	if err != nil {
		return nil, err
	}
	response, err := k.request(ctx, private(http.MethodPost, "sendorder", "sendStatus"), request)
	if err != nil {
		return nil, err
	}
	sendStatus := exchange.SafeMap(response, "sendStatus")
	if err := verifyOrderActionSuccess(exchange.SafeString(sendStatus, "status"), exchange.OpCreateOrder, "filled"); err != nil {
		return nil, err
	}
	order := k.parseOrder(sendStatus, market)
	k.Logger.WithField("order_id", order.ID).WithField("symbol", order.Symbol).Debug("Order placed")
	return &order, nil
}

// EditOrder changes size and limit price of a resting order. Type and
// side cannot change on this venue and are ignored.
func (k *KrakenFutures) EditOrder(ctx context.Context, id, symbol string, typ models.OrderType, side models.OrderSide, amount, price decimal.NullDecimal, params exchange.Params) (*models.Order, error) {
	if _, err := k.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	request := params.Extend(map[string]any{"orderId": id})
	if amount.Valid {
		request["size"] = amount.Decimal.String()
	}
	if price.Valid {
		request["limitPrice"] = price.Decimal.String()
	}
	response, err := k.request(ctx, private(http.MethodPost, "editorder", "editStatus"), request)
	if err != nil {
		return nil, err
	}
	editStatus := exchange.SafeMap(response, "editStatus")
	if err := verifyOrderActionSuccess(exchange.SafeString(editStatus, "status"), exchange.OpEditOrder, "filled"); err != nil {
		return nil, err
	}
	order := k.parseOrder(editStatus, nil)
	order.Info = response
	return &order, nil
}

func (k *KrakenFutures) CancelOrder(ctx context.Context, id, symbol string, params exchange.Params) (*models.Order, error) {
	if _, err := k.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	request := params.Extend(map[string]any{"order_id": id})
	response, err := k.request(ctx, private(http.MethodPost, "cancelorder", ""), request)
	if err != nil {
		return nil, err
	}
	cancelStatus := exchange.SafeMap(response, "cancelStatus")
	if err := verifyOrderActionSuccess(exchange.SafeString(cancelStatus, "status"), exchange.OpCancelOrder); err != nil {
		return nil, err
	}
	order := models.Order{ID: id, Trades: []models.Trade{}}
	if cancelStatus != nil {
		order = k.parseOrder(cancelStatus, nil)
		if order.ID == "" {
			order.ID = id
		}
	}
	order.Info = response
	return &order, nil
}

// CancelAllOrders cancels every open order, or those of one market.
func (k *KrakenFutures) CancelAllOrders(ctx context.Context, symbol string, params exchange.Params) ([]models.Order, error) {
	request := params.Clone()
	if symbol != "" {
		market, err := k.market(ctx, symbol)
		if err != nil {
			return nil, err
		}
		request["symbol"] = market.ID
	}
	response, err := k.request(ctx, private(http.MethodPost, "cancelallorders", "cancelStatus"), request)
	if err != nil {
		return nil, err
	}
	cancelled := exchange.SafeMapList(exchange.SafeMap(response, "cancelStatus"), "cancelledOrders")
	orders := make([]models.Order, 0, len(cancelled))
	for _, raw := range cancelled {
		orders = append(orders, models.Order{
			ID:            exchange.SafeString(raw, "order_id"),
			ClientOrderID: exchange.SafeString(raw, "cliOrdId"),
			Status:        models.OrderStatusCanceled,
			Trades:        []models.Trade{},
			Info:          raw,
		})
	}
	return orders, nil
}

func (k *KrakenFutures) CancelOrders(ctx context.Context, ids []string, symbol string, params exchange.Params) ([]models.Order, error) {
	return nil, k.NotSupported(exchange.OpCancelOrders)
}

func (k *KrakenFutures) FetchOpenOrders(ctx context.Context, symbol string, since *time.Time, limit int, params exchange.Params) ([]models.Order, error) {
	var market *models.Market
	if symbol != "" {
		m, err := k.market(ctx, symbol)
		if err != nil {
			return nil, err
		}
		market = m
	} else if _, err := k.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	response, err := k.request(ctx, private(http.MethodGet, "openorders", "openOrders"), params.Clone())
	if err != nil {
		return nil, err
	}
	orders := make([]models.Order, 0)
	for _, raw := range exchange.SafeMapList(response, "openOrders") {
		order := k.parseOrder(raw, nil)
		if market != nil && order.Symbol != market.Symbol {
			continue
		}
		orders = append(orders, order)
	}
	return exchange.FilterBySince(orders, func(o models.Order) *time.Time { return o.Timestamp }, since, limit), nil
}

func (k *KrakenFutures) FetchMyTrades(ctx context.Context, symbol string, since *time.Time, limit int, params exchange.Params) ([]models.Trade, error) {
	var market *models.Market
	if symbol != "" {
		m, err := k.market(ctx, symbol)
		if err != nil {
			return nil, err
		}
		market = m
	} else if _, err := k.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	response, err := k.request(ctx, private(http.MethodGet, "fills", "fills"), params.Clone())
	if err != nil {
		return nil, err
	}
	trades := k.parseTrades(exchange.SafeMapList(response, "fills"), nil, nil, 0)
	if market != nil {
		filtered := trades[:0]
		for _, t := range trades {
			if t.Symbol == market.Symbol {
				filtered = append(filtered, t)
			}
		}
		trades = filtered
	}
	return exchange.FilterBySince(trades, func(t models.Trade) *time.Time { return t.Timestamp }, since, limit), nil
}

// verifyOrderActionSuccess turns the status of a send, edit or cancel
// into an error. Statuses listed in omit are accepted.
func verifyOrderActionSuccess(status string, op exchange.Operation, omit ...string) error {
	kind, ok := orderActionErrors[status]
	if !ok {
		return nil
	}
	for _, s := range omit {
		if s == status {
			return nil
		}
	}
	return exchange.NewError(kind, ID, "%s failed due to %s", op, status)
}

var orderStatuses = map[string]models.OrderStatus{
	"placed":                     models.OrderStatusOpen,
	"cancelled":                  models.OrderStatusCanceled,
	"invalidOrderType":           models.OrderStatusRejected,
	"invalidSide":                models.OrderStatusRejected,
	"invalidSize":                models.OrderStatusRejected,
	"invalidPrice":               models.OrderStatusRejected,
	"insufficientAvailableFunds": models.OrderStatusRejected,
	"selfFill":                   models.OrderStatusRejected,
	"tooManySmallOrders":         models.OrderStatusRejected,
	"maxPositionViolation":       models.OrderStatusRejected,
	"marketSuspended":            models.OrderStatusRejected,
	"marketInactive":             models.OrderStatusRejected,
	"clientOrderIdAlreadyExist":  models.OrderStatusRejected,
	"clientOrderIdTooLong":       models.OrderStatusRejected,
	"outsidePriceCollar":         models.OrderStatusRejected,
	"postWouldExecute":           models.OrderStatusRejected,
	"iocWouldNotExecute":         models.OrderStatusRejected,
	"wouldNotReducePosition":     models.OrderStatusRejected,
	"edited":                     models.OrderStatusOpen,
	"orderForEditNotFound":       models.OrderStatusRejected,
	"orderForEditNotAStop":       models.OrderStatusRejected,
	"filled":                     models.OrderStatusClosed,
	"notFound":                   models.OrderStatusRejected,
	"untouched":                  models.OrderStatusOpen,
	"partiallyFilled":            models.OrderStatusOpen,
}

func parseOrderStatus(status string) models.OrderStatus {
	if s, ok := orderStatuses[status]; ok {
		return s
	}
	return models.OrderStatus(status)
}

func parseOrderType(typ string) models.OrderType {
	switch typ {
	case "lmt", "post":
		return models.OrderTypeLimit
	case "mkt", "ioc":
		return models.OrderTypeMarket
	}
	return models.OrderType(typ)
}

// parseOrder reads a send, edit or cancel status, or an open order.
//
// Status reports carry orderEvents. Each event holds either the order as
// it stands after the event ("order", "new" or "orderTrigger") or, for an
// EXECUTION or EDIT, the order just before it ("orderPriorExecution" or
// "orderPriorEdit"). The last event with either wins. A prior snapshot
// only counts executions from its own event onward, so filled is never
// counted twice.
func (k *KrakenFutures) parseOrder(order map[string]any, market *models.Market) models.Order {
	var (
		details   map[string]any
		isPrior   bool
		priorFrom int
		statusID  string
		price     decimal.NullDecimal
		trades    = []models.Trade{}
		sinceLast = precise.Zero
	)
	if events := exchange.SafeMapList(order, "orderEvents"); len(events) > 0 {
		var executions []map[string]any
		for i, event := range events {
			if exchange.SafeString(event, "type") == "EXECUTION" {
				executions = append(executions, event)
			}
			if final := exchange.SafeMap(event, "new", "order", "orderTrigger"); final != nil {
				details = final
				isPrior = false
				price = decimal.NullDecimal{}
			} else if prior := exchange.SafeMap(event, "orderPriorExecution", "orderPriorEdit"); prior != nil {
				details = prior
				isPrior = true
				priorFrom = i
				price = exchange.SafeDecimal(exchange.SafeMap(event, "orderPriorExecution"), "limitPrice")
			}
		}
		trades = k.parseTrades(executions, nil, nil, 0)
		if isPrior {
			for _, event := range events[priorFrom:] {
				if exchange.SafeString(event, "type") == "EXECUTION" {
					sinceLast = precise.Add(sinceLast, exchange.SafeDecimal(event, "amount"))
				}
			}
		}
		statusID = exchange.SafeString(order, "status")
	}
	if details == nil {
		details = order
	}
	if statusID == "" {
		statusID = exchange.SafeString(details, "status")
	}
	status := parseOrderStatus(statusID)
	closed := status == models.OrderStatusCanceled || status == models.OrderStatusRejected || status == models.OrderStatusClosed

	market = k.safeMarket(exchange.SafeString(details, "symbol"), market)
	if !price.Valid {
		price = exchange.SafeDecimal(details, "limitPrice")
	}
	amount := exchange.SafeDecimal(details, "quantity")
	filled := exchange.SafeDecimal(details, "filledSize", "filled")
	if !filled.Valid {
		filled = precise.Zero
	}
	remaining := exchange.SafeDecimal(details, "unfilledSize")

	var average decimal.NullDecimal
	if len(trades) > 0 {
		executed := precise.Zero
		vwapSum := precise.Zero
		for _, t := range trades {
			executed = precise.Add(executed, t.Amount)
			vwapSum = precise.Add(vwapSum, precise.Mul(t.Amount, t.Price))
		}
		average = precise.Div(vwapSum, executed)
		if isPrior {
			filled = precise.Add(filled, sinceLast)
		} else {
			filled = precise.Max(filled, executed)
		}
	}
	if !remaining.Valid && amount.Valid {
		remaining = precise.Sub(amount, filled)
	}
	if !amount.Valid && remaining.Valid {
		amount = precise.Add(filled, remaining)
	}
	if !closed && amount.Valid && amount.Decimal.IsPositive() && precise.Ge(filled, amount) {
		status = models.OrderStatusClosed
	}

	var cost decimal.NullDecimal
	which := average
	if !which.Valid {
		which = price
	}
	if filled.Valid && which.Valid {
		if isTrue(market.Linear) {
			cost = precise.Mul(filled, which)
		} else {
			cost = precise.Div(filled, which)
		}
	}

	id := exchange.SafeString(order, "order_id", "orderId")
	if id == "" {
		id = exchange.SafeString(details, "orderId", "uid")
	}
	typ := exchange.SafeStringLower(details, "type", "orderType")
	timeInForce := models.TimeInForceGTC
	if typ == "ioc" || parseOrderType(typ) == models.OrderTypeMarket {
		timeInForce = models.TimeInForceIOC
	}

	return models.Order{
		ID:            id,
		ClientOrderID: exchange.SafeString(details, "clientOrderId", "clientId", "cliOrdId"),
		Symbol:        market.Symbol,
		Timestamp:     exchange.SafeTime(details, "timestamp", "receivedTime"),
		LastUpdate:    exchange.SafeTime(details, "lastUpdateTimestamp", "lastUpdateTime"),
		Type:          parseOrderType(typ),
		Side:          models.OrderSide(exchange.SafeString(details, "side")),
		TimeInForce:   timeInForce,
		PostOnly:      exchange.Bool(typ == "post"),
		ReduceOnly:    exchange.SafeBool(details, "reduceOnly"),
		Status:        status,
		Price:         price,
		TriggerPrice:  exchange.SafeDecimal(details, "triggerPrice", "stopPrice"),
		Amount:        amount,
		Filled:        filled,
		Remaining:     remaining,
		Cost:          cost,
		Average:       average,
		Trades:        trades,
		Info:          order,
	}
}
