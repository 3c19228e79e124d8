package coinbase

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/gregtusar/xchange/pkg/exchange"
	"github.com/gregtusar/xchange/pkg/models"
)

const (
	wsHandshakeTimeout = 10 * time.Second
	wsPingInterval     = 30 * time.Second
)

type subscribeMessage struct {
	Type       string   `json:"type"`
	ProductIDs []string `json:"product_ids"`
	Channel    string   `json:"channel"`
	JWT        string   `json:"jwt,omitempty"`
}

// WatchTicker streams the ticker channel for symbols and calls handler for
// every update until ctx is done or the connection drops.
func (c *Coinbase) WatchTicker(ctx context.Context, symbols []string, handler func(models.Ticker)) error {
	if len(symbols) == 0 {
		return c.ArgumentsRequired(exchange.OpWatchTicker, "symbols")
	}
	productIDs := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		market, err := c.market(ctx, symbol)
		if err != nil {
			return err
		}
		productIDs = append(productIDs, market.ID)
	}

	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return &exchange.Error{Kind: exchange.KindNetworkError, Exchange: ID, Message: "failed to connect to websocket", Err: err}
	}
	defer conn.Close()

	sub := subscribeMessage{Type: "subscribe", ProductIDs: productIDs, Channel: "ticker"}
	if jwtAuth, ok := c.auth.(*JWTAuthenticator); ok {
		token, err := jwtAuth.generateWSJWT()
		if err != nil {
			return &exchange.Error{Kind: exchange.KindAuthenticationError, Exchange: ID, Message: "cannot sign subscription", Err: err}
		}
		sub.JWT = token
	}

	if err := conn.WriteJSON(sub); err != nil {
		return &exchange.Error{Kind: exchange.KindNetworkError, Exchange: ID, Message: "failed to subscribe", Err: err}
	}
	c.Logger.WithField("products", productIDs).Info("Subscribed to ticker channel")

	var writeMu sync.Mutex
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		writeMu.Unlock()
		conn.Close()
	}()
	go c.keepAlive(ctx, conn, &writeMu)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.Logger.WithError(err).Error("Failed to read websocket message")
			return &exchange.Error{Kind: exchange.KindNetworkError, Exchange: ID, Message: "websocket read failed", Err: err}
		}
		for _, ticker := range c.parseTickerMessage(data) {
			handler(ticker)
		}
	}
}

// parseTickerMessage returns the tickers carried by one frame. Frames on
// other channels, such as subscriptions or heartbeats, yield nothing.
func (c *Coinbase) parseTickerMessage(data []byte) []models.Ticker {
	decoded, err := exchange.DecodeJSON(data)
	if err != nil {
		c.Logger.WithError(err).Warn("Dropping malformed websocket frame")
		return nil
	}
	msg, ok := decoded.(map[string]any)
	if !ok || exchange.SafeString(msg, "channel") != "ticker" {
		return nil
	}
	var out []models.Ticker
	for _, event := range exchange.SafeMapList(msg, "events") {
		for _, raw := range exchange.SafeMapList(event, "tickers") {
			out = append(out, c.parseTicker(raw, nil))
		}
	}
	return out
}

func (c *Coinbase) keepAlive(ctx context.Context, conn *websocket.Conn, mu *sync.Mutex) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mu.Lock()
			err := conn.WriteMessage(websocket.PingMessage, nil)
			mu.Unlock()
			if err != nil {
				c.Logger.WithError(err).Error("Failed to send ping")
				return
			}
		}
	}
}
