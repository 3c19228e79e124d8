package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gregtusar/xchange/pkg/exchange"
	"github.com/gregtusar/xchange/pkg/metrics"
	"github.com/gregtusar/xchange/pkg/models"
	"github.com/gregtusar/xchange/pkg/poller"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Port           int
	AllowedOrigins []string
	MetricsPath    string
}

// Server exposes the unified adapters over HTTP. Poller and Metrics are
// optional.
type Server struct {
	exchanges map[string]exchange.Exchange
	poller    *poller.TickerPoller
	metrics   *metrics.Metrics
	logger    *logrus.Entry
	cfg       Config
}

func NewServer(exchanges map[string]exchange.Exchange, p *poller.TickerPoller, m *metrics.Metrics, logger *logrus.Entry, cfg Config) *Server {
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	return &Server{
		exchanges: exchanges,
		poller:    p,
		metrics:   m,
		logger:    logger.WithField("component", "api"),
		cfg:       cfg,
	}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/api/health", s.handleHealth)
	r.GET("/api/exchanges", s.handleExchanges)
	r.GET("/api/snapshots", s.handleSnapshots)

	ex := r.Group("/api/:exchange", s.resolveExchange)
	ex.GET("/markets", s.handleMarkets)
	ex.GET("/ticker/*symbol", s.handleTicker)
	ex.GET("/orderbook", s.handleOrderBook)
	ex.GET("/trades", s.handleTrades)
	ex.GET("/ohlcv", s.handleOHLCV)
	ex.GET("/balance", s.handleBalance)
	ex.GET("/orders/open", s.handleOpenOrders)
	ex.POST("/orders", s.handleCreateOrder)
	ex.DELETE("/orders/:id", s.handleCancelOrder)
	ex.GET("/positions", s.handlePositions)

	if s.metrics != nil {
		r.GET(s.cfg.MetricsPath, gin.WrapH(s.metrics.Handler()))
	}
	return r
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("port", s.cfg.Port).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("Shutting down API server")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("Handled request")
	}
}

const exchangeKey = "exchange"

func (s *Server) resolveExchange(c *gin.Context) {
	id := c.Param("exchange")
	ex, ok := s.exchanges[id]
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown exchange %q", id)})
		return
	}
	c.Set(exchangeKey, ex)
	c.Next()
}

func exchangeFrom(c *gin.Context) exchange.Exchange {
	return c.MustGet(exchangeKey).(exchange.Exchange)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

type exchangeInfo struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Has  map[string]bool `json:"has"`
}

func (s *Server) handleExchanges(c *gin.Context) {
	out := make([]exchangeInfo, 0, len(s.exchanges))
	for id, ex := range s.exchanges {
		desc := ex.Describe()
		has := make(map[string]bool, len(desc.Has))
		for op, ok := range desc.Has {
			has[string(op)] = ok
		}
		out = append(out, exchangeInfo{ID: id, Name: desc.Name, Has: has})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleSnapshots(c *gin.Context) {
	if s.poller == nil {
		c.JSON(http.StatusOK, gin.H{"tickers": []poller.Snapshot{}, "basis": []models.BasisSnapshot{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickers": s.poller.Snapshots(), "basis": s.poller.Basis()})
}

func (s *Server) handleMarkets(c *gin.Context) {
	markets, err := exchangeFrom(c).LoadMarkets(c.Request.Context(), c.Query("reload") == "true")
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make([]*models.Market, 0, len(markets))
	for _, m := range markets {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleTicker(c *gin.Context) {
	symbol := strings.TrimPrefix(c.Param("symbol"), "/")
	if symbol == "" {
		badRequest(c, "symbol is required")
		return
	}
	ticker, err := exchangeFrom(c).FetchTicker(c.Request.Context(), symbol, nil)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ticker)
}

func (s *Server) handleOrderBook(c *gin.Context) {
	q, ok := parseQuery(c, true)
	if !ok {
		return
	}
	book, err := exchangeFrom(c).FetchOrderBook(c.Request.Context(), q.symbol, q.limit, nil)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

func (s *Server) handleTrades(c *gin.Context) {
	q, ok := parseQuery(c, true)
	if !ok {
		return
	}
	trades, err := exchangeFrom(c).FetchTrades(c.Request.Context(), q.symbol, q.since, q.limit, nil)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, trades)
}

func (s *Server) handleOHLCV(c *gin.Context) {
	q, ok := parseQuery(c, true)
	if !ok {
		return
	}
	timeframe := c.DefaultQuery("timeframe", "1m")
	candles, err := exchangeFrom(c).FetchOHLCV(c.Request.Context(), q.symbol, timeframe, q.since, q.limit, nil)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, candles)
}

func (s *Server) handleBalance(c *gin.Context) {
	balances, err := exchangeFrom(c).FetchBalance(c.Request.Context(), nil)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, balances)
}

func (s *Server) handleOpenOrders(c *gin.Context) {
	q, ok := parseQuery(c, false)
	if !ok {
		return
	}
	orders, err := exchangeFrom(c).FetchOpenOrders(c.Request.Context(), q.symbol, q.since, q.limit, nil)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (s *Server) handlePositions(c *gin.Context) {
	var symbols []string
	if raw := c.Query("symbols"); raw != "" {
		symbols = strings.Split(raw, ",")
	}
	positions, err := exchangeFrom(c).FetchPositions(c.Request.Context(), symbols, nil)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, positions)
}

type createOrderRequest struct {
	Symbol string           `json:"symbol" binding:"required"`
	Type   models.OrderType `json:"type" binding:"required"`
	Side   models.OrderSide `json:"side" binding:"required"`
	Amount decimal.Decimal  `json:"amount"`
	Price  *decimal.Decimal `json:"price"`
	Params exchange.Params  `json:"params"`
}

func (s *Server) handleCreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if !req.Amount.IsPositive() {
		badRequest(c, "amount must be positive")
		return
	}
	var price decimal.NullDecimal
	if req.Price != nil {
		price = decimal.NewNullDecimal(*req.Price)
	}

	ex := exchangeFrom(c)
	order, err := ex.CreateOrder(c.Request.Context(), req.Symbol, req.Type, req.Side, req.Amount, price, req.Params)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.logger.WithFields(logrus.Fields{
		"exchange": ex.ID(),
		"symbol":   req.Symbol,
		"order_id": order.ID,
	}).Info("Order created")
	c.JSON(http.StatusCreated, order)
}

func (s *Server) handleCancelOrder(c *gin.Context) {
	order, err := exchangeFrom(c).CancelOrder(c.Request.Context(), c.Param("id"), c.Query("symbol"), nil)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type listQuery struct {
	symbol string
	since  *time.Time
	limit  int
}

// parseQuery reads symbol, since (RFC 3339 or epoch milliseconds) and
// limit. It writes the 400 response itself and reports false on failure.
func parseQuery(c *gin.Context, requireSymbol bool) (listQuery, bool) {
	q := listQuery{symbol: c.Query("symbol")}
	if requireSymbol && q.symbol == "" {
		badRequest(c, "symbol is required")
		return q, false
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			badRequest(c, "limit must be a non-negative integer")
			return q, false
		}
		q.limit = limit
	}
	if raw := c.Query("since"); raw != "" {
		since, err := parseSince(raw)
		if err != nil {
			badRequest(c, err.Error())
			return q, false
		}
		q.since = &since
	}
	return q, true
}

func parseSince(raw string) (time.Time, error) {
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("since must be RFC 3339 or epoch milliseconds")
	}
	return t.UTC(), nil
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

func (s *Server) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	entry := s.logger.WithError(err).WithField("path", c.FullPath())
	if status >= http.StatusInternalServerError {
		entry.Error("Exchange call failed")
	} else {
		entry.Warn("Exchange call rejected")
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error": err.Error(),
		"kind":  exchange.KindOf(err),
	})
}

// StatusFor maps an error's kind to an HTTP status. Narrower kinds are
// checked before their ancestors.
func StatusFor(err error) int {
	kind := exchange.KindOf(err)
	if kind == "" {
		return http.StatusInternalServerError
	}
	switch {
	case kind.IsA(exchange.KindOrderNotFound):
		return http.StatusNotFound
	case kind.IsA(exchange.KindPermissionDenied), kind.IsA(exchange.KindAccountSuspended):
		return http.StatusForbidden
	case kind.IsA(exchange.KindAuthenticationError):
		return http.StatusUnauthorized
	case kind.IsA(exchange.KindNotSupported):
		return http.StatusNotImplemented
	case kind.IsA(exchange.KindArgumentsRequired),
		kind.IsA(exchange.KindBadRequest),
		kind.IsA(exchange.KindInvalidOrder),
		kind.IsA(exchange.KindInsufficientFunds),
		kind.IsA(exchange.KindInvalidAddress):
		return http.StatusBadRequest
	case kind.IsA(exchange.KindRateLimitExceeded), kind.IsA(exchange.KindDDoSProtection):
		return http.StatusTooManyRequests
	case kind.IsA(exchange.KindRequestTimeout):
		return http.StatusGatewayTimeout
	case kind.IsA(exchange.KindExchangeNotAvailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}
