package exchange

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gregtusar/xchange/pkg/metrics"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Request is a fully built, signed venue call.
type Request struct {
	Method  string
	URL     string
	Query   string
	Body    string
	Headers map[string]string
}

func (r Request) FullURL() string {
	if r.Query == "" {
		return r.URL
	}
	return r.URL + "?" + r.Query
}

// ErrorHandler inspects a decoded response before any success parser sees
// it and returns the classified error, or nil when the body is not an
// error.
type ErrorHandler func(status int, body []byte, decoded any) error

type TransportConfig struct {
	Timeout    time.Duration
	RateLimit  time.Duration
	HTTPClient *http.Client
	Logger     *logrus.Entry
	Metrics    *metrics.Metrics
}

// Transport issues venue calls. It paces requests client-side and never
// retries.
type Transport struct {
	exchange string
	client   *resty.Client
	limiter  *rate.Limiter
	logger   *logrus.Entry
	metrics  *metrics.Metrics
}

func NewTransport(exchange string, cfg TransportConfig) *Transport {
	var client *resty.Client
	if cfg.HTTPClient != nil {
		client = resty.NewWithClient(cfg.HTTPClient)
	} else {
		client = resty.New()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client.SetTimeout(timeout)

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Every(cfg.RateLimit)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Transport{
		exchange: exchange,
		client:   client,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger.WithField("exchange", exchange),
		metrics:  cfg.Metrics,
	}
}

func (t *Transport) Logger() *logrus.Entry {
	return t.logger
}

// Do sends req and returns the raw status and body.
func (t *Transport) Do(ctx context.Context, req Request) (int, []byte, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return 0, nil, &Error{Kind: KindRequestTimeout, Exchange: t.exchange, Message: "rate limiter wait", Err: err}
	}

	r := t.client.R().SetContext(ctx).SetHeaders(req.Headers)
	if req.Body != "" {
		r.SetBody(req.Body)
	}

	start := time.Now()
	resp, err := r.Execute(req.Method, req.FullURL())
	elapsed := time.Since(start)

	if err != nil {
		t.observe(req.Method, "error", elapsed)
		kind := KindNetworkError
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			kind = KindRequestTimeout
		}
		t.logger.WithError(err).WithFields(logrus.Fields{
			"method": req.Method,
			"url":    req.URL,
		}).Warn("Request failed")
		return 0, nil, &Error{Kind: kind, Exchange: t.exchange, Message: req.Method + " " + req.URL, Err: err}
	}

	status := resp.StatusCode()
	t.observe(req.Method, strconv.Itoa(status), elapsed)
	t.logger.WithFields(logrus.Fields{
		"method":   req.Method,
		"url":      req.URL,
		"status":   status,
		"duration": elapsed.String(),
	}).Debug("Request completed")

	return status, resp.Body(), nil
}

// Fetch sends req, runs handle over the decoded body and returns the body
// only when it is a success. Empty and non-JSON bodies are transport
// failures.
func (t *Transport) Fetch(ctx context.Context, req Request, handle ErrorHandler) (any, error) {
	status, body, err := t.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, t.fail(t.statusError(status, "empty response", KindNetworkError))
	}

	decoded, decodeErr := DecodeJSON(trimmed)
	if decodeErr != nil {
		return nil, t.fail(t.statusError(status, "non-JSON response: "+truncate(string(trimmed), 200), KindNetworkError))
	}

	if handle != nil {
		if err := handle(status, trimmed, decoded); err != nil {
			return nil, t.fail(err)
		}
	}
	if status >= http.StatusBadRequest {
		return nil, t.fail(t.statusError(status, string(trimmed), KindExchangeError))
	}
	return decoded, nil
}

func (t *Transport) statusError(status int, message string, fallback Kind) *Error {
	kind, ok := HTTPStatusKind(status)
	if !ok {
		kind = fallback
	}
	if status > 0 {
		message = strconv.Itoa(status) + " " + http.StatusText(status) + " " + message
	}
	return &Error{Kind: kind, Exchange: t.exchange, Message: strings.TrimSpace(message)}
}

func (t *Transport) fail(err error) error {
	if t.metrics != nil {
		kind := string(KindOf(err))
		if kind == "" {
			kind = "unknown"
		}
		t.metrics.ErrorsTotal.WithLabelValues(t.exchange, kind).Inc()
	}
	return err
}

func (t *Transport) observe(method, status string, elapsed time.Duration) {
	if t.metrics == nil {
		return
	}
	t.metrics.RequestsTotal.WithLabelValues(t.exchange, method, status).Inc()
	t.metrics.RequestDuration.WithLabelValues(t.exchange, method).Observe(elapsed.Seconds())
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
