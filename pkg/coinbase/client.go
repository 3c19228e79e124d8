// Package coinbase adapts Coinbase Advanced Trade (v3) and the Coinbase
// v2 wallet API to the unified exchange interface.
package coinbase

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gregtusar/xchange/pkg/exchange"
	"github.com/gregtusar/xchange/pkg/models"
)

type Coinbase struct {
	*exchange.Base

	options Options
	baseURL string
	wsURL   string
	host    string
	auth    Authenticator

	currencies *exchange.TTLCache[currencyBundle]
	accounts   *exchange.TTLCache[[]models.Account]
}

var _ exchange.Exchange = (*Coinbase)(nil)

func New(cfg exchange.Config) (*Coinbase, error) {
	desc := describe()
	baseURL := desc.URLs["rest"]
	if cfg.Sandbox {
		baseURL = "https://api-sandbox.coinbase.com"
	}
	if cfg.BaseURL != "" {
		baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, exchange.NewError(exchange.KindBadRequest, ID, "invalid base url %q", baseURL)
	}
	auth, err := newAuthenticator(cfg.Credentials)
	if err != nil {
		return nil, err
	}
	options := applyOptions(DefaultOptions(), cfg.Options)

	wsURL := desc.URLs["ws"]
	if s := exchange.SafeString(foldKeys(cfg.Options), "wsurl"); s != "" {
		wsURL = s
	}

	return &Coinbase{
		Base:       exchange.NewBase(desc, cfg),
		options:    options,
		baseURL:    baseURL,
		wsURL:      wsURL,
		host:       parsed.Host,
		auth:       auth,
		currencies: exchange.NewTTLCache[currencyBundle](options.CurrenciesTTL),
		accounts:   exchange.NewTTLCache[[]models.Account](accountsTTL),
	}, nil
}

// NewExchange is the registry constructor.
func NewExchange(cfg exchange.Config) (exchange.Exchange, error) {
	return New(cfg)
}

func (c *Coinbase) Options() Options {
	return c.options
}

// endpoint names one vendor route. envelope is the key a success body
// must carry; v2 routes always require "data".
type endpoint struct {
	version  Version
	private  bool
	method   string
	path     string
	envelope string
}

func v2Public(path string) endpoint {
	return endpoint{version: V2, method: http.MethodGet, path: path, envelope: "data"}
}

func v2Private(method, path string) endpoint {
	return endpoint{version: V2, private: true, method: method, path: path, envelope: "data"}
}

func v3Public(path, envelope string) endpoint {
	return endpoint{version: V3, method: http.MethodGet, path: path, envelope: envelope}
}

func v3Private(method, path, envelope string) endpoint {
	return endpoint{version: V3, private: true, method: method, path: path, envelope: envelope}
}

// request signs and sends one call and returns the decoded success body.
func (c *Coinbase) request(ctx context.Context, ep endpoint, params exchange.Params) (map[string]any, error) {
	req, err := c.sign(ep, params)
	if err != nil {
		return nil, err
	}
	decoded, err := c.Transport.Fetch(ctx, req, c.handleErrors)
	if err != nil {
		return nil, err
	}
	response, ok := decoded.(map[string]any)
	if !ok {
		return nil, exchange.NewError(exchange.KindBadResponse, ID, "malformed response to %s %s", ep.method, ep.path)
	}
	if ep.envelope != "" && !exchange.Has(response, ep.envelope) {
		return nil, exchange.NewError(exchange.KindBadResponse, ID, "failed due to a malformed response, missing %q", ep.envelope)
	}
	return response, nil
}

// sign builds the request. Path placeholders are filled from params and
// the rest goes to the query string on GET, the JSON body otherwise.
func (c *Coinbase) sign(ep endpoint, params exchange.Params) (exchange.Request, error) {
	pathPart := "v2"
	if ep.version == V3 {
		pathPart = "api/v3"
	}
	path, query := exchange.ImplodeParams(ep.path, params)
	fullPath := "/" + pathPart + "/" + path

	req := exchange.Request{
		Method:  ep.method,
		URL:     c.baseURL + fullPath,
		Headers: map[string]string{"CB-VERSION": apiVersion},
	}
	if len(query) > 0 {
		if ep.method == http.MethodGet {
			req.Query = query.URLEncode()
		} else {
			body, err := json.Marshal(query)
			if err != nil {
				return exchange.Request{}, exchange.NewError(exchange.KindBadRequest, ID, "cannot encode request body: %v", err)
			}
			req.Body = string(body)
		}
	}

	if !ep.private {
		return req, nil
	}
	if c.auth == nil {
		return exchange.Request{}, c.Credentials.Check(ID, c.Desc.RequiredCredentials...)
	}
	headers, err := c.auth.AuthHeaders(ep.method, c.host, fullPath, req.Body)
	if err != nil {
		return exchange.Request{}, &exchange.Error{Kind: exchange.KindAuthenticationError, Exchange: ID, Message: "cannot sign request", Err: err}
	}
	for k, v := range headers {
		req.Headers[k] = v
	}
	return req, nil
}

// handleErrors recognizes both the v2 and the v3 error shapes. Anything
// else is left to the status fallback.
func (c *Coinbase) handleErrors(status int, body []byte, decoded any) error {
	response, ok := decoded.(map[string]any)
	if !ok {
		return nil
	}
	feedback := ID + " " + string(body)

	var code, message string
	switch e := response["error"].(type) {
	case string:
		code = e
		message = exchange.SafeString(response, "error_description", "message")
	case map[string]any:
		code = exchange.SafeString(e, "type", "id")
		message = exchange.SafeString(e, "message")
	}
	if code == "" {
		if errs := exchange.SafeMapList(response, "errors"); len(errs) > 0 {
			code = exchange.SafeString(errs[0], "id")
			message = exchange.SafeString(errs[0], "message")
		}
	}
	if code == "" {
		return nil
	}
	return c.Desc.Exceptions.Classify(ID, code, message, feedback)
}

// market loads the market table if needed and resolves symbol.
func (c *Coinbase) market(ctx context.Context, symbol string) (*models.Market, error) {
	if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	return c.Markets.Market(symbol)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
