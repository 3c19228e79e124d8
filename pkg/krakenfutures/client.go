// Package krakenfutures adapts the Kraken Futures derivatives API to the
// unified exchange interface.
package krakenfutures

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"

	"github.com/gregtusar/xchange/pkg/exchange"
	"github.com/gregtusar/xchange/pkg/models"
)

type KrakenFutures struct {
	*exchange.Base

	baseURL string
	nonce   *exchange.Nonce
}

var _ exchange.Exchange = (*KrakenFutures)(nil)

func New(cfg exchange.Config) (*KrakenFutures, error) {
	desc := describe()
	baseURL := desc.URLs["rest"]
	if cfg.Sandbox {
		baseURL = sandboxBaseURL
	}
	if cfg.BaseURL != "" {
		baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &KrakenFutures{
		Base:    exchange.NewBase(desc, cfg),
		baseURL: baseURL,
		nonce:   exchange.NewNonce(),
	}, nil
}

// NewExchange is the registry constructor.
func NewExchange(cfg exchange.Config) (exchange.Exchange, error) {
	return New(cfg)
}

// section is the URL family a route lives under.
type section string

const (
	sectionDerivatives section = "derivatives"
	sectionCharts      section = "charts"
)

type endpoint struct {
	section  section
	version  string
	private  bool
	method   string
	path     string
	envelope string
}

func public(path, envelope string) endpoint {
	return endpoint{section: sectionDerivatives, version: "v3", method: http.MethodGet, path: path, envelope: envelope}
}

func private(method, path, envelope string) endpoint {
	return endpoint{section: sectionDerivatives, version: "v3", private: true, method: method, path: path, envelope: envelope}
}

func charts(path string) endpoint {
	return endpoint{section: sectionCharts, version: "v1", method: http.MethodGet, path: path, envelope: "candles"}
}

func (k *KrakenFutures) request(ctx context.Context, ep endpoint, params exchange.Params) (map[string]any, error) {
	req, err := k.sign(ep, params)
	if err != nil {
		return nil, err
	}
	decoded, err := k.Transport.Fetch(ctx, req, k.handleErrors)
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

// sign builds the request. Leftover params travel url-encoded in the
// query string on every method. Private calls carry
//
//	Authent = base64(HMAC-SHA512(base64decode(secret), SHA256(postData + nonce + authPath)))
//
// where authPath is the route below /api/, e.g. /api/v3/sendorder.
func (k *KrakenFutures) sign(ep endpoint, params exchange.Params) (exchange.Request, error) {
	path, query := exchange.ImplodeParams(ep.path, params)
	route := ep.version + "/" + path

	authPath := "/api/" + route
	url := k.baseURL + "/derivatives" + authPath
	if ep.section != sectionDerivatives {
		authPath = "/api/" + string(ep.section) + "/" + route
		url = k.baseURL + authPath
	}

	req := exchange.Request{Method: ep.method, URL: url}
	postData := ""
	if len(query) > 0 {
		postData = query.URLEncode()
		req.Query = postData
	}
	if !ep.private {
		return req, nil
	}

	if err := k.Credentials.Check(ID, k.Desc.RequiredCredentials...); err != nil {
		return exchange.Request{}, err
	}
	secret, err := base64.StdEncoding.DecodeString(k.Credentials.Secret)
	if err != nil {
		return exchange.Request{}, exchange.NewError(exchange.KindAuthenticationError, ID, "api secret is not valid base64")
	}
	nonce := strconv.FormatInt(k.nonce.Next(), 10)
	req.Headers = map[string]string{
		"Content-Type": "application/json",
		"APIKey":       k.Credentials.APIKey,
		"Authent":      authent(secret, postData+nonce+authPath),
		"Nonce":        nonce,
	}
	return req, nil
}

func authent(secret []byte, message string) string {
	hash := sha256.Sum256([]byte(message))
	mac := hmac.New(sha512.New, secret)
	mac.Write(hash[:])
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// handleErrors reads the "error" field of a failed response. A 429 is
// always DDoSProtection.
func (k *KrakenFutures) handleErrors(status int, body []byte, decoded any) error {
	feedback := ID + " " + string(body)
	if status == http.StatusTooManyRequests {
		return &exchange.Error{Kind: exchange.KindDDoSProtection, Exchange: ID, Message: feedback}
	}
	response, _ := decoded.(map[string]any)
	message := exchange.SafeString(response, "error")
	if message == "" {
		if exchange.SafeString(response, "result") == "error" {
			return &exchange.Error{Kind: exchange.KindExchangeError, Exchange: ID, Message: feedback}
		}
		return nil
	}
	if kind, ok := k.Desc.Exceptions.MatchExact(message); ok {
		return &exchange.Error{Kind: kind, Exchange: ID, Message: feedback}
	}
	if kind, ok := k.Desc.Exceptions.MatchBroad(message); ok {
		return &exchange.Error{Kind: kind, Exchange: ID, Message: feedback}
	}
	if status == http.StatusBadRequest {
		return &exchange.Error{Kind: exchange.KindBadRequest, Exchange: ID, Message: feedback}
	}
	return &exchange.Error{Kind: exchange.KindExchangeError, Exchange: ID, Message: feedback}
}

func (k *KrakenFutures) market(ctx context.Context, symbol string) (*models.Market, error) {
	if _, err := k.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	return k.Markets.Market(symbol)
}

// safeMarket resolves a vendor id in any letter case. Instrument lists
// use upper case while fills and order events often do not.
func (k *KrakenFutures) safeMarket(id string, market *models.Market) *models.Market {
	if market != nil || id == "" {
		return k.Markets.SafeMarket(id, market, "")
	}
	for _, candidate := range []string{id, strings.ToUpper(id), strings.ToLower(id)} {
		if m, ok := k.Markets.MarketByID(candidate); ok {
			return m
		}
	}
	return k.Markets.SafeMarket(id, nil, "")
}

func isTrue(b *bool) bool {
	return b != nil && *b
}
