package exchange

import (
	"net/http"
	"sort"
	"strings"
)

// ErrorTable maps vendor error codes (Exact) and message fragments (Broad)
// onto canonical kinds.
type ErrorTable struct {
	Exact map[string]Kind
	Broad map[string]Kind
}

func (t ErrorTable) MatchExact(code string) (Kind, bool) {
	if code == "" {
		return "", false
	}
	kind, ok := t.Exact[code]
	return kind, ok
}

// MatchBroad tries longer fragments first so overlapping keys resolve the
// same way on every run.
func (t ErrorTable) MatchBroad(message string) (Kind, bool) {
	if message == "" || len(t.Broad) == 0 {
		return "", false
	}
	keys := make([]string, 0, len(t.Broad))
	for k := range t.Broad {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		if strings.Contains(message, k) {
			return t.Broad[k], true
		}
	}
	return "", false
}

// Classify runs the exact table on code, then the broad table on message,
// and falls back to ExchangeError. Feedback is kept verbatim as the error
// message in every case.
func (t ErrorTable) Classify(exchange, code, message, feedback string) *Error {
	if feedback == "" {
		feedback = strings.TrimSpace(code + " " + message)
	}
	if kind, ok := t.MatchExact(code); ok {
		return &Error{Kind: kind, Exchange: exchange, Message: feedback}
	}
	if kind, ok := t.MatchExact(message); ok {
		return &Error{Kind: kind, Exchange: exchange, Message: feedback}
	}
	if kind, ok := t.MatchBroad(message); ok {
		return &Error{Kind: kind, Exchange: exchange, Message: feedback}
	}
	return &Error{Kind: KindExchangeError, Exchange: exchange, Message: feedback}
}

// HTTPStatusKind is consulted only when a failed response carried no
// vendor error the adapter could classify.
func HTTPStatusKind(status int) (Kind, bool) {
	switch status {
	case http.StatusBadRequest:
		return KindBadRequest, true
	case http.StatusUnauthorized:
		return KindAuthenticationError, true
	case http.StatusForbidden:
		return KindPermissionDenied, true
	case http.StatusNotFound:
		return KindExchangeError, true
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return KindRequestTimeout, true
	case http.StatusTooManyRequests:
		return KindRateLimitExceeded, true
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusInternalServerError:
		return KindExchangeNotAvailable, true
	}
	if status >= 500 {
		return KindExchangeNotAvailable, true
	}
	if status >= 400 {
		return KindExchangeError, true
	}
	return "", false
}
