package exchange

import (
	"errors"
	"fmt"
)

// Kind is a canonical error category. Kinds form a tree; an error of a
// given kind also matches every ancestor under errors.Is.
type Kind string

const (
	KindExchangeError            Kind = "ExchangeError"
	KindAuthenticationError      Kind = "AuthenticationError"
	KindPermissionDenied         Kind = "PermissionDenied"
	KindAccountSuspended         Kind = "AccountSuspended"
	KindArgumentsRequired        Kind = "ArgumentsRequired"
	KindBadRequest               Kind = "BadRequest"
	KindBadSymbol                Kind = "BadSymbol"
	KindBadResponse              Kind = "BadResponse"
	KindInsufficientFunds        Kind = "InsufficientFunds"
	KindInvalidAddress           Kind = "InvalidAddress"
	KindInvalidOrder             Kind = "InvalidOrder"
	KindOrderNotFound            Kind = "OrderNotFound"
	KindDuplicateOrderID         Kind = "DuplicateOrderId"
	KindOrderImmediatelyFillable Kind = "OrderImmediatelyFillable"
	KindOrderNotFillable         Kind = "OrderNotFillable"
	KindNotSupported             Kind = "NotSupported"
	KindNetworkError             Kind = "NetworkError"
	KindDDoSProtection           Kind = "DDoSProtection"
	KindRateLimitExceeded        Kind = "RateLimitExceeded"
	KindExchangeNotAvailable     Kind = "ExchangeNotAvailable"
	KindOnMaintenance            Kind = "OnMaintenance"
	KindInvalidNonce             Kind = "InvalidNonce"
	KindRequestTimeout           Kind = "RequestTimeout"
)

var kindParents = map[Kind]Kind{
	KindAuthenticationError:      KindExchangeError,
	KindPermissionDenied:         KindAuthenticationError,
	KindAccountSuspended:         KindAuthenticationError,
	KindArgumentsRequired:        KindExchangeError,
	KindBadRequest:               KindExchangeError,
	KindBadSymbol:                KindBadRequest,
	KindBadResponse:              KindExchangeError,
	KindInsufficientFunds:        KindExchangeError,
	KindInvalidAddress:           KindExchangeError,
	KindInvalidOrder:             KindExchangeError,
	KindOrderNotFound:            KindInvalidOrder,
	KindDuplicateOrderID:         KindInvalidOrder,
	KindOrderImmediatelyFillable: KindInvalidOrder,
	KindOrderNotFillable:         KindInvalidOrder,
	KindNotSupported:             KindExchangeError,
	KindDDoSProtection:           KindNetworkError,
	KindRateLimitExceeded:        KindDDoSProtection,
	KindExchangeNotAvailable:     KindNetworkError,
	KindOnMaintenance:            KindExchangeNotAvailable,
	KindInvalidNonce:             KindNetworkError,
	KindRequestTimeout:           KindNetworkError,
}

// IsA reports whether k equals ancestor or descends from it.
func (k Kind) IsA(ancestor Kind) bool {
	for cur := k; cur != ""; cur = kindParents[cur] {
		if cur == ancestor {
			return true
		}
	}
	return false
}

// Error is the error type every adapter returns for vendor and validation
// failures. Message carries the vendor's own diagnostic when there is one.
type Error struct {
	Kind     Kind
	Exchange string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg += ": " + e.Err.Error()
		}
	}
	if e.Exchange == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s %s: %s", e.Exchange, e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels of the same kind or of an ancestor kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Exchange != "" && t.Exchange != e.Exchange {
		return false
	}
	if t.Message != "" && t.Message != e.Message {
		return false
	}
	return e.Kind.IsA(t.Kind)
}

func NewError(kind Kind, exchange, format string, args ...any) *Error {
	return &Error{Kind: kind, Exchange: exchange, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in the chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Sentinels for errors.Is.
var (
	ErrExchange                 = &Error{Kind: KindExchangeError}
	ErrAuthentication           = &Error{Kind: KindAuthenticationError}
	ErrPermissionDenied         = &Error{Kind: KindPermissionDenied}
	ErrAccountSuspended         = &Error{Kind: KindAccountSuspended}
	ErrArgumentsRequired        = &Error{Kind: KindArgumentsRequired}
	ErrBadRequest               = &Error{Kind: KindBadRequest}
	ErrBadSymbol                = &Error{Kind: KindBadSymbol}
	ErrBadResponse              = &Error{Kind: KindBadResponse}
	ErrInsufficientFunds        = &Error{Kind: KindInsufficientFunds}
	ErrInvalidAddress           = &Error{Kind: KindInvalidAddress}
	ErrInvalidOrder             = &Error{Kind: KindInvalidOrder}
	ErrOrderNotFound            = &Error{Kind: KindOrderNotFound}
	ErrDuplicateOrderID         = &Error{Kind: KindDuplicateOrderID}
	ErrOrderImmediatelyFillable = &Error{Kind: KindOrderImmediatelyFillable}
	ErrOrderNotFillable         = &Error{Kind: KindOrderNotFillable}
	ErrNotSupported             = &Error{Kind: KindNotSupported}
	ErrNetwork                  = &Error{Kind: KindNetworkError}
	ErrDDoSProtection           = &Error{Kind: KindDDoSProtection}
	ErrRateLimitExceeded        = &Error{Kind: KindRateLimitExceeded}
	ErrExchangeNotAvailable     = &Error{Kind: KindExchangeNotAvailable}
	ErrOnMaintenance            = &Error{Kind: KindOnMaintenance}
	ErrInvalidNonce             = &Error{Kind: KindInvalidNonce}
	ErrRequestTimeout           = &Error{Kind: KindRequestTimeout}
)
