package exchange

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Params is the open-ended pass-through map every unified call accepts.
// Adapters Clone it, Pop the keys they understand, and forward the rest
// to the venue unchanged.
type Params map[string]any

func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func (p Params) Omit(keys ...string) Params {
	out := p.Clone()
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// Extend returns a copy of p with other's keys laid over it.
func (p Params) Extend(other map[string]any) Params {
	out := p.Clone()
	for k, v := range other {
		out[k] = v
	}
	return out
}

func (p Params) Has(key string) bool {
	_, ok := p[key]
	return ok
}

func (p Params) String(keys ...string) string {
	return SafeString(p, keys...)
}

func (p Params) Decimal(keys ...string) decimal.NullDecimal {
	return SafeDecimal(p, keys...)
}

func (p Params) Bool(keys ...string) (bool, bool) {
	b := SafeBool(p, keys...)
	if b == nil {
		return false, false
	}
	return *b, true
}

func (p Params) del(keys []string) {
	for _, k := range keys {
		delete(p, k)
	}
}

// PopString returns the first non-empty value among keys and removes all
// of them.
func (p Params) PopString(keys ...string) string {
	v := p.String(keys...)
	p.del(keys)
	return v
}

func (p Params) PopDecimal(keys ...string) decimal.NullDecimal {
	v := p.Decimal(keys...)
	p.del(keys)
	return v
}

func (p Params) PopBool(keys ...string) (bool, bool) {
	v, ok := p.Bool(keys...)
	p.del(keys)
	return v, ok
}

func (p Params) PopInt64(keys ...string) (int64, bool) {
	v, ok := SafeInt64(p, keys...)
	p.del(keys)
	return v, ok
}

// PopTime accepts time.Time, *time.Time, epoch milliseconds or an
// ISO-8601 string.
func (p Params) PopTime(keys ...string) *time.Time {
	defer p.del(keys)
	for _, k := range keys {
		switch x := p[k].(type) {
		case time.Time:
			return &x
		case *time.Time:
			if x != nil {
				return x
			}
		case string:
			if t := ParseISO8601(x); t != nil {
				return t
			}
			if t := SafeTimestampMillis(p, k); t != nil {
				return t
			}
		default:
			if t := SafeTimestampMillis(p, k); t != nil {
				return t
			}
		}
	}
	return nil
}

// URLEncode renders p as a query string with sorted keys. Slices repeat
// the key once per element.
func (p Params) URLEncode() string {
	return p.Values().Encode()
}

func (p Params) Values() url.Values {
	values := url.Values{}
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch x := p[k].(type) {
		case []string:
			for _, s := range x {
				values.Add(k, s)
			}
		case []any:
			for _, item := range x {
				values.Add(k, stringify(item))
			}
		default:
			values.Add(k, stringify(x))
		}
	}
	return values
}

// ImplodeParams fills {placeholder} segments of path from params and
// returns the params left over.
func ImplodeParams(path string, params Params) (string, Params) {
	rest := params.Clone()
	for key, value := range params {
		placeholder := "{" + key + "}"
		if strings.Contains(path, placeholder) {
			path = strings.ReplaceAll(path, placeholder, url.PathEscape(stringify(value)))
			delete(rest, key)
		}
	}
	return path, rest
}
