package exchange

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// DecodeJSON decodes with UseNumber so numeric fields stay exact decimal
// strings until a parser asks for them.
func DecodeJSON(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// SafeValue returns the first present, non-null value among keys.
func SafeValue(m map[string]any, keys ...string) any {
	if m == nil {
		return nil
	}
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return decimal.NewFromFloat(x).String()
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case decimal.Decimal:
		return x.String()
	case fmt.Stringer:
		return x.String()
	}
	return ""
}

// SafeString returns the first non-empty value among keys rendered as a
// string. Numbers are rendered exactly.
func SafeString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := stringify(SafeValue(m, k)); s != "" {
			return s
		}
	}
	return ""
}

func SafeStringLower(m map[string]any, keys ...string) string {
	return strings.ToLower(SafeString(m, keys...))
}

func SafeStringUpper(m map[string]any, keys ...string) string {
	return strings.ToUpper(SafeString(m, keys...))
}

// SafeDecimal returns the first parsable number among keys.
func SafeDecimal(m map[string]any, keys ...string) decimal.NullDecimal {
	for _, k := range keys {
		s := stringify(SafeValue(m, k))
		if s == "" {
			continue
		}
		if d, err := decimal.NewFromString(s); err == nil {
			return decimal.NewNullDecimal(d)
		}
	}
	return decimal.NullDecimal{}
}

// DecimalAt reads element i of a positional array such as a
// [price, size] book level.
func DecimalAt(list []any, i int) decimal.NullDecimal {
	if i < 0 || i >= len(list) {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(stringify(list[i]))
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func SafeInt64(m map[string]any, keys ...string) (int64, bool) {
	d := SafeDecimal(m, keys...)
	if !d.Valid {
		return 0, false
	}
	return d.Decimal.IntPart(), true
}

// SafeBool accepts JSON booleans and the strings "true" and "false".
func SafeBool(m map[string]any, keys ...string) *bool {
	for _, k := range keys {
		switch x := SafeValue(m, k).(type) {
		case bool:
			return &x
		case string:
			if b, err := strconv.ParseBool(x); err == nil {
				return &b
			}
		}
	}
	return nil
}

func SafeMap(m map[string]any, keys ...string) map[string]any {
	for _, k := range keys {
		if x, ok := SafeValue(m, k).(map[string]any); ok {
			return x
		}
	}
	return nil
}

func SafeList(m map[string]any, keys ...string) []any {
	for _, k := range keys {
		if x, ok := SafeValue(m, k).([]any); ok {
			return x
		}
	}
	return nil
}

// SafeMapList returns the object elements of a list, skipping anything
// else.
func SafeMapList(m map[string]any, keys ...string) []map[string]any {
	return MapList(SafeList(m, keys...))
}

func MapList(list []any) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if x, ok := item.(map[string]any); ok {
			out = append(out, x)
		}
	}
	return out
}

// Has reports whether key is present, even when null.
func Has(m map[string]any, key string) bool {
	if m == nil {
		return false
	}
	_, ok := m[key]
	return ok
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
}

// ParseISO8601 returns nil for anything it cannot read.
func ParseISO8601(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// SafeTime reads an ISO-8601 string.
func SafeTime(m map[string]any, keys ...string) *time.Time {
	for _, k := range keys {
		if t := ParseISO8601(SafeString(m, k)); t != nil {
			return t
		}
	}
	return nil
}

func SafeTimestampMillis(m map[string]any, keys ...string) *time.Time {
	ms, ok := SafeInt64(m, keys...)
	if !ok {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}

func SafeTimestampSeconds(m map[string]any, keys ...string) *time.Time {
	d := SafeDecimal(m, keys...)
	if !d.Valid {
		return nil
	}
	t := time.UnixMilli(d.Decimal.Shift(3).IntPart()).UTC()
	return &t
}

// SafeTimeAny accepts an ISO string or epoch milliseconds.
func SafeTimeAny(m map[string]any, keys ...string) *time.Time {
	for _, k := range keys {
		switch SafeValue(m, k).(type) {
		case json.Number, int64, float64, int:
			if t := SafeTimestampMillis(m, k); t != nil {
				return t
			}
		case string:
			if t := SafeTime(m, k); t != nil {
				return t
			}
		}
	}
	return nil
}

func Bool(b bool) *bool {
	return &b
}

func TimePtr(t time.Time) *time.Time {
	return &t
}

// ISO8601 renders t in the millisecond UTC form venues expect.
func ISO8601(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
