// Package urlargs turns page-load query parameters into setting assignments
// and one batched dataset load request.
package urlargs

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Param is one query key with every value it was given, in order.
type Param struct {
	Key    string
	Raw    []string
	Values []any
}

// Value returns the single native value, or a []any when the key repeated.
func (p Param) Value() any {
	switch len(p.Values) {
	case 0:
		return nil
	case 1:
		return p.Values[0]
	default:
		return append([]any(nil), p.Values...)
	}
}

// Strings flattens the parameter into a string sequence. A lone value is a
// one-element sequence and a bracketed list ("[a,b]") expands in place.
func (p Param) Strings() []string {
	out := make([]string, 0, len(p.Values))
	for _, value := range p.Values {
		out = appendStrings(out, value)
	}
	return out
}

func appendStrings(out []string, value any) []string {
	switch typed := value.(type) {
	case []any:
		for _, item := range typed {
			out = appendStrings(out, item)
		}
		return out
	case nil:
		return out
	default:
		return append(out, formatValue(typed))
	}
}

func formatValue(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case bool:
		return strconv.FormatBool(typed)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	default:
		return ""
	}
}

// Params is an order-preserving view of a query string.
type Params struct {
	order []string
	byKey map[string]*Param
}

// Parse splits rawQuery the way the viewer's URL extractor does: a leading
// "?" or "#" is ignored, repeated keys accumulate, a key without "=" is
// true, and values are converted to native types. Parse never fails;
// undecodable escapes are kept verbatim.
func Parse(rawQuery string) Params {
	params := Params{byKey: map[string]*Param{}}
	rawQuery = strings.TrimLeft(rawQuery, "?#")
	for _, token := range strings.Split(rawQuery, "&") {
		if token == "" {
			continue
		}
		rawKey, rawValue, hasValue := strings.Cut(token, "=")
		key := unescape(rawKey)
		if key == "" {
			continue
		}
		var raw string
		var value any = true
		if hasValue {
			raw = unescape(rawValue)
			value = ToNative(raw)
		}

		param, ok := params.byKey[key]
		if !ok {
			param = &Param{Key: key}
			params.byKey[key] = param
			params.order = append(params.order, key)
		}
		param.Raw = append(param.Raw, raw)
		param.Values = append(param.Values, value)
	}
	return params
}

// ParseURL parses the query of a full URL. Unparseable input yields empty
// Params.
func ParseURL(raw string) Params {
	u, err := url.Parse(raw)
	if err != nil {
		return Params{byKey: map[string]*Param{}}
	}
	return Parse(u.RawQuery)
}

// Keys returns keys in first-seen order.
func (p Params) Keys() []string {
	return append([]string(nil), p.order...)
}

// Get returns the parameter for key.
func (p Params) Get(key string) (Param, bool) {
	param, ok := p.byKey[key]
	if !ok {
		return Param{}, false
	}
	return *param, true
}

// Len returns the number of distinct keys.
func (p Params) Len() int {
	return len(p.order)
}

func unescape(value string) string {
	decoded, err := url.QueryUnescape(value)
	if err != nil {
		return value
	}
	return decoded
}

// ToNative converts a query value: "true"/"false" to bool, "null" to nil,
// numerals to float64 and "[a,b]" to a []any of converted items. Anything
// else stays a string.
func ToNative(value string) any {
	switch value {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	case "":
		return ""
	}
	if len(value) >= 2 && value[0] == '[' && value[len(value)-1] == ']' {
		inner := value[1 : len(value)-1]
		if strings.TrimSpace(inner) == "" {
			return []any{}
		}
		parts := strings.Split(inner, ",")
		out := make([]any, len(parts))
		for i, part := range parts {
			out[i] = ToNative(strings.TrimSpace(part))
		}
		return out
	}
	if number, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil && !math.IsInf(number, 0) && !math.IsNaN(number) {
		return number
	}
	return value
}
