package easyparcel

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
)

// encodeForm flattens params into a form body. Nested lists and maps use
// bracket notation, so {"bulk": [{"weight": 1}]} becomes bulk[0][weight]=1.
func encodeForm(params map[string]any) url.Values {
	form := url.Values{}
	for _, key := range sortedKeys(params) {
		appendValue(form, key, params[key])
	}
	return form
}

func appendValue(form url.Values, key string, v any) {
	switch t := v.(type) {
	case nil:
	case Payload:
		appendValue(form, key, map[string]any(t))
	case map[string]any:
		for _, k := range sortedKeys(t) {
			appendValue(form, key+"["+k+"]", t[k])
		}
	case map[string]string:
		for k, s := range t {
			form.Add(key+"["+k+"]", s)
		}
	case []Payload:
		for i, p := range t {
			appendValue(form, fmt.Sprintf("%s[%d]", key, i), p)
		}
	case []map[string]any:
		for i, m := range t {
			appendValue(form, fmt.Sprintf("%s[%d]", key, i), m)
		}
	case []any:
		for i, item := range t {
			appendValue(form, fmt.Sprintf("%s[%d]", key, i), item)
		}
	case []string:
		for i, s := range t {
			form.Add(fmt.Sprintf("%s[%d]", key, i), s)
		}
	default:
		form.Add(key, formatScalar(v))
	}
}

// formatScalar renders scalars the way the API's reference client does:
// whole floats without a decimal point, booleans as 1 or 0.
func formatScalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
