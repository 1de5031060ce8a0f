package extract

import (
	"strconv"
	"strings"
)

// FirstNonEmpty returns the first candidate that carries a usable value,
// in source order. Candidates come from array-valued provider fields
// whose leading entries are often empty strings, so position alone is
// never trusted. Returns "" when every candidate is empty or the list
// is empty.
func FirstNonEmpty(candidates []any) string {
	for _, c := range candidates {
		s, ok := c.(string)
		if !ok {
			continue
		}
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// FirstString returns the first element of an array-valued field as a
// string, or "" when the field is absent or empty.
func FirstString(values []any) string {
	if len(values) == 0 {
		return ""
	}
	s, ok := values[0].(string)
	if !ok {
		return ""
	}
	return s
}

// AsString converts a duck typed scalar to a string. Providers flip
// between string and numeric encodings for the same field across
// records.
func AsString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		// JSON numbers decode as float64. Most provider numerics are
		// integral codes, so trim the fractional part when it is zero.
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		return ""
	}
}
