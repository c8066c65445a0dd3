package tx

import (
	"encoding/json"
	"strconv"
)

// Helpers for reading loosely typed ledger JSON and codec output, where an
// integer field may arrive as a float64, json.Number, sized integer or
// decimal string depending on the source.

// StringField returns m[key] when it is a string.
func StringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// Uint64Field returns m[key] as an unsigned integer.
func Uint64Field(m map[string]any, key string) (uint64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		if n < 0 || n != float64(uint64(n)) {
			return 0, false
		}
		return uint64(n), true
	case json.Number:
		u, err := strconv.ParseUint(n.String(), 10, 64)
		return u, err == nil
	case string:
		u, err := strconv.ParseUint(n, 10, 64)
		return u, err == nil
	case int:
		return uint64(n), n >= 0
	case int64:
		return uint64(n), n >= 0
	case uint8:
		return uint64(n), true
	case uint16:
		return uint64(n), true
	case uint32:
		return uint64(n), true
	case uint64:
		return n, true
	}
	return 0, false
}

// Uint32Field returns m[key] as a uint32.
func Uint32Field(m map[string]any, key string) (uint32, bool) {
	u, ok := Uint64Field(m, key)
	if !ok || u > 0xFFFFFFFF {
		return 0, false
	}
	return uint32(u), true
}

// MapField returns m[key] when it is an object.
func MapField(m map[string]any, key string) map[string]any {
	v, _ := m[key].(map[string]any)
	return v
}
