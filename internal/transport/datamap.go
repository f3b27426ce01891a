package transport

import (
	"encoding/json"
	"math"
)

// DataMap is the body of an item. Getters return zero values for missing
// or mistyped keys; numbers decoded from JSON arrive as float64.
type DataMap map[string]any

// Has reports whether key is present.
func (m DataMap) Has(key string) bool {
	_, ok := m[key]
	return ok
}

// Int returns the integer under key, or 0.
func (m DataMap) Int(key string) int {
	v, _ := m.int64(key)
	return int(v)
}

// Int64 returns the integer under key, or 0.
func (m DataMap) Int64(key string) int64 {
	v, _ := m.int64(key)
	return v
}

// IntOK returns the integer under key and whether it was present and numeric.
func (m DataMap) IntOK(key string) (int, bool) {
	v, ok := m.int64(key)
	return int(v), ok
}

// String returns the string under key, or "".
func (m DataMap) String(key string) string {
	s, _ := m[key].(string)
	return s
}

func (m DataMap) int64(key string) (int64, bool) {
	switch v := m[key].(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Clone returns a shallow copy, so peers never share one map.
func (m DataMap) Clone() DataMap {
	if m == nil {
		return nil
	}
	out := make(DataMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
