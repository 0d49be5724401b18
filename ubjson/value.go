package ubjson

import "math"

// Helpers for reading decoded documents. They accept the types produced by
// Unmarshal.

// AsString returns v as a string.
func AsString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// AsBool returns v as a bool.
func AsBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

// AsInt64 returns v as an int64. Floats with an integral value are accepted.
func AsInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}

// AsFloat64 returns any numeric v as a float64.
func AsFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// AsUint32 returns v as a uint32 when it is a number in range.
func AsUint32(v any) (uint32, bool) {
	n, ok := AsInt64(v)
	if !ok || n < 0 || n > math.MaxUint32 {
		return 0, false
	}
	return uint32(n), true
}

// AsArray returns v as an array.
func AsArray(v any) ([]any, bool) {
	a, ok := v.([]any)
	return a, ok
}

// AsObject returns v as an object.
func AsObject(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// AsBytes converts an array of integers in [0, 255] into bytes.
func AsBytes(v any) ([]byte, bool) {
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]byte, len(arr))
	for i, e := range arr {
		n, ok := AsInt64(e)
		if !ok || n < 0 || n > math.MaxUint8 {
			return nil, false
		}
		out[i] = byte(n)
	}
	return out, true
}
