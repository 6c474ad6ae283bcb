// Package convert turns loosely typed exchange wire values into numbers.
//
// Exchanges send numbers as JSON numbers, quoted strings, empty strings or
// nulls, sometimes for the same field. A bad field must never fail a whole
// fetch, so every function here falls back instead of returning an error.
package convert

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Float converts v to a float64, returning def for nil, unparseable or non-finite values.
func Float(v interface{}, def float64) float64 {
	if f, ok := parse(v); ok {
		return f
	}
	return def
}

// FloatPtr converts v like Float but reports absent or unparseable values as nil.
func FloatPtr(v interface{}) *float64 {
	if f, ok := parse(v); ok {
		return &f
	}
	return nil
}

// Int64 converts v to an int64, used for sequence ids and millisecond timestamps.
// Absent or unparseable values give nil.
func Int64(v interface{}) *int64 {
	switch n := v.(type) {
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return &i
		}
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return &i
		}
	}
	f, ok := parse(v)
	if !ok || f > math.MaxInt64 || f < math.MinInt64 {
		return nil
	}
	i := int64(f)
	return &i
}

func parse(v interface{}) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		return parseString(string(n))
	case string:
		return parseString(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseString(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
