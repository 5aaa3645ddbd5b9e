package model

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Data is an event payload or a loosely-typed document section. Every
// accessor tolerates a missing key or a value of the wrong type by returning
// the zero value, so one bad field never fails the caller.
type Data map[string]any

// Has reports whether key is present with a non-null value.
func (d Data) Has(key string) bool {
	v, ok := d[key]
	return ok && v != nil
}

// Str returns the string at key. Numbers and booleans are formatted.
func (d Data) Str(key string) string {
	switch v := d[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// Float returns the number at key. Numeric strings are parsed; NaN and
// infinities read as 0.
func (d Data) Float(key string) float64 {
	var f float64
	switch v := d[key].(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		f, _ = v.Float64()
	case string:
		f, _ = strconv.ParseFloat(strings.TrimSpace(v), 64)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Int returns Float(key) truncated toward zero.
func (d Data) Int(key string) int64 {
	return int64(d.Float(key))
}

// Bool returns the boolean at key; "true" strings count.
func (d Data) Bool(key string) bool {
	switch v := d[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	default:
		return false
	}
}

// Map returns the nested object at key, or nil.
func (d Data) Map(key string) Data {
	switch v := d[key].(type) {
	case map[string]any:
		return Data(v)
	case Data:
		return v
	default:
		return nil
	}
}

// Slice returns the array at key, or nil.
func (d Data) Slice(key string) []any {
	v, _ := d[key].([]any)
	return v
}

// FirstStr returns the first non-empty string among keys.
func (d Data) FirstStr(keys ...string) string {
	for _, k := range keys {
		if s := d.Str(k); s != "" {
			return s
		}
	}
	return ""
}
