// Package jsonvalue deep-copies generic documents into the types
// encoding/json decodes them to: float64 numbers, []any, map[string]any.
// A copied value survives a JSON round trip unchanged.
package jsonvalue

import (
	"encoding/json"
	"reflect"
)

// CopyMap returns a deep, JSON-native copy of m. nil stays nil.
func CopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Copy(v)
	}
	return out
}

// Copy returns a deep, JSON-native copy of v. Nil maps and slices nested
// in a document become untyped nil, as they decode from null.
func Copy(v any) any {
	switch t := v.(type) {
	case nil, string, bool, float64:
		return t
	case map[string]any:
		if t == nil {
			return nil
		}
		return CopyMap(t)
	case []any:
		if t == nil {
			return nil
		}
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Copy(e)
		}
		return out
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int8:
		return float64(t)
	case int16:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case uint:
		return float64(t)
	case uint8:
		return float64(t)
	case uint16:
		return float64(t)
	case uint32:
		return float64(t)
	case uint64:
		return float64(t)
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	}
	return roundTrip(v)
}

// roundTrip handles typed slices, maps and structs. Values encoding/json
// rejects are returned as-is.
func roundTrip(v any) any {
	if rv := reflect.ValueOf(v); (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Map) && rv.IsNil() {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}
