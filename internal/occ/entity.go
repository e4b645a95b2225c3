// Package occ implements optimistic concurrency control for versioned
// entities: field-level diffing, three-way auto-merge, conflict parsing, and
// the form session state machine that drives submit/resolve/refresh/reset.
//
// Entities are JSON-shaped maps. Every editable entity carries an integer
// "version" counter assigned by the server; clients only echo the last-known
// value back on update. A stale version is rejected by the server with the
// conflict envelope (see ParseConflict), never silently overwritten.
package occ

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
)

// Entity is a full JSON-shaped snapshot of a versioned record.
type Entity map[string]any

// Changes is a partial entity: only the fields the user intends to change.
type Changes map[string]any

// Bookkeeping field names, excluded from diffing and merging.
const (
	FieldID        = "id"
	FieldVersion   = "version"
	FieldUpdatedAt = "updated_at"
)

// Version returns the entity's version counter, or 0 if absent.
func (e Entity) Version() int64 {
	v, _ := NumericVersion(e[FieldVersion])
	return v
}

// NumericVersion coerces a JSON-decoded version value to int64.
// JSON decoding yields float64; in-process values may be int or int64.
func NumericVersion(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

// Clone returns a deep copy of the entity.
func (e Entity) Clone() Entity {
	if e == nil {
		return nil
	}
	return cloneValue(map[string]any(e)).(map[string]any)
}

// Clone returns a deep copy of the change set.
func (c Changes) Clone() Changes {
	if c == nil {
		return nil
	}
	return cloneValue(map[string]any(c)).(map[string]any)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = cloneValue(vv)
		}
		return out
	case Entity:
		return cloneValue(map[string]any(t))
	case Changes:
		return cloneValue(map[string]any(t))
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = cloneValue(vv)
		}
		return out
	default:
		// Scalars (string, bool, numbers, nil) are immutable.
		return v
	}
}

// FromStruct converts a domain struct to an Entity via its JSON encoding.
// The server handlers and the API client use this so that structs and
// wire-decoded maps diff and merge identically.
func FromStruct(v any) (Entity, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode entity: %w", err)
	}
	var e Entity
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode entity: %w", err)
	}
	return e, nil
}

// ValueEqual reports deep structural equality between two JSON-shaped values.
//
// Semantics (the correctness of conflict detection depends on these):
//   - nil equals only nil
//   - numbers compare by value across int, int64, and float64, so a struct
//     field and its wire-decoded float64 counterpart compare equal
//   - NaN equals NaN (a field set to NaN twice is not a change)
//   - maps compare key-wise: same key set, recursively equal values; a key
//     present with a nil value is distinct from an absent key
//   - slices compare element-wise in order
//   - anything else falls back to reflect.DeepEqual
func ValueEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if na, ok := toFloat(a); ok {
		nb, ok := toFloat(b)
		if !ok {
			return false
		}
		if math.IsNaN(na) && math.IsNaN(nb) {
			return true
		}
		return na == nb
	}

	switch ta := a.(type) {
	case string:
		tb, ok := b.(string)
		return ok && ta == tb
	case bool:
		tb, ok := b.(bool)
		return ok && ta == tb
	case map[string]any:
		tb, ok := asMap(b)
		if !ok || len(ta) != len(tb) {
			return false
		}
		for k, va := range ta {
			vb, present := tb[k]
			if !present || !ValueEqual(va, vb) {
				return false
			}
		}
		return true
	case Entity:
		return ValueEqual(map[string]any(ta), b)
	case Changes:
		return ValueEqual(map[string]any(ta), b)
	case []any:
		tb, ok := b.([]any)
		if !ok || len(ta) != len(tb) {
			return false
		}
		for i := range ta {
			if !ValueEqual(ta[i], tb[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case Entity:
		return t, true
	case Changes:
		return t, true
	}
	return nil, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
