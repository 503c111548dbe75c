package domain

import (
	"encoding/json"
	"sort"
)

// Record is one row of one table, keyed by field name. Values are the small
// set of shapes that survive a JSON round trip: integers, strings, booleans,
// floats (UTC unix timestamps), nil, and integer lists (many-to-many IDs).
//
// Rows read from the database store integers as int64; rows read back from
// an export file store them as json.Number. The accessors below normalize
// both shapes so callers never branch on origin.
type Record map[string]any

// TableData maps a table name to its exported rows. It is owned by exactly
// one export or import run and is never shared across runs.
type TableData map[string][]Record

// Int returns the named field as an int64. Missing fields and nulls
// return 0.
func (r Record) Int(field string) int64 {
	switch v := r[field].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	default:
		return 0
	}
}

// IsNull reports whether the field is absent or explicitly null.
func (r Record) IsNull(field string) bool {
	v, ok := r[field]
	return !ok || v == nil
}

// Str returns the named field as a string, or "" if absent or not a string.
func (r Record) Str(field string) string {
	s, _ := r[field].(string)
	return s
}

// Bool returns the named field as a bool, or false if absent.
func (r Record) Bool(field string) bool {
	b, _ := r[field].(bool)
	return b
}

// Float returns the named field as a float64. Integer values are widened.
func (r Record) Float(field string) float64 {
	switch v := r[field].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	default:
		return 0
	}
}

// IntList returns the named field as a slice of int64. It accepts the
// []int64 produced by the store and the []any produced by JSON decoding.
func (r Record) IntList(field string) []int64 {
	switch v := r[field].(type) {
	case []int64:
		return v
	case []any:
		out := make([]int64, 0, len(v))
		for _, e := range v {
			switch n := e.(type) {
			case float64:
				out = append(out, int64(n))
			case int64:
				out = append(out, n)
			case json.Number:
				i, _ := n.Int64()
				out = append(out, i)
			}
		}
		return out
	default:
		return nil
	}
}

// Clone returns a shallow copy of the record. List values are copied one
// level deep so the clone can be remapped without touching the original.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		if lst, ok := v.([]int64); ok {
			cp := make([]int64, len(lst))
			copy(cp, lst)
			out[k] = cp
			continue
		}
		out[k] = v
	}
	return out
}

// IDs extracts the named field from every record, preserving order.
func IDs(records []Record, field string) []int64 {
	out := make([]int64, 0, len(records))
	for _, r := range records {
		out = append(out, r.Int(field))
	}
	return out
}

// SortByID orders records by their "id" field ascending, in place.
func SortByID(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].Int("id") < records[j].Int("id")
	})
}
