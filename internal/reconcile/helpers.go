// Package reconcile maps the two known device-output JSON dialects ("shape
// A": a generic structured-parser tree, and "shape B": vendor TABLE_x/ROW_x
// tabular JSON) into canonical rowmodel rows.
package reconcile

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/route-beacon/routecache/internal/rowmodel"
)

// asMap asserts v as a JSON object, returning ok=false for anything else.
func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// asList flattens the dict-or-list polymorphism every ROW_* (and several
// shape-A) values exhibit: a single object becomes a one-element list, a
// list passes through, anything else (including nil) becomes empty.
func asList(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	case map[string]any:
		return []any{t}
	default:
		return nil
	}
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		switch s := v.(type) {
		case string:
			if s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(s, 'f', -1, 64)
		case json.Number:
			return s.String()
		}
	}
	return ""
}

// truthy implements the boolean coercion rule: strings "true", integer 1,
// and boolean true are all truthy.
func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(t, "true")
	case float64:
		return t == 1
	case json.Number:
		n, _ := t.Int64()
		return n == 1
	case int:
		return t == 1
	}
	return false
}

func boolField(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if v, ok := m[k]; ok && truthy(v) {
			return true
		}
	}
	return false
}

func intPtrField(m map[string]any, keys ...string) *int {
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			i := int(n)
			return &i
		case int:
			return &n
		case json.Number:
			i64, err := n.Int64()
			if err == nil {
				i := int(i64)
				return &i
			}
		case string:
			if i, err := strconv.Atoi(n); err == nil {
				return &i
			}
		}
	}
	return nil
}

// afiMatches matches a label ("ipv4", "IPv4 Unicast", "ipv4 unicast", ...)
// case-insensitively against the requested AFI.
func afiMatches(label string, afi rowmodel.AFI) bool {
	return strings.Contains(strings.ToLower(label), string(afi))
}

// findAFIKey returns the key of m whose label matches afi, or "" if none.
func findAFIKey(m map[string]any, afi rowmodel.AFI) string {
	for k := range m {
		if afiMatches(k, afi) {
			return k
		}
	}
	return ""
}
