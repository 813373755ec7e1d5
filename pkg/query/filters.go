package query

import (
	"reflect"
	"slices"
)

// Filters is the effective filter set of a query.
type Filters map[string]any

// Has reports whether key is set.
func (f Filters) Has(key string) bool {
	_, ok := f[key]
	return ok
}

// Strings returns the value of key as a string list. Non-string elements are skipped.
func (f Filters) Strings(key string) []string {
	var out []string
	for _, v := range toList(f[key]) {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// filterNode is one entry of a persistent, newest-first filter list. Derived
// queries prepend nodes and share the tail with the query they came from.
type filterNode struct {
	key    string
	value  any
	extend bool
	next   *filterNode
}

func (n *filterNode) push(key string, value any, extend bool) *filterNode {
	return &filterNode{key: key, value: value, extend: extend, next: n}
}

// materialize replays the list oldest first. Set replaces a key; extend
// appends its non-empty elements to the key's list. Empty values are dropped,
// matching what the API expects.
func (n *filterNode) materialize() Filters {
	var nodes []*filterNode
	for cur := n; cur != nil; cur = cur.next {
		nodes = append(nodes, cur)
	}
	slices.Reverse(nodes)

	out := make(Filters, len(nodes))
	for _, node := range nodes {
		if node.extend {
			list := toList(out[node.key])
			for _, v := range toList(node.value) {
				if !isEmpty(v) {
					list = append(list, v)
				}
			}
			out[node.key] = list
			continue
		}
		out[node.key] = node.value
	}
	for k, v := range out {
		if isEmpty(v) {
			delete(out, k)
		}
	}
	return out
}

// toList flattens v into a []any. Slices and arrays are expanded; nil is empty.
func toList(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return slices.Clone(t)
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{v}
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.String, reflect.Array:
		return rv.Len() == 0
	}
	return false
}
