package catalog

import "strings"

// Predicate is a composable row filter. Stores either evaluate it in memory
// or compile it into a WHERE clause; both must agree on semantics.
type Predicate interface {
	// Match reports whether an in-memory row satisfies the predicate.
	Match(row map[string]any) bool
}

// All matches every row.
type All struct{}

func (All) Match(map[string]any) bool { return true }

// Contains matches rows whose named column contains Text, case-insensitively.
type Contains struct {
	Column string
	Text   string
}

func (c Contains) Match(row map[string]any) bool {
	v, ok := row[c.Column].(string)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(v), strings.ToLower(c.Text))
}

// NotIn matches rows whose named key column is none of Keys.
type NotIn struct {
	Column string
	Keys   []int64
}

func (n NotIn) Match(row map[string]any) bool {
	key, ok := row[n.Column].(int64)
	if !ok {
		return false
	}
	for _, k := range n.Keys {
		if k == key {
			return false
		}
	}
	return true
}

// Or matches rows satisfying at least one child predicate.
type Or []Predicate

func (o Or) Match(row map[string]any) bool {
	for _, p := range o {
		if p.Match(row) {
			return true
		}
	}
	return false
}

// And matches rows satisfying every child predicate.
type And []Predicate

func (a And) Match(row map[string]any) bool {
	for _, p := range a {
		if !p.Match(row) {
			return false
		}
	}
	return true
}
