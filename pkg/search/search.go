// Package search resolves incremental foreign-key searches: a few typed
// characters become a bounded, ordered candidate list for one reference
// field, without shipping the referenced table to the client.
package search

import (
	"context"
	"errors"
	"fmt"

	"orderdesk/pkg/catalog"
	"orderdesk/pkg/schema"
)

// Request shape errors indicate a caller bug and surface as client errors,
// unlike empty data which degrades to an empty result.
var (
	ErrUnknownTable = errors.New("unknown table")
	ErrUnknownField = errors.New("unknown field")
	ErrNotReference = errors.New("field is not a reference")
)

// Request identifies a reference field and the search the user typed.
type Request struct {
	Table       string
	Field       string
	SearchText  string
	ExcludeIDs  []int64
	ExtraFilter catalog.Predicate
	// Limit bounds the candidate list when positive. There is no implicit
	// limit; bounding large unfiltered result sets is the caller's job.
	Limit int
	// Seq is echoed back so clients can discard stale responses.
	Seq uint64
}

// Candidate is one selectable row: the key to submit and the label to show.
type Candidate struct {
	Key   int64  `json:"key"`
	Label string `json:"label"`
}

// Response carries the ordered candidates plus the routing echo.
type Response struct {
	Table      string      `json:"table"`
	Field      string      `json:"field"`
	Seq        uint64      `json:"seq"`
	Candidates []Candidate `json:"candidates"`
}

// Resolver answers search requests from schema metadata and a store.
type Resolver struct {
	reg   *schema.Registry
	store catalog.Store
}

// NewResolver creates a resolver over the given registry and store.
func NewResolver(reg *schema.Registry, store catalog.Store) *Resolver {
	return &Resolver{reg: reg, store: store}
}

// Resolve builds the candidate list for one request.
//
// The filter is composed as OR across the searchable columns, then AND
// against the exclusion set and any extra filter. That grouping is the
// contract: an excluded row must never come back just because it matches
// the text.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Response, error) {
	table := r.reg.Table(req.Table)
	if table == nil {
		return Response{}, fmt.Errorf("%w: %q", ErrUnknownTable, req.Table)
	}
	field := table.Field(req.Field)
	if field == nil {
		return Response{}, fmt.Errorf("%w: %s.%s", ErrUnknownField, req.Table, req.Field)
	}
	if field.Type != schema.Reference || field.Ref == nil {
		return Response{}, fmt.Errorf("%w: %s.%s", ErrNotReference, req.Table, req.Field)
	}
	ref := field.Ref
	target := r.reg.Table(ref.Table)
	if target == nil {
		return Response{}, fmt.Errorf("%w: %q (referenced by %s.%s)", ErrUnknownTable, ref.Table, req.Table, req.Field)
	}

	columns := ref.SearchColumns
	if len(columns) == 0 {
		columns = target.TextColumns()
	}

	// No searchable columns at all degrades to the unrestricted set.
	var text catalog.Predicate = catalog.All{}
	if req.SearchText != "" && len(columns) > 0 {
		or := make(catalog.Or, 0, len(columns))
		for _, col := range columns {
			or = append(or, catalog.Contains{Column: col, Text: req.SearchText})
		}
		text = or
	}

	pred := catalog.And{text}
	if len(req.ExcludeIDs) > 0 {
		pred = append(pred, catalog.NotIn{Column: ref.KeyColumn, Keys: req.ExcludeIDs})
	}
	if req.ExtraFilter != nil {
		pred = append(pred, req.ExtraFilter)
	}

	rows, err := r.store.Search(ctx, ref.Table, pred, ref.OrderBy, req.Limit)
	if err != nil {
		return Response{}, fmt.Errorf("search %s: %w", ref.Table, err)
	}

	resp := Response{Table: req.Table, Field: req.Field, Seq: req.Seq, Candidates: []Candidate{}}
	for _, row := range rows {
		key, ok := row[ref.KeyColumn].(int64)
		if !ok {
			continue
		}
		resp.Candidates = append(resp.Candidates, Candidate{Key: key, Label: ref.Label(row)})
	}
	return resp, nil
}

// LookupLabel resolves the display label for an already-selected key, used
// to pre-populate a widget rendered with a value. A missing row yields an
// empty label, not an error.
func (r *Resolver) LookupLabel(ctx context.Context, table, fieldName string, key int64) (string, error) {
	t := r.reg.Table(table)
	if t == nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}
	field := t.Field(fieldName)
	if field == nil {
		return "", fmt.Errorf("%w: %s.%s", ErrUnknownField, table, fieldName)
	}
	if field.Type != schema.Reference || field.Ref == nil {
		return "", fmt.Errorf("%w: %s.%s", ErrNotReference, table, fieldName)
	}
	row, err := r.store.Lookup(ctx, field.Ref.Table, key)
	if errors.Is(err, catalog.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return field.Ref.Label(row), nil
}
