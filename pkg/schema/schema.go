// Package schema holds the table and field metadata the search and widget
// layers query instead of reflecting over the database at runtime.
package schema

import "fmt"

// FieldType classifies a column for search purposes.
type FieldType int

const (
	Text FieldType = iota
	Decimal
	Reference
)

// Row is one record of an arbitrary table, keyed by column name. Label
// formatters and search results are built from it.
type Row map[string]any

// Formatter renders a row into the label shown for a candidate.
type Formatter func(Row) string

// OrderBy names the column the candidate list is sorted on.
type OrderBy struct {
	Column string
	Desc   bool
}

// Ref describes where a reference-typed field points and how candidates of
// the referenced table are searched, ordered and labeled.
type Ref struct {
	Table         string
	KeyColumn     string
	SearchColumns []string // empty means auto-discover text columns
	OrderBy       OrderBy
	Label         Formatter
}

// Field describes one column of a table.
type Field struct {
	Name string
	Type FieldType
	Ref  *Ref // set only when Type == Reference
}

// Table describes one table and its columns in declaration order.
type Table struct {
	Name   string
	Fields []Field
}

// Field returns the named field, or nil.
func (t *Table) Field(name string) *Field {
	for i := range t.Fields {
		if t.Fields[i].Name == name {
			return &t.Fields[i]
		}
	}
	return nil
}

// TextColumns lists the names of every text-typed column.
func (t *Table) TextColumns() []string {
	var cols []string
	for _, f := range t.Fields {
		if f.Type == Text {
			cols = append(cols, f.Name)
		}
	}
	return cols
}

// Registry maps table names to their descriptors. It is populated once at
// startup and read-only afterwards.
type Registry struct {
	tables map[string]*Table
}

// NewRegistry builds a registry from the given tables.
func NewRegistry(tables ...*Table) *Registry {
	r := &Registry{tables: make(map[string]*Table, len(tables))}
	for _, t := range tables {
		r.tables[t.Name] = t
	}
	return r
}

// Table returns the named table, or nil.
func (r *Registry) Table(name string) *Table {
	return r.tables[name]
}

func str(row Row, col string) string {
	if v, ok := row[col].(string); ok {
		return v
	}
	return ""
}

// DefaultRegistry declares the order-entry schema: products, customers,
// orders and their lines.
func DefaultRegistry() *Registry {
	return NewRegistry(
		&Table{
			Name: "product",
			Fields: []Field{
				{Name: "name", Type: Text},
				{Name: "price", Type: Decimal},
			},
		},
		&Table{
			Name: "customer",
			Fields: []Field{
				{Name: "name", Type: Text},
				{Name: "city", Type: Text},
				{Name: "state", Type: Text},
			},
		},
		&Table{
			Name: "order",
			Fields: []Field{
				{Name: "customer", Type: Reference, Ref: &Ref{
					Table:     "customer",
					KeyColumn: "id",
					OrderBy:   OrderBy{Column: "name"},
					Label:     func(row Row) string { return str(row, "name") },
				}},
				{Name: "total", Type: Decimal},
			},
		},
		&Table{
			Name: "order_line",
			Fields: []Field{
				{Name: "order", Type: Reference, Ref: &Ref{
					Table:     "order",
					KeyColumn: "id",
					OrderBy:   OrderBy{Column: "id"},
					Label:     func(row Row) string { return fmt.Sprint(row["id"]) },
				}},
				{Name: "product", Type: Reference, Ref: &Ref{
					Table:         "product",
					KeyColumn:     "id",
					SearchColumns: []string{"name"},
					OrderBy:       OrderBy{Column: "name"},
					Label:         func(row Row) string { return str(row, "name") },
				}},
				{Name: "price", Type: Decimal},
				{Name: "quantity", Type: Decimal},
			},
		},
	)
}
