// Package memory implements an in-memory catalog store. It backs the test
// suites and the demo configuration.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"orderdesk/pkg/catalog"
	"orderdesk/pkg/schema"
)

// Store provides a mutex-guarded in-memory implementation of catalog.Store.
type Store struct {
	mu        sync.RWMutex
	products  map[int64]catalog.Product
	customers map[int64]catalog.Customer
	orders    map[int64]catalog.Order
	lines     map[int64]catalog.OrderLine
	nextID    int64
}

// New creates an empty store.
func New() *Store {
	return &Store{
		products:  make(map[int64]catalog.Product),
		customers: make(map[int64]catalog.Customer),
		orders:    make(map[int64]catalog.Order),
		lines:     make(map[int64]catalog.OrderLine),
	}
}

func (s *Store) nextKey() int64 {
	s.nextID++
	return s.nextID
}

// CreateProduct stores the product and assigns its ID.
func (s *Store) CreateProduct(ctx context.Context, p *catalog.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.nextKey()
	s.products[p.ID] = *p
	return nil
}

// Product retrieves a product by ID.
func (s *Store) Product(ctx context.Context, id int64) (catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

// UpdateProduct replaces an existing product.
func (s *Store) UpdateProduct(ctx context.Context, p catalog.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; !ok {
		return catalog.ErrNotFound
	}
	s.products[p.ID] = p
	return nil
}

// ListProducts returns all products ordered by ID.
func (s *Store) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]catalog.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateCustomer stores the customer and assigns its ID.
func (s *Store) CreateCustomer(ctx context.Context, c *catalog.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.nextKey()
	s.customers[c.ID] = *c
	return nil
}

// Customer retrieves a customer by ID.
func (s *Store) Customer(ctx context.Context, id int64) (catalog.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[id]
	if !ok {
		return catalog.Customer{}, catalog.ErrNotFound
	}
	return c, nil
}

// ListCustomers returns all customers ordered by ID.
func (s *Store) ListCustomers(ctx context.Context) ([]catalog.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]catalog.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateOrder stores the order and assigns its ID. The total always starts
// at zero regardless of what the caller set.
func (s *Store) CreateOrder(ctx context.Context, o *catalog.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.ID = s.nextKey()
	o.Total = decimal.Zero
	s.orders[o.ID] = *o
	return nil
}

// Order retrieves an order by ID.
func (s *Store) Order(ctx context.Context, id int64) (catalog.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return catalog.Order{}, catalog.ErrNotFound
	}
	return o, nil
}

// OrdersByCustomer returns the customer's orders ordered by ID.
func (s *Store) OrdersByCustomer(ctx context.Context, customerID int64) ([]catalog.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []catalog.Order
	for _, o := range s.orders {
		if o.Customer == customerID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// InsertLine stores the line and assigns its ID.
func (s *Store) InsertLine(ctx context.Context, l *catalog.OrderLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.ID = s.nextKey()
	s.lines[l.ID] = *l
	return nil
}

// UpdateLine replaces an existing line.
func (s *Store) UpdateLine(ctx context.Context, l catalog.OrderLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lines[l.ID]; !ok {
		return catalog.ErrNotFound
	}
	s.lines[l.ID] = l
	return nil
}

// DeleteLine removes a line by ID.
func (s *Store) DeleteLine(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lines[id]; !ok {
		return catalog.ErrNotFound
	}
	delete(s.lines, id)
	return nil
}

// Line retrieves a line by ID.
func (s *Store) Line(ctx context.Context, id int64) (catalog.OrderLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lines[id]
	if !ok {
		return catalog.OrderLine{}, catalog.ErrNotFound
	}
	return l, nil
}

// LinesByOrder returns the order's lines ordered by ID.
func (s *Store) LinesByOrder(ctx context.Context, orderID int64) ([]catalog.OrderLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []catalog.OrderLine
	for _, l := range s.lines {
		if l.Order == orderID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// RecomputeOrderTotal sums the order's line prices, skipping excludeLineID
// when non-zero, and writes the total under one lock so the read and write
// are never separately observable.
func (s *Store) RecomputeOrderTotal(ctx context.Context, orderID, excludeLineID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return catalog.ErrNotFound
	}
	total := decimal.Zero
	for _, l := range s.lines {
		if l.Order != orderID || l.ID == excludeLineID {
			continue
		}
		total = total.Add(l.Price)
	}
	o.Total = total
	s.orders[orderID] = o
	return nil
}

// Search filters the named table with pred and sorts by orderBy. A limit of
// zero means no limit.
func (s *Store) Search(ctx context.Context, table string, pred catalog.Predicate, orderBy schema.OrderBy, limit int) ([]schema.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rows []schema.Row
	for _, row := range s.tableRows(table) {
		if pred.Match(row) {
			rows = append(rows, row)
		}
	}
	sortRows(rows, orderBy)
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// Lookup fetches one row of the named table by key.
func (s *Store) Lookup(ctx context.Context, table string, key int64) (schema.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, row := range s.tableRows(table) {
		if id, ok := row["id"].(int64); ok && id == key {
			return row, nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (s *Store) tableRows(table string) []schema.Row {
	var rows []schema.Row
	switch table {
	case "product":
		for _, p := range s.products {
			rows = append(rows, schema.Row{"id": p.ID, "name": p.Name, "price": p.Price})
		}
	case "customer":
		for _, c := range s.customers {
			rows = append(rows, schema.Row{"id": c.ID, "name": c.Name, "city": c.City, "state": c.State})
		}
	case "order":
		for _, o := range s.orders {
			rows = append(rows, schema.Row{"id": o.ID, "customer": o.Customer, "total": o.Total})
		}
	case "order_line":
		for _, l := range s.lines {
			rows = append(rows, schema.Row{"id": l.ID, "order": l.Order, "product": l.Product, "quantity": l.Quantity, "price": l.Price})
		}
	}
	return rows
}

func sortRows(rows []schema.Row, orderBy schema.OrderBy) {
	col := orderBy.Column
	if col == "" {
		col = "id"
	}
	sort.SliceStable(rows, func(i, j int) bool {
		less := rowLess(rows[i][col], rows[j][col])
		if orderBy.Desc {
			return !less && !rowEqual(rows[i][col], rows[j][col])
		}
		return less
	})
}

func rowLess(a, b any) bool {
	switch av := a.(type) {
	case string:
		bv, _ := b.(string)
		return av < bv
	case int64:
		bv, _ := b.(int64)
		return av < bv
	case decimal.Decimal:
		bv, _ := b.(decimal.Decimal)
		return av.LessThan(bv)
	}
	return false
}

func rowEqual(a, b any) bool {
	return !rowLess(a, b) && !rowLess(b, a)
}
