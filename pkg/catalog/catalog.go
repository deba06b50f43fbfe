// Package catalog defines the order-entry records and the behavior a
// persistence store must provide.
package catalog

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"orderdesk/pkg/schema"
)

// Product is a sellable item. Its price can change over time; lines keep the
// price they were written with.
type Product struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// Customer owns orders.
type Customer struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	City  string `json:"city"`
	State string `json:"state"`
}

// Order groups lines for one customer. Total is derived from the lines and
// never accepted from a client.
type Order struct {
	ID       int64           `json:"id"`
	Customer int64           `json:"customer"`
	Total    decimal.Decimal `json:"total"`
}

// OrderLine references one product on one order. Price is a snapshot of
// quantity times the product's unit price at the moment the line was last
// written.
type OrderLine struct {
	ID       int64           `json:"id"`
	Order    int64           `json:"order"`
	Product  int64           `json:"product"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store is the persistence contract shared by every component. One Store
// instance is passed explicitly to whatever needs it; nothing holds a hidden
// global handle.
type Store interface {
	CreateProduct(ctx context.Context, p *Product) error
	Product(ctx context.Context, id int64) (Product, error)
	UpdateProduct(ctx context.Context, p Product) error
	ListProducts(ctx context.Context) ([]Product, error)

	CreateCustomer(ctx context.Context, c *Customer) error
	Customer(ctx context.Context, id int64) (Customer, error)
	ListCustomers(ctx context.Context) ([]Customer, error)

	CreateOrder(ctx context.Context, o *Order) error
	Order(ctx context.Context, id int64) (Order, error)
	OrdersByCustomer(ctx context.Context, customerID int64) ([]Order, error)

	InsertLine(ctx context.Context, l *OrderLine) error
	UpdateLine(ctx context.Context, l OrderLine) error
	DeleteLine(ctx context.Context, id int64) error
	Line(ctx context.Context, id int64) (OrderLine, error)
	LinesByOrder(ctx context.Context, orderID int64) ([]OrderLine, error)

	// RecomputeOrderTotal sums price over the order's current lines, skipping
	// excludeLineID when non-zero, and writes the result to the order's total
	// in one step the caller cannot observe half-done. A missing order is
	// reported as ErrNotFound.
	RecomputeOrderTotal(ctx context.Context, orderID, excludeLineID int64) error

	// Search returns rows of the named table matching pred, ordered by
	// orderBy. A limit of zero means no limit.
	Search(ctx context.Context, table string, pred Predicate, orderBy schema.OrderBy, limit int) ([]schema.Row, error)

	// Lookup fetches a single row of the named table by key.
	Lookup(ctx context.Context, table string, key int64) (schema.Row, error)
}
