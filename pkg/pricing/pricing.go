// Package pricing computes the monetary value frozen onto an order line at
// write time.
package pricing

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"orderdesk/pkg/catalog"
)

// Scale is the number of decimal places a line price carries.
const Scale = 2

// Calculator derives a line's price from its quantity and the referenced
// product's unit price at the moment of the call. A missing product or an
// absent/zero quantity yields zero by definition, not an error.
type Calculator struct {
	store catalog.Store
}

// New creates a calculator reading prices from the given store.
func New(store catalog.Store) *Calculator {
	return &Calculator{store: store}
}

// LinePrice returns quantity times the product's current unit price, rounded
// to the line's monetary precision.
func (c *Calculator) LinePrice(ctx context.Context, quantity decimal.Decimal, productID int64) (decimal.Decimal, error) {
	if quantity.IsZero() || productID == 0 {
		return decimal.Zero, nil
	}
	product, err := c.store.Product(ctx, productID)
	if errors.Is(err, catalog.ErrNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	if product.Price.IsZero() {
		return decimal.Zero, nil
	}
	return quantity.Mul(product.Price).Round(Scale), nil
}
