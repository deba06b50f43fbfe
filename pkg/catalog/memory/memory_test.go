package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"orderdesk/pkg/catalog"
	"orderdesk/pkg/schema"
)

func TestProductCRUD(t *testing.T) {
	ctx := context.Background()
	store := New()
	p := catalog.Product{Name: "Widget", Price: decimal.RequireFromString("10.00")}
	if err := store.CreateProduct(ctx, &p); err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.ID == 0 {
		t.Fatal("expected assigned id")
	}
	got, err := store.Product(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Widget" {
		t.Fatalf("expected Widget, got %s", got.Name)
	}
	p.Name = "Gadget"
	if err := store.UpdateProduct(ctx, p); err != nil {
		t.Fatalf("update: %v", err)
	}
	list, err := store.ListProducts(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v len=%d", err, len(list))
	}
	if _, err := store.Product(ctx, 999); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLineCRUDAndRecompute(t *testing.T) {
	ctx := context.Background()
	store := New()
	c := catalog.Customer{Name: "Acme"}
	if err := store.CreateCustomer(ctx, &c); err != nil {
		t.Fatalf("create customer: %v", err)
	}
	o := catalog.Order{Customer: c.ID}
	if err := store.CreateOrder(ctx, &o); err != nil {
		t.Fatalf("create order: %v", err)
	}

	l1 := catalog.OrderLine{Order: o.ID, Quantity: decimal.NewFromInt(1), Price: decimal.RequireFromString("5.00")}
	l2 := catalog.OrderLine{Order: o.ID, Quantity: decimal.NewFromInt(1), Price: decimal.RequireFromString("7.00")}
	for _, l := range []*catalog.OrderLine{&l1, &l2} {
		if err := store.InsertLine(ctx, l); err != nil {
			t.Fatalf("insert line: %v", err)
		}
	}

	if err := store.RecomputeOrderTotal(ctx, o.ID, 0); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	got, _ := store.Order(ctx, o.ID)
	if !got.Total.Equal(decimal.RequireFromString("12.00")) {
		t.Fatalf("expected 12.00, got %s", got.Total)
	}

	// Excluding a line leaves only the other one in the sum.
	if err := store.RecomputeOrderTotal(ctx, o.ID, l1.ID); err != nil {
		t.Fatalf("recompute excluding: %v", err)
	}
	got, _ = store.Order(ctx, o.ID)
	if !got.Total.Equal(decimal.RequireFromString("7.00")) {
		t.Fatalf("expected 7.00, got %s", got.Total)
	}

	if err := store.RecomputeOrderTotal(ctx, 999, 0); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.DeleteLine(ctx, l1.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	lines, err := store.LinesByOrder(ctx, o.ID)
	if err != nil || len(lines) != 1 || lines[0].ID != l2.ID {
		t.Fatalf("lines after delete: %v %+v", err, lines)
	}
}

func TestSearchAndLookup(t *testing.T) {
	ctx := context.Background()
	store := New()
	for _, name := range []string{"Stout", "Pale Ale", "Amber Ale"} {
		p := catalog.Product{Name: name}
		if err := store.CreateProduct(ctx, &p); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	rows, err := store.Search(ctx, "product",
		catalog.Contains{Column: "name", Text: "ale"},
		schema.OrderBy{Column: "name"}, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0]["name"] != "Amber Ale" || rows[1]["name"] != "Pale Ale" {
		t.Fatalf("wrong order: %v %v", rows[0]["name"], rows[1]["name"])
	}

	rows, err = store.Search(ctx, "product", catalog.All{}, schema.OrderBy{Column: "name"}, 2)
	if err != nil || len(rows) != 2 {
		t.Fatalf("limited search: %v len=%d", err, len(rows))
	}

	row, err := store.Lookup(ctx, "product", rows[0]["id"].(int64))
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if row["name"] != rows[0]["name"] {
		t.Fatalf("lookup mismatch: %v vs %v", row["name"], rows[0]["name"])
	}
	if _, err := store.Lookup(ctx, "product", 999); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
