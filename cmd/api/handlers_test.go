package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderdesk/pkg/catalog"
	"orderdesk/pkg/catalog/memory"
	"orderdesk/pkg/orders"
	"orderdesk/pkg/schema"
	"orderdesk/pkg/search"
	"orderdesk/pkg/widget"
)

// setupAPI wires the handler globals against an in-memory store and a
// miniredis-backed session store, then logs in and returns the router plus
// the session cookie.
func setupAPI(t *testing.T) (*mux.Router, *http.Cookie, *memory.Store) {
	t.Helper()

	mem := memory.New()
	store = mem
	svc = orders.NewService(mem)
	resolver = search.NewResolver(schema.DefaultRegistry(), mem)
	renderer = widget.NewRenderer(resolver, "/autocomplete")

	mr := miniredis.RunT(t)
	redisClient = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	r := newRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(`{"username":"clerk","password":"secret"}`))
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, w.Result().Cookies())

	return r, w.Result().Cookies()[0], mem
}

func do(t *testing.T, r *mux.Router, cookie *http.Cookie, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	r, _, _ := setupAPI(t)
	w := do(t, r, nil, http.MethodGet, "/products", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginRejectsEmptyUsername(t *testing.T) {
	r, _, _ := setupAPI(t)
	w := do(t, r, nil, http.MethodPost, "/login", `{"username":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLineLifecycleOverHTTP(t *testing.T) {
	r, cookie, _ := setupAPI(t)

	w := do(t, r, cookie, http.MethodPost, "/customers", `{"name":"Acme","city":"Springfield","state":"IL"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var customer catalog.Customer
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &customer))

	var products []catalog.Product
	for _, body := range []string{
		`{"name":"productA","price":"5.00"}`,
		`{"name":"productB","price":"20.00"}`,
		`{"name":"productC","price":"2.50"}`,
	} {
		w = do(t, r, cookie, http.MethodPost, "/products", body)
		require.Equal(t, http.StatusCreated, w.Code)
		var p catalog.Product
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
		products = append(products, p)
	}

	w = do(t, r, cookie, http.MethodPost, "/orders", fmt.Sprintf(`{"customer":%d}`, customer.ID))
	require.Equal(t, http.StatusCreated, w.Code)
	var order catalog.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))

	linesPath := fmt.Sprintf("/orders/%d/lines", order.ID)

	w = do(t, r, cookie, http.MethodPost, linesPath,
		fmt.Sprintf(`{"product":%d,"quantity":2}`, products[0].ID))
	require.Equal(t, http.StatusCreated, w.Code)
	var first lineResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	assert.True(t, first.Line.Price.Equal(decimal.RequireFromString("10.00")))

	w = do(t, r, cookie, http.MethodPost, linesPath,
		fmt.Sprintf(`{"product":%d,"quantity":1}`, products[1].ID))
	require.Equal(t, http.StatusCreated, w.Code)
	var second lineResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.True(t, second.Total.Equal(decimal.RequireFromString("30.00")))

	w = do(t, r, cookie, http.MethodDelete,
		fmt.Sprintf("%s/%d", linesPath, first.Line.ID), "")
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, r, cookie, http.MethodGet, fmt.Sprintf("/orders/%d", order.ID), "")
	require.Equal(t, http.StatusOK, w.Code)
	var got orderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.True(t, got.Order.Total.Equal(decimal.RequireFromString("20.00")))
	assert.Len(t, got.Lines, 1)

	w = do(t, r, cookie, http.MethodPost, linesPath,
		fmt.Sprintf(`{"product":%d,"quantity":4}`, products[2].ID))
	require.Equal(t, http.StatusCreated, w.Code)
	var third lineResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &third))
	assert.True(t, third.Total.Equal(decimal.RequireFromString("30.00")))
}

func TestUpdateLineRecomputesTotal(t *testing.T) {
	r, cookie, mem := setupAPI(t)
	ctx := context.Background()

	c := catalog.Customer{Name: "Acme"}
	require.NoError(t, mem.CreateCustomer(ctx, &c))
	p := catalog.Product{Name: "Widget", Price: decimal.RequireFromString("3.00")}
	require.NoError(t, mem.CreateProduct(ctx, &p))
	o := catalog.Order{Customer: c.ID}
	require.NoError(t, mem.CreateOrder(ctx, &o))

	w := do(t, r, cookie, http.MethodPost, fmt.Sprintf("/orders/%d/lines", o.ID),
		fmt.Sprintf(`{"product":%d,"quantity":1}`, p.ID))
	require.Equal(t, http.StatusCreated, w.Code)
	var created lineResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = do(t, r, cookie, http.MethodPut,
		fmt.Sprintf("/orders/%d/lines/%d", o.ID, created.Line.ID),
		fmt.Sprintf(`{"product":%d,"quantity":5}`, p.ID))
	require.Equal(t, http.StatusOK, w.Code)
	var updated lineResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.True(t, updated.Total.Equal(decimal.RequireFromString("15.00")))
}

func TestOrderTotalNotClientWritable(t *testing.T) {
	r, cookie, mem := setupAPI(t)
	ctx := context.Background()
	c := catalog.Customer{Name: "Acme"}
	require.NoError(t, mem.CreateCustomer(ctx, &c))

	// A smuggled total is ignored; orders always open at zero.
	w := do(t, r, cookie, http.MethodPost, "/orders",
		fmt.Sprintf(`{"customer":%d,"total":"999.00"}`, c.ID))
	require.Equal(t, http.StatusCreated, w.Code)
	var order catalog.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
	assert.True(t, order.Total.IsZero())
}

func TestAutocompleteEndpoint(t *testing.T) {
	r, cookie, mem := setupAPI(t)
	ctx := context.Background()
	var paleAle int64
	for _, name := range []string{"Stout", "Pale Ale", "Amber Ale"} {
		p := catalog.Product{Name: name, Price: decimal.NewFromInt(1)}
		require.NoError(t, mem.CreateProduct(ctx, &p))
		if name == "Pale Ale" {
			paleAle = p.ID
		}
	}

	w := do(t, r, cookie, http.MethodGet,
		fmt.Sprintf("/autocomplete?table=order_line&field=product&search=ale&exclude=%d&seq=4", paleAle), "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp search.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, uint64(4), resp.Seq)
	require.Len(t, resp.Candidates, 1)
	assert.Equal(t, "Amber Ale", resp.Candidates[0].Label)

	w = do(t, r, cookie, http.MethodGet, "/autocomplete?table=nope&field=product", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, cookie, http.MethodGet, "/autocomplete?table=order_line&field=product&exclude=x", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWidgetEndpointExcludesUsedProducts(t *testing.T) {
	r, cookie, mem := setupAPI(t)
	ctx := context.Background()

	c := catalog.Customer{Name: "Acme"}
	require.NoError(t, mem.CreateCustomer(ctx, &c))
	p1 := catalog.Product{Name: "Stout", Price: decimal.NewFromInt(4)}
	require.NoError(t, mem.CreateProduct(ctx, &p1))
	p2 := catalog.Product{Name: "Pilsner", Price: decimal.NewFromInt(4)}
	require.NoError(t, mem.CreateProduct(ctx, &p2))
	o := catalog.Order{Customer: c.ID}
	require.NoError(t, mem.CreateOrder(ctx, &o))

	w := do(t, r, cookie, http.MethodPost, fmt.Sprintf("/orders/%d/lines", o.ID),
		fmt.Sprintf(`{"product":%d,"quantity":1}`, p1.ID))
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, r, cookie, http.MethodGet,
		fmt.Sprintf("/widgets/order_line/product?order=%d", o.ID), "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, fmt.Sprintf(`data-exclude="%d"`, p1.ID))
	assert.Contains(t, body, `id="order_line_product_autocomplete_results"`)
}
