package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"orderdesk/pkg/catalog"
	"orderdesk/pkg/logger"
	"orderdesk/pkg/otel"
	"orderdesk/pkg/search"
)

// listCustomersHandler lists customers.
// @Summary List customers
// @Produce json
// @Success 200 {array} catalog.Customer
// @Security ApiKeyAuth
// @Router /customers [get]
func listCustomersHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "listCustomersHandler")
	defer span.End()

	customers, err := store.ListCustomers(ctx)
	if err != nil {
		writeError(w, "list customers", err)
		return
	}
	writeJSON(w, http.StatusOK, customers)
}

// createCustomerHandler creates a new customer.
// @Summary Create customer
// @Accept json
// @Produce json
// @Param customer body catalog.Customer true "Customer"
// @Success 201 {object} catalog.Customer
// @Security ApiKeyAuth
// @Router /customers [post]
func createCustomerHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "createCustomerHandler")
	defer span.End()

	var c catalog.Customer
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := store.CreateCustomer(ctx, &c); err != nil {
		writeError(w, "create customer", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// customerOrdersResponse lists a customer's orders with the sum of their
// totals.
type customerOrdersResponse struct {
	Customer catalog.Customer `json:"customer"`
	Orders   []catalog.Order  `json:"orders"`
	Total    decimal.Decimal  `json:"total"`
}

// customerOrdersHandler lists a customer's orders and their combined total.
// @Summary List a customer's orders
// @Produce json
// @Param id path int true "Customer ID"
// @Success 200 {object} customerOrdersResponse
// @Security ApiKeyAuth
// @Router /customers/{id}/orders [get]
func customerOrdersHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "customerOrdersHandler")
	defer span.End()

	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	customer, err := store.Customer(ctx, id)
	if err != nil {
		writeError(w, "get customer", err)
		return
	}
	orderList, err := store.OrdersByCustomer(ctx, id)
	if err != nil {
		writeError(w, "list customer orders", err)
		return
	}
	total := decimal.Zero
	for _, o := range orderList {
		total = total.Add(o.Total)
	}
	writeJSON(w, http.StatusOK, customerOrdersResponse{Customer: customer, Orders: orderList, Total: total})
}

// listProductsHandler lists products.
// @Summary List products
// @Produce json
// @Success 200 {array} catalog.Product
// @Security ApiKeyAuth
// @Router /products [get]
func listProductsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "listProductsHandler")
	defer span.End()

	products, err := store.ListProducts(ctx)
	if err != nil {
		writeError(w, "list products", err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// createProductHandler creates a new product.
// @Summary Create product
// @Accept json
// @Produce json
// @Param product body catalog.Product true "Product"
// @Success 201 {object} catalog.Product
// @Security ApiKeyAuth
// @Router /products [post]
func createProductHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "createProductHandler")
	defer span.End()

	var p catalog.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if p.Price.IsNegative() {
		http.Error(w, "price must not be negative", http.StatusBadRequest)
		return
	}
	if err := store.CreateProduct(ctx, &p); err != nil {
		writeError(w, "create product", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// updateProductHandler updates a product. Changing the price affects future
// line writes only; existing lines keep their snapshot.
// @Summary Update product
// @Accept json
// @Produce json
// @Param id path int true "Product ID"
// @Param product body catalog.Product true "Product"
// @Success 200 {object} catalog.Product
// @Security ApiKeyAuth
// @Router /products/{id} [put]
func updateProductHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "updateProductHandler")
	defer span.End()

	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var p catalog.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if p.Price.IsNegative() {
		http.Error(w, "price must not be negative", http.StatusBadRequest)
		return
	}
	p.ID = id
	if err := store.UpdateProduct(ctx, p); err != nil {
		writeError(w, "update product", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// createOrderRequest names the customer an order is opened for.
type createOrderRequest struct {
	Customer int64 `json:"customer"`
}

// createOrderHandler opens an empty order for a customer.
// @Summary Create order
// @Accept json
// @Produce json
// @Param order body createOrderRequest true "Order"
// @Success 201 {object} catalog.Order
// @Security ApiKeyAuth
// @Router /orders [post]
func createOrderHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "createOrderHandler")
	defer span.End()

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := store.Customer(ctx, req.Customer); err != nil {
		writeError(w, "resolve customer", err)
		return
	}
	o := catalog.Order{Customer: req.Customer}
	if err := store.CreateOrder(ctx, &o); err != nil {
		writeError(w, "create order", err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

// orderResponse is an order together with its lines.
type orderResponse struct {
	Order catalog.Order       `json:"order"`
	Lines []catalog.OrderLine `json:"lines"`
}

// getOrderHandler retrieves an order with its lines and derived total.
// @Summary Get order
// @Produce json
// @Param id path int true "Order ID"
// @Success 200 {object} orderResponse
// @Security ApiKeyAuth
// @Router /orders/{id} [get]
func getOrderHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "getOrderHandler")
	defer span.End()

	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	o, lines, err := svc.Order(ctx, id)
	if err != nil {
		writeError(w, "get order", err)
		return
	}
	if lines == nil {
		lines = []catalog.OrderLine{}
	}
	writeJSON(w, http.StatusOK, orderResponse{Order: o, Lines: lines})
}

// lineRequest carries the client-writable line fields. Price is derived and
// never accepted from the client.
type lineRequest struct {
	Product  int64           `json:"product"`
	Quantity decimal.Decimal `json:"quantity"`
}

// lineResponse returns the written line plus the order's recomputed total so
// callers observe the invariant directly.
type lineResponse struct {
	Line  catalog.OrderLine `json:"line"`
	Total decimal.Decimal   `json:"total"`
}

// addLineHandler adds a line to an order.
// @Summary Add order line
// @Accept json
// @Produce json
// @Param id path int true "Order ID"
// @Param line body lineRequest true "Line"
// @Success 201 {object} lineResponse
// @Security ApiKeyAuth
// @Router /orders/{id}/lines [post]
func addLineHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "addLineHandler")
	defer span.End()

	orderID, err := pathID(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req lineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	line, err := svc.AddLine(ctx, catalog.OrderLine{
		Order:    orderID,
		Product:  req.Product,
		Quantity: req.Quantity,
	})
	if err != nil {
		writeError(w, "add line", err)
		return
	}
	writeLineResponse(w, r, http.StatusCreated, line)
}

// updateLineHandler rewrites a line's product and quantity.
// @Summary Update order line
// @Accept json
// @Produce json
// @Param id path int true "Order ID"
// @Param lineID path int true "Line ID"
// @Param line body lineRequest true "Line"
// @Success 200 {object} lineResponse
// @Security ApiKeyAuth
// @Router /orders/{id}/lines/{lineID} [put]
func updateLineHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "updateLineHandler")
	defer span.End()

	lineID, err := pathID(r, "lineID")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req lineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	line, err := svc.UpdateLine(ctx, catalog.OrderLine{
		ID:       lineID,
		Product:  req.Product,
		Quantity: req.Quantity,
	})
	if err != nil {
		writeError(w, "update line", err)
		return
	}
	writeLineResponse(w, r, http.StatusOK, line)
}

// deleteLineHandler removes a line and recomputes the order total without it.
// @Summary Delete order line
// @Param id path int true "Order ID"
// @Param lineID path int true "Line ID"
// @Success 204
// @Security ApiKeyAuth
// @Router /orders/{id}/lines/{lineID} [delete]
func deleteLineHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "deleteLineHandler")
	defer span.End()

	lineID, err := pathID(r, "lineID")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := svc.DeleteLine(ctx, lineID); err != nil {
		writeError(w, "delete line", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// autocompleteHandler resolves an incremental search against the table a
// reference field points at.
// @Summary Search reference candidates
// @Produce json
// @Param table query string true "Owning table"
// @Param field query string true "Reference field"
// @Param search query string false "Search text"
// @Param exclude query string false "Comma-separated keys to exclude"
// @Param seq query int false "Client request sequence number"
// @Param limit query int false "Maximum candidates"
// @Success 200 {object} search.Response
// @Security ApiKeyAuth
// @Router /autocomplete [get]
func autocompleteHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "autocompleteHandler")
	defer span.End()

	q := r.URL.Query()
	exclude, err := parseKeys(q.Get("exclude"))
	if err != nil {
		http.Error(w, "invalid exclude list", http.StatusBadRequest)
		return
	}
	seq, _ := strconv.ParseUint(q.Get("seq"), 10, 64)
	limit, _ := strconv.Atoi(q.Get("limit"))

	resp, err := resolver.Resolve(ctx, search.Request{
		Table:      q.Get("table"),
		Field:      q.Get("field"),
		SearchText: q.Get("search"),
		ExcludeIDs: exclude,
		Limit:      limit,
		Seq:        seq,
	})
	if err != nil {
		writeError(w, "autocomplete", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// widgetHandler renders the selection control for a reference field. For an
// order line's product picker, callers pass order (and line when editing) so
// products already used by the order's other lines are excluded.
// @Summary Render selection widget
// @Produce html
// @Param table path string true "Owning table"
// @Param field path string true "Reference field"
// @Param value query int false "Current value"
// @Param order query int false "Order whose used products are excluded"
// @Param line query int false "Line being edited, kept out of the exclude set"
// @Success 200 {string} string "HTML fragment"
// @Security ApiKeyAuth
// @Router /widgets/{table}/{field} [get]
func widgetHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "widgetHandler")
	defer span.End()

	vars := mux.Vars(r)
	table, field := vars["table"], vars["field"]
	q := r.URL.Query()
	value, _ := strconv.ParseInt(q.Get("value"), 10, 64)

	var exclude []int64
	if orderID, err := strconv.ParseInt(q.Get("order"), 10, 64); err == nil && table == "order_line" && field == "product" {
		lineID, _ := strconv.ParseInt(q.Get("line"), 10, 64)
		exclude, err = svc.UsedProducts(ctx, orderID, lineID)
		if err != nil {
			writeError(w, "collect used products", err)
			return
		}
	}

	html, err := renderer.Render(ctx, table, field, value, exclude)
	if err != nil {
		writeError(w, "render widget", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}

func writeLineResponse(w http.ResponseWriter, r *http.Request, status int, line catalog.OrderLine) {
	o, err := store.Order(r.Context(), line.Order)
	if err != nil {
		writeError(w, "re-read order", err)
		return
	}
	writeJSON(w, status, lineResponse{Line: line, Total: o.Total})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps absence to 404, request-shape mistakes to 400 and
// everything else to 500.
func writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, search.ErrUnknownTable),
		errors.Is(err, search.ErrUnknownField),
		errors.Is(err, search.ErrNotReference):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		logger.Log.Error(op, zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)[name], 10, 64)
}

func parseKeys(s string) ([]int64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	keys := make([]int64, 0, len(parts))
	for _, p := range parts {
		k, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}
