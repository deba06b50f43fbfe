package main

import (
	"context"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	"orderdesk/pkg/catalog"
	"orderdesk/pkg/catalog/memory"
	"orderdesk/pkg/catalog/postgres"
	"orderdesk/pkg/logger"
	"orderdesk/pkg/orders"
	"orderdesk/pkg/otel"
	"orderdesk/pkg/schema"
	"orderdesk/pkg/search"
	"orderdesk/pkg/widget"
)

var (
	redisClient *redis.Client
	store       catalog.Store
	svc         *orders.Service
	resolver    *search.Resolver
	renderer    *widget.Renderer
)

// @title Orderdesk API
// @version 1.0
// @description Order entry with derived totals and incremental foreign-key search
// @BasePath /
func main() {
	logger.Init()
	defer logger.Log.Sync()

	shutdown, err := otel.InitTracing()
	if err != nil {
		logger.Log.Fatal("init tracing", zap.Error(err))
	}
	defer shutdown(context.Background())

	store = openStore()
	registry := schema.DefaultRegistry()
	svc = orders.NewService(store)
	resolver = search.NewResolver(registry, store)
	renderer = widget.NewRenderer(resolver, "/autocomplete")

	redisClient = redis.NewClient(&redis.Options{Addr: os.Getenv("REDIS_ADDR")})

	r := newRouter()

	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8080"
	}
	logger.Log.Info("listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Log.Error("server closed", zap.Error(err))
	}
}

func newRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/login", loginHandler).Methods(http.MethodPost)

	api := r.NewRoute().Subrouter()
	api.Use(authMiddleware)
	api.HandleFunc("/customers", listCustomersHandler).Methods(http.MethodGet)
	api.HandleFunc("/customers", createCustomerHandler).Methods(http.MethodPost)
	api.HandleFunc("/customers/{id}/orders", customerOrdersHandler).Methods(http.MethodGet)
	api.HandleFunc("/products", listProductsHandler).Methods(http.MethodGet)
	api.HandleFunc("/products", createProductHandler).Methods(http.MethodPost)
	api.HandleFunc("/products/{id}", updateProductHandler).Methods(http.MethodPut)
	api.HandleFunc("/orders", createOrderHandler).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}", getOrderHandler).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}/lines", addLineHandler).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}/lines/{lineID}", updateLineHandler).Methods(http.MethodPut)
	api.HandleFunc("/orders/{id}/lines/{lineID}", deleteLineHandler).Methods(http.MethodDelete)
	api.HandleFunc("/autocomplete", autocompleteHandler).Methods(http.MethodGet)
	api.HandleFunc("/widgets/{table}/{field}", widgetHandler).Methods(http.MethodGet)

	r.PathPrefix("/static/").Handler(
		http.StripPrefix("/static/", http.FileServer(http.Dir("web/static"))))
	r.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)
	return r
}

// openStore connects to Postgres when DATABASE_URL is set and falls back to
// the in-memory store otherwise.
func openStore() catalog.Store {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		logger.Log.Info("no DATABASE_URL, using in-memory store")
		return memory.New()
	}
	pg, err := postgres.Open(url)
	if err != nil {
		logger.Log.Fatal("open postgres", zap.Error(err))
	}
	dir := os.Getenv("MIGRATIONS_DIR")
	if dir == "" {
		dir = "migrations"
	}
	if err := pg.RunMigrations(dir); err != nil {
		logger.Log.Fatal("run migrations", zap.Error(err))
	}
	return pg
}
