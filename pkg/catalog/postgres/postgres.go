// Package postgres persists the catalog in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"orderdesk/pkg/catalog"
	"orderdesk/pkg/schema"
)

// Store implements catalog.Store on top of database/sql.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL store around an open handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to the database named by the URL and verifies the connection.
func Open(url string) (*Store, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &Store{db: db}, nil
}

// RunMigrations applies the SQL migrations found in dir.
func (s *Store) RunMigrations(dir string) error {
	driver, err := migratepg.WithInstance(s.db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", dir), "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Close releases the underlying handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateProduct inserts the product and fills in its assigned ID.
func (s *Store) CreateProduct(ctx context.Context, p *catalog.Product) error {
	return s.db.QueryRowContext(ctx,
		`INSERT INTO product (name, price) VALUES ($1, $2) RETURNING id`,
		p.Name, p.Price).Scan(&p.ID)
}

// Product retrieves a product by ID.
func (s *Store) Product(ctx context.Context, id int64) (catalog.Product, error) {
	var p catalog.Product
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, price FROM product WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, err
}

// UpdateProduct updates an existing product.
func (s *Store) UpdateProduct(ctx context.Context, p catalog.Product) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE product SET name = $2, price = $3 WHERE id = $1`,
		p.ID, p.Name, p.Price)
	if err != nil {
		return err
	}
	return checkFound(res)
}

// ListProducts fetches all products ordered by ID.
func (s *Store) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, price FROM product ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []catalog.Product
	for rows.Next() {
		var p catalog.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// CreateCustomer inserts the customer and fills in its assigned ID.
func (s *Store) CreateCustomer(ctx context.Context, c *catalog.Customer) error {
	return s.db.QueryRowContext(ctx,
		`INSERT INTO customer (name, city, state) VALUES ($1, $2, $3) RETURNING id`,
		c.Name, c.City, c.State).Scan(&c.ID)
}

// Customer retrieves a customer by ID.
func (s *Store) Customer(ctx context.Context, id int64) (catalog.Customer, error) {
	var c catalog.Customer
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, city, state FROM customer WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.City, &c.State)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Customer{}, catalog.ErrNotFound
	}
	return c, err
}

// ListCustomers fetches all customers ordered by ID.
func (s *Store) ListCustomers(ctx context.Context) ([]catalog.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, city, state FROM customer ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var customers []catalog.Customer
	for rows.Next() {
		var c catalog.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.City, &c.State); err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// CreateOrder inserts the order with a zero total and fills in its ID.
func (s *Store) CreateOrder(ctx context.Context, o *catalog.Order) error {
	return s.db.QueryRowContext(ctx,
		`INSERT INTO "order" (customer, total) VALUES ($1, 0) RETURNING id`,
		o.Customer).Scan(&o.ID)
}

// Order retrieves an order by ID.
func (s *Store) Order(ctx context.Context, id int64) (catalog.Order, error) {
	var o catalog.Order
	err := s.db.QueryRowContext(ctx,
		`SELECT id, customer, total FROM "order" WHERE id = $1`, id).
		Scan(&o.ID, &o.Customer, &o.Total)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Order{}, catalog.ErrNotFound
	}
	return o, err
}

// OrdersByCustomer fetches the customer's orders ordered by ID.
func (s *Store) OrdersByCustomer(ctx context.Context, customerID int64) ([]catalog.Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, customer, total FROM "order" WHERE customer = $1 ORDER BY id`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []catalog.Order
	for rows.Next() {
		var o catalog.Order
		if err := rows.Scan(&o.ID, &o.Customer, &o.Total); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// InsertLine inserts the line and fills in its assigned ID.
func (s *Store) InsertLine(ctx context.Context, l *catalog.OrderLine) error {
	return s.db.QueryRowContext(ctx,
		`INSERT INTO order_line ("order", product, quantity, price) VALUES ($1, $2, $3, $4) RETURNING id`,
		l.Order, l.Product, l.Quantity, l.Price).Scan(&l.ID)
}

// UpdateLine updates an existing line.
func (s *Store) UpdateLine(ctx context.Context, l catalog.OrderLine) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE order_line SET "order" = $2, product = $3, quantity = $4, price = $5 WHERE id = $1`,
		l.ID, l.Order, l.Product, l.Quantity, l.Price)
	if err != nil {
		return err
	}
	return checkFound(res)
}

// DeleteLine removes a line by ID.
func (s *Store) DeleteLine(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM order_line WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkFound(res)
}

// Line retrieves a line by ID.
func (s *Store) Line(ctx context.Context, id int64) (catalog.OrderLine, error) {
	var l catalog.OrderLine
	err := s.db.QueryRowContext(ctx,
		`SELECT id, "order", product, quantity, price FROM order_line WHERE id = $1`, id).
		Scan(&l.ID, &l.Order, &l.Product, &l.Quantity, &l.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.OrderLine{}, catalog.ErrNotFound
	}
	return l, err
}

// LinesByOrder fetches the order's lines ordered by ID.
func (s *Store) LinesByOrder(ctx context.Context, orderID int64) ([]catalog.OrderLine, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, "order", product, quantity, price FROM order_line WHERE "order" = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []catalog.OrderLine
	for rows.Next() {
		var l catalog.OrderLine
		if err := rows.Scan(&l.ID, &l.Order, &l.Product, &l.Quantity, &l.Price); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// RecomputeOrderTotal writes the order's total as one statement: the sum and
// the update are not separately observable by concurrent readers.
func (s *Store) RecomputeOrderTotal(ctx context.Context, orderID, excludeLineID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE "order"
		    SET total = COALESCE(
		        (SELECT SUM(price) FROM order_line WHERE "order" = $1 AND id <> $2), 0)
		  WHERE id = $1`,
		orderID, excludeLineID)
	if err != nil {
		return err
	}
	return checkFound(res)
}

// Search compiles pred into a WHERE clause and returns the matching rows.
func (s *Store) Search(ctx context.Context, table string, pred catalog.Predicate, orderBy schema.OrderBy, limit int) ([]schema.Row, error) {
	clause, args := compile(pred, &argCounter{})
	query := fmt.Sprintf(`SELECT * FROM %s WHERE %s`, quoteIdent(table), clause)
	if orderBy.Column != "" {
		query += ` ORDER BY ` + quoteIdent(orderBy.Column)
		if orderBy.Desc {
			query += ` DESC`
		}
	}
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", table, err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// Lookup fetches one row of the named table by key.
func (s *Store) Lookup(ctx context.Context, table string, key int64) (schema.Row, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT * FROM %s WHERE id = $1`, quoteIdent(table)), key)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", table, err)
	}
	defer rows.Close()
	out, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, catalog.ErrNotFound
	}
	return out[0], nil
}

func checkFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

func scanRows(rows *sql.Rows) ([]schema.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []schema.Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(schema.Row, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
			} else {
				row[c] = vals[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
