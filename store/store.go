// Package store persists tracked products and their price history in SQLite.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

var (
	ErrNotFound  = errors.New("store: product not found")
	ErrDuplicate = errors.New("store: product already tracked")
)

// Product is a tracked product row.
type Product struct {
	ID      int64
	URL     string
	Title   string
	Price   float64
	Rating  float64
	Reviews int
	Image   string

	// Fingerprint is the layout SimHash from the last check.
	Fingerprint uint64
	LayoutDrift bool

	LastChecked time.Time
	CreatedAt   time.Time

	// LastAttempted is the last refresh attempt, successful or not.
	// Failures counts consecutive failed attempts since the last success.
	LastAttempted time.Time
	Failures      int
}

// PricePoint is one recorded price observation.
type PricePoint struct {
	Price     float64
	CheckedAt time.Time
}

// Filter narrows List. Zero values mean no constraint.
type Filter struct {
	MinPrice float64
	MaxPrice float64
	Query    string
	Limit    int
}

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema. ":memory:" gives a private in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	// One connection: sqlite serializes writers anyway, and :memory:
	// databases are per-connection.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000", Schema} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: init: %w", err)
		}
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// migrate brings databases created before attempt tracking up to date.
func migrate(db *sql.DB) error {
	cols := map[string]bool{}
	rows, err := db.Query(`SELECT name FROM pragma_table_info('products')`)
	if err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return fmt.Errorf("store: migrate: %w", err)
		}
		cols[name] = true
	}
	rows.Close()

	var stmts []string
	if !cols["last_attempted"] {
		stmts = append(stmts,
			`ALTER TABLE products ADD COLUMN last_attempted INTEGER NOT NULL DEFAULT 0`,
			`UPDATE products SET last_attempted = last_checked`)
	}
	if !cols["failures"] {
		stmts = append(stmts, `ALTER TABLE products ADD COLUMN failures INTEGER NOT NULL DEFAULT 0`)
	}
	stmts = append(stmts, `CREATE INDEX IF NOT EXISTS idx_products_last_attempted ON products(last_attempted)`)
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const productColumns = `id, url, title, price, rating, reviews, image, fingerprint, layout_drift, last_checked, created_at, last_attempted, failures`

// Insert adds a product and its first price point. p.ID is set on success.
func (s *Store) Insert(ctx context.Context, p *Product) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if p.LastChecked.IsZero() {
		p.LastChecked = p.CreatedAt
	}
	if p.LastAttempted.IsZero() {
		p.LastAttempted = p.LastChecked
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: insert: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO products (url, title, price, rating, reviews, image, fingerprint, layout_drift, last_checked, created_at, last_attempted, failures)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.URL, p.Title, p.Price, p.Rating, p.Reviews, p.Image,
		int64(p.Fingerprint), p.LayoutDrift, p.LastChecked.UnixMilli(), p.CreatedAt.UnixMilli(),
		p.LastAttempted.UnixMilli(), p.Failures,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("store: insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("store: insert: %w", err)
	}
	if err := addPricePoint(ctx, tx, id, p.Price, p.LastChecked); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: insert: %w", err)
	}
	p.ID = id
	return nil
}

// Update overwrites the snapshot fields of an existing product and records
// the price. A successful check also resets the failure count.
func (s *Store) Update(ctx context.Context, p *Product) error {
	p.LastAttempted = p.LastChecked
	p.Failures = 0

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: update: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE products SET title = ?, price = ?, rating = ?, reviews = ?, image = ?,
		 fingerprint = ?, layout_drift = ?, last_checked = ?, last_attempted = ?, failures = 0 WHERE id = ?`,
		p.Title, p.Price, p.Rating, p.Reviews, p.Image,
		int64(p.Fingerprint), p.LayoutDrift, p.LastChecked.UnixMilli(), p.LastAttempted.UnixMilli(), p.ID,
	)
	if err != nil {
		return fmt.Errorf("store: update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if err := addPricePoint(ctx, tx, p.ID, p.Price, p.LastChecked); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: update: %w", err)
	}
	return nil
}

// MarkFailed records a refresh attempt that produced no snapshot. The
// product keeps its last good data but moves to the back of the stale queue.
func (s *Store) MarkFailed(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE products SET last_attempted = ?, failures = failures + 1 WHERE id = ?`,
		at.UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("store: mark failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// addPricePoint records a price. A zero price means none was found on the
// page and is not history.
func addPricePoint(ctx context.Context, tx *sql.Tx, productID int64, price float64, at time.Time) error {
	if price <= 0 {
		return nil
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO price_history (product_id, price, checked_at) VALUES (?, ?, ?)`,
		productID, price, at.UnixMilli(),
	); err != nil {
		return fmt.Errorf("store: price history: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id int64) (*Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	return scanProduct(row)
}

func (s *Store) GetByURL(ctx context.Context, url string) (*Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE url = ?`, url)
	return scanProduct(row)
}

// List returns products newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]Product, error) {
	var (
		where []string
		args  []any
	)
	if f.MinPrice > 0 {
		where = append(where, "price >= ?")
		args = append(args, f.MinPrice)
	}
	if f.MaxPrice > 0 {
		where = append(where, "price <= ?")
		args = append(args, f.MaxPrice)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		where = append(where, "title LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(q)+"%")
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	return s.queryProducts(ctx, query, args...)
}

// Stale returns up to limit products last attempted before cutoff, least
// recently attempted first. Failed attempts count, so a product that keeps
// failing does not hold the head of the queue.
func (s *Store) Stale(ctx context.Context, cutoff time.Time, limit int) ([]Product, error) {
	return s.queryProducts(ctx,
		`SELECT `+productColumns+` FROM products WHERE last_attempted < ? ORDER BY last_attempted ASC, id ASC LIMIT ?`,
		cutoff.UnixMilli(), limit,
	)
}

// History returns the recorded prices of a product, oldest first.
func (s *Store) History(ctx context.Context, productID int64) ([]PricePoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT price, checked_at FROM price_history WHERE product_id = ? ORDER BY checked_at ASC, id ASC`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: history: %w", err)
	}
	defer rows.Close()

	var out []PricePoint
	for rows.Next() {
		var (
			pp PricePoint
			at int64
		)
		if err := rows.Scan(&pp.Price, &at); err != nil {
			return nil, fmt.Errorf("store: history: %w", err)
		}
		pp.CheckedAt = time.UnixMilli(at)
		out = append(out, pp)
	}
	return out, rows.Err()
}

// Delete removes a product and its history.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}

func (s *Store) queryProducts(ctx context.Context, query string, args ...any) ([]Product, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query: %w", err)
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(sc scanner) (*Product, error) {
	var (
		p                               Product
		fp                              int64
		lastChecked, created, attempted int64
	)
	err := sc.Scan(&p.ID, &p.URL, &p.Title, &p.Price, &p.Rating, &p.Reviews, &p.Image,
		&fp, &p.LayoutDrift, &lastChecked, &created, &attempted, &p.Failures)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan: %w", err)
	}
	p.Fingerprint = uint64(fp)
	p.LastChecked = time.UnixMilli(lastChecked)
	p.CreatedAt = time.UnixMilli(created)
	p.LastAttempted = time.UnixMilli(attempted)
	return &p, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
