// Package postgres persists the catalog in a PostgreSQL products table.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domain "github.com/Zhima-Mochi/minishop-shopping/internal/domain/product"
	_ "github.com/lib/pq"
)

const schema = `CREATE TABLE IF NOT EXISTS products (
	name     TEXT PRIMARY KEY,
	quantity INT NOT NULL CHECK (quantity >= 0)
)`

type ProductDao struct {
	db *sql.DB
}

func NewProductDao(db *sql.DB) *ProductDao {
	return &ProductDao{db: db}
}

// Open connects with the lib/pq driver and ensures the products table exists.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("postgres: create table: %w", err)
	}
	return nil
}

// ListAll returns the catalog ordered by product name.
func (d *ProductDao) ListAll(ctx context.Context) ([]domain.Product, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT name, quantity FROM products ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("postgres: list: %w", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.Name, &p.Quantity); err != nil {
			return nil, fmt.Errorf("postgres: scan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (d *ProductDao) GetByName(ctx context.Context, name string) (*domain.Product, error) {
	var p domain.Product
	err := d.db.QueryRowContext(ctx, "SELECT name, quantity FROM products WHERE name = $1", name).
		Scan(&p.Name, &p.Quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get %q: %w", name, err)
	}
	return &p, nil
}

// Save upserts the product. Products with an empty name or negative stock are refused.
func (d *ProductDao) Save(ctx context.Context, p domain.Product) (bool, error) {
	if p.Name == "" || p.Quantity < 0 {
		return false, nil
	}
	res, err := d.db.ExecContext(ctx,
		`INSERT INTO products (name, quantity) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET quantity = EXCLUDED.quantity`,
		p.Name, p.Quantity,
	)
	if err != nil {
		return false, fmt.Errorf("postgres: save %q: %w", p.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("postgres: save %q: %w", p.Name, err)
	}
	return n == 1, nil
}
