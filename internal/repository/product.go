package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/juicyshop/backend/internal/domain/catalog"
)

const (
	listProductsSQL = `SELECT id, name, price, stock FROM products ORDER BY id`

	getProductsByIDsSQL = `SELECT id, name, price, stock FROM products WHERE id = ANY($1)`

	decrementStockSQL = `UPDATE products SET stock = stock - $2
		WHERE id = $1 AND stock >= $2`

	restoreStockSQL = `UPDATE products SET stock = stock + $2 WHERE id = $1`

	getProductNameSQL = `SELECT name FROM products WHERE id = $1`

	upsertProductSQL = `INSERT INTO products (id, name, price, stock)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			stock = EXCLUDED.stock`
)

var _ catalog.Repository = (*ProductRepository)(nil)

// ProductRepository implements catalog.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products from the catalog ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]catalog.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// DecrementStock claims stock for every line inside one transaction. Each
// line is a conditional update that only matches while enough stock remains,
// so the losing side of a concurrent claim rolls back cleanly with a
// *catalog.StockError instead of overselling.
func (r *ProductRepository) DecrementStock(ctx context.Context, lines []catalog.Line) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin stock claim: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, line := range lines {
		tag, err := tx.Exec(ctx, decrementStockSQL, line.ProductID, line.Quantity)
		if err != nil {
			return fmt.Errorf("decrementing stock for %q: %w", line.ProductID, err)
		}
		if tag.RowsAffected() == 0 {
			return r.stockError(ctx, line.ProductID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit stock claim: %w", err)
	}
	return nil
}

// RestoreStock returns previously claimed stock, the inverse of DecrementStock.
func (r *ProductRepository) RestoreStock(ctx context.Context, lines []catalog.Line) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin restock: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, line := range lines {
		if _, err := tx.Exec(ctx, restoreStockSQL, line.ProductID, line.Quantity); err != nil {
			return fmt.Errorf("restoring stock for %q: %w", line.ProductID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit restock: %w", err)
	}
	return nil
}

// Upsert inserts the product or refreshes an existing record in place. Used
// by database seeding.
func (r *ProductRepository) Upsert(ctx context.Context, p catalog.Product) error {
	if _, err := r.pool.Exec(ctx, upsertProductSQL, p.ID, p.Name, p.Price, p.Stock); err != nil {
		return fmt.Errorf("upserting product %q: %w", p.ID, err)
	}
	return nil
}

// stockError builds the failure for a line that could not be satisfied,
// distinguishing a vanished product from an out-of-stock one.
func (r *ProductRepository) stockError(ctx context.Context, productID string) error {
	var name string
	err := r.pool.QueryRow(ctx, getProductNameSQL, productID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return errors.Wrapf(catalog.ErrNotFound, "product %s", productID)
	}
	return &catalog.StockError{ProductID: productID, Name: name}
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Stock)
	return p, err
}
