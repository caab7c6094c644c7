package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/juicyshop/backend/internal/domain/discount"
)

const (
	findDiscountSQL = `SELECT code, type, value, active, label
		FROM discounts WHERE UPPER(code) = UPPER($1) AND active`

	upsertDiscountSQL = `INSERT INTO discounts (code, type, value, active, label)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO UPDATE SET
			type = EXCLUDED.type,
			value = EXCLUDED.value,
			active = EXCLUDED.active,
			label = EXCLUDED.label`
)

var _ discount.Repository = (*DiscountRepository)(nil)

// DiscountRepository implements discount.Repository backed by PostgreSQL.
type DiscountRepository struct {
	pool *pgxpool.Pool
}

// NewDiscountRepository returns a DiscountRepository that uses the given pool.
func NewDiscountRepository(pool *pgxpool.Pool) *DiscountRepository {
	return &DiscountRepository{pool: pool}
}

// FindByCode returns the active discount matching the code, case-insensitive.
func (r *DiscountRepository) FindByCode(ctx context.Context, code string) (*discount.Discount, error) {
	rows, err := r.pool.Query(ctx, findDiscountSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding discount %q: %w", code, err)
	}

	d, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (discount.Discount, error) {
		var d discount.Discount
		err := row.Scan(&d.Code, &d.Type, &d.Value, &d.Active, &d.Label)
		return d, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrInvalidCode
		}
		return nil, fmt.Errorf("finding discount %q: %w", code, err)
	}
	return &d, nil
}

// Upsert inserts the discount or refreshes an existing definition in place.
// Used by seeding and bulk promo ingestion.
func (r *DiscountRepository) Upsert(ctx context.Context, d discount.Discount) error {
	if _, err := r.pool.Exec(ctx, upsertDiscountSQL, d.Code, d.Type, d.Value, d.Active, d.Label); err != nil {
		return fmt.Errorf("upserting discount %q: %w", d.Code, err)
	}
	return nil
}
