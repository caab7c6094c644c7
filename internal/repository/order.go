package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/juicyshop/backend/internal/domain/discount"
	"github.com/juicyshop/backend/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders (id, user_id, items, subtotal,
		new_customer_discount, promo_discount, promo_code, bonuses_used,
		total, status, delivery_name, delivery_phone, delivery_address,
		delivery_payment, delivery_comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	getOrderSQL = `SELECT id, user_id, items, subtotal, new_customer_discount,
		promo_discount, promo_code, bonuses_used, total, status,
		delivery_name, delivery_phone, delivery_address, delivery_payment,
		delivery_comment, created_at
		FROM orders WHERE id = $1`

	listOrdersByClientSQL = `SELECT id, user_id, items, subtotal, new_customer_discount,
		promo_discount, promo_code, bonuses_used, total, status,
		delivery_name, delivery_phone, delivery_address, delivery_payment,
		delivery_comment, created_at
		FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	claimTransitionSQL = `UPDATE orders SET status = $3
		WHERE id = $1 AND status = $2`

	orderExistsSQL = `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`

	newCustomerDiscountUsedSQL = `SELECT EXISTS(SELECT 1 FROM orders
		WHERE user_id = $1 AND status <> 'cancelled'
		AND (new_customer_discount > 0 OR promo_code = $2))`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Order
// items are stored as a JSONB snapshot so they survive catalog edits.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order with its frozen item snapshot.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("encoding order items: %w", err)
	}

	_, err = r.pool.Exec(ctx, insertOrderSQL,
		o.ID, o.ClientID, items, o.Subtotal,
		o.NewCustomerDiscount, o.PromoDiscount, o.PromoCode, o.BonusesUsed,
		o.Total, o.Status,
		o.Delivery.Name, o.Delivery.Phone, o.Delivery.Address,
		o.Delivery.Payment, o.Delivery.Comment, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// Get returns a single order by its identifier.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// ListByClient returns the client's orders, newest first.
func (r *OrderRepository) ListByClient(ctx context.Context, clientID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByClientSQL, clientID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for %q: %w", clientID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// ClaimTransition atomically moves the order from one status to another and
// reports whether this call won the claim. A false return with a nil error
// means another transition got there first or the order does not exist;
// callers resolve which by reading the order back.
func (r *OrderRepository) ClaimTransition(ctx context.Context, id string, from, to order.Status) (bool, error) {
	tag, err := r.pool.Exec(ctx, claimTransitionSQL, id, from, to)
	if err != nil {
		return false, fmt.Errorf("transitioning order %q: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, orderExistsSQL, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking order %q: %w", id, err)
	}
	if !exists {
		return false, order.ErrNotFound
	}
	return false, nil
}

// NewCustomerDiscountUsed reports whether the client has any non-cancelled
// order that carries the new-customer discount.
func (r *OrderRepository) NewCustomerDiscountUsed(ctx context.Context, clientID string) (bool, error) {
	var used bool
	err := r.pool.QueryRow(ctx, newCustomerDiscountUsedSQL, clientID, discount.NewCustomerCode).Scan(&used)
	if err != nil {
		return false, fmt.Errorf("checking discount history for %q: %w", clientID, err)
	}
	return used, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o     order.Order
		items []byte
	)
	err := row.Scan(
		&o.ID, &o.ClientID, &items, &o.Subtotal, &o.NewCustomerDiscount,
		&o.PromoDiscount, &o.PromoCode, &o.BonusesUsed, &o.Total, &o.Status,
		&o.Delivery.Name, &o.Delivery.Phone, &o.Delivery.Address,
		&o.Delivery.Payment, &o.Delivery.Comment, &o.CreatedAt,
	)
	if err != nil {
		return o, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return o, fmt.Errorf("decoding order items: %w", err)
	}
	return o, nil
}
