package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/juicyshop/backend/internal/domain/client"
)

const (
	insertClientSQL = `INSERT INTO clients (user_id, name)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING`

	getClientSQL = `SELECT user_id, name, phone, bonus_balance, total_earned,
		total_orders, COALESCE(referrer_id, ''), referral_clicks, created_at
		FROM clients WHERE user_id = $1`

	updateContactSQL = `UPDATE clients SET name = $2, phone = $3 WHERE user_id = $1`

	setReferrerSQL = `UPDATE clients SET referrer_id = $2
		WHERE user_id = $1 AND total_orders = 0`

	incrementClicksSQL = `UPDATE clients SET referral_clicks = referral_clicks + 1
		WHERE user_id = $1`

	incrementOrdersSQL = `UPDATE clients SET total_orders = total_orders + 1
		WHERE user_id = $1 RETURNING total_orders`

	countReferralsSQL = `SELECT COUNT(*) FROM clients WHERE referrer_id = $1`

	countActiveReferralsSQL = `SELECT COUNT(DISTINCT o.user_id) FROM orders o
		JOIN clients c ON c.user_id = o.user_id
		WHERE c.referrer_id = $1 AND o.created_at >= $2`
)

var _ client.Repository = (*ClientRepository)(nil)

// ClientRepository implements client.Repository backed by PostgreSQL.
type ClientRepository struct {
	pool *pgxpool.Pool
}

// NewClientRepository returns a ClientRepository that uses the given pool.
func NewClientRepository(pool *pgxpool.Pool) *ClientRepository {
	return &ClientRepository{pool: pool}
}

// Ensure creates a zero-balance client record when none exists and reports
// whether it did. The insert races safely against concurrent bootstraps: the
// conflict clause makes exactly one of them the creator.
func (r *ClientRepository) Ensure(ctx context.Context, id, name string) (*client.Client, bool, error) {
	if name == "" {
		name = "Guest"
	}
	tag, err := r.pool.Exec(ctx, insertClientSQL, id, name)
	if err != nil {
		return nil, false, fmt.Errorf("ensuring client %q: %w", id, err)
	}
	created := tag.RowsAffected() > 0

	c, err := r.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return c, created, nil
}

// Get returns a single client by its identifier.
func (r *ClientRepository) Get(ctx context.Context, id string) (*client.Client, error) {
	rows, err := r.pool.Query(ctx, getClientSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting client %q: %w", id, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanClient)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, client.ErrNotFound
		}
		return nil, fmt.Errorf("getting client %q: %w", id, err)
	}
	return &c, nil
}

// UpdateContact refreshes the client's name and phone.
func (r *ClientRepository) UpdateContact(ctx context.Context, id, name, phone string) error {
	if _, err := r.pool.Exec(ctx, updateContactSQL, id, name, phone); err != nil {
		return fmt.Errorf("updating contact for %q: %w", id, err)
	}
	return nil
}

// SetReferrer writes the referral edge while the first-purchase lock is open
// (zero completed orders) and reports whether the conditional update matched.
func (r *ClientRepository) SetReferrer(ctx context.Context, id, referrerID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, setReferrerSQL, id, referrerID)
	if err != nil {
		return false, fmt.Errorf("setting referrer for %q: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// IncrementClicks atomically bumps the referrer's click counter.
func (r *ClientRepository) IncrementClicks(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, incrementClicksSQL, id); err != nil {
		return fmt.Errorf("incrementing clicks for %q: %w", id, err)
	}
	return nil
}

// IncrementCompletedOrders atomically bumps the completed-order counter and
// returns the new count, so the caller can detect the first completion.
func (r *ClientRepository) IncrementCompletedOrders(ctx context.Context, id string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, incrementOrdersSQL, id).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, client.ErrNotFound
		}
		return 0, fmt.Errorf("incrementing completed orders for %q: %w", id, err)
	}
	return count, nil
}

// CountReferrals returns how many clients name the given referrer.
func (r *ClientRepository) CountReferrals(ctx context.Context, referrerID string) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, countReferralsSQL, referrerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting referrals for %q: %w", referrerID, err)
	}
	return count, nil
}

// CountActiveReferrals returns how many referred clients ordered since the
// given time.
func (r *ClientRepository) CountActiveReferrals(ctx context.Context, referrerID string, since time.Time) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, countActiveReferralsSQL, referrerID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting active referrals for %q: %w", referrerID, err)
	}
	return count, nil
}

func scanClient(row pgx.CollectableRow) (client.Client, error) {
	var c client.Client
	err := row.Scan(
		&c.ID, &c.Name, &c.Phone, &c.Balance, &c.LifetimeEarned,
		&c.CompletedOrders, &c.ReferrerID, &c.ReferralClicks, &c.CreatedAt,
	)
	return c, err
}
