package client

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested client does not exist.
var ErrNotFound = errors.New("client not found")

// Client is a customer identity tracked by the loyalty ledger. Records are
// created lazily on first touch: a visit, an order, or a referral attach.
type Client struct {
	ID              string
	Name            string
	Phone           string
	Balance         decimal.Decimal
	LifetimeEarned  decimal.Decimal
	CompletedOrders int
	ReferrerID      string // empty when the client has no referrer
	ReferralClicks  int
	CreatedAt       time.Time
}

// ReferralStats aggregates a referrer's invite funnel.
type ReferralStats struct {
	Total  int
	Active int
	Clicks int
}

// Repository defines persistence operations for client records.
//
// Ensure is the single idempotent bootstrap path: it creates a zero-balance
// record when none exists and reports whether it did. SetReferrer only
// succeeds while the client has zero completed orders (first-purchase lock);
// it reports whether the conditional update matched.
type Repository interface {
	Ensure(ctx context.Context, id, name string) (c *Client, created bool, err error)
	Get(ctx context.Context, id string) (*Client, error)
	UpdateContact(ctx context.Context, id, name, phone string) error
	SetReferrer(ctx context.Context, id, referrerID string) (bool, error)
	IncrementClicks(ctx context.Context, id string) error
	IncrementCompletedOrders(ctx context.Context, id string) (int, error)
	CountReferrals(ctx context.Context, referrerID string) (int, error)
	CountActiveReferrals(ctx context.Context, referrerID string, since time.Time) (int, error)
}
