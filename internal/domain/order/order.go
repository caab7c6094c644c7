package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// Status is an order lifecycle state. An order leaves StatusNew exactly once;
// StatusCompleted and StatusCancelled are terminal and mutually exclusive.
type Status string

const (
	StatusNew       Status = "new"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Item is a frozen order line. Name and unit price are snapshotted from the
// catalog at creation and are immune to later catalog changes.
type Item struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// Delivery holds the customer contact and delivery details captured with the
// order.
type Delivery struct {
	Name    string
	Phone   string
	Address string
	Payment string
	Comment string
}

// Order is a customer order with its full pricing breakdown.
type Order struct {
	ID                  string
	ClientID            string
	Items               []Item
	Subtotal            decimal.Decimal
	NewCustomerDiscount decimal.Decimal
	PromoDiscount       decimal.Decimal
	PromoCode           string
	BonusesUsed         decimal.Decimal
	Total               decimal.Decimal
	Status              Status
	Delivery            Delivery
	CreatedAt           time.Time
}

// Repository defines persistence operations for orders.
//
// ClaimTransition performs the check-and-set that moves an order between
// statuses as one indivisible store operation and reports whether it matched.
// The losing side of two concurrent claims observes false and must take the
// no-op path instead of re-running side effects.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	ListByClient(ctx context.Context, clientID string) ([]Order, error)
	ClaimTransition(ctx context.Context, id string, from, to Status) (bool, error)
	NewCustomerDiscountUsed(ctx context.Context, clientID string) (bool, error)
}
