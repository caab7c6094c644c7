package discount

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates the supported promo discount strategies.
type Type string

const (
	// TypePercent applies a percentage of the order subtotal.
	TypePercent Type = "percent"
	// TypeFixed applies a fixed point amount.
	TypeFixed Type = "fixed"
)

// NewCustomerCode is the reserved promo code for the one-time new-customer
// discount. It is not stored in the discounts table; eligibility is computed
// from order history instead.
const NewCustomerCode = "new_client_10"

// newCustomerRate is the new-customer discount share of the subtotal.
var newCustomerRate = decimal.RequireFromString("0.10")

// ErrInvalidCode is returned when a promo code does not exist or is inactive.
var ErrInvalidCode = errors.New("invalid promo code")

// Discount is a read-only promo code definition.
type Discount struct {
	Code   string
	Type   Type
	Value  decimal.Decimal
	Active bool
	Label  string
}

// Repository provides lookup of promo code definitions. FindByCode returns
// ErrInvalidCode when no active discount matches.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Discount, error)
}

// History answers eligibility questions from authoritative order history.
// Implemented by the order store: a client has used the new-customer discount
// when any non-cancelled order of theirs carries a nonzero new-customer
// amount or the reserved code.
type History interface {
	NewCustomerDiscountUsed(ctx context.Context, clientID string) (bool, error)
}
