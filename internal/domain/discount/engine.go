package discount

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Breakdown is the discount decision for one order. At most one of
// NewCustomer and Promo is nonzero.
type Breakdown struct {
	NewCustomer decimal.Decimal
	Promo       decimal.Decimal
	PromoCode   string
}

// Total returns the combined discount amount.
func (b Breakdown) Total() decimal.Decimal {
	return b.NewCustomer.Add(b.Promo)
}

// Engine evaluates promo codes and new-customer eligibility. Eligibility is
// recomputed from order history on every decision; cached flags may only ever
// drive UI hints, never the amounts computed here.
type Engine struct {
	discounts Repository
	history   History
}

// NewEngine creates a discount Engine.
func NewEngine(discounts Repository, history History) *Engine {
	return &Engine{discounts: discounts, history: history}
}

// NewCustomerEligible reports whether the client may still use the
// new-customer discount.
func (e *Engine) NewCustomerEligible(ctx context.Context, clientID string) (bool, error) {
	used, err := e.history.NewCustomerDiscountUsed(ctx, clientID)
	if err != nil {
		return false, errors.Wrap(err, "check discount history")
	}
	return !used, nil
}

// Evaluate computes the discount breakdown for an order. The reserved
// new-customer code takes the new-customer path; any other code takes the
// promo path regardless of the client's eligibility. An ineligible client
// requesting the reserved code gets a zero breakdown, not an error; the
// resulting total mismatch is surfaced by price validation.
func (e *Engine) Evaluate(ctx context.Context, clientID string, subtotal decimal.Decimal, code string) (Breakdown, error) {
	if code == "" {
		return Breakdown{}, nil
	}

	// Codes are matched case-insensitively, the reserved one included.
	if strings.EqualFold(code, NewCustomerCode) {
		eligible, err := e.NewCustomerEligible(ctx, clientID)
		if err != nil {
			return Breakdown{}, err
		}
		if !eligible {
			return Breakdown{}, nil
		}
		return Breakdown{
			NewCustomer: subtotal.Mul(newCustomerRate).Round(0),
		}, nil
	}

	d, err := e.discounts.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrInvalidCode) {
			return Breakdown{}, ErrInvalidCode
		}
		return Breakdown{}, errors.Wrap(err, "lookup promo code")
	}

	amount, err := apply(d, subtotal)
	if err != nil {
		return Breakdown{}, err
	}
	return Breakdown{Promo: amount, PromoCode: d.Code}, nil
}

// apply computes the amount for a promo discount, capped at the subtotal.
func apply(d *Discount, subtotal decimal.Decimal) (decimal.Decimal, error) {
	var amount decimal.Decimal
	switch d.Type {
	case TypePercent:
		amount = subtotal.Mul(d.Value).Div(hundred).Round(0)
	case TypeFixed:
		amount = d.Value
	default:
		return decimal.Zero, errors.Errorf("unsupported discount type: %q", d.Type)
	}

	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return decimal.Min(amount, subtotal), nil
}
