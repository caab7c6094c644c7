package order

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for order submission validation.
var (
	ErrEmptyItems      = errors.New("items required")
	ErrMissingClientID = errors.New("client id required")
)

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// PriceMismatchError indicates the client-declared total diverges from the
// server-recomputed total beyond the one-unit rounding tolerance.
type PriceMismatchError struct {
	Expected decimal.Decimal
	Declared decimal.Decimal
}

func (e *PriceMismatchError) Error() string {
	return fmt.Sprintf("price mismatch: expected %s, declared %s", e.Expected, e.Declared)
}

// TransitionError indicates an invalid lifecycle move, e.g. cancelling a
// completed order. Duplicate deliveries of the same transition are not
// errors; they take the already-processed path instead.
type TransitionError struct {
	OrderID string
	From    Status
	To      Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order %s: cannot transition %s -> %s", e.OrderID, e.From, e.To)
}
