package catalog

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase.
type Product struct {
	ID    string
	Name  string
	Price decimal.Decimal
	Stock int
}

// Line pairs a product with a quantity being reserved or returned to stock.
type Line struct {
	ProductID string
	Quantity  int
}

// StockError indicates a line requested more units than the product has left.
type StockError struct {
	ProductID string
	Name      string
}

func (e *StockError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("insufficient stock for %s", e.Name)
	}
	return fmt.Sprintf("insufficient stock for product %s", e.ProductID)
}

// Repository defines persistence operations for the product catalog.
//
// DecrementStock applies every line as a conditional update (stock >= quantity)
// inside a single transaction; a line that cannot be satisfied aborts the whole
// call with a *StockError and leaves no line decremented. RestoreStock is its
// inverse and is used on order cancellation.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	DecrementStock(ctx context.Context, lines []Line) error
	RestoreStock(ctx context.Context, lines []Line) error
}
