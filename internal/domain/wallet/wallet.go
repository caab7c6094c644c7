package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for ledger operations.
var (
	// ErrInsufficientBalance is returned by Debit when the conditional
	// balance check at the store does not match.
	ErrInsufficientBalance = errors.New("insufficient bonus balance")
	// ErrUnknownClient is returned when a ledger operation targets a client
	// that has no record.
	ErrUnknownClient = errors.New("unknown client")
)

// BalanceError indicates a requested bonus spend exceeds what the client can
// actually pay. The amount is never clamped; the caller must retry with a
// valid value so client and server totals stay in sync.
type BalanceError struct {
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *BalanceError) Error() string {
	return fmt.Sprintf("insufficient bonuses: available %s, requested %s",
		e.Available, e.Requested)
}

// Transaction is one append-only ledger entry. The sum of a client's
// transactions always equals the client's current balance.
type Transaction struct {
	ID        int64
	ClientID  string
	Amount    decimal.Decimal
	Reason    string
	CreatedAt time.Time
}

// Repository defines the persistence operations backing the ledger. Every
// balance mutation and its transaction row are written in one database
// transaction so the balance/log invariant cannot be observed broken.
type Repository interface {
	// Credit adds amount to the client's balance and appends a transaction.
	// When earning is true the client's lifetime-earned counter grows too;
	// refunds of previously spent points pass earning=false.
	Credit(ctx context.Context, clientID string, amount decimal.Decimal, reason string, earning bool) error
	// Debit subtracts amount conditionally (balance >= amount) and appends a
	// negative transaction. It returns ErrInsufficientBalance when the
	// condition does not match, leaving no trace.
	Debit(ctx context.Context, clientID string, amount decimal.Decimal, reason string) error
	// HasReason reports whether the client has a transaction whose reason
	// matches the given SQL LIKE pattern.
	HasReason(ctx context.Context, clientID, pattern string) (bool, error)
	Balance(ctx context.Context, clientID string) (decimal.Decimal, error)
	History(ctx context.Context, clientID string) ([]Transaction, error)
}
