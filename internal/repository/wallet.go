package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/juicyshop/backend/internal/domain/wallet"
)

const (
	creditBalanceSQL = `UPDATE clients SET bonus_balance = bonus_balance + $2
		WHERE user_id = $1`

	creditEarningSQL = `UPDATE clients SET bonus_balance = bonus_balance + $2,
		total_earned = total_earned + $2
		WHERE user_id = $1`

	debitBalanceSQL = `UPDATE clients SET bonus_balance = bonus_balance - $2
		WHERE user_id = $1 AND bonus_balance >= $2`

	insertTransactionSQL = `INSERT INTO bonus_transactions (user_id, amount, description)
		VALUES ($1, $2, $3)`

	hasReasonSQL = `SELECT EXISTS(SELECT 1 FROM bonus_transactions
		WHERE user_id = $1 AND description LIKE $2)`

	getBalanceSQL = `SELECT bonus_balance FROM clients WHERE user_id = $1`

	listTransactionsSQL = `SELECT id, user_id, amount, description, created_at
		FROM bonus_transactions WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
)

var _ wallet.Repository = (*WalletRepository)(nil)

// WalletRepository implements wallet.Repository backed by PostgreSQL. Every
// balance mutation and its transaction row commit together, so the
// balance == Σ transactions invariant cannot be observed broken.
type WalletRepository struct {
	pool *pgxpool.Pool
}

// NewWalletRepository returns a WalletRepository that uses the given pool.
func NewWalletRepository(pool *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{pool: pool}
}

// Credit adds amount to the client's balance and appends a transaction.
// Earning credits also grow the lifetime-earned counter; refunds do not.
func (r *WalletRepository) Credit(ctx context.Context, clientID string, amount decimal.Decimal, reason string, earning bool) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin credit: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	creditSQL := creditBalanceSQL
	if earning {
		creditSQL = creditEarningSQL
	}
	tag, err := tx.Exec(ctx, creditSQL, clientID, amount)
	if err != nil {
		return fmt.Errorf("crediting %q: %w", clientID, err)
	}
	if tag.RowsAffected() == 0 {
		return wallet.ErrUnknownClient
	}

	if _, err := tx.Exec(ctx, insertTransactionSQL, clientID, amount, reason); err != nil {
		return fmt.Errorf("logging credit for %q: %w", clientID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit credit: %w", err)
	}
	return nil
}

// Debit subtracts amount conditionally (balance >= amount) and appends a
// negative transaction in the same database transaction. The losing side of
// two concurrent spends fails with ErrInsufficientBalance instead of driving
// the balance negative.
func (r *WalletRepository) Debit(ctx context.Context, clientID string, amount decimal.Decimal, reason string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin debit: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, debitBalanceSQL, clientID, amount)
	if err != nil {
		return fmt.Errorf("debiting %q: %w", clientID, err)
	}
	if tag.RowsAffected() == 0 {
		return wallet.ErrInsufficientBalance
	}

	if _, err := tx.Exec(ctx, insertTransactionSQL, clientID, amount.Neg(), reason); err != nil {
		return fmt.Errorf("logging debit for %q: %w", clientID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit debit: %w", err)
	}
	return nil
}

// HasReason reports whether the client has a transaction whose description
// matches the given LIKE pattern.
func (r *WalletRepository) HasReason(ctx context.Context, clientID, pattern string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, hasReasonSQL, clientID, pattern).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking transactions for %q: %w", clientID, err)
	}
	return exists, nil
}

// Balance returns the client's current point balance, zero for clients that
// have no record yet.
func (r *WalletRepository) Balance(ctx context.Context, clientID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.pool.QueryRow(ctx, getBalanceSQL, clientID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("getting balance for %q: %w", clientID, err)
	}
	return balance, nil
}

// History returns the client's transaction log, newest first.
func (r *WalletRepository) History(ctx context.Context, clientID string) ([]wallet.Transaction, error) {
	rows, err := r.pool.Query(ctx, listTransactionsSQL, clientID)
	if err != nil {
		return nil, fmt.Errorf("listing transactions for %q: %w", clientID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (wallet.Transaction, error) {
		var t wallet.Transaction
		err := row.Scan(&t.ID, &t.ClientID, &t.Amount, &t.Reason, &t.CreatedAt)
		return t, err
	})
}
