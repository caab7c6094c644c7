package wallet

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Reward policy. Percentages apply to an order's final total; earned amounts
// are floored to whole points, matching how totals are shown to customers.
var (
	WelcomeBonusAmount = decimal.NewFromInt(100)
	InviteBonusAmount  = decimal.NewFromInt(100)

	cashbackRate   = decimal.RequireFromString("0.02")
	commissionRate = decimal.RequireFromString("0.01")
)

// Ledger reasons. ReasonWelcomeBonus doubles as the idempotence guard for the
// once-per-lifetime welcome grant, so its exact text must stay stable.
const (
	ReasonWelcomeBonus = "Welcome Bonus"

	// The invite guard matches on "friend: <id>", so no other reason may
	// contain that substring.
	reasonInviteBonusFmt = "Invite Bonus (friend: %s)"
	reasonCashbackFmt    = "Cashback (order #%s)"
	reasonCommissionFmt  = "Referral commission (from %s)"
	reasonPaymentFmt     = "Order #%s payment"
	reasonRefundFmt      = "Refund (cancelled order #%s)"
)

// Ledger is the only component allowed to mutate bonus balances. All credits
// and debits go through it and each produces exactly one transaction row.
type Ledger struct {
	repo Repository
}

// NewLedger creates a Ledger over the given repository.
func NewLedger(repo Repository) *Ledger {
	return &Ledger{repo: repo}
}

// Balance returns the client's current point balance.
func (l *Ledger) Balance(ctx context.Context, clientID string) (decimal.Decimal, error) {
	return l.repo.Balance(ctx, clientID)
}

// History returns the client's transaction log, newest first.
func (l *Ledger) History(ctx context.Context, clientID string) ([]Transaction, error) {
	return l.repo.History(ctx, clientID)
}

// SpendOnOrder debits the points a client redeems at order creation.
func (l *Ledger) SpendOnOrder(ctx context.Context, clientID, orderID string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errors.New("spend amount must be positive")
	}
	return l.repo.Debit(ctx, clientID, amount, fmt.Sprintf(reasonPaymentFmt, orderID))
}

// RefundOrder returns exactly the points redeemed at creation as a distinct
// transaction. Refunds restore balance without touching lifetime earnings.
func (l *Ledger) RefundOrder(ctx context.Context, clientID, orderID string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errors.New("refund amount must be positive")
	}
	return l.repo.Credit(ctx, clientID, amount, fmt.Sprintf(reasonRefundFmt, orderID), false)
}

// GrantWelcomeBonus credits the one-time welcome bonus. The grant is guarded
// by the transaction log itself rather than the order counter, so a retried
// completion cannot duplicate it. Reports whether the bonus was granted now.
func (l *Ledger) GrantWelcomeBonus(ctx context.Context, clientID string) (bool, error) {
	granted, err := l.repo.HasReason(ctx, clientID, ReasonWelcomeBonus)
	if err != nil {
		return false, errors.Wrap(err, "check welcome bonus")
	}
	if granted {
		return false, nil
	}
	if err := l.repo.Credit(ctx, clientID, WelcomeBonusAmount, ReasonWelcomeBonus, true); err != nil {
		return false, errors.Wrap(err, "credit welcome bonus")
	}
	return true, nil
}

// GrantInviteBonus credits the referrer's one-time invite bonus for the given
// friend's first completed order, guarded the same way as the welcome bonus.
func (l *Ledger) GrantInviteBonus(ctx context.Context, referrerID, friendID string) (bool, error) {
	pattern := "%friend: " + friendID + "%"
	granted, err := l.repo.HasReason(ctx, referrerID, pattern)
	if err != nil {
		return false, errors.Wrap(err, "check invite bonus")
	}
	if granted {
		return false, nil
	}
	reason := fmt.Sprintf(reasonInviteBonusFmt, friendID)
	if err := l.repo.Credit(ctx, referrerID, InviteBonusAmount, reason, true); err != nil {
		return false, errors.Wrap(err, "credit invite bonus")
	}
	return true, nil
}

// GrantCashback credits the client's personal cashback for a completed order
// and returns the credited amount, zero when the total is too small.
func (l *Ledger) GrantCashback(ctx context.Context, clientID, orderID string, orderTotal decimal.Decimal) (decimal.Decimal, error) {
	amount := orderTotal.Mul(cashbackRate).Floor()
	if !amount.IsPositive() {
		return decimal.Zero, nil
	}
	reason := fmt.Sprintf(reasonCashbackFmt, orderID)
	if err := l.repo.Credit(ctx, clientID, amount, reason, true); err != nil {
		return decimal.Zero, errors.Wrap(err, "credit cashback")
	}
	return amount, nil
}

// GrantCommission credits the referrer's perpetual commission for a referred
// client's completed order and returns the credited amount.
func (l *Ledger) GrantCommission(ctx context.Context, referrerID, friendID string, orderTotal decimal.Decimal) (decimal.Decimal, error) {
	amount := orderTotal.Mul(commissionRate).Floor()
	if !amount.IsPositive() {
		return decimal.Zero, nil
	}
	reason := fmt.Sprintf(reasonCommissionFmt, friendID)
	if err := l.repo.Credit(ctx, referrerID, amount, reason, true); err != nil {
		return decimal.Zero, errors.Wrap(err, "credit commission")
	}
	return amount, nil
}
