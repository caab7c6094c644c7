package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/juicyshop/backend/internal/domain/catalog"
	"github.com/juicyshop/backend/internal/domain/client"
	"github.com/juicyshop/backend/internal/domain/discount"
	"github.com/juicyshop/backend/internal/domain/wallet"
	"github.com/juicyshop/backend/internal/notify"
)

// priceTolerance is the allowed divergence between the declared and the
// recomputed total: one currency unit of rounding slack.
var priceTolerance = decimal.NewFromInt(1)

// SubmitItem is one requested order line. Client-claimed prices are not part
// of the request; pricing is always recomputed from the catalog.
type SubmitItem struct {
	ProductID string
	Quantity  int
}

// SubmitRequest holds the validated input for order submission.
type SubmitRequest struct {
	ClientID       string
	Items          []SubmitItem
	DeclaredTotal  decimal.Decimal
	BonusesToSpend decimal.Decimal
	PromoCode      string
	Delivery       Delivery
}

// Outcome is the result of a lifecycle transition. AlreadyDone is set when a
// duplicate delivery hit an order that had already taken this transition.
type Outcome struct {
	Order       *Order
	AlreadyDone bool
}

// Service owns order creation and the New→{Completed,Cancelled} transitions,
// orchestrating pricing validation, discounts, the wallet ledger, stock, and
// notifications at the right lifecycle points.
type Service struct {
	catalog   catalog.Repository
	clients   client.Repository
	discounts *discount.Engine
	ledger    *wallet.Ledger
	orders    Repository
	notifier  notify.Dispatcher
	now       func() time.Time
	newID     func() string
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	catalogRepo catalog.Repository,
	clients client.Repository,
	discounts *discount.Engine,
	ledger *wallet.Ledger,
	orders Repository,
	notifier notify.Dispatcher,
) *Service {
	return &Service{
		catalog:   catalogRepo,
		clients:   clients,
		discounts: discounts,
		ledger:    ledger,
		orders:    orders,
		notifier:  notifier,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// Submit validates the request against live inventory and pricing, applies
// discounts and bonus spend, and persists the order as New. Validation runs
// fully before any mutation; the submitting client is untrusted and every
// amount is recomputed server-side at the moment of truth.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Order, error) {
	if req.ClientID == "" {
		return nil, ErrMissingClientID
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if req.DeclaredTotal.IsNegative() || req.BonusesToSpend.IsNegative() {
		return nil, errors.New("total and bonus spend must be non-negative")
	}

	ids := make([]string, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		ids[i] = item.ProductID
	}

	// Client bootstrap is idempotent; contact details refresh on every order.
	_, created, err := s.clients.Ensure(ctx, req.ClientID, req.Delivery.Name)
	if err != nil {
		return nil, errors.Wrap(err, "ensure client")
	}
	if !created && req.Delivery.Name != "" {
		if err := s.clients.UpdateContact(ctx, req.ClientID, req.Delivery.Name, req.Delivery.Phone); err != nil {
			return nil, errors.Wrap(err, "update contact")
		}
	}

	fetched, err := s.catalog.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]catalog.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	// Snapshot lines from authoritative records, discarding claimed prices.
	items := make([]Item, len(req.Items))
	lines := make([]catalog.Line, len(req.Items))
	subtotal := decimal.Zero
	for i, reqItem := range req.Items {
		p, ok := byID[reqItem.ProductID]
		if !ok {
			return nil, errors.Wrapf(catalog.ErrNotFound, "product %s", reqItem.ProductID)
		}
		if reqItem.Quantity > p.Stock {
			return nil, &catalog.StockError{ProductID: p.ID, Name: p.Name}
		}
		items[i] = Item{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  reqItem.Quantity,
		}
		lines[i] = catalog.Line{ProductID: p.ID, Quantity: reqItem.Quantity}
		subtotal = subtotal.Add(p.Price.Mul(decimal.NewFromInt(int64(reqItem.Quantity))))
	}

	breakdown, err := s.discounts.Evaluate(ctx, req.ClientID, subtotal, req.PromoCode)
	if err != nil {
		return nil, err
	}

	// Bonus spend must fit both the balance and the remaining total. Excess
	// is rejected, never clamped: silent clamping would desynchronize the
	// total the client confirmed from the one the server charges.
	spend := req.BonusesToSpend
	if spend.IsPositive() {
		balance, err := s.ledger.Balance(ctx, req.ClientID)
		if err != nil {
			return nil, errors.Wrap(err, "get balance")
		}
		if spend.GreaterThan(balance) {
			return nil, &wallet.BalanceError{Available: balance, Requested: spend}
		}
		remaining := subtotal.Sub(breakdown.Total())
		if spend.GreaterThan(remaining) {
			return nil, &wallet.BalanceError{Available: remaining, Requested: spend}
		}
	}

	expected := subtotal.Sub(breakdown.Total()).Sub(spend)
	if expected.Sub(req.DeclaredTotal).Abs().GreaterThan(priceTolerance) {
		return nil, &PriceMismatchError{Expected: expected, Declared: req.DeclaredTotal}
	}

	o := &Order{
		ID:                  s.newID(),
		ClientID:            req.ClientID,
		Items:               items,
		Subtotal:            subtotal,
		NewCustomerDiscount: breakdown.NewCustomer,
		PromoDiscount:       breakdown.Promo,
		PromoCode:           breakdown.PromoCode,
		BonusesUsed:         spend,
		Total:               expected,
		Status:              StatusNew,
		Delivery:            req.Delivery,
		CreatedAt:           s.now(),
	}

	// Mutations begin here. Stock is claimed first via conditional updates,
	// so a concurrent submission racing for the last unit fails cleanly with
	// a StockError instead of overselling.
	if err := s.catalog.DecrementStock(ctx, lines); err != nil {
		return nil, err
	}
	if spend.IsPositive() {
		if err := s.ledger.SpendOnOrder(ctx, req.ClientID, o.ID, spend); err != nil {
			s.compensateStock(ctx, lines)
			return nil, errors.Wrap(err, "spend bonuses")
		}
	}
	if err := s.orders.Create(ctx, o); err != nil {
		s.compensateStock(ctx, lines)
		if spend.IsPositive() {
			s.compensateSpend(ctx, o)
		}
		return nil, errors.Wrap(err, "create order")
	}

	s.dispatchCreated(ctx, o)
	return o, nil
}

// Confirm moves an order New→Completed and pays out completion credits:
// welcome bonus on the first completed order, invite bonus and perpetual
// commission to the referrer, and personal cashback. A duplicate delivery
// observes the already-transitioned order and reports AlreadyDone.
func (s *Service) Confirm(ctx context.Context, orderID string) (*Outcome, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	claimed, err := s.orders.ClaimTransition(ctx, orderID, StatusNew, StatusCompleted)
	if err != nil {
		return nil, errors.Wrap(err, "claim transition")
	}
	if !claimed {
		return s.resolveUnclaimed(ctx, orderID, StatusCompleted)
	}
	o.Status = StatusCompleted

	count, err := s.clients.IncrementCompletedOrders(ctx, o.ClientID)
	if err != nil {
		return nil, errors.Wrap(err, "increment completed orders")
	}

	if count == 1 {
		if _, err := s.ledger.GrantWelcomeBonus(ctx, o.ClientID); err != nil {
			return nil, err
		}
	}

	c, err := s.clients.Get(ctx, o.ClientID)
	if err != nil {
		return nil, errors.Wrap(err, "get client")
	}
	if c.ReferrerID != "" {
		if count == 1 {
			granted, err := s.ledger.GrantInviteBonus(ctx, c.ReferrerID, o.ClientID)
			if err != nil {
				return nil, err
			}
			if granted {
				s.dispatchCustomer(ctx, c.ReferrerID, formatReferrerInvite())
			}
		}
		if _, err := s.ledger.GrantCommission(ctx, c.ReferrerID, o.ClientID, o.Total); err != nil {
			return nil, err
		}
	}

	if _, err := s.ledger.GrantCashback(ctx, o.ClientID, o.ID, o.Total); err != nil {
		return nil, err
	}

	s.dispatchCustomer(ctx, o.ClientID, formatCustomerCompleted(o))
	return &Outcome{Order: o}, nil
}

// Cancel moves an order New→Cancelled, restocks every line, and refunds
// exactly the bonus amount redeemed at creation as a distinct transaction.
func (s *Service) Cancel(ctx context.Context, orderID string) (*Outcome, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	claimed, err := s.orders.ClaimTransition(ctx, orderID, StatusNew, StatusCancelled)
	if err != nil {
		return nil, errors.Wrap(err, "claim transition")
	}
	if !claimed {
		return s.resolveUnclaimed(ctx, orderID, StatusCancelled)
	}
	o.Status = StatusCancelled

	lines := make([]catalog.Line, len(o.Items))
	for i, item := range o.Items {
		lines[i] = catalog.Line{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	if err := s.catalog.RestoreStock(ctx, lines); err != nil {
		return nil, errors.Wrap(err, "restore stock")
	}

	if o.BonusesUsed.IsPositive() {
		if err := s.ledger.RefundOrder(ctx, o.ClientID, o.ID, o.BonusesUsed); err != nil {
			return nil, errors.Wrap(err, "refund bonuses")
		}
	}

	s.dispatchCustomer(ctx, o.ClientID, formatCustomerCancelled(o))
	return &Outcome{Order: o}, nil
}

// resolveUnclaimed classifies a failed transition claim: the order either
// already took this transition (duplicate delivery, no-op) or sits in the
// opposite terminal state (invalid move).
func (s *Service) resolveUnclaimed(ctx context.Context, orderID string, want Status) (*Outcome, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status == want {
		return &Outcome{Order: o, AlreadyDone: true}, nil
	}
	return nil, &TransitionError{OrderID: orderID, From: o.Status, To: want}
}

// dispatchCreated informs the operator (with confirm/cancel actions) and the
// customer about a freshly created order. Dispatch failures never affect the
// committed order.
func (s *Service) dispatchCreated(ctx context.Context, o *Order) {
	actions := []notify.Action{
		{Label: "✅ Complete", Data: "confirm_" + o.ID},
		{Label: "❌ Cancel", Data: "cancel_" + o.ID},
	}
	if err := s.notifier.Operator(ctx, FormatOperatorSummary(o), actions); err != nil {
		zctx.From(ctx).Warn("Operator notification failed",
			zap.String("order_id", o.ID), zap.Error(err))
	}
	s.dispatchCustomer(ctx, o.ClientID, formatCustomerAccepted(o))
}

func (s *Service) dispatchCustomer(ctx context.Context, clientID, text string) {
	if err := s.notifier.Customer(ctx, clientID, text); err != nil {
		zctx.From(ctx).Warn("Customer notification failed",
			zap.String("client_id", clientID), zap.Error(err))
	}
}

// compensateStock returns claimed stock after a later submission step failed.
func (s *Service) compensateStock(ctx context.Context, lines []catalog.Line) {
	if err := s.catalog.RestoreStock(ctx, lines); err != nil {
		zctx.From(ctx).Error("Stock compensation failed", zap.Error(err))
	}
}

// compensateSpend returns debited bonuses after a later submission step failed.
func (s *Service) compensateSpend(ctx context.Context, o *Order) {
	if err := s.ledger.RefundOrder(ctx, o.ClientID, o.ID, o.BonusesUsed); err != nil {
		zctx.From(ctx).Error("Bonus compensation failed",
			zap.String("order_id", o.ID), zap.Error(err))
	}
}
