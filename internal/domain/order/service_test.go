package order

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juicyshop/backend/internal/domain/catalog"
	"github.com/juicyshop/backend/internal/domain/client"
	"github.com/juicyshop/backend/internal/domain/discount"
	"github.com/juicyshop/backend/internal/domain/wallet"
	"github.com/juicyshop/backend/internal/notify"
)

// --- Mock implementations ---

// mockCatalog mirrors the all-or-nothing conditional stock claim of the real
// repository: under one lock every line is checked, then every line applied.
type mockCatalog struct {
	mu   sync.Mutex
	byID map[string]*catalog.Product
}

func newMockCatalog(products ...catalog.Product) *mockCatalog {
	byID := make(map[string]*catalog.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	return &mockCatalog{byID: byID}
}

func (m *mockCatalog) List(_ context.Context) ([]catalog.Product, error) {
	return nil, nil
}

func (m *mockCatalog) GetByIDs(_ context.Context, ids []string) ([]catalog.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []catalog.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockCatalog) DecrementStock(_ context.Context, lines []catalog.Line) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range lines {
		p, ok := m.byID[l.ProductID]
		if !ok {
			return errors.Wrapf(catalog.ErrNotFound, "product %s", l.ProductID)
		}
		if p.Stock < l.Quantity {
			return &catalog.StockError{ProductID: p.ID, Name: p.Name}
		}
	}
	for _, l := range lines {
		m.byID[l.ProductID].Stock -= l.Quantity
	}
	return nil
}

func (m *mockCatalog) RestoreStock(_ context.Context, lines []catalog.Line) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range lines {
		if p, ok := m.byID[l.ProductID]; ok {
			p.Stock += l.Quantity
		}
	}
	return nil
}

func (m *mockCatalog) stock(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id].Stock
}

type mockClientRepo struct {
	mu      sync.Mutex
	clients map[string]*client.Client
}

func newMockClientRepo() *mockClientRepo {
	return &mockClientRepo{clients: make(map[string]*client.Client)}
}

func (m *mockClientRepo) Ensure(_ context.Context, id, name string) (*client.Client, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.clients[id]; ok {
		return c, false, nil
	}
	c := &client.Client{ID: id, Name: name}
	m.clients[id] = c
	return c, true, nil
}

func (m *mockClientRepo) Get(_ context.Context, id string) (*client.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok {
		return nil, client.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockClientRepo) UpdateContact(_ context.Context, id, name, phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.clients[id]; ok {
		c.Name, c.Phone = name, phone
	}
	return nil
}

func (m *mockClientRepo) SetReferrer(_ context.Context, id, referrerID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok || c.CompletedOrders > 0 {
		return false, nil
	}
	c.ReferrerID = referrerID
	return true, nil
}

func (m *mockClientRepo) IncrementClicks(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.clients[id]; ok {
		c.ReferralClicks++
	}
	return nil
}

func (m *mockClientRepo) IncrementCompletedOrders(_ context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok {
		return 0, client.ErrNotFound
	}
	c.CompletedOrders++
	return c.CompletedOrders, nil
}

func (m *mockClientRepo) CountReferrals(_ context.Context, _ string) (int, error) {
	return 0, nil
}

func (m *mockClientRepo) CountActiveReferrals(_ context.Context, _ string, _ time.Time) (int, error) {
	return 0, nil
}

type mockWalletRepo struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	earned   map[string]decimal.Decimal
	log      []wallet.Transaction
}

func newMockWalletRepo() *mockWalletRepo {
	return &mockWalletRepo{
		balances: make(map[string]decimal.Decimal),
		earned:   make(map[string]decimal.Decimal),
	}
}

func (m *mockWalletRepo) Credit(_ context.Context, clientID string, amount decimal.Decimal, reason string, earning bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[clientID] = m.balances[clientID].Add(amount)
	if earning {
		m.earned[clientID] = m.earned[clientID].Add(amount)
	}
	m.log = append(m.log, wallet.Transaction{ClientID: clientID, Amount: amount, Reason: reason})
	return nil
}

func (m *mockWalletRepo) Debit(_ context.Context, clientID string, amount decimal.Decimal, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[clientID].LessThan(amount) {
		return wallet.ErrInsufficientBalance
	}
	m.balances[clientID] = m.balances[clientID].Sub(amount)
	m.log = append(m.log, wallet.Transaction{ClientID: clientID, Amount: amount.Neg(), Reason: reason})
	return nil
}

func (m *mockWalletRepo) HasReason(_ context.Context, clientID, pattern string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	needle := strings.Trim(pattern, "%")
	for _, t := range m.log {
		if t.ClientID == clientID && strings.Contains(t.Reason, needle) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockWalletRepo) Balance(_ context.Context, clientID string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[clientID], nil
}

func (m *mockWalletRepo) History(_ context.Context, clientID string) ([]wallet.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []wallet.Transaction
	for _, t := range m.log {
		if t.ClientID == clientID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockWalletRepo) reasons(clientID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, t := range m.log {
		if t.ClientID == clientID {
			out = append(out, t.Reason)
		}
	}
	return out
}

// mockOrderRepo applies the same CAS transition semantics as the SQL
// conditional update.
type mockOrderRepo struct {
	mu        sync.Mutex
	orders    map[string]*Order
	createErr error
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[string]*Order)}
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *mockOrderRepo) Get(_ context.Context, id string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) ListByClient(_ context.Context, clientID string) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.orders {
		if o.ClientID == clientID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) ClaimTransition(_ context.Context, id string, from, to Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return false, ErrNotFound
	}
	if o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

func (m *mockOrderRepo) NewCustomerDiscountUsed(_ context.Context, clientID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.ClientID != clientID || o.Status == StatusCancelled {
			continue
		}
		if o.NewCustomerDiscount.IsPositive() || o.PromoCode == discount.NewCustomerCode {
			return true, nil
		}
	}
	return false, nil
}

// recorder captures dispatched notifications.
type recorder struct {
	mu            sync.Mutex
	operatorTexts []string
	actions       [][]notify.Action
	customer      map[string][]string
}

func newRecorder() *recorder {
	return &recorder{customer: make(map[string][]string)}
}

func (r *recorder) Operator(_ context.Context, text string, actions []notify.Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operatorTexts = append(r.operatorTexts, text)
	r.actions = append(r.actions, actions)
	return nil
}

func (r *recorder) Customer(_ context.Context, clientID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.customer[clientID] = append(r.customer[clientID], text)
	return nil
}

// --- Helpers ---

type fixture struct {
	catalog  *mockCatalog
	clients  *mockClientRepo
	wallet   *mockWalletRepo
	orders   *mockOrderRepo
	notifier *recorder
	ledger   *wallet.Ledger
	svc      *Service
}

func newFixture(products ...catalog.Product) *fixture {
	f := &fixture{
		catalog:  newMockCatalog(products...),
		clients:  newMockClientRepo(),
		wallet:   newMockWalletRepo(),
		orders:   newMockOrderRepo(),
		notifier: newRecorder(),
	}
	f.ledger = wallet.NewLedger(f.wallet)
	engine := discount.NewEngine(&staticDiscountRepo{}, f.orders)
	f.svc = NewService(f.catalog, f.clients, engine, f.ledger, f.orders, f.notifier)
	return f
}

type staticDiscountRepo struct{}

func (staticDiscountRepo) FindByCode(_ context.Context, code string) (*discount.Discount, error) {
	if code == "SUMMER15" {
		return &discount.Discount{
			Code:   "SUMMER15",
			Type:   discount.TypePercent,
			Value:  decimal.NewFromInt(15),
			Active: true,
		}, nil
	}
	return nil, discount.ErrInvalidCode
}

func juice(id string, price int64, stock int) catalog.Product {
	return catalog.Product{
		ID:    id,
		Name:  "Juice " + id,
		Price: decimal.NewFromInt(price),
		Stock: stock,
	}
}

func submitReq(clientID string, total int64, items ...SubmitItem) SubmitRequest {
	return SubmitRequest{
		ClientID:      clientID,
		Items:         items,
		DeclaredTotal: decimal.NewFromInt(total),
		Delivery:      Delivery{Name: "Alex", Phone: "+100", Address: "Main st 1", Payment: "cash"},
	}
}

// --- Tests ---

func TestSubmit_Validation(t *testing.T) {
	f := newFixture(juice("p1", 350, 10))
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, submitReq("", 350, SubmitItem{ProductID: "p1", Quantity: 1}))
	require.ErrorIs(t, err, ErrMissingClientID)

	_, err = f.svc.Submit(ctx, submitReq("c1", 0))
	require.ErrorIs(t, err, ErrEmptyItems)

	_, err = f.svc.Submit(ctx, submitReq("c1", 350, SubmitItem{ProductID: "p1", Quantity: 0}))
	var iqErr *InvalidQuantityError
	require.ErrorAs(t, err, &iqErr)
	assert.Equal(t, "p1", iqErr.ProductID)

	_, err = f.svc.Submit(ctx, submitReq("c1", 350, SubmitItem{ProductID: "missing", Quantity: 1}))
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestSubmit_HappyPath(t *testing.T) {
	f := newFixture(juice("p1", 350, 10), juice("p2", 420, 5))
	ctx := context.Background()

	o, err := f.svc.Submit(ctx, submitReq("c1", 1120,
		SubmitItem{ProductID: "p1", Quantity: 2},
		SubmitItem{ProductID: "p2", Quantity: 1},
	))
	require.NoError(t, err)

	assert.Equal(t, StatusNew, o.Status)
	assert.True(t, decimal.NewFromInt(1120).Equal(o.Subtotal))
	assert.True(t, decimal.NewFromInt(1120).Equal(o.Total))
	assert.Equal(t, 8, f.catalog.stock("p1"))
	assert.Equal(t, 4, f.catalog.stock("p2"))

	// Item snapshot carries catalog names and prices, not client claims.
	require.Len(t, o.Items, 2)
	assert.Equal(t, "Juice p1", o.Items[0].Name)
	assert.True(t, decimal.NewFromInt(350).Equal(o.Items[0].UnitPrice))

	// Operator got the summary with both lifecycle actions.
	require.Len(t, f.notifier.actions, 1)
	require.Len(t, f.notifier.actions[0], 2)
	assert.Equal(t, "confirm_"+o.ID, f.notifier.actions[0][0].Data)
	assert.Equal(t, "cancel_"+o.ID, f.notifier.actions[0][1].Data)
	assert.Contains(t, f.notifier.operatorTexts[0], "Juice p1")

	// Customer got the acceptance note.
	assert.Len(t, f.notifier.customer["c1"], 1)
}

func TestSubmit_PriceToleranceOneUnit(t *testing.T) {
	f := newFixture(juice("p1", 350, 10))
	ctx := context.Background()

	// Declared total one unit off is accepted; the server's total wins.
	o, err := f.svc.Submit(ctx, submitReq("c1", 349, SubmitItem{ProductID: "p1", Quantity: 1}))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(350).Equal(o.Total))
}

func TestSubmit_PriceMismatch(t *testing.T) {
	f := newFixture(juice("p1", 350, 10))
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, submitReq("c1", 300, SubmitItem{ProductID: "p1", Quantity: 1}))

	var pmErr *PriceMismatchError
	require.ErrorAs(t, err, &pmErr)
	assert.True(t, decimal.NewFromInt(350).Equal(pmErr.Expected))
	assert.True(t, decimal.NewFromInt(300).Equal(pmErr.Declared))

	// Validation failed before any mutation.
	assert.Equal(t, 10, f.catalog.stock("p1"))
	assert.Empty(t, f.orders.orders)
}

func TestSubmit_NewCustomerDiscount(t *testing.T) {
	f := newFixture(juice("p1", 500, 10))
	ctx := context.Background()

	req := submitReq("c1", 900, SubmitItem{ProductID: "p1", Quantity: 2})
	req.PromoCode = discount.NewCustomerCode

	o, err := f.svc.Submit(ctx, req)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(o.NewCustomerDiscount))
	assert.True(t, decimal.NewFromInt(900).Equal(o.Total))
}

func TestSubmit_NewCustomerDiscountConsumedOnce(t *testing.T) {
	f := newFixture(juice("p1", 500, 10))
	ctx := context.Background()

	req := submitReq("c1", 450, SubmitItem{ProductID: "p1", Quantity: 1})
	req.PromoCode = discount.NewCustomerCode
	_, err := f.svc.Submit(ctx, req)
	require.NoError(t, err)

	// Second attempt: no longer eligible, discount evaluates to zero, so the
	// optimistically discounted declared total no longer matches.
	req2 := submitReq("c1", 450, SubmitItem{ProductID: "p1", Quantity: 1})
	req2.PromoCode = discount.NewCustomerCode
	_, err = f.svc.Submit(ctx, req2)

	var pmErr *PriceMismatchError
	require.ErrorAs(t, err, &pmErr)
	assert.True(t, decimal.NewFromInt(500).Equal(pmErr.Expected))
}

func TestSubmit_PromoCode(t *testing.T) {
	f := newFixture(juice("p1", 1000, 10))
	ctx := context.Background()

	req := submitReq("c1", 850, SubmitItem{ProductID: "p1", Quantity: 1})
	req.PromoCode = "SUMMER15"

	o, err := f.svc.Submit(ctx, req)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(150).Equal(o.PromoDiscount))
	assert.Equal(t, "SUMMER15", o.PromoCode)
}

func TestSubmit_InvalidPromoCode(t *testing.T) {
	f := newFixture(juice("p1", 1000, 10))
	ctx := context.Background()

	req := submitReq("c1", 1000, SubmitItem{ProductID: "p1", Quantity: 1})
	req.PromoCode = "BOGUS"

	_, err := f.svc.Submit(ctx, req)
	require.ErrorIs(t, err, discount.ErrInvalidCode)
}

func TestSubmit_BonusSpend(t *testing.T) {
	f := newFixture(juice("p1", 500, 10))
	ctx := context.Background()
	require.NoError(t, f.wallet.Credit(ctx, "c1", decimal.NewFromInt(200), "seed", true))

	req := submitReq("c1", 300, SubmitItem{ProductID: "p1", Quantity: 1})
	req.BonusesToSpend = decimal.NewFromInt(200)

	o, err := f.svc.Submit(ctx, req)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(200).Equal(o.BonusesUsed))
	assert.True(t, decimal.NewFromInt(300).Equal(o.Total))

	balance, err := f.ledger.Balance(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestSubmit_BonusSpendExceedsBalance(t *testing.T) {
	f := newFixture(juice("p1", 500, 10))
	ctx := context.Background()
	require.NoError(t, f.wallet.Credit(ctx, "c1", decimal.NewFromInt(50), "seed", true))

	req := submitReq("c1", 300, SubmitItem{ProductID: "p1", Quantity: 1})
	req.BonusesToSpend = decimal.NewFromInt(200)

	_, err := f.svc.Submit(ctx, req)
	var balErr *wallet.BalanceError
	require.ErrorAs(t, err, &balErr)
	assert.True(t, decimal.NewFromInt(50).Equal(balErr.Available))
	assert.Equal(t, 10, f.catalog.stock("p1"), "no stock claimed on rejection")
}

func TestSubmit_BonusSpendExceedsTotal(t *testing.T) {
	f := newFixture(juice("p1", 100, 10))
	ctx := context.Background()
	require.NoError(t, f.wallet.Credit(ctx, "c1", decimal.NewFromInt(500), "seed", true))

	req := submitReq("c1", 0, SubmitItem{ProductID: "p1", Quantity: 1})
	req.BonusesToSpend = decimal.NewFromInt(150)

	_, err := f.svc.Submit(ctx, req)
	var balErr *wallet.BalanceError
	require.ErrorAs(t, err, &balErr)
}

func TestSubmit_BonusCoversFullTotal(t *testing.T) {
	f := newFixture(juice("p1", 100, 10))
	ctx := context.Background()
	require.NoError(t, f.wallet.Credit(ctx, "c1", decimal.NewFromInt(500), "seed", true))

	req := submitReq("c1", 0, SubmitItem{ProductID: "p1", Quantity: 1})
	req.BonusesToSpend = decimal.NewFromInt(100)

	o, err := f.svc.Submit(ctx, req)
	require.NoError(t, err)
	assert.True(t, o.Total.IsZero(), "points may cover the entire order")
}

func TestSubmit_OutOfStock(t *testing.T) {
	f := newFixture(juice("p1", 350, 2))
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, submitReq("c1", 1050, SubmitItem{ProductID: "p1", Quantity: 3}))
	var stErr *catalog.StockError
	require.ErrorAs(t, err, &stErr)
	assert.Equal(t, "p1", stErr.ProductID)
}

func TestSubmit_ConcurrentLastUnit(t *testing.T) {
	f := newFixture(juice("p1", 350, 1))
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range 2 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			clientID := "c" + string(rune('1'+i))
			_, errs[i] = f.svc.Submit(ctx, submitReq(clientID, 350, SubmitItem{ProductID: "p1", Quantity: 1}))
		}(i)
	}
	wg.Wait()

	var ok, conflict int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		var stErr *catalog.StockError
		if errors.As(err, &stErr) {
			conflict++
		}
	}
	assert.Equal(t, 1, ok, "exactly one submission wins the last unit")
	assert.Equal(t, 1, conflict, "the other fails with a stock conflict")
	assert.Equal(t, 0, f.catalog.stock("p1"))
}

func TestSubmit_CompensatesOnCreateFailure(t *testing.T) {
	f := newFixture(juice("p1", 500, 10))
	ctx := context.Background()
	require.NoError(t, f.wallet.Credit(ctx, "c1", decimal.NewFromInt(100), "seed", true))
	f.orders.createErr = errors.New("db write failed")

	req := submitReq("c1", 400, SubmitItem{ProductID: "p1", Quantity: 1})
	req.BonusesToSpend = decimal.NewFromInt(100)

	_, err := f.svc.Submit(ctx, req)
	require.Error(t, err)

	assert.Equal(t, 10, f.catalog.stock("p1"), "claimed stock returned")
	balance, err := f.ledger.Balance(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(balance), "debited bonuses refunded")
}

func TestConfirm_FirstOrderRewards(t *testing.T) {
	f := newFixture(juice("p1", 1000, 10))
	ctx := context.Background()

	// Referral attached before the first purchase.
	_, _, err := f.clients.Ensure(ctx, "ref", "")
	require.NoError(t, err)
	_, _, err = f.clients.Ensure(ctx, "c1", "")
	require.NoError(t, err)
	_, err = f.clients.SetReferrer(ctx, "c1", "ref")
	require.NoError(t, err)

	o, err := f.svc.Submit(ctx, submitReq("c1", 1000, SubmitItem{ProductID: "p1", Quantity: 1}))
	require.NoError(t, err)

	outcome, err := f.svc.Confirm(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, outcome.AlreadyDone)
	assert.Equal(t, StatusCompleted, outcome.Order.Status)

	// Customer: welcome bonus 100 + cashback floor(2% x 1000) = 20.
	balance, err := f.ledger.Balance(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(120).Equal(balance), "got %s", balance)

	// Referrer: invite bonus 100 + commission floor(1% x 1000) = 10.
	refBalance, err := f.ledger.Balance(ctx, "ref")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(110).Equal(refBalance), "got %s", refBalance)

	// Referrer heard about the friend's first purchase.
	assert.NotEmpty(t, f.notifier.customer["ref"])
}

func TestConfirm_SecondOrderNoWelcomeOrInvite(t *testing.T) {
	f := newFixture(juice("p1", 1000, 10))
	ctx := context.Background()

	_, _, err := f.clients.Ensure(ctx, "ref", "")
	require.NoError(t, err)
	_, _, err = f.clients.Ensure(ctx, "c1", "")
	require.NoError(t, err)
	_, err = f.clients.SetReferrer(ctx, "c1", "ref")
	require.NoError(t, err)

	for range 2 {
		o, err := f.svc.Submit(ctx, submitReq("c1", 1000, SubmitItem{ProductID: "p1", Quantity: 1}))
		require.NoError(t, err)
		_, err = f.svc.Confirm(ctx, o.ID)
		require.NoError(t, err)
	}

	// Welcome and invite bonuses exactly once; cashback and commission twice.
	reasons := f.wallet.reasons("c1")
	welcome := 0
	for _, r := range reasons {
		if r == wallet.ReasonWelcomeBonus {
			welcome++
		}
	}
	assert.Equal(t, 1, welcome)

	refBalance, err := f.ledger.Balance(ctx, "ref")
	require.NoError(t, err)
	// 100 invite + 2 x 10 commission.
	assert.True(t, decimal.NewFromInt(120).Equal(refBalance), "got %s", refBalance)
}

func TestConfirm_Idempotent(t *testing.T) {
	f := newFixture(juice("p1", 1000, 10))
	ctx := context.Background()

	o, err := f.svc.Submit(ctx, submitReq("c1", 1000, SubmitItem{ProductID: "p1", Quantity: 1}))
	require.NoError(t, err)

	first, err := f.svc.Confirm(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, first.AlreadyDone)

	second, err := f.svc.Confirm(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, second.AlreadyDone, "duplicate delivery is a no-op")

	// Rewards were paid exactly once.
	balance, err := f.ledger.Balance(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(120).Equal(balance), "got %s", balance)

	c, err := f.clients.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, c.CompletedOrders)
}

func TestConfirm_AfterCancelFails(t *testing.T) {
	f := newFixture(juice("p1", 1000, 10))
	ctx := context.Background()

	o, err := f.svc.Submit(ctx, submitReq("c1", 1000, SubmitItem{ProductID: "p1", Quantity: 1}))
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, o.ID)
	require.NoError(t, err)

	_, err = f.svc.Confirm(ctx, o.ID)
	var trErr *TransitionError
	require.ErrorAs(t, err, &trErr)
	assert.Equal(t, StatusCancelled, trErr.From)
	assert.Equal(t, StatusCompleted, trErr.To)
}

func TestConfirm_UnknownOrder(t *testing.T) {
	f := newFixture(juice("p1", 1000, 10))

	_, err := f.svc.Confirm(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCancel_RestocksAndRefunds(t *testing.T) {
	f := newFixture(juice("p1", 500, 10))
	ctx := context.Background()
	require.NoError(t, f.wallet.Credit(ctx, "c1", decimal.NewFromInt(200), "seed", true))

	req := submitReq("c1", 800, SubmitItem{ProductID: "p1", Quantity: 2})
	req.BonusesToSpend = decimal.NewFromInt(200)

	o, err := f.svc.Submit(ctx, req)
	require.NoError(t, err)
	require.Equal(t, 8, f.catalog.stock("p1"))

	outcome, err := f.svc.Cancel(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, outcome.Order.Status)
	assert.Equal(t, 10, f.catalog.stock("p1"), "all lines restocked")

	balance, err := f.ledger.Balance(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(200).Equal(balance), "bonuses refunded in full")

	// The refund is a distinct transaction, not a reversal of the debit.
	reasons := f.wallet.reasons("c1")
	assert.Contains(t, reasons[len(reasons)-1], "Refund")
}

func TestCancel_Idempotent(t *testing.T) {
	f := newFixture(juice("p1", 500, 10))
	ctx := context.Background()

	o, err := f.svc.Submit(ctx, submitReq("c1", 500, SubmitItem{ProductID: "p1", Quantity: 1}))
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, o.ID)
	require.NoError(t, err)

	second, err := f.svc.Cancel(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, second.AlreadyDone)

	// Stock restored exactly once.
	assert.Equal(t, 10, f.catalog.stock("p1"))
}

func TestCancel_NewCustomerEligibilityRestored(t *testing.T) {
	f := newFixture(juice("p1", 500, 10))
	ctx := context.Background()

	req := submitReq("c1", 450, SubmitItem{ProductID: "p1", Quantity: 1})
	req.PromoCode = discount.NewCustomerCode
	o, err := f.svc.Submit(ctx, req)
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, o.ID)
	require.NoError(t, err)

	// A cancelled order does not burn the one-time discount.
	req2 := submitReq("c1", 450, SubmitItem{ProductID: "p1", Quantity: 1})
	req2.PromoCode = discount.NewCustomerCode
	o2, err := f.svc.Submit(ctx, req2)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(50).Equal(o2.NewCustomerDiscount))
}
