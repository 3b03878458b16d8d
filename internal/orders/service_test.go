package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bloblets/arena-backend/internal/chain"
	"github.com/bloblets/arena-backend/internal/ledger"
	"github.com/bloblets/arena-backend/pkg/address"
	"github.com/bloblets/arena-backend/pkg/config"
	"github.com/bloblets/arena-backend/pkg/db/models"
	"github.com/bloblets/arena-backend/pkg/enums"
	pkgerrors "github.com/bloblets/arena-backend/pkg/errors"
)

type fakeOrdersRepo struct {
	orders map[uuid.UUID]*models.Order
	// staleFind, when set, is returned by the next FindByID for its ID. It
	// simulates a load that happened before a rival writer committed.
	staleFind *models.Order
}

func newFakeOrdersRepo() *fakeOrdersRepo {
	return &fakeOrdersRepo{orders: make(map[uuid.UUID]*models.Order)}
}

func (f *fakeOrdersRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeOrdersRepo) Insert(ctx context.Context, order *models.Order) error {
	copied := *order
	f.orders[order.ID] = &copied
	return nil
}

func (f *fakeOrdersRepo) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if f.staleFind != nil && f.staleFind.ID == orderID {
		copied := *f.staleFind
		f.staleFind = nil
		return &copied, nil
	}
	order, ok := f.orders[orderID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *order
	return &copied, nil
}

func (f *fakeOrdersRepo) UpdateFrom(ctx context.Context, order *models.Order, from enums.OrderStatus) error {
	if order.TxHash != nil {
		for id, existing := range f.orders {
			if id != order.ID && existing.TxHash != nil && *existing.TxHash == *order.TxHash {
				return fmt.Errorf("duplicate key value violates unique constraint %q", txHashUniqueKey)
			}
		}
	}
	current, ok := f.orders[order.ID]
	if !ok || current.Status != from {
		return errStaleStatus
	}
	copied := *order
	f.orders[order.ID] = &copied
	return nil
}

func (f *fakeOrdersRepo) ListByAddress(ctx context.Context, addr string, limit int) ([]models.Order, error) {
	var out []models.Order
	for _, order := range f.orders {
		if order.Address == addr {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (f *fakeOrdersRepo) ExpirePending(ctx context.Context, cutoff time.Time) (int64, error) {
	var expired int64
	for _, order := range f.orders {
		if order.Status == enums.OrderStatusPending && order.ExpiresAt.Before(cutoff) {
			order.Status = enums.OrderStatusExpired
			expired++
		}
	}
	return expired, nil
}

type fakeOrdersLedger struct {
	balances map[string]int64
	entries  []ledger.EntryInput
}

func newFakeOrdersLedger() *fakeOrdersLedger {
	return &fakeOrdersLedger{balances: make(map[string]int64)}
}

func (f *fakeOrdersLedger) Append(ctx context.Context, input ledger.EntryInput) (models.LedgerEntry, error) {
	return (&fakeOrdersAppender{ledger: f}).Append(ctx, input)
}

func (f *fakeOrdersLedger) Balance(ctx context.Context, addr string) (int64, error) {
	return f.balances[addr], nil
}

func (f *fakeOrdersLedger) History(ctx context.Context, addr string, limit int) ([]models.LedgerEntry, error) {
	return nil, nil
}

func (f *fakeOrdersLedger) WithAccounts(ctx context.Context, addresses []string, fn func(tx *gorm.DB, app ledger.Appender) error) error {
	snapshot := make(map[string]int64, len(f.balances))
	for k, v := range f.balances {
		snapshot[k] = v
	}
	entriesLen := len(f.entries)
	if err := fn(nil, &fakeOrdersAppender{ledger: f}); err != nil {
		f.balances = snapshot
		f.entries = f.entries[:entriesLen]
		return err
	}
	return nil
}

type fakeOrdersAppender struct {
	ledger *fakeOrdersLedger
}

func (a *fakeOrdersAppender) Append(ctx context.Context, input ledger.EntryInput) (models.LedgerEntry, error) {
	next := a.ledger.balances[input.Address] + input.Delta
	if next < 0 {
		return models.LedgerEntry{}, pkgerrors.New(pkgerrors.CodeInsufficientBalance, "overdraft")
	}
	a.ledger.balances[input.Address] = next
	a.ledger.entries = append(a.ledger.entries, input)
	return models.LedgerEntry{Address: input.Address, Delta: input.Delta, BalanceAfter: next, Reason: input.Reason}, nil
}

func (a *fakeOrdersAppender) Balance(ctx context.Context, addr string) (int64, error) {
	return a.ledger.balances[addr], nil
}

type fakeOrdersAdapter struct {
	verified *chain.VerifiedTransaction
	err      error
	onVerify func()
}

func (f *fakeOrdersAdapter) VerifyTransaction(ctx context.Context, txRef string, expected chain.Expected) (*chain.VerifiedTransaction, error) {
	if f.onVerify != nil {
		f.onVerify()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.verified, nil
}

func orderAddr(t *testing.T, n int) string {
	t.Helper()
	canonical, err := address.Canonical(fmt.Sprintf("0x%040x", n))
	if err != nil {
		t.Fatalf("canonicalize test address: %v", err)
	}
	return canonical
}

type ordersFixture struct {
	svc     Service
	repo    *fakeOrdersRepo
	ledger  *fakeOrdersLedger
	adapter *fakeOrdersAdapter
	clock   *time.Time
	deposit string
}

func newOrdersFixture(t *testing.T) *ordersFixture {
	t.Helper()
	repo := newFakeOrdersRepo()
	led := newFakeOrdersLedger()
	adapter := &fakeOrdersAdapter{}
	deposit := orderAddr(t, 0x7777)
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	clock := &start
	svc, err := NewService(ServiceParams{
		Repo:   repo,
		Ledger: led,
		Chain:  adapter,
		Config: config.OrdersConfig{QuoteTTL: 15 * time.Minute},
		Treasury: config.TreasuryConfig{
			PointsPerToken: "1000",
			DepositAddress: deposit,
		},
		Now: func() time.Time { return *clock },
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return &ordersFixture{svc: svc, repo: repo, ledger: led, adapter: adapter, clock: clock, deposit: deposit}
}

func (fx *ordersFixture) advance(d time.Duration) {
	*fx.clock = fx.clock.Add(d)
}

// chainSettles primes the adapter with the payment the order quoted: the
// buyer sent the quoted token amount to the treasury deposit address.
func (fx *ordersFixture) chainSettles(order *models.Order) {
	fx.adapter.verified = &chain.VerifiedTransaction{
		Amount:    order.QuoteTokens,
		Sender:    order.Address,
		Recipient: fx.deposit,
	}
}

func TestCreateQuotesWithTTL(t *testing.T) {
	fx := newOrdersFixture(t)
	addr := orderAddr(t, 1)

	order, err := fx.svc.Create(context.Background(), CreateOrderInput{
		Address:     addr,
		Type:        enums.OrderTypeShopPurchase,
		QuotePoints: 120,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Status != enums.OrderStatusPending {
		t.Fatalf("expected pending, got %s", order.Status)
	}
	want := fx.clock.Add(15 * time.Minute)
	if !order.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %s, got %s", want, order.ExpiresAt)
	}
}

func TestCreateValidation(t *testing.T) {
	fx := newOrdersFixture(t)
	addr := orderAddr(t, 2)

	cases := []struct {
		name  string
		input CreateOrderInput
	}{
		{"bad address", CreateOrderInput{Address: "nope", Type: enums.OrderTypeRevival, QuotePoints: 10}},
		{"bad type", CreateOrderInput{Address: addr, Type: enums.OrderType("bogus"), QuotePoints: 10}},
		{"zero points", CreateOrderInput{Address: addr, Type: enums.OrderTypeRevival, QuotePoints: 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := fx.svc.Create(context.Background(), tc.input)
			appErr := pkgerrors.As(err)
			if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestConfirmDebitOrderAppliesOnce(t *testing.T) {
	fx := newOrdersFixture(t)
	addr := orderAddr(t, 3)
	fx.ledger.balances[addr] = 500

	order, _ := fx.svc.Create(context.Background(), CreateOrderInput{
		Address:     addr,
		Type:        enums.OrderTypeShopPurchase,
		QuotePoints: 120,
	})
	fx.chainSettles(order)

	confirmed, err := fx.svc.Confirm(context.Background(), order.ID, "0xhash1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if confirmed.Status != enums.OrderStatusConfirmed {
		t.Fatalf("expected confirmed, got %s", confirmed.Status)
	}
	if confirmed.ConfirmedAt == nil || confirmed.AppliedAt == nil {
		t.Fatal("expected confirmed_at and applied_at stamped")
	}
	if fx.ledger.balances[addr] != 380 {
		t.Fatalf("expected balance 380, got %d", fx.ledger.balances[addr])
	}
	if len(fx.ledger.entries) != 1 || fx.ledger.entries[0].Reason != enums.LedgerReasonRedeemDebit {
		t.Fatalf("expected one redeem_debit leg, got %+v", fx.ledger.entries)
	}

	// Re-confirming with the same hash is a no-op success.
	again, err := fx.svc.Confirm(context.Background(), order.ID, "0xhash1")
	if err != nil {
		t.Fatalf("repeat confirm must succeed, got %v", err)
	}
	if again.Status != enums.OrderStatusConfirmed {
		t.Fatalf("expected confirmed, got %s", again.Status)
	}
	if len(fx.ledger.entries) != 1 {
		t.Fatalf("repeat confirm must not re-apply, got %d legs", len(fx.ledger.entries))
	}
}

func TestConfirmCreditOrder(t *testing.T) {
	fx := newOrdersFixture(t)
	addr := orderAddr(t, 4)

	order, _ := fx.svc.Create(context.Background(), CreateOrderInput{
		Address:     addr,
		Type:        enums.OrderTypeSwapDeposit,
		QuotePoints: 250,
	})
	fx.chainSettles(order)

	if _, err := fx.svc.Confirm(context.Background(), order.ID, "0xhash2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fx.ledger.balances[addr] != 250 {
		t.Fatalf("expected 250 credited, got %d", fx.ledger.balances[addr])
	}
	if fx.ledger.entries[0].Reason != enums.LedgerReasonSwapCredit {
		t.Fatalf("expected swap_credit leg, got %s", fx.ledger.entries[0].Reason)
	}
}

func TestConfirmDifferentHashConflicts(t *testing.T) {
	fx := newOrdersFixture(t)
	addr := orderAddr(t, 5)
	fx.ledger.balances[addr] = 500

	order, _ := fx.svc.Create(context.Background(), CreateOrderInput{
		Address:     addr,
		Type:        enums.OrderTypeRevival,
		QuotePoints: 50,
	})
	fx.chainSettles(order)
	if _, err := fx.svc.Confirm(context.Background(), order.ID, "0xhash3"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := fx.svc.Confirm(context.Background(), order.ID, "0xother")
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestConfirmExpiredQuote(t *testing.T) {
	fx := newOrdersFixture(t)
	addr := orderAddr(t, 6)
	fx.ledger.balances[addr] = 500

	order, _ := fx.svc.Create(context.Background(), CreateOrderInput{
		Address:     addr,
		Type:        enums.OrderTypeShopPurchase,
		QuotePoints: 100,
	})
	fx.advance(16 * time.Minute)

	_, err := fx.svc.Confirm(context.Background(), order.ID, "0xhash4")
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeExpired {
		t.Fatalf("expected expired, got %v", err)
	}

	current, _ := fx.svc.Get(context.Background(), order.ID)
	if current.Status != enums.OrderStatusExpired {
		t.Fatalf("expected order marked expired, got %s", current.Status)
	}
	if fx.ledger.balances[addr] != 500 {
		t.Fatalf("expired order must not move points")
	}
}

func TestConfirmChainFailureFailsOrder(t *testing.T) {
	fx := newOrdersFixture(t)
	addr := orderAddr(t, 7)
	fx.ledger.balances[addr] = 500

	order, _ := fx.svc.Create(context.Background(), CreateOrderInput{
		Address:     addr,
		Type:        enums.OrderTypeShopPurchase,
		QuotePoints: 100,
	})
	fx.adapter.err = chain.ErrTransactionFailed

	_, err := fx.svc.Confirm(context.Background(), order.ID, "0xhash5")
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeChainVerification {
		t.Fatalf("expected chain verification error, got %v", err)
	}

	current, _ := fx.svc.Get(context.Background(), order.ID)
	if current.Status != enums.OrderStatusFailed {
		t.Fatalf("expected failed, got %s", current.Status)
	}
}

func TestConfirmChainUnavailableLeavesPending(t *testing.T) {
	fx := newOrdersFixture(t)
	addr := orderAddr(t, 8)
	fx.ledger.balances[addr] = 500

	order, _ := fx.svc.Create(context.Background(), CreateOrderInput{
		Address:     addr,
		Type:        enums.OrderTypeShopPurchase,
		QuotePoints: 100,
	})
	fx.adapter.err = chain.ErrTransactionNotFound

	_, err := fx.svc.Confirm(context.Background(), order.ID, "0xhash6")
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}

	current, _ := fx.svc.Get(context.Background(), order.ID)
	if current.Status != enums.OrderStatusPending {
		t.Fatalf("order must stay pending for retry, got %s", current.Status)
	}
}

func TestConfirmInsufficientBalanceKeepsOrderPending(t *testing.T) {
	fx := newOrdersFixture(t)
	addr := orderAddr(t, 9)
	fx.ledger.balances[addr] = 30

	order, _ := fx.svc.Create(context.Background(), CreateOrderInput{
		Address:     addr,
		Type:        enums.OrderTypeShopPurchase,
		QuotePoints: 100,
	})
	fx.chainSettles(order)

	_, err := fx.svc.Confirm(context.Background(), order.ID, "0xhash7")
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeInsufficientBalance {
		t.Fatalf("expected insufficient balance, got %v", err)
	}

	current, _ := fx.svc.Get(context.Background(), order.ID)
	if current.Status != enums.OrderStatusPending {
		t.Fatalf("order must stay pending, got %s", current.Status)
	}
	if fx.ledger.balances[addr] != 30 {
		t.Fatalf("failed confirm must not move points")
	}
}

func TestExpireStale(t *testing.T) {
	fx := newOrdersFixture(t)
	addr := orderAddr(t, 10)

	stale, _ := fx.svc.Create(context.Background(), CreateOrderInput{
		Address:     addr,
		Type:        enums.OrderTypeRevival,
		QuotePoints: 10,
	})
	fx.advance(20 * time.Minute)
	fresh, _ := fx.svc.Create(context.Background(), CreateOrderInput{
		Address:     addr,
		Type:        enums.OrderTypeRevival,
		QuotePoints: 10,
	})

	expired, err := fx.svc.ExpireStale(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expected 1 expired, got %d", expired)
	}

	staleOrder, _ := fx.svc.Get(context.Background(), stale.ID)
	if staleOrder.Status != enums.OrderStatusExpired {
		t.Fatalf("expected stale order expired, got %s", staleOrder.Status)
	}
	freshOrder, _ := fx.svc.Get(context.Background(), fresh.ID)
	if freshOrder.Status != enums.OrderStatusPending {
		t.Fatalf("expected fresh order pending, got %s", freshOrder.Status)
	}
}

func TestCreateQuotesTokenAmount(t *testing.T) {
	fx := newOrdersFixture(t)
	addr := orderAddr(t, 11)

	order, err := fx.svc.Create(context.Background(), CreateOrderInput{
		Address:     addr,
		Type:        enums.OrderTypeShopPurchase,
		QuotePoints: 120,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !order.QuoteTokens.Equal(decimal.RequireFromString("0.12")) {
		t.Fatalf("expected 0.12 tokens for 120 points at rate 1000, got %s", order.QuoteTokens)
	}
}

func TestConfirmRejectsMismatchedPayment(t *testing.T) {
	fx := newOrdersFixture(t)
	addr := orderAddr(t, 12)

	order, err := fx.svc.Create(context.Background(), CreateOrderInput{
		Address:     addr,
		Type:        enums.OrderTypeSwapDeposit,
		QuotePoints: 5000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// A finalized dust transfer between strangers must not settle the order.
	fx.adapter.verified = &chain.VerifiedTransaction{
		Amount:    decimal.RequireFromString("0.000001"),
		Sender:    orderAddr(t, 13),
		Recipient: orderAddr(t, 14),
	}

	_, err = fx.svc.Confirm(context.Background(), order.ID, "0xdust")
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeChainVerification {
		t.Fatalf("expected chain verification error, got %v", err)
	}

	current, _ := fx.svc.Get(context.Background(), order.ID)
	if current.Status != enums.OrderStatusFailed {
		t.Fatalf("expected failed, got %s", current.Status)
	}
	if fx.ledger.balances[addr] != 0 {
		t.Fatalf("mismatched payment must not credit, got %d", fx.ledger.balances[addr])
	}
}

func TestConfirmRivalHashAppliesOnce(t *testing.T) {
	fx := newOrdersFixture(t)
	addr := orderAddr(t, 15)

	order, err := fx.svc.Create(context.Background(), CreateOrderInput{
		Address:     addr,
		Type:        enums.OrderTypeSwapDeposit,
		QuotePoints: 300,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fx.chainSettles(order)

	// A rival confirm with its own hash lands while ours is verifying.
	fx.adapter.onVerify = func() {
		fx.adapter.onVerify = nil
		if _, err := fx.svc.Confirm(context.Background(), order.ID, "0xhash-A"); err != nil {
			t.Fatalf("rival confirm: %v", err)
		}
	}

	_, err = fx.svc.Confirm(context.Background(), order.ID, "0xhash-B")
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}

	current, _ := fx.svc.Get(context.Background(), order.ID)
	if current.TxHash == nil || *current.TxHash != "0xhash-A" {
		t.Fatalf("the winning hash must survive, got %v", current.TxHash)
	}
	if fx.ledger.balances[addr] != 300 {
		t.Fatalf("points must credit exactly once, got %d", fx.ledger.balances[addr])
	}
	if len(fx.ledger.entries) != 1 {
		t.Fatalf("expected one ledger leg, got %d", len(fx.ledger.entries))
	}
}

func TestOrderNotFound(t *testing.T) {
	fx := newOrdersFixture(t)
	_, err := fx.svc.Confirm(context.Background(), uuid.New(), "0xhash")
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
