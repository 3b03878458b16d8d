package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bloblets/arena-backend/internal/chain"
	"github.com/bloblets/arena-backend/internal/ledger"
	"github.com/bloblets/arena-backend/pkg/address"
	"github.com/bloblets/arena-backend/pkg/config"
	"github.com/bloblets/arena-backend/pkg/db"
	"github.com/bloblets/arena-backend/pkg/db/models"
	"github.com/bloblets/arena-backend/pkg/enums"
	pkgerrors "github.com/bloblets/arena-backend/pkg/errors"
	"github.com/bloblets/arena-backend/pkg/metrics"
)

const txHashUniqueKey = "uq_orders_tx_hash"

// CreateOrderInput quotes a new confirmable order.
type CreateOrderInput struct {
	Address     string
	Type        enums.OrderType
	QuotePoints int64
	Metadata    json.RawMessage
}

// Service quotes orders and confirms them against chain transactions. An
// order applies exactly one ledger effect, exactly once.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	Confirm(ctx context.Context, orderID uuid.UUID, txHash string) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	HistoryFor(ctx context.Context, addr string, limit int) ([]models.Order, error)
	ExpireStale(ctx context.Context) (int64, error)
}

// ServiceParams groups dependencies for the orders service.
type ServiceParams struct {
	Repo     Repository
	Ledger   ledger.Service
	Chain    chain.Adapter
	Config   config.OrdersConfig
	Treasury config.TreasuryConfig
	Metrics  *metrics.EconomyMetrics
	Now      func() time.Time
}

type service struct {
	repo    Repository
	ledger  ledger.Service
	chain   chain.Adapter
	cfg     config.OrdersConfig
	rate    decimal.Decimal
	deposit string
	metrics *metrics.EconomyMetrics
	now     func() time.Time
}

// NewService builds the orders service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orders repo is required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ledger service is required")
	}
	if params.Chain == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "chain adapter is required")
	}
	if params.Config.QuoteTTL <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quote ttl must be positive")
	}
	rate := params.Treasury.Rate()
	if !rate.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "treasury rate must be positive")
	}
	deposit, err := address.Canonical(params.Treasury.DepositAddress)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid treasury deposit address")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:    params.Repo,
		ledger:  params.Ledger,
		chain:   params.Chain,
		cfg:     params.Config,
		rate:    rate,
		deposit: deposit,
		metrics: params.Metrics,
		now:     now,
	}, nil
}

// Create quotes an order. The quote holds for cfg.QuoteTTL; confirmation
// after that window fails with Expired.
func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	canonical, err := address.Canonical(input.Address)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid address")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order type")
	}
	if input.QuotePoints < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quote points must be positive")
	}

	order := &models.Order{
		ID:          uuid.New(),
		Address:     canonical,
		Type:        input.Type,
		Status:      enums.OrderStatusPending,
		QuotePoints: input.QuotePoints,
		QuoteTokens: decimal.NewFromInt(input.QuotePoints).Div(s.rate),
		Metadata:    input.Metadata,
		ExpiresAt:   s.now().Add(s.cfg.QuoteTTL),
	}
	if err := s.repo.Insert(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert order")
	}
	return order, nil
}

// Confirm verifies the transaction and applies the order's ledger effect.
// Re-confirming an applied order with the same hash returns it unchanged.
func (s *service) Confirm(ctx context.Context, orderID uuid.UUID, txHash string) (*models.Order, error) {
	if txHash == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tx hash is required")
	}
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case enums.OrderStatusConfirmed:
		if order.TxHash != nil && *order.TxHash == txHash {
			return order, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order confirmed with a different transaction")
	case enums.OrderStatusFailed, enums.OrderStatusExpired:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order is %s", order.Status))
	}

	now := s.now()
	if now.After(order.ExpiresAt) {
		order.Status = enums.OrderStatusExpired
		if err := s.repo.UpdateFrom(ctx, order, enums.OrderStatusPending); err != nil && !errors.Is(err, errStaleStatus) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}
		return nil, pkgerrors.New(pkgerrors.CodeExpired,
			fmt.Sprintf("quote expired at %s", order.ExpiresAt.Format(time.RFC3339)))
	}

	// Every order settles against an inbound payment: the buyer sends the
	// quoted token amount to the treasury deposit address.
	expected := chain.Expected{
		Amount:    order.QuoteTokens,
		Sender:    order.Address,
		Recipient: s.deposit,
	}
	verified, err := s.chain.VerifyTransaction(ctx, txHash, expected)
	if err != nil {
		if errors.Is(err, chain.ErrTransactionFailed) {
			return s.fail(ctx, order, err.Error())
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify chain transaction")
	}
	if err := chain.Match(verified, expected); err != nil {
		return s.fail(ctx, order, err.Error())
	}

	delta := order.QuotePoints
	if !order.Type.IsCredit() {
		delta = -order.QuotePoints
	}

	err = s.ledger.WithAccounts(ctx, []string{order.Address}, func(tx *gorm.DB, app ledger.Appender) error {
		if _, err := app.Append(ctx, ledger.EntryInput{
			Address:  order.Address,
			Reason:   order.Type.LedgerReason(),
			Delta:    delta,
			Metadata: order.Metadata,
		}); err != nil {
			return err
		}
		order.Status = enums.OrderStatusConfirmed
		order.TxHash = &txHash
		order.ConfirmedAt = &now
		order.AppliedAt = &now
		// The status guard makes the rival confirm's ledger effect and ours
		// mutually exclusive; losing it rolls back the append.
		return s.repo.WithTx(tx).UpdateFrom(ctx, order, enums.OrderStatusPending)
	})
	if err != nil {
		if errors.Is(err, errStaleStatus) || db.IsUniqueViolation(err, txHashUniqueKey) {
			current, loadErr := s.load(ctx, orderID)
			if loadErr != nil {
				return nil, loadErr
			}
			if current.Status == enums.OrderStatusConfirmed &&
				current.TxHash != nil && *current.TxHash == txHash {
				return current, nil
			}
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order moved to %s concurrently", current.Status))
		}
		return nil, err
	}

	s.metrics.IncOrderConfirmed()
	return order, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.load(ctx, orderID)
}

func (s *service) HistoryFor(ctx context.Context, addr string, limit int) ([]models.Order, error) {
	canonical, err := address.Canonical(addr)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid address")
	}
	orders, err := s.repo.ListByAddress(ctx, canonical, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load orders")
	}
	return orders, nil
}

// ExpireStale flips pending orders whose quote window lapsed. The cron worker
// calls this so abandoned quotes do not linger as pending forever.
func (s *service) ExpireStale(ctx context.Context) (int64, error) {
	expired, err := s.repo.ExpirePending(ctx, s.now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire pending orders")
	}
	return expired, nil
}

func (s *service) load(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) fail(ctx context.Context, order *models.Order, note string) (*models.Order, error) {
	order.Status = enums.OrderStatusFailed
	if err := s.repo.UpdateFrom(ctx, order, enums.OrderStatusPending); err != nil {
		if errors.Is(err, errStaleStatus) {
			current, loadErr := s.load(ctx, order.ID)
			if loadErr != nil {
				return nil, loadErr
			}
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order moved to %s concurrently", current.Status))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
	}
	return nil, pkgerrors.New(pkgerrors.CodeChainVerification, note)
}
