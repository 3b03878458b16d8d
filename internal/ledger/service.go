package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bloblets/arena-backend/pkg/address"
	"github.com/bloblets/arena-backend/pkg/config"
	"github.com/bloblets/arena-backend/pkg/db"
	"github.com/bloblets/arena-backend/pkg/db/models"
	"github.com/bloblets/arena-backend/pkg/enums"
	pkgerrors "github.com/bloblets/arena-backend/pkg/errors"
	"github.com/bloblets/arena-backend/pkg/metrics"
)

// errTailMoved marks an insert that lost the (address, parent_id) race to a
// concurrent writer, possibly in another process. WithAccounts retries the
// whole unit on it.
var errTailMoved = errors.New("ledger tail moved")

// EntryInput describes one entry to append to an address's history.
type EntryInput struct {
	Address  string
	Reason   enums.LedgerReason
	Delta    int64
	BattleID *uuid.UUID
	SwapID   *uuid.UUID
	Metadata json.RawMessage
}

// Appender is the write surface handed to callers inside WithAccounts.
// Every append reads the current balance and writes the next entry within the
// unit's transaction, so a multi-leg unit commits all legs or none.
type Appender interface {
	Append(ctx context.Context, input EntryInput) (models.LedgerEntry, error)
	Balance(ctx context.Context, addr string) (int64, error)
}

// Service is the single write path into the point ledger. All balance changes
// across the system go through Append or a WithAccounts unit.
type Service interface {
	Append(ctx context.Context, input EntryInput) (models.LedgerEntry, error)
	Balance(ctx context.Context, addr string) (int64, error)
	History(ctx context.Context, addr string, limit int) ([]models.LedgerEntry, error)
	WithAccounts(ctx context.Context, addresses []string, fn func(tx *gorm.DB, app Appender) error) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups dependencies for the ledger service.
type ServiceParams struct {
	Repo    Repository
	Runner  txRunner
	Config  config.LedgerConfig
	Metrics *metrics.EconomyMetrics
}

type service struct {
	repo       Repository
	runner     txRunner
	locks      *keyedMutex
	maxRetries int
	metrics    *metrics.EconomyMetrics
}

// NewService builds the ledger service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ledger repo is required")
	}
	if params.Runner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tx runner is required")
	}
	retries := params.Config.MaxAppendRetries
	if retries < 1 {
		retries = 1
	}
	return &service{
		repo:       params.Repo,
		runner:     params.Runner,
		locks:      newKeyedMutex(),
		maxRetries: retries,
		metrics:    params.Metrics,
	}, nil
}

// Append writes a single entry as its own atomic unit.
func (s *service) Append(ctx context.Context, input EntryInput) (models.LedgerEntry, error) {
	canonical, err := address.Canonical(input.Address)
	if err != nil {
		return models.LedgerEntry{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid address")
	}
	input.Address = canonical

	var entry models.LedgerEntry
	err = s.WithAccounts(ctx, []string{canonical}, func(_ *gorm.DB, app Appender) error {
		written, appendErr := app.Append(ctx, input)
		if appendErr != nil {
			return appendErr
		}
		entry = written
		return nil
	})
	if err != nil {
		return models.LedgerEntry{}, err
	}
	return entry, nil
}

// Balance returns the address's current balance without taking a lock.
func (s *service) Balance(ctx context.Context, addr string) (int64, error) {
	canonical, err := address.Canonical(addr)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid address")
	}
	balance, err := s.repo.LatestBalance(ctx, canonical)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load balance")
	}
	return balance, nil
}

// History returns the address's entries newest first.
func (s *service) History(ctx context.Context, addr string, limit int) ([]models.LedgerEntry, error) {
	canonical, err := address.Canonical(addr)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid address")
	}
	entries, err := s.repo.ListByAddress(ctx, canonical, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load history")
	}
	return entries, nil
}

// WithAccounts runs fn under per-address locks inside one transaction. The
// Appender only accepts the locked addresses. The in-process locks keep
// same-process writers apart; the (address, parent_id) unique index catches
// writers in other processes, and a conflict there retries the whole unit,
// so fn must be safe to re-run.
func (s *service) WithAccounts(ctx context.Context, addresses []string, fn func(tx *gorm.DB, app Appender) error) error {
	if len(addresses) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one address is required")
	}
	canonical := make([]string, 0, len(addresses))
	allowed := make(map[string]bool, len(addresses))
	for _, addr := range addresses {
		c, err := address.Canonical(addr)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid address")
		}
		canonical = append(canonical, c)
		allowed[c] = true
	}

	unlock := s.locks.Lock(canonical)
	defer unlock()

	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
			app := &appender{
				repo:    s.repo.WithTx(tx),
				allowed: allowed,
				metrics: s.metrics,
			}
			return fn(tx, app)
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, errTailMoved) {
			return err
		}
		s.metrics.IncAppendConflict()
		lastErr = err
	}
	return pkgerrors.Wrap(pkgerrors.CodeConflict, lastErr, "ledger unit kept conflicting")
}

type appender struct {
	repo    Repository
	allowed map[string]bool
	metrics *metrics.EconomyMetrics
}

func (a *appender) Append(ctx context.Context, input EntryInput) (models.LedgerEntry, error) {
	canonical, err := address.Canonical(input.Address)
	if err != nil {
		return models.LedgerEntry{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid address")
	}
	if !a.allowed[canonical] {
		return models.LedgerEntry{}, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("address %s is not part of this unit", address.Mask(canonical)))
	}
	if !input.Reason.IsValid() {
		return models.LedgerEntry{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid ledger reason")
	}
	if input.Delta == 0 {
		return models.LedgerEntry{}, pkgerrors.New(pkgerrors.CodeValidation, "delta must be non-zero")
	}
	if input.Reason.IsDebit() && input.Delta > 0 {
		return models.LedgerEntry{}, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("reason %s requires a negative delta", input.Reason))
	}

	tail, err := a.repo.Tail(ctx, canonical)
	if err != nil {
		return models.LedgerEntry{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load balance")
	}
	balance, parent := int64(0), int64(0)
	if tail != nil {
		balance, parent = tail.BalanceAfter, tail.ID
	}
	next := balance + input.Delta
	if next < 0 {
		return models.LedgerEntry{}, pkgerrors.New(pkgerrors.CodeInsufficientBalance,
			fmt.Sprintf("balance %d cannot absorb delta %d", balance, input.Delta))
	}

	entry := models.LedgerEntry{
		Address:      canonical,
		ParentID:     parent,
		Reason:       input.Reason,
		Delta:        input.Delta,
		BalanceAfter: next,
		BattleID:     input.BattleID,
		SwapID:       input.SwapID,
		Metadata:     input.Metadata,
	}
	if err := a.repo.Insert(ctx, &entry); err != nil {
		if db.IsUniqueViolation(err, "") {
			return models.LedgerEntry{}, pkgerrors.Wrap(pkgerrors.CodeConflict,
				fmt.Errorf("%w: %v", errTailMoved, err), "append raced a concurrent writer")
		}
		return models.LedgerEntry{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert ledger entry")
	}
	a.metrics.AddPointsMoved(string(input.Reason), input.Delta)
	return entry, nil
}

func (a *appender) Balance(ctx context.Context, addr string) (int64, error) {
	canonical, err := address.Canonical(addr)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid address")
	}
	balance, err := a.repo.LatestBalance(ctx, canonical)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load balance")
	}
	return balance, nil
}
