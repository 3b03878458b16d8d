package swap

import (
	"context"
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

const (
	bpsDenominator       = 10000
	txSignatureUniqueKey = "uq_swaps_tx_signature"
)

// CreateSwapInput describes a new swap. Deposits quote from AmountTokens,
// withdrawals from AmountPoints; the service derives the other side from the
// treasury rate.
type CreateSwapInput struct {
	Address      string
	Direction    enums.SwapDirection
	AmountTokens decimal.Decimal
	AmountPoints int64
	Source       enums.SwapSource
	Reference    string
}

// Service drives treasury swaps through their lifecycle:
// pending -> confirmed | failed | cancelled.
type Service interface {
	Create(ctx context.Context, input CreateSwapInput) (*models.TreasurySwap, error)
	Confirm(ctx context.Context, swapID uuid.UUID, txSignature string) (*models.TreasurySwap, error)
	Cancel(ctx context.Context, swapID uuid.UUID) (*models.TreasurySwap, error)
	Get(ctx context.Context, swapID uuid.UUID) (*models.TreasurySwap, error)
	HistoryFor(ctx context.Context, addr string, limit int) ([]models.TreasurySwap, error)
}

// ServiceParams groups dependencies for the swap service.
type ServiceParams struct {
	Repo    Repository
	Ledger  ledger.Service
	Chain   chain.Adapter
	Config  config.TreasuryConfig
	Metrics *metrics.EconomyMetrics
}

type service struct {
	repo    Repository
	ledger  ledger.Service
	chain   chain.Adapter
	cfg     config.TreasuryConfig
	rate    decimal.Decimal
	deposit string
	metrics *metrics.EconomyMetrics
}

// NewService builds the swap service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "swap repo is required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ledger service is required")
	}
	if params.Chain == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "chain adapter is required")
	}
	rate := params.Config.Rate()
	if !rate.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "treasury rate must be positive")
	}
	deposit, err := address.Canonical(params.Config.DepositAddress)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid treasury deposit address")
	}
	return &service{
		repo:    params.Repo,
		ledger:  params.Ledger,
		chain:   params.Chain,
		cfg:     params.Config,
		rate:    rate,
		deposit: deposit,
		metrics: params.Metrics,
	}, nil
}

// Create opens a pending swap. Withdrawals check the address can still afford
// the minimum remaining balance; the check repeats at confirm time inside the
// atomic unit, so a stale read here only costs the user a failed confirm.
func (s *service) Create(ctx context.Context, input CreateSwapInput) (*models.TreasurySwap, error) {
	canonical, err := address.Canonical(input.Address)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid address")
	}
	if !input.Direction.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid swap direction")
	}
	source := input.Source
	if source == "" {
		source = enums.SwapSourceUser
	}
	if !source.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid swap source")
	}

	swap := &models.TreasurySwap{
		ID:        uuid.New(),
		Address:   canonical,
		Direction: input.Direction,
		Status:    enums.SwapStatusPending,
		Source:    source,
		Reference: input.Reference,
	}

	switch input.Direction {
	case enums.SwapDirectionDeposit:
		if !input.AmountTokens.IsPositive() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "deposit token amount must be positive")
		}
		swap.AmountTokens = input.AmountTokens
		swap.AmountPoints = input.AmountTokens.Mul(s.rate).IntPart()
		if swap.AmountPoints < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "deposit too small to mint a point")
		}
	case enums.SwapDirectionWithdraw:
		if input.AmountPoints < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "withdraw point amount must be positive")
		}
		balance, err := s.ledger.Balance(ctx, canonical)
		if err != nil {
			return nil, err
		}
		// The confirm-time debit is amount plus fee; checking only the amount
		// here would open swaps that can never settle.
		fee := input.AmountPoints * s.cfg.RedeemFeeBps / bpsDenominator
		if balance-input.AmountPoints-fee < s.cfg.MinBalanceAfterRedeem {
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientBalance,
				fmt.Sprintf("redeeming %d plus the %d point fee would leave less than the %d point minimum",
					input.AmountPoints, fee, s.cfg.MinBalanceAfterRedeem))
		}
		swap.AmountPoints = input.AmountPoints
		swap.AmountTokens = decimal.NewFromInt(input.AmountPoints).Div(s.rate)
	}

	if err := s.repo.Insert(ctx, swap); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert swap")
	}
	return swap, nil
}

// Confirm verifies the chain transaction and settles the swap. Confirming an
// already-confirmed swap with the same signature is a no-op success. Chain
// unavailability leaves the swap pending so the caller can retry; a definitive
// mismatch fails it.
func (s *service) Confirm(ctx context.Context, swapID uuid.UUID, txSignature string) (*models.TreasurySwap, error) {
	if txSignature == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tx signature is required")
	}
	swap, err := s.load(ctx, swapID)
	if err != nil {
		return nil, err
	}

	if swap.Status == enums.SwapStatusConfirmed {
		if swap.TxSignature != nil && *swap.TxSignature == txSignature {
			return swap, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "swap confirmed with a different signature")
	}
	if swap.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("swap is %s", swap.Status))
	}

	expected := s.expected(swap)
	verified, err := s.chain.VerifyTransaction(ctx, txSignature, expected)
	if err != nil {
		if errors.Is(err, chain.ErrTransactionFailed) {
			return s.fail(ctx, swap, err.Error())
		}
		// Not found yet, still pending, or the adapter was unreachable:
		// leave the swap pending for a later retry.
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify chain transaction")
	}
	if err := chain.Match(verified, expected); err != nil {
		return s.fail(ctx, swap, err.Error())
	}

	fee := int64(0)
	if swap.Direction == enums.SwapDirectionWithdraw {
		fee = swap.AmountPoints * s.cfg.RedeemFeeBps / bpsDenominator
	}

	now := time.Now().UTC()
	err = s.ledger.WithAccounts(ctx, []string{swap.Address}, func(tx *gorm.DB, app ledger.Appender) error {
		switch swap.Direction {
		case enums.SwapDirectionDeposit:
			if _, err := app.Append(ctx, ledger.EntryInput{
				Address: swap.Address,
				Reason:  enums.LedgerReasonSwapCredit,
				Delta:   swap.AmountPoints,
				SwapID:  &swap.ID,
			}); err != nil {
				return err
			}
		case enums.SwapDirectionWithdraw:
			if _, err := app.Append(ctx, ledger.EntryInput{
				Address: swap.Address,
				Reason:  enums.LedgerReasonRedeemDebit,
				Delta:   -swap.AmountPoints,
				SwapID:  &swap.ID,
			}); err != nil {
				return err
			}
			if fee > 0 {
				if _, err := app.Append(ctx, ledger.EntryInput{
					Address: swap.Address,
					Reason:  enums.LedgerReasonRedeemFee,
					Delta:   -fee,
					SwapID:  &swap.ID,
				}); err != nil {
					return err
				}
			}
		}
		swap.Status = enums.SwapStatusConfirmed
		swap.TxSignature = &txSignature
		swap.ConfirmedAt = &now
		// The status guard makes the rival confirm's legs and ours mutually
		// exclusive; losing it rolls back the appends with the transaction.
		return s.repo.WithTx(tx).UpdateFrom(ctx, swap, enums.SwapStatusPending)
	})
	if err != nil {
		if errors.Is(err, errStaleStatus) || db.IsUniqueViolation(err, txSignatureUniqueKey) {
			// A concurrent transition won the race. Reload and report its result.
			current, loadErr := s.load(ctx, swapID)
			if loadErr != nil {
				return nil, loadErr
			}
			if current.Status == enums.SwapStatusConfirmed &&
				current.TxSignature != nil && *current.TxSignature == txSignature {
				return current, nil
			}
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("swap moved to %s concurrently", current.Status))
		}
		return nil, err
	}

	s.metrics.IncSwapTransition(string(enums.SwapStatusConfirmed))
	return swap, nil
}

// Cancel abandons a pending swap. No points moved yet, so this only flips the
// row.
func (s *service) Cancel(ctx context.Context, swapID uuid.UUID) (*models.TreasurySwap, error) {
	swap, err := s.load(ctx, swapID)
	if err != nil {
		return nil, err
	}
	if swap.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot cancel a %s swap", swap.Status))
	}
	now := time.Now().UTC()
	swap.Status = enums.SwapStatusCancelled
	swap.CancelledAt = &now
	if err := s.repo.UpdateFrom(ctx, swap, enums.SwapStatusPending); err != nil {
		if errors.Is(err, errStaleStatus) {
			current, loadErr := s.load(ctx, swapID)
			if loadErr != nil {
				return nil, loadErr
			}
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot cancel a %s swap", current.Status))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update swap")
	}
	s.metrics.IncSwapTransition(string(enums.SwapStatusCancelled))
	return swap, nil
}

func (s *service) Get(ctx context.Context, swapID uuid.UUID) (*models.TreasurySwap, error) {
	return s.load(ctx, swapID)
}

func (s *service) HistoryFor(ctx context.Context, addr string, limit int) ([]models.TreasurySwap, error) {
	canonical, err := address.Canonical(addr)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid address")
	}
	swaps, err := s.repo.ListByAddress(ctx, canonical, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load swaps")
	}
	return swaps, nil
}

func (s *service) load(ctx context.Context, swapID uuid.UUID) (*models.TreasurySwap, error) {
	if swapID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "swap id is required")
	}
	swap, err := s.repo.FindByID(ctx, swapID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "swap not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load swap")
	}
	return swap, nil
}

// expected captures where the tokens must flow for this swap: deposits move
// user to treasury, withdrawals treasury to user.
func (s *service) expected(swap *models.TreasurySwap) chain.Expected {
	exp := chain.Expected{Amount: swap.AmountTokens}
	switch swap.Direction {
	case enums.SwapDirectionDeposit:
		exp.Sender = swap.Address
		exp.Recipient = s.deposit
	case enums.SwapDirectionWithdraw:
		exp.Sender = s.deposit
		exp.Recipient = swap.Address
	}
	return exp
}

func (s *service) fail(ctx context.Context, swap *models.TreasurySwap, note string) (*models.TreasurySwap, error) {
	now := time.Now().UTC()
	swap.Status = enums.SwapStatusFailed
	swap.FailureNote = &note
	swap.FailedAt = &now
	if err := s.repo.UpdateFrom(ctx, swap, enums.SwapStatusPending); err != nil {
		if errors.Is(err, errStaleStatus) {
			current, loadErr := s.load(ctx, swap.ID)
			if loadErr != nil {
				return nil, loadErr
			}
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("swap moved to %s concurrently", current.Status))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update swap")
	}
	s.metrics.IncSwapTransition(string(enums.SwapStatusFailed))
	return nil, pkgerrors.New(pkgerrors.CodeChainVerification, note)
}
