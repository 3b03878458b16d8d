package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/bloblets/arena-backend/internal/ledger"
	"github.com/bloblets/arena-backend/pkg/enums"
	"github.com/bloblets/arena-backend/pkg/logger"
)

// CareUpkeepJobParams configure the periodic care upkeep debit.
type CareUpkeepJobParams struct {
	Logger   *logger.Logger
	Ledger   ledger.Service
	Balances activeBalanceReader
	Points   int64
}

type activeBalanceReader interface {
	ActiveBalances(ctx context.Context) ([]ledger.AddressBalance, error)
}

// NewCareUpkeepJob builds the cron job that charges every active bloblet its
// upkeep. An address holding less than the upkeep is drained to zero rather
// than skipped.
func NewCareUpkeepJob(params CareUpkeepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Balances == nil {
		return nil, fmt.Errorf("balance reader required")
	}
	if params.Points < 1 {
		return nil, fmt.Errorf("upkeep points must be positive")
	}
	return &careUpkeepJob{
		logg:     params.Logger,
		ledger:   params.Ledger,
		balances: params.Balances,
		points:   params.Points,
	}, nil
}

type careUpkeepJob struct {
	logg     *logger.Logger
	ledger   ledger.Service
	balances activeBalanceReader
	points   int64
}

func (j *careUpkeepJob) Name() string {
	return "care-upkeep"
}

func (j *careUpkeepJob) Run(ctx context.Context) error {
	active, err := j.balances.ActiveBalances(ctx)
	if err != nil {
		return fmt.Errorf("list active balances: %w", err)
	}

	var errs error
	charged := 0
	for _, row := range active {
		debit := j.points
		if row.Balance < debit {
			debit = row.Balance
		}
		_, err := j.ledger.Append(ctx, ledger.EntryInput{
			Address: row.Address,
			Reason:  enums.LedgerReasonCareUpkeep,
			Delta:   -debit,
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("upkeep for %s: %w", row.Address, err))
			continue
		}
		charged++
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"charged": charged,
		"failed":  len(active) - charged,
	}), "care upkeep cycle complete")
	return errs
}
