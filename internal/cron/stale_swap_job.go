package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/bloblets/arena-backend/pkg/db/models"
	"github.com/bloblets/arena-backend/pkg/logger"
)

const defaultStaleSwapAge = 24 * time.Hour

// StaleSwapJobParams configure the stale swap report job.
type StaleSwapJobParams struct {
	Logger *logger.Logger
	Swaps  pendingSwapReader
	Age    time.Duration
}

type pendingSwapReader interface {
	ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]models.TreasurySwap, error)
}

// NewStaleSwapJob builds the cron job that surfaces swaps stuck in pending.
// Pending swaps hold no points, so the job only reports; operators decide
// whether to cancel or chase the chain transaction.
func NewStaleSwapJob(params StaleSwapJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Swaps == nil {
		return nil, fmt.Errorf("swap repository required")
	}
	age := params.Age
	if age <= 0 {
		age = defaultStaleSwapAge
	}
	return &staleSwapJob{
		logg:  params.Logger,
		swaps: params.Swaps,
		age:   age,
	}, nil
}

type staleSwapJob struct {
	logg  *logger.Logger
	swaps pendingSwapReader
	age   time.Duration
}

func (j *staleSwapJob) Name() string {
	return "stale-swap-report"
}

func (j *staleSwapJob) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-j.age)
	stale, err := j.swaps.ListPendingOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list stale swaps: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}
	for _, swap := range stale {
		swapCtx := j.logg.WithSwapID(ctx, swap.ID.String())
		swapCtx = j.logg.WithFields(swapCtx, map[string]any{
			"direction":  string(swap.Direction),
			"age_hours":  int64(time.Since(swap.CreatedAt).Hours()),
			"amount_pts": swap.AmountPoints,
		})
		j.logg.Warn(swapCtx, "swap stuck in pending")
	}
	j.logg.Info(j.logg.WithField(ctx, "stale", len(stale)), "stale swap report complete")
	return nil
}
