package cron

import (
	"context"
	"fmt"

	"github.com/bloblets/arena-backend/pkg/logger"
)

// OrderTTLJobParams configure the stale quote expiry job.
type OrderTTLJobParams struct {
	Logger *logger.Logger
	Orders orderExpirer
}

type orderExpirer interface {
	ExpireStale(ctx context.Context) (int64, error)
}

// NewOrderTTLJob builds the cron job that expires lapsed order quotes.
func NewOrderTTLJob(params OrderTTLJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	return &orderTTLJob{
		logg:   params.Logger,
		orders: params.Orders,
	}, nil
}

type orderTTLJob struct {
	logg   *logger.Logger
	orders orderExpirer
}

func (j *orderTTLJob) Name() string {
	return "order-ttl"
}

func (j *orderTTLJob) Run(ctx context.Context) error {
	expired, err := j.orders.ExpireStale(ctx)
	if err != nil {
		return fmt.Errorf("expire stale orders: %w", err)
	}
	if expired > 0 {
		j.logg.Info(j.logg.WithField(ctx, "expired", expired), "expired lapsed order quotes")
	}
	return nil
}
