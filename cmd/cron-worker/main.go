package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bloblets/arena-backend/internal/chain"
	"github.com/bloblets/arena-backend/internal/cron"
	"github.com/bloblets/arena-backend/internal/ledger"
	"github.com/bloblets/arena-backend/internal/orders"
	"github.com/bloblets/arena-backend/internal/swap"
	"github.com/bloblets/arena-backend/pkg/config"
	"github.com/bloblets/arena-backend/pkg/db"
	"github.com/bloblets/arena-backend/pkg/logger"
	"github.com/bloblets/arena-backend/pkg/metrics"
	"github.com/bloblets/arena-backend/pkg/migrate"
	"github.com/bloblets/arena-backend/pkg/redis"
)

const lockKeyFormat = "ba:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	economyMetrics := metrics.NewEconomyMetrics(prometheus.DefaultRegisterer)

	ledgerRepo := ledger.NewRepository(dbClient.DB())
	ledgerService, err := ledger.NewService(ledger.ServiceParams{
		Repo:    ledgerRepo,
		Runner:  dbClient,
		Config:  cfg.Ledger,
		Metrics: economyMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	chainAdapter, err := chain.NewIndexerAdapter(cfg.Chain)
	if err != nil {
		logg.Error(context.Background(), "failed to create chain adapter", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:     orders.NewRepository(dbClient.DB()),
		Ledger:   ledgerService,
		Chain:    chainAdapter,
		Config:   cfg.Orders,
		Treasury: cfg.Treasury,
		Metrics:  economyMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	orderTTLJob, err := cron.NewOrderTTLJob(cron.OrderTTLJobParams{
		Logger: logg,
		Orders: ordersService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order ttl job", err)
		os.Exit(1)
	}

	staleSwapJob, err := cron.NewStaleSwapJob(cron.StaleSwapJobParams{
		Logger: logg,
		Swaps:  swap.NewRepository(dbClient.DB()),
		Age:    cfg.Cron.StaleSwapAge,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stale swap job", err)
		os.Exit(1)
	}

	careUpkeepJob, err := cron.NewCareUpkeepJob(cron.CareUpkeepJobParams{
		Logger:   logg,
		Ledger:   ledgerService,
		Balances: ledgerRepo,
		Points:   cfg.Cron.CareUpkeepPoints,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create care upkeep job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(orderTTLJob, staleSwapJob, careUpkeepJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
