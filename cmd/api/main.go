package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bloblets/arena-backend/api/routes"
	"github.com/bloblets/arena-backend/internal/battle"
	"github.com/bloblets/arena-backend/internal/chain"
	"github.com/bloblets/arena-backend/internal/inventory"
	"github.com/bloblets/arena-backend/internal/ledger"
	"github.com/bloblets/arena-backend/internal/orders"
	"github.com/bloblets/arena-backend/internal/score"
	"github.com/bloblets/arena-backend/internal/swap"
	"github.com/bloblets/arena-backend/pkg/config"
	"github.com/bloblets/arena-backend/pkg/db"
	"github.com/bloblets/arena-backend/pkg/logger"
	"github.com/bloblets/arena-backend/pkg/metrics"
	"github.com/bloblets/arena-backend/pkg/migrate"
	"github.com/bloblets/arena-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	ledgerService, err := ledger.NewService(ledger.ServiceParams{
		Repo:    ledger.NewRepository(dbClient.DB()),
		Runner:  dbClient,
		Config:  cfg.Ledger,
		Metrics: economyMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	inventoryRepo := inventory.NewRepository(dbClient.DB())

	battleService, err := battle.NewService(battle.ServiceParams{
		Repo:      battle.NewRepository(dbClient.DB()),
		Ledger:    ledgerService,
		Inventory: inventoryRepo,
		Config:    cfg.Battle,
		Metrics:   economyMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create battle service", err)
		os.Exit(1)
	}

	chainAdapter, err := chain.NewIndexerAdapter(cfg.Chain)
	if err != nil {
		logg.Error(context.Background(), "failed to create chain adapter", err)
		os.Exit(1)
	}

	swapService, err := swap.NewService(swap.ServiceParams{
		Repo:    swap.NewRepository(dbClient.DB()),
		Ledger:  ledgerService,
		Chain:   chainAdapter,
		Config:  cfg.Treasury,
		Metrics: economyMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create swap service", err)
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

	scoreService, err := score.NewService(score.ServiceParams{
		Repo:   score.NewRepository(dbClient.DB()),
		Cache:  redisClient,
		Config: cfg.Score,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create score service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, routes.Services{
			Ledger:    ledgerService,
			Battles:   battleService,
			Swaps:     swapService,
			Orders:    ordersService,
			Score:     scoreService,
			Inventory: inventoryRepo,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
