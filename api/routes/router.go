package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bloblets/arena-backend/api/controllers"
	"github.com/bloblets/arena-backend/api/middleware"
	"github.com/bloblets/arena-backend/internal/battle"
	"github.com/bloblets/arena-backend/internal/inventory"
	"github.com/bloblets/arena-backend/internal/ledger"
	"github.com/bloblets/arena-backend/internal/orders"
	"github.com/bloblets/arena-backend/internal/score"
	"github.com/bloblets/arena-backend/internal/swap"
	"github.com/bloblets/arena-backend/pkg/config"
	"github.com/bloblets/arena-backend/pkg/db"
	"github.com/bloblets/arena-backend/pkg/logger"
	"github.com/bloblets/arena-backend/pkg/redis"
)

// Services groups everything the router mounts. Only the health endpoints
// work without a ledger; the rest return 500 until their service is wired.
type Services struct {
	Ledger    ledger.Service
	Battles   battle.Service
	Swaps     swap.Service
	Orders    orders.Service
	Score     score.Service
	Inventory inventory.Repository
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	database db.Pinger,
	redisClient *redis.Client,
	svcs Services,
) http.Handler {
	// A nil *redis.Client stored in an interface would dodge the nil checks
	// downstream.
	var limiter middleware.Limiter
	var cache redis.Pinger
	if redisClient != nil {
		limiter = redisClient
		cache = redisClient
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSAllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, database, cache))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Leaderboard is the one public game surface.
		r.Get("/leaderboard", controllers.Leaderboard(svcs.Score, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))

			r.Route("/ledger", func(r chi.Router) {
				r.Get("/balance", controllers.LedgerBalance(svcs.Ledger, logg))
				r.Get("/history", controllers.LedgerHistory(svcs.Ledger, logg))
			})

			r.Route("/battles", func(r chi.Router) {
				r.With(middleware.BattleRateLimit(limiter, cfg.RateLimit, logg)).
					Post("/", controllers.BattleResolve(svcs.Battles, logg))
				r.Get("/", controllers.BattleHistory(svcs.Battles, logg))
				r.Get("/{battleID}", controllers.BattleGet(svcs.Battles, logg))
			})

			r.Route("/swaps", func(r chi.Router) {
				r.Post("/", controllers.SwapCreate(svcs.Swaps, logg))
				r.Get("/", controllers.SwapHistory(svcs.Swaps, logg))
				r.Get("/{swapID}", controllers.SwapGet(svcs.Swaps, logg))
				r.Post("/{swapID}/confirm", controllers.SwapConfirm(svcs.Swaps, logg))
				r.Post("/{swapID}/cancel", controllers.SwapCancel(svcs.Swaps, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", controllers.OrderCreate(svcs.Orders, logg))
				r.Get("/", controllers.OrderHistory(svcs.Orders, logg))
				r.Get("/{orderID}", controllers.OrderGet(svcs.Orders, logg))
				r.Post("/{orderID}/confirm", controllers.OrderConfirm(svcs.Orders, logg))
			})

			r.Get("/inventory", controllers.InventoryLoadout(svcs.Inventory, logg))
		})
	})

	return r
}
