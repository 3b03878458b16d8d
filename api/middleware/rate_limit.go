package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bloblets/arena-backend/api/responses"
	"github.com/bloblets/arena-backend/pkg/config"
	pkgerrors "github.com/bloblets/arena-backend/pkg/errors"
	"github.com/bloblets/arena-backend/pkg/logger"
)

// Limiter is the counter surface BattleRateLimit needs from Redis.
type Limiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// BattleRateLimit caps how often a single wallet can open battles. The counter
// lives in Redis so every API instance shares the same window. A nil limiter
// disables the cap, which keeps local development working without Redis.
func BattleRateLimit(limiter Limiter, cfg config.RateLimitConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil || cfg.BattleAddressLimit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			addr := AddressFromContext(r.Context())
			if addr == "" {
				// Auth runs first on every battle route.
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			scope := fmt.Sprintf("battle:%s", addr)
			allowed, count, err := limiter.FixedWindowAllow(r.Context(), scope, int64(cfg.BattleAddressLimit), cfg.BattleWindow)
			if err != nil {
				// Redis trouble should not block gameplay.
				if logg != nil {
					logg.Error(r.Context(), "rate_limit.check_failed", err)
				}
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				if logg != nil {
					ctx := logg.WithFields(r.Context(), map[string]any{
						"scope": scope,
						"count": count,
					})
					logg.Warn(ctx, "rate_limit.battle_blocked")
				}
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many battles, slow down"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
