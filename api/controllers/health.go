package controllers

import (
	"net/http"

	"github.com/bloblets/arena-backend/api/responses"
	"github.com/bloblets/arena-backend/pkg/config"
	"github.com/bloblets/arena-backend/pkg/db"
	pkgerrors "github.com/bloblets/arena-backend/pkg/errors"
	"github.com/bloblets/arena-backend/pkg/logger"
	"github.com/bloblets/arena-backend/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Arena-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when every wired dependency answers a ping.
// A nil pinger means the dependency is not part of this deployment and is
// skipped.
func HealthReady(cfg *config.Config, logg *logger.Logger, database db.Pinger, cache redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Arena-Env", cfg.App.Env)

		checks := map[string]string{}
		healthy := true

		if database != nil {
			checks["postgres"] = "ok"
			if err := database.Ping(r.Context()); err != nil {
				checks["postgres"] = "unreachable"
				healthy = false
			}
		}
		if cache != nil {
			checks["redis"] = "ok"
			if err := cache.Ping(r.Context()); err != nil {
				checks["redis"] = "unreachable"
				healthy = false
			}
		}

		if !healthy {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeDependency, "dependency unavailable").WithDetails(checks))
			return
		}

		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
