package controllers

import (
	"net/http"

	"github.com/bloblets/arena-backend/api/responses"
	"github.com/bloblets/arena-backend/api/validators"
	"github.com/bloblets/arena-backend/internal/score"
	pkgerrors "github.com/bloblets/arena-backend/pkg/errors"
	"github.com/bloblets/arena-backend/pkg/logger"
)

// Leaderboard returns the top point holders with masked addresses. Public,
// no auth required.
func Leaderboard(svc score.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "score service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, 1000)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		standings, err := svc.Leaderboard(ctx, limit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"standings": standings})
	}
}
