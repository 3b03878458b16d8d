package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/bloblets/arena-backend/api/middleware"
	"github.com/bloblets/arena-backend/api/responses"
	"github.com/bloblets/arena-backend/internal/inventory"
	"github.com/bloblets/arena-backend/pkg/db/models"
	pkgerrors "github.com/bloblets/arena-backend/pkg/errors"
	"github.com/bloblets/arena-backend/pkg/logger"
)

type itemResponse struct {
	ID        uuid.UUID `json:"id"`
	Slot      string    `json:"slot"`
	Slug      string    `json:"slug"`
	Equipped  bool      `json:"equipped"`
	CreatedAt time.Time `json:"created_at"`
}

func newItemResponse(item models.PvpItem) itemResponse {
	return itemResponse{
		ID:        item.ID,
		Slot:      string(item.Slot),
		Slug:      item.Slug,
		Equipped:  item.Equipped,
		CreatedAt: item.CreatedAt,
	}
}

// InventoryLoadout returns the caller's items, equipped first.
func InventoryLoadout(repo inventory.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if repo == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory unavailable"))
			return
		}

		items, err := repo.Loadout(ctx, middleware.AddressFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading inventory"))
			return
		}

		out := make([]itemResponse, 0, len(items))
		for _, item := range items {
			out = append(out, newItemResponse(item))
		}
		responses.WriteSuccess(w, map[string]any{"items": out})
	}
}
