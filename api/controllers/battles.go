package controllers

import (
	"crypto/rand"
	"encoding/binary"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bloblets/arena-backend/api/middleware"
	"github.com/bloblets/arena-backend/api/responses"
	"github.com/bloblets/arena-backend/api/validators"
	"github.com/bloblets/arena-backend/internal/battle"
	"github.com/bloblets/arena-backend/pkg/db/models"
	pkgerrors "github.com/bloblets/arena-backend/pkg/errors"
	"github.com/bloblets/arena-backend/pkg/logger"
)

type battleRequest struct {
	AttackerBase    int64  `json:"attacker_base" validate:"min=0"`
	AttackerBooster int64  `json:"attacker_booster" validate:"min=0"`
	DefenderAddress string `json:"defender_address" validate:"required"`
	DefenderBase    int64  `json:"defender_base" validate:"min=0"`
	DefenderBooster int64  `json:"defender_booster" validate:"min=0"`
	Seed            *int64 `json:"seed,omitempty"`
}

type battleLootResponse struct {
	Slot     string    `json:"slot"`
	ItemID   uuid.UUID `json:"item_id"`
	ItemSlug string    `json:"item_slug"`
	From     string    `json:"from"`
	To       string    `json:"to"`
}

type battleResponse struct {
	ID              uuid.UUID            `json:"id"`
	AttackerAddress string               `json:"attacker_address"`
	DefenderAddress string               `json:"defender_address"`
	AttackerTotal   int64                `json:"attacker_total"`
	DefenderTotal   int64                `json:"defender_total"`
	WinnerAddress   string               `json:"winner_address"`
	TransferPoints  int64                `json:"transfer_points"`
	HousePoints     int64                `json:"house_points"`
	Critical        bool                 `json:"critical"`
	Loot            []battleLootResponse `json:"loot,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
}

func newBattleResponse(record *models.PvpBattle) battleResponse {
	resp := battleResponse{
		ID:              record.ID,
		AttackerAddress: record.AttackerAddress,
		DefenderAddress: record.DefenderAddress,
		AttackerTotal:   record.AttackerTotal,
		DefenderTotal:   record.DefenderTotal,
		WinnerAddress:   record.WinnerAddress,
		TransferPoints:  record.TransferPoints,
		HousePoints:     record.HousePoints,
		Critical:        record.Critical,
		CreatedAt:       record.CreatedAt,
	}
	for _, loot := range record.Loot {
		resp.Loot = append(resp.Loot, battleLootResponse{
			Slot:     string(loot.Slot),
			ItemID:   loot.ItemID,
			ItemSlug: loot.ItemSlug,
			From:     loot.FromAddress,
			To:       loot.ToAddress,
		})
	}
	return resp
}

func randomSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return time.Now().UnixNano()
	}
	seed := int64(binary.LittleEndian.Uint64(buf[:]))
	if seed < 0 {
		seed = -seed
	}
	return seed
}

// BattleResolve opens and settles a battle between the caller and a defender.
func BattleResolve(svc battle.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "battle service unavailable"))
			return
		}

		var payload battleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		seed := randomSeed()
		if payload.Seed != nil {
			seed = *payload.Seed
		}

		record, err := svc.Resolve(ctx, battle.ResolveInput{
			Attacker: battle.Combatant{
				Address: middleware.AddressFromContext(ctx),
				Base:    payload.AttackerBase,
				Booster: payload.AttackerBooster,
			},
			Defender: battle.Combatant{
				Address: payload.DefenderAddress,
				Base:    payload.DefenderBase,
				Booster: payload.DefenderBooster,
			},
			Seed: seed,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newBattleResponse(record))
	}
}

// BattleGet returns one battle the caller took part in.
func BattleGet(svc battle.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "battle service unavailable"))
			return
		}

		battleID, err := uuid.Parse(chi.URLParam(r, "battleID"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid battle id"))
			return
		}

		record, err := svc.Get(ctx, battleID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		caller := middleware.AddressFromContext(ctx)
		if record.AttackerAddress != caller && record.DefenderAddress != caller {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "battle does not involve caller"))
			return
		}

		responses.WriteSuccess(w, newBattleResponse(record))
	}
}

// BattleHistory returns the caller's battles, newest first.
func BattleHistory(svc battle.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "battle service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", defaultHistoryLimit, 1, 500)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		records, err := svc.HistoryFor(ctx, middleware.AddressFromContext(ctx), limit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		out := make([]battleResponse, 0, len(records))
		for i := range records {
			out = append(out, newBattleResponse(&records[i]))
		}
		responses.WriteSuccess(w, map[string]any{"battles": out})
	}
}
