package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/bloblets/arena-backend/api/middleware"
	"github.com/bloblets/arena-backend/api/responses"
	"github.com/bloblets/arena-backend/api/validators"
	"github.com/bloblets/arena-backend/internal/ledger"
	"github.com/bloblets/arena-backend/pkg/db/models"
	pkgerrors "github.com/bloblets/arena-backend/pkg/errors"
	"github.com/bloblets/arena-backend/pkg/logger"
)

const defaultHistoryLimit = 50

type balanceResponse struct {
	Address string `json:"address"`
	Balance int64  `json:"balance"`
}

type ledgerEntryResponse struct {
	ID           int64           `json:"id"`
	Reason       string          `json:"reason"`
	Delta        int64           `json:"delta"`
	BalanceAfter int64           `json:"balance_after"`
	BattleID     *uuid.UUID      `json:"battle_id,omitempty"`
	SwapID       *uuid.UUID      `json:"swap_id,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

func newLedgerEntryResponse(entry models.LedgerEntry) ledgerEntryResponse {
	return ledgerEntryResponse{
		ID:           entry.ID,
		Reason:       string(entry.Reason),
		Delta:        entry.Delta,
		BalanceAfter: entry.BalanceAfter,
		BattleID:     entry.BattleID,
		SwapID:       entry.SwapID,
		Metadata:     entry.Metadata,
		CreatedAt:    entry.CreatedAt,
	}
}

// LedgerBalance returns the caller's current point balance.
func LedgerBalance(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		addr := middleware.AddressFromContext(ctx)
		balance, err := svc.Balance(ctx, addr)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, balanceResponse{Address: addr, Balance: balance})
	}
}

// LedgerHistory returns the caller's ledger entries, newest first.
func LedgerHistory(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", defaultHistoryLimit, 1, 500)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		addr := middleware.AddressFromContext(ctx)
		entries, err := svc.History(ctx, addr, limit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		out := make([]ledgerEntryResponse, 0, len(entries))
		for _, entry := range entries {
			out = append(out, newLedgerEntryResponse(entry))
		}
		responses.WriteSuccess(w, map[string]any{"entries": out})
	}
}
