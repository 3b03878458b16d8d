package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bloblets/arena-backend/api/middleware"
	"github.com/bloblets/arena-backend/api/responses"
	"github.com/bloblets/arena-backend/api/validators"
	"github.com/bloblets/arena-backend/internal/swap"
	"github.com/bloblets/arena-backend/pkg/address"
	"github.com/bloblets/arena-backend/pkg/db/models"
	"github.com/bloblets/arena-backend/pkg/enums"
	pkgerrors "github.com/bloblets/arena-backend/pkg/errors"
	"github.com/bloblets/arena-backend/pkg/logger"
)

type swapCreateRequest struct {
	Direction    string `json:"direction" validate:"required"`
	AmountTokens string `json:"amount_tokens,omitempty"`
	AmountPoints int64  `json:"amount_points,omitempty" validate:"min=0"`
	Reference    string `json:"reference" validate:"required,max=128"`
}

type swapConfirmRequest struct {
	TxSignature string `json:"tx_signature" validate:"required,max=256"`
}

type swapResponse struct {
	ID           uuid.UUID  `json:"id"`
	Address      string     `json:"address"`
	Direction    string     `json:"direction"`
	Status       string     `json:"status"`
	Source       string     `json:"source"`
	AmountPoints int64      `json:"amount_points"`
	AmountTokens string     `json:"amount_tokens"`
	Reference    string     `json:"reference"`
	TxSignature  *string    `json:"tx_signature,omitempty"`
	FailureNote  *string    `json:"failure_note,omitempty"`
	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty"`
	FailedAt     *time.Time `json:"failed_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func newSwapResponse(record *models.TreasurySwap) swapResponse {
	return swapResponse{
		ID:           record.ID,
		Address:      record.Address,
		Direction:    string(record.Direction),
		Status:       string(record.Status),
		Source:       string(record.Source),
		AmountPoints: record.AmountPoints,
		AmountTokens: record.AmountTokens.String(),
		Reference:    record.Reference,
		TxSignature:  record.TxSignature,
		FailureNote:  record.FailureNote,
		ConfirmedAt:  record.ConfirmedAt,
		FailedAt:     record.FailedAt,
		CancelledAt:  record.CancelledAt,
		CreatedAt:    record.CreatedAt,
	}
}

func swapForCaller(r *http.Request, svc swap.Service) (*models.TreasurySwap, error) {
	swapID, err := uuid.Parse(chi.URLParam(r, "swapID"))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid swap id")
	}
	record, err := svc.Get(r.Context(), swapID)
	if err != nil {
		return nil, err
	}
	if !address.Equal(record.Address, middleware.AddressFromContext(r.Context())) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "swap does not belong to caller")
	}
	return record, nil
}

// SwapCreate opens a pending treasury swap for the caller.
func SwapCreate(svc swap.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "swap service unavailable"))
			return
		}

		var payload swapCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		direction, err := enums.ParseSwapDirection(payload.Direction)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid swap direction"))
			return
		}

		tokens := decimal.Zero
		if payload.AmountTokens != "" {
			tokens, err = decimal.NewFromString(payload.AmountTokens)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid token amount"))
				return
			}
		}

		record, err := svc.Create(ctx, swap.CreateSwapInput{
			Address:      middleware.AddressFromContext(ctx),
			Direction:    direction,
			AmountTokens: tokens,
			AmountPoints: payload.AmountPoints,
			Source:       enums.SwapSourceUser,
			Reference:    validators.SanitizeString(payload.Reference, 128),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newSwapResponse(record))
	}
}

// SwapConfirm settles a pending swap against a chain transaction.
func SwapConfirm(svc swap.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "swap service unavailable"))
			return
		}

		record, err := swapForCaller(r, svc)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload swapConfirmRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		confirmed, err := svc.Confirm(ctx, record.ID, payload.TxSignature)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, newSwapResponse(confirmed))
	}
}

// SwapCancel abandons a pending swap.
func SwapCancel(svc swap.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "swap service unavailable"))
			return
		}

		record, err := swapForCaller(r, svc)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		cancelled, err := svc.Cancel(ctx, record.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, newSwapResponse(cancelled))
	}
}

// SwapGet returns one of the caller's swaps.
func SwapGet(svc swap.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "swap service unavailable"))
			return
		}

		record, err := swapForCaller(r, svc)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, newSwapResponse(record))
	}
}

// SwapHistory returns the caller's swaps, newest first.
func SwapHistory(svc swap.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "swap service unavailable"))
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

		out := make([]swapResponse, 0, len(records))
		for i := range records {
			out = append(out, newSwapResponse(&records[i]))
		}
		responses.WriteSuccess(w, map[string]any{"swaps": out})
	}
}
