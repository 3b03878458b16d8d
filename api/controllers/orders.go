package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bloblets/arena-backend/api/middleware"
	"github.com/bloblets/arena-backend/api/responses"
	"github.com/bloblets/arena-backend/api/validators"
	"github.com/bloblets/arena-backend/internal/orders"
	"github.com/bloblets/arena-backend/pkg/address"
	"github.com/bloblets/arena-backend/pkg/db/models"
	"github.com/bloblets/arena-backend/pkg/enums"
	pkgerrors "github.com/bloblets/arena-backend/pkg/errors"
	"github.com/bloblets/arena-backend/pkg/logger"
)

type orderCreateRequest struct {
	Type        string          `json:"type" validate:"required"`
	QuotePoints int64           `json:"quote_points" validate:"required,min=1"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

type orderConfirmRequest struct {
	TxHash string `json:"tx_hash" validate:"required,max=256"`
}

type orderResponse struct {
	ID          uuid.UUID       `json:"id"`
	Address     string          `json:"address"`
	Type        string          `json:"type"`
	Status      string          `json:"status"`
	QuotePoints int64           `json:"quote_points"`
	QuoteTokens string          `json:"quote_tokens"`
	TxHash      *string         `json:"tx_hash,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	ExpiresAt   time.Time       `json:"expires_at"`
	ConfirmedAt *time.Time      `json:"confirmed_at,omitempty"`
	AppliedAt   *time.Time      `json:"applied_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

func newOrderResponse(record *models.Order) orderResponse {
	return orderResponse{
		ID:          record.ID,
		Address:     record.Address,
		Type:        string(record.Type),
		Status:      string(record.Status),
		QuotePoints: record.QuotePoints,
		QuoteTokens: record.QuoteTokens.String(),
		TxHash:      record.TxHash,
		Metadata:    record.Metadata,
		ExpiresAt:   record.ExpiresAt,
		ConfirmedAt: record.ConfirmedAt,
		AppliedAt:   record.AppliedAt,
		CreatedAt:   record.CreatedAt,
	}
}

func orderForCaller(r *http.Request, svc orders.Service) (*models.Order, error) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	record, err := svc.Get(r.Context(), orderID)
	if err != nil {
		return nil, err
	}
	if !address.Equal(record.Address, middleware.AddressFromContext(r.Context())) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to caller")
	}
	return record, nil
}

// OrderCreate quotes a token-gated order for the caller.
func OrderCreate(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		var payload orderCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		orderType, err := enums.ParseOrderType(payload.Type)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order type"))
			return
		}

		record, err := svc.Create(ctx, orders.CreateOrderInput{
			Address:     middleware.AddressFromContext(ctx),
			Type:        orderType,
			QuotePoints: payload.QuotePoints,
			Metadata:    payload.Metadata,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(record))
	}
}

// OrderConfirm settles a quoted order against a chain transaction.
func OrderConfirm(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		record, err := orderForCaller(r, svc)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload orderConfirmRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		confirmed, err := svc.Confirm(ctx, record.ID, payload.TxHash)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(confirmed))
	}
}

// OrderGet returns one of the caller's orders.
func OrderGet(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		record, err := orderForCaller(r, svc)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(record))
	}
}

// OrderHistory returns the caller's orders, newest first.
func OrderHistory(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
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

		out := make([]orderResponse, 0, len(records))
		for i := range records {
			out = append(out, newOrderResponse(&records[i]))
		}
		responses.WriteSuccess(w, map[string]any{"orders": out})
	}
}
