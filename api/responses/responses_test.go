package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/bloblets/arena-backend/pkg/errors"
)

func TestWriteSuccessEnvelope(t *testing.T) {
	w := httptest.NewRecorder()

	WriteSuccess(w, map[string]string{"hello": "world"})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}

	var body struct {
		Data map[string]string `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Data["hello"] != "world" {
		t.Fatalf("data = %#v", body.Data)
	}
}

func TestWriteSuccessStatusCreated(t *testing.T) {
	w := httptest.NewRecorder()

	WriteSuccessStatus(w, http.StatusCreated, map[string]string{"id": "abc"})

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
}

func TestWriteErrorTypedPassesMessageAndDetails(t *testing.T) {
	w := httptest.NewRecorder()

	err := pkgerrors.New(pkgerrors.CodeValidation, "amount_points must be positive").
		WithDetails(map[string]any{"field": "amount_points"})
	WriteError(context.Background(), nil, w, err)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	var body struct {
		Error struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error.Code != string(pkgerrors.CodeValidation) {
		t.Fatalf("code = %q", body.Error.Code)
	}
	if body.Error.Message != "amount_points must be positive" {
		t.Fatalf("message = %q", body.Error.Message)
	}
	if body.Error.Details["field"] != "amount_points" {
		t.Fatalf("details = %#v", body.Error.Details)
	}
}

func TestWriteErrorDomainCodeStatus(t *testing.T) {
	w := httptest.NewRecorder()

	err := pkgerrors.New(pkgerrors.CodeInsufficientBalance, "balance 10 below debit 25")
	WriteError(context.Background(), nil, w, err)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}

	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error.Message != "balance 10 below debit 25" {
		t.Fatalf("message = %q", body.Error.Message)
	}
}

func TestWriteErrorUntrustedBecomesInternal(t *testing.T) {
	w := httptest.NewRecorder()

	WriteError(context.Background(), nil, w, errors.New("pq: connection refused"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Details any    `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error.Code != string(pkgerrors.CodeInternal) {
		t.Fatalf("code = %q", body.Error.Code)
	}
	if body.Error.Message == "pq: connection refused" {
		t.Fatal("raw error message leaked to client")
	}
	if body.Error.Details != nil {
		t.Fatalf("details leaked: %#v", body.Error.Details)
	}
}
