/**
 * @description
 * This file contains the core HTTP handler plumbing for the ledger API.
 * Handlers parse incoming requests, call the appropriate methods on the
 * application service, and write the HTTP response. They act as the bridge
 * between the web layer and the business logic layer.
 *
 * Feature-specific handlers live in sibling files (handlers_owners.go,
 * handlers_accounts.go, handlers_payments.go); this file holds the shared
 * response helpers and the error-to-status translation.
 *
 * @dependencies
 * - encoding/json, errors, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/drdaeman/payments-api-demo/internal/app"
	"github.com/drdaeman/payments-api-demo/internal/domain"
	"github.com/drdaeman/payments-api-demo/internal/store"
	"github.com/jackc/pgx/v5/pgconn"
)

// LedgerHandlers holds the application service that handlers will use.
type LedgerHandlers struct {
	service *app.Service
}

// NewLedgerHandlers creates a new instance of LedgerHandlers.
func NewLedgerHandlers(service *app.Service) *LedgerHandlers {
	return &LedgerHandlers{service: service}
}

// mapLedgerError translates service and store errors into an HTTP status code
// and a client-facing message. Precondition violations and unrecognized errors
// map to 500; the caller is expected to log those before responding.
func mapLedgerError(err error) (int, string) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest, validationErr.Reason
	}
	var conflictErr *domain.ConflictError
	if errors.As(err, &conflictErr) {
		return http.StatusConflict, conflictErr.Reason
	}
	var preconditionErr *domain.PreconditionError
	if errors.As(err, &preconditionErr) {
		return http.StatusInternalServerError, "Could not process the request."
	}

	switch {
	case errors.Is(err, store.ErrOwnerNotFound):
		return http.StatusNotFound, "Owner not found."
	case errors.Is(err, store.ErrAccountNotFound):
		return http.StatusNotFound, "Account not found."
	case errors.Is(err, store.ErrPaymentNotFound):
		return http.StatusNotFound, "Payment not found."
	case errors.Is(err, store.ErrDuplicateName):
		return http.StatusConflict, "A record with this name already exists."
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" {
			return http.StatusConflict, "A record with this value already exists."
		}
	}

	return http.StatusInternalServerError, "Could not process the request."
}

// respondError maps err, logs server-side failures, and writes the JSON error body.
func (h *LedgerHandlers) respondError(w http.ResponseWriter, endpoint string, err error) {
	status, msg := mapLedgerError(err)
	if status == http.StatusInternalServerError {
		log.Printf("level=error component=api endpoint=%s outcome=failed err=%v", endpoint, err)
	}
	h.writeError(w, status, msg)
}

// writeJSON is a helper for writing JSON responses.
func (h *LedgerHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *LedgerHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
