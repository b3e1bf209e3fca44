/**
 * @description
 * This file contains the HTTP handlers for the payment endpoints: creation,
 * cursor-paginated history listing, single-record lookup, and the idempotent
 * confirmation of two-phase payments.
 *
 * Listing responses carry a links object with absolute URLs. The URLs are
 * rebuilt from the incoming request with only the cursor parameter swapped,
 * so every filter the client sent survives into the navigation links.
 */

package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/drdaeman/payments-api-demo/internal/domain"
	"github.com/go-chi/chi/v5"
)

// pageLinks carries absolute URLs for re-fetching and navigating a page. A nil
// link means that direction is not available.
type pageLinks struct {
	This *string `json:"this"`
	Next *string `json:"next"`
	Prev *string `json:"prev"`
}

// paymentListResponse is the envelope for GET /payments: navigation links plus
// the records of the current window, newest first.
type paymentListResponse struct {
	Links   pageLinks        `json:"links"`
	Results []domain.Payment `json:"results"`
}

// pageLink rebuilds the request URL as an absolute URL with the cursor query
// parameter replaced by token. Returns nil when token is nil.
func pageLink(r *http.Request, token *string) *string {
	if token == nil {
		return nil
	}

	u := *r.URL
	q := u.Query()
	q.Set("cursor", *token)
	u.RawQuery = q.Encode()
	u.Scheme = "http"
	if r.TLS != nil {
		u.Scheme = "https"
	}
	u.Host = r.Host

	link := u.String()
	return &link
}

// parsePaymentFilter extracts the history filters from the query string. The
// second return value is a client-facing message; it is empty when parsing
// succeeded.
func parsePaymentFilter(r *http.Request) (domain.PaymentFilter, string) {
	query := r.URL.Query()
	filter := domain.PaymentFilter{
		FromAccount: query.Get("from_account"),
		ToAccount:   query.Get("to_account"),
		FromOwner:   query.Get("from_owner"),
		ToOwner:     query.Get("to_owner"),
	}

	if raw := query.Get("confirmed"); raw != "" {
		confirmed, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, "confirmed must be true or false."
		}
		filter.Confirmed = &confirmed
	}
	if raw := query.Get("time_gte"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, "time_gte must be an RFC 3339 timestamp."
		}
		filter.TimeGTE = &t
	}
	if raw := query.Get("time_lte"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, "time_lte must be an RFC 3339 timestamp."
		}
		filter.TimeLTE = &t
	}

	return filter, ""
}

// CreatePaymentHandler handles POST /payments. A request carrying a unique_id
// settles immediately; one without it is recorded unconfirmed and settles on a
// later confirmation call.
func (h *LedgerHandlers) CreatePaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	payment, err := h.service.CreatePayment(r.Context(), req)
	if err != nil {
		h.respondError(w, "create_payment", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, payment)
}

// ListPaymentsHandler handles GET /payments with cursor pagination and
// optional account, owner, confirmation and time range filters.
func (h *LedgerHandlers) ListPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	filter, msg := parsePaymentFilter(r)
	if msg != "" {
		h.writeError(w, http.StatusBadRequest, msg)
		return
	}

	query := r.URL.Query()
	page, err := h.service.ListPayments(r.Context(), query.Get("cursor"), query.Get("limit"), filter)
	if err != nil {
		h.respondError(w, "list_payments", err)
		return
	}

	results := page.Records
	if results == nil {
		results = []domain.Payment{}
	}
	h.writeJSON(w, http.StatusOK, paymentListResponse{
		Links: pageLinks{
			This: pageLink(r, page.This),
			Next: pageLink(r, page.Next),
			Prev: pageLink(r, page.Prev),
		},
		Results: results,
	})
}

// GetPaymentHandler handles GET /payments/{id}.
func (h *LedgerHandlers) GetPaymentHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusNotFound, "Payment not found.")
		return
	}

	payment, err := h.service.GetPayment(r.Context(), id)
	if err != nil {
		h.respondError(w, "get_payment", err)
		return
	}

	h.writeJSON(w, http.StatusOK, payment)
}

// ConfirmPaymentHandler handles PATCH /payments/{id}. Confirming an already
// confirmed payment is a no-op reported as 304 Not Modified.
func (h *LedgerHandlers) ConfirmPaymentHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusNotFound, "Payment not found.")
		return
	}

	var req domain.ConfirmPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	result, err := h.service.ConfirmPayment(r.Context(), id, req)
	if err != nil {
		h.respondError(w, "confirm_payment", err)
		return
	}

	if result.Status == domain.ConfirmAlreadyDone {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	h.writeJSON(w, http.StatusOK, result.Payment)
}
