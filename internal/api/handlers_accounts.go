package api

import (
	"encoding/json"
	"net/http"

	"github.com/drdaeman/payments-api-demo/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// parseDecimalFilter parses an optional decimal query parameter. An absent or
// empty value yields nil; a present but unparseable value is an error.
func parseDecimalFilter(raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateAccountHandler handles POST /accounts.
func (h *LedgerHandlers) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	account, err := h.service.CreateAccount(r.Context(), req)
	if err != nil {
		h.respondError(w, "create_account", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, account)
}

// ListAccountsHandler handles GET /accounts with optional owner, currency and
// balance range filters.
func (h *LedgerHandlers) ListAccountsHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	balanceLTE, err := parseDecimalFilter(query.Get("balance_lte"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "balance_lte must be a decimal number.")
		return
	}
	balanceGTE, err := parseDecimalFilter(query.Get("balance_gte"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "balance_gte must be a decimal number.")
		return
	}

	accounts, err := h.service.ListAccounts(r.Context(), domain.AccountFilter{
		Owner:      query.Get("owner"),
		Currency:   query.Get("currency"),
		BalanceLTE: balanceLTE,
		BalanceGTE: balanceGTE,
	})
	if err != nil {
		h.respondError(w, "list_accounts", err)
		return
	}

	h.writeJSON(w, http.StatusOK, accounts)
}

// GetAccountHandler handles GET /accounts/{name}.
func (h *LedgerHandlers) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	account, err := h.service.GetAccount(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.respondError(w, "get_account", err)
		return
	}

	h.writeJSON(w, http.StatusOK, account)
}

// DeleteAccountHandler handles DELETE /accounts/{name}. Only zero-balance
// accounts may be deleted; settled history survives with the account reference
// cleared.
func (h *LedgerHandlers) DeleteAccountHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteAccount(r.Context(), chi.URLParam(r, "name")); err != nil {
		h.respondError(w, "delete_account", err)
		return
	}

	h.writeJSON(w, http.StatusNoContent, nil)
}
