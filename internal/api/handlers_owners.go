package api

import (
	"encoding/json"
	"net/http"

	"github.com/drdaeman/payments-api-demo/internal/domain"
	"github.com/go-chi/chi/v5"
)

// CreateOwnerHandler handles POST /owners.
func (h *LedgerHandlers) CreateOwnerHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateOwnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	owner, err := h.service.CreateOwner(r.Context(), req)
	if err != nil {
		h.respondError(w, "create_owner", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, owner)
}

// ListOwnersHandler handles GET /owners.
func (h *LedgerHandlers) ListOwnersHandler(w http.ResponseWriter, r *http.Request) {
	owners, err := h.service.ListOwners(r.Context())
	if err != nil {
		h.respondError(w, "list_owners", err)
		return
	}

	h.writeJSON(w, http.StatusOK, owners)
}

// GetOwnerHandler handles GET /owners/{name}.
func (h *LedgerHandlers) GetOwnerHandler(w http.ResponseWriter, r *http.Request) {
	owner, err := h.service.GetOwner(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.respondError(w, "get_owner", err)
		return
	}

	h.writeJSON(w, http.StatusOK, owner)
}

// RenameOwnerHandler handles PATCH /owners/{name}.
func (h *LedgerHandlers) RenameOwnerHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.RenameOwnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	owner, err := h.service.RenameOwner(r.Context(), chi.URLParam(r, "name"), req)
	if err != nil {
		h.respondError(w, "rename_owner", err)
		return
	}

	h.writeJSON(w, http.StatusOK, owner)
}

// DeleteOwnerHandler handles DELETE /owners/{name}. Deleting an owner cascades
// to its accounts, so it is refused unless every account balance is zero.
func (h *LedgerHandlers) DeleteOwnerHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteOwner(r.Context(), chi.URLParam(r, "name")); err != nil {
		h.respondError(w, "delete_owner", err)
		return
	}

	h.writeJSON(w, http.StatusNoContent, nil)
}
