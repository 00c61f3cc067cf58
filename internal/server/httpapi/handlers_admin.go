package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"

	"github.com/imalykh/bankcards/internal/model"
	"github.com/imalykh/bankcards/internal/repository"
)

type createCardRequest struct {
	OwnerID    uuid.UUID `json:"owner_id"`
	ExpiryDate string    `json:"expiry_date"` // YYYY-MM-DD
}

type updateUserRequest struct {
	Roles []string `json:"roles"`
}

// handleCreateCard issues a card for the given owner.
func (h *Handlers) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	var req createCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	expiry, err := time.Parse("2006-01-02", req.ExpiryDate)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "expiry_date must be YYYY-MM-DD"})
		return
	}
	view, err := h.cards.Create(r.Context(), req.OwnerID, expiry)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// handleBlockCard sets a card BLOCKED.
func (h *Handlers) handleBlockCard(w http.ResponseWriter, r *http.Request) {
	h.cardTransition(w, r, h.cards.Block)
}

// handleActivateCard sets a card ACTIVE.
func (h *Handlers) handleActivateCard(w http.ResponseWriter, r *http.Request) {
	h.cardTransition(w, r, h.cards.Activate)
}

// handleDeleteCard removes a card in a deletable status.
func (h *Handlers) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	cardID, err := uuid.FromString(chi.URLParam(r, "cardID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad card id"})
		return
	}
	if err := h.cards.Delete(r.Context(), cardID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListAllCards returns a page over all cards, optionally by status.
func (h *Handlers) handleListAllCards(w http.ResponseWriter, r *http.Request) {
	var f repository.CardFilter
	if s := r.URL.Query().Get("status"); s != "" {
		status := model.CardStatus(s)
		if !status.Valid() {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "unknown status"})
			return
		}
		f.Status = status
	}
	p, pageNum, size := pageParams(r)
	views, total, err := h.cards.ListAll(r.Context(), f, p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page{Items: views, Page: pageNum, Size: size, Total: total})
}

// handleGetUser returns a user by id.
func (h *Handlers) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(chi.URLParam(r, "userID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad user id"})
		return
	}
	u, err := h.users.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{ID: u.ID.String(), Username: u.Username, Roles: u.Roles})
}

// handleGetUserByUsername returns a user by username.
func (h *Handlers) handleGetUserByUsername(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.GetByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{ID: u.ID.String(), Username: u.Username, Roles: u.Roles})
}

// handleListUsers returns a page of users.
func (h *Handlers) handleListUsers(w http.ResponseWriter, r *http.Request) {
	p, pageNum, size := pageParams(r)
	users, total, err := h.users.List(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, userResponse{ID: u.ID.String(), Username: u.Username, Roles: u.Roles})
	}
	writeJSON(w, http.StatusOK, page{Items: out, Page: pageNum, Size: size, Total: total})
}

// handleUpdateUser replaces a user's role set.
func (h *Handlers) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(chi.URLParam(r, "userID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad user id"})
		return
	}
	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	if err := h.users.UpdateRoles(r.Context(), id, req.Roles); err != nil {
		writeError(w, err)
		return
	}
	u, err := h.users.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{ID: u.ID.String(), Username: u.Username, Roles: u.Roles})
}

// handleDeleteUser removes a user without cards.
func (h *Handlers) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(chi.URLParam(r, "userID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad user id"})
		return
	}
	if err := h.users.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) cardTransition(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, cardID uuid.UUID) (*model.CardView, error)) {
	cardID, err := uuid.FromString(chi.URLParam(r, "cardID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad card id"})
		return
	}
	view, err := op(r.Context(), cardID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
