package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
)

type transferRequest struct {
	FromCardID  uuid.UUID       `json:"from_card_id"`
	ToCardID    uuid.UUID       `json:"to_card_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// handleListOwnCards returns a page of the caller's cards.
func (h *Handlers) handleListOwnCards(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromCtx(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
		return
	}
	p, pageNum, size := pageParams(r)
	views, total, err := h.cards.ListOwned(r.Context(), principal, p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page{Items: views, Page: pageNum, Size: size, Total: total})
}

// handleBalance returns the masked number and balance of an owned card.
func (h *Handlers) handleBalance(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromCtx(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
		return
	}
	cardID, err := uuid.FromString(chi.URLParam(r, "cardID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad card id"})
		return
	}
	balance, err := h.cards.Balance(r.Context(), principal, cardID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

// handleRequestBlock flags an owned card for blocking.
func (h *Handlers) handleRequestBlock(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromCtx(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
		return
	}
	cardID, err := uuid.FromString(chi.URLParam(r, "cardID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad card id"})
		return
	}
	view, err := h.cards.RequestBlock(r.Context(), principal, cardID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleTransfer moves funds between two of the caller's cards.
func (h *Handlers) handleTransfer(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromCtx(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
		return
	}
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	if req.FromCardID == uuid.Nil || req.ToCardID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "from_card_id and to_card_id are required"})
		return
	}
	if !req.Amount.IsPositive() {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "amount must be greater than zero"})
		return
	}

	record, err := h.cards.Transfer(r.Context(), principal, req.FromCardID, req.ToCardID, req.Amount, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}
