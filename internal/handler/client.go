package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type registerVisitDTO struct {
	ClientID string `json:"client_id"`
}

// RegisterVisit handles POST /api/visits: idempotent client bootstrap. New
// clients get a welcome message.
func (h *Handler) RegisterVisit(w http.ResponseWriter, r *http.Request) {
	var req registerVisitDTO
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.ClientID == "" {
		writeError(w, http.StatusBadRequest, "client_id required")
		return
	}

	isNew, err := h.clientService.RegisterVisit(r.Context(), req.ClientID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"is_new": isNew})
}

// GetClient handles GET /api/clients/{id}: the client profile with balance
// and loyalty counters.
func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	c, err := h.clients.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":               c.ID,
		"name":             c.Name,
		"phone":            c.Phone,
		"balance":          c.Balance.InexactFloat64(),
		"lifetime_earned":  c.LifetimeEarned.InexactFloat64(),
		"completed_orders": c.CompletedOrders,
		"referrer_id":      c.ReferrerID,
	})
}

// BonusHistory handles GET /api/clients/{id}/bonus-history: the transaction
// log, newest first.
func (h *Handler) BonusHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.ledger.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	type txDTO struct {
		Amount    float64 `json:"amount"`
		Reason    string  `json:"reason"`
		CreatedAt string  `json:"created_at"`
	}
	dtos := make([]txDTO, len(history))
	for i, t := range history {
		dtos[i] = txDTO{
			Amount:    t.Amount.InexactFloat64(),
			Reason:    t.Reason,
			CreatedAt: t.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": dtos})
}

// NewCustomerHint handles GET /api/clients/{id}/new-customer-hint. The answer
// is a UI hint served from Redis when possible; it never feeds discount
// enforcement, which always recomputes eligibility from order history.
func (h *Handler) NewCustomerHint(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "id")

	if eligible, ok := h.hints.GetNewCustomerHint(r.Context(), clientID); ok {
		writeJSON(w, http.StatusOK, map[string]bool{"eligible": eligible})
		return
	}

	eligible, err := h.engine.NewCustomerEligible(r.Context(), clientID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.hints.SetNewCustomerHint(r.Context(), clientID, eligible)
	writeJSON(w, http.StatusOK, map[string]bool{"eligible": eligible})
}
