package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/juicyshop/backend/internal/domain/referral"
)

type attachReferralDTO struct {
	ClientID   string `json:"client_id"`
	ReferrerID string `json:"referrer_id"`
}

// AttachReferral handles POST /api/referrals: links a client to a referrer
// following last-click-before-first-purchase attribution.
func (h *Handler) AttachReferral(w http.ResponseWriter, r *http.Request) {
	var req attachReferralDTO
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	attached, err := h.graph.Attach(r.Context(), req.ClientID, req.ReferrerID)
	if err != nil {
		if errors.Is(err, referral.ErrSelfReferral) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"attached": attached})
}

// ReferralStats handles GET /api/clients/{id}/referral-stats.
func (h *Handler) ReferralStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.graph.Stats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"total":  stats.Total,
		"active": stats.Active,
		"clicks": stats.Clicks,
	})
}
