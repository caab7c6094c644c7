package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// GetDiscount handles GET /api/discounts/{code}: promo code preview for the
// storefront. Unknown or inactive codes map to 422 like at order time.
func (h *Handler) GetDiscount(w http.ResponseWriter, r *http.Request) {
	d, err := h.discounts.FindByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"code":  d.Code,
		"type":  d.Type,
		"value": d.Value.InexactFloat64(),
		"label": d.Label,
	})
}
