package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/juicyshop/backend/internal/domain/order"
)

type submitItemDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type submitOrderDTO struct {
	ClientID string          `json:"client_id"`
	Items    []submitItemDTO `json:"items"`
	Total    decimal.Decimal `json:"total"`
	Bonuses  decimal.Decimal `json:"bonuses"`
	Promo    string          `json:"promo_code"`
	Name     string          `json:"name"`
	Phone    string          `json:"phone"`
	Address  string          `json:"address"`
	Payment  string          `json:"payment"`
	Comment  string          `json:"comment"`
}

type orderDTO struct {
	ID                  string       `json:"id"`
	ClientID            string       `json:"client_id"`
	Items               []order.Item `json:"items"`
	Subtotal            float64      `json:"subtotal"`
	NewCustomerDiscount float64      `json:"new_customer_discount"`
	PromoDiscount       float64      `json:"promo_discount"`
	PromoCode           string       `json:"promo_code,omitempty"`
	BonusesUsed         float64      `json:"bonuses_used"`
	Total               float64      `json:"total"`
	Status              order.Status `json:"status"`
	CreatedAt           string       `json:"created_at"`
}

func toOrderDTO(o *order.Order) orderDTO {
	return orderDTO{
		ID:                  o.ID,
		ClientID:            o.ClientID,
		Items:               o.Items,
		Subtotal:            o.Subtotal.InexactFloat64(),
		NewCustomerDiscount: o.NewCustomerDiscount.InexactFloat64(),
		PromoDiscount:       o.PromoDiscount.InexactFloat64(),
		PromoCode:           o.PromoCode,
		BonusesUsed:         o.BonusesUsed.InexactFloat64(),
		Total:               o.Total.InexactFloat64(),
		Status:              o.Status,
		CreatedAt:           o.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// SubmitOrder handles POST /api/orders: validates the submitted cart against
// live pricing and stock and creates the order in the New state.
func (h *Handler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req submitOrderDTO
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	items := make([]order.SubmitItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = order.SubmitItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	o, err := h.orderService.Submit(r.Context(), order.SubmitRequest{
		ClientID:       req.ClientID,
		Items:          items,
		DeclaredTotal:  req.Total,
		BonusesToSpend: req.Bonuses,
		PromoCode:      req.Promo,
		Delivery: order.Delivery{
			Name:    req.Name,
			Phone:   req.Phone,
			Address: req.Address,
			Payment: req.Payment,
			Comment: req.Comment,
		},
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	// The discount may have consumed the client's new-customer eligibility.
	h.hints.InvalidateNewCustomerHint(r.Context(), o.ClientID)

	writeJSON(w, http.StatusCreated, map[string]any{
		"order_id": o.ID,
		"total":    o.Total.InexactFloat64(),
	})
}

// ConfirmOrder handles POST /api/orders/{id}/confirm (operator only).
func (h *Handler) ConfirmOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.orderService.Confirm)
}

// CancelOrder handles POST /api/orders/{id}/cancel (operator only).
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.orderService.Cancel)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, orderID string) (*order.Outcome, error)) {
	outcome, err := op(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	status := "ok"
	if outcome.AlreadyDone {
		status = "already-done"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

// ListOrders handles GET /api/orders?user_id=: the client's order history,
// newest first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("user_id")
	if clientID == "" {
		writeError(w, http.StatusBadRequest, "user_id query parameter required")
		return
	}

	list, err := h.orders.ListByClient(r.Context(), clientID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	dtos := make([]orderDTO, len(list))
	for i := range list {
		dtos[i] = toOrderDTO(&list[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": dtos})
}
