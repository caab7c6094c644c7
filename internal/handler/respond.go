package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/juicyshop/backend/internal/domain/catalog"
	"github.com/juicyshop/backend/internal/domain/client"
	"github.com/juicyshop/backend/internal/domain/discount"
	"github.com/juicyshop/backend/internal/domain/order"
	"github.com/juicyshop/backend/internal/domain/wallet"
)

// apiError is the JSON error body shared by all endpoints.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiError{Code: status, Message: msg})
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

// respondError maps domain errors onto HTTP statuses: malformed input 400,
// missing records 404, state conflicts 409, rejected promo codes 422.
// Anything unrecognized is logged and reported as 500.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, order.ErrMissingClientID):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, client.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, wallet.ErrInsufficientBalance):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, discount.ErrInvalidCode):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	var (
		iqErr  *order.InvalidQuantityError
		stErr  *catalog.StockError
		pmErr  *order.PriceMismatchError
		balErr *wallet.BalanceError
		trErr  *order.TransitionError
	)
	switch {
	case errors.As(err, &iqErr):
		writeError(w, http.StatusBadRequest, iqErr.Error())
	case errors.As(err, &stErr):
		writeError(w, http.StatusConflict, stErr.Error())
	case errors.As(err, &pmErr):
		writeError(w, http.StatusConflict, pmErr.Error())
	case errors.As(err, &balErr):
		writeError(w, http.StatusConflict, balErr.Error())
	case errors.As(err, &trErr):
		writeError(w, http.StatusConflict, trErr.Error())
	default:
		zctx.From(r.Context()).Error("Unhandled request error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
