package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juicyshop/backend/internal/domain/catalog"
)

type mockCatalogRepo struct {
	products []catalog.Product
}

func (m *mockCatalogRepo) List(_ context.Context) ([]catalog.Product, error) {
	return m.products, nil
}

func (m *mockCatalogRepo) GetByIDs(_ context.Context, _ []string) ([]catalog.Product, error) {
	return nil, nil
}

func (m *mockCatalogRepo) DecrementStock(_ context.Context, _ []catalog.Line) error { return nil }

func (m *mockCatalogRepo) RestoreStock(_ context.Context, _ []catalog.Line) error { return nil }

func TestRoutes_ListProducts(t *testing.T) {
	products := &mockCatalogRepo{products: []catalog.Product{
		{ID: "fresh-orange-05", Name: "Fresh Orange 0.5L", Price: decimal.NewFromInt(350), Stock: 40},
	}}
	h := NewHandler(Config{}, products, nil, nil, nil, nil, nil, nil, nil, nil,
		newSecurityWithKey(t, "k"))

	r := chi.NewRouter()
	h.Routes(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/products", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Products []productDTO `json:"products"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Products, 1)
	assert.Equal(t, "fresh-orange-05", body.Products[0].ID)
	assert.InDelta(t, 350, body.Products[0].Price, 0.001)
}

func TestRoutes_OperatorEndpointsGuarded(t *testing.T) {
	h := NewHandler(Config{}, &mockCatalogRepo{}, nil, nil, nil, nil, nil, nil, nil, nil,
		newSecurityWithKey(t, "k"))

	r := chi.NewRouter()
	h.Routes(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/orders/o1/confirm", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
