package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dmehra2102/storefront/internal/cart/application"
	"github.com/dmehra2102/storefront/internal/cart/domain"
	catalog "github.com/dmehra2102/storefront/internal/catalog/domain"
	"github.com/dmehra2102/storefront/pkg/auth"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCarts struct {
	application.CartRepository
	qty map[string]int
}

func (s *stubCarts) Ensure(_ context.Context, userID string) (domain.Cart, error) {
	return domain.Cart{ID: "cart-" + userID, UserID: userID}, nil
}

func (s *stubCarts) AddItem(_ context.Context, cartID, productID string, quantity int, unitPrice decimal.Decimal) (domain.Item, error) {
	s.qty[productID] += quantity
	return domain.Item{CartID: cartID, ProductID: productID, Quantity: s.qty[productID], UnitPrice: unitPrice}, nil
}

type stubCatalog map[string]catalog.Product

func (c stubCatalog) Product(_ context.Context, id string) (catalog.Product, error) {
	p, ok := c[id]
	if !ok {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return p, nil
}

func newTestHandler(t *testing.T) (http.Handler, string) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	verifier := auth.NewVerifier(log, "test-secret")
	products := stubCatalog{"P1": {ID: "P1", Name: "Mug", Price: decimal.NewFromInt(20)}}
	carts := application.NewService(log, &stubCarts{qty: map[string]int{}}, products)

	token, err := verifier.Sign(auth.User{ID: "u-1"})
	require.NoError(t, err)
	return NewHandler(log, carts, nil, verifier).Routes(), token
}

func post(h http.Handler, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAddItemTwiceDerivesLineTotal(t *testing.T) {
	h, token := newTestHandler(t)

	require.Equal(t, http.StatusOK, post(h, "/add", `{"productId":"P1","quantity":1}`, token).Code)
	rec := post(h, "/add", `{"productId":"P1","quantity":1}`, token)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status bool     `json:"status"`
		Data   itemResp `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Status)
	assert.Equal(t, 2, body.Data.Quantity)
	assert.Equal(t, 20.0, body.Data.UnitPrice)
	assert.Equal(t, 40.0, body.Data.LineTotal)
	assert.Equal(t, "Mug", body.Data.ProductName)
}

func TestAddItemRejects(t *testing.T) {
	h, token := newTestHandler(t)

	cases := map[string]struct {
		body   string
		token  string
		status int
		msg    string
	}{
		"no token":        {`{"productId":"P1","quantity":1}`, "", http.StatusUnauthorized, "Authorization token missing or malformed"},
		"missing product": {`{"quantity":1}`, token, http.StatusBadRequest, `"productId" is required`},
		"negative":        {`{"productId":"P1","quantity":-2}`, token, http.StatusBadRequest, `"quantity" must be greater than or equal to 1`},
		"unknown product": {`{"productId":"P9","quantity":1}`, token, http.StatusNotFound, "Product not found"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := post(h, "/add", tc.body, tc.token)
			assert.Equal(t, tc.status, rec.Code)

			var body struct {
				Success bool   `json:"success"`
				Message string `json:"message"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Equal(t, tc.msg, body.Message)
		})
	}
}
