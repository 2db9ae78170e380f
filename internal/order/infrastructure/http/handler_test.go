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

	"github.com/dmehra2102/storefront/internal/order/application"
	"github.com/dmehra2102/storefront/internal/order/domain"
	"github.com/dmehra2102/storefront/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubOrders serves Get from a fixed set; every other method panics via the
// nil embedded interface.
type stubOrders struct {
	application.OrderRepository
	orders map[string]domain.Order
}

func (s stubOrders) Get(_ context.Context, id string) (domain.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}

type envelope struct {
	Status  bool            `json:"status"`
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestHandler(t *testing.T) (http.Handler, *auth.Verifier) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	verifier := auth.NewVerifier(log, "test-secret")
	repo := stubOrders{orders: map[string]domain.Order{
		"2601011200-ABCDEF12": {
			ID:            "2601011200-ABCDEF12",
			UserID:        "u-1",
			Status:        domain.StatusPending,
			PaymentStatus: domain.PaymentUnpaid,
			TotalPrice:    250,
			Items:         []domain.Item{{ProductID: "p-1", Quantity: 2, TotalPrice: 250}},
		},
	}}
	svc := application.NewService(log, application.Deps{Orders: repo}, 5)
	return NewHandler(log, svc, verifier).Routes(), verifier
}

func do(t *testing.T, h http.Handler, method, path, body, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func sign(t *testing.T, v *auth.Verifier, u auth.User) string {
	t.Helper()
	token, err := v.Sign(u)
	require.NoError(t, err)
	return token
}

func TestCreateRequiresToken(t *testing.T) {
	h, _ := newTestHandler(t)
	rec, env := do(t, h, http.MethodPost, "/create", `{}`, "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, env.Success)
	assert.False(t, *env.Success)
}

func TestCreateValidatesAddress(t *testing.T) {
	h, v := newTestHandler(t)
	token := sign(t, v, auth.User{ID: "u-1"})

	cases := map[string]struct {
		body string
		msg  string
	}{
		"missing address": {`{}`, `"address" is required`},
		"short name": {
			`{"address":{"fullName":"A","street":"1 Main St","city":"Pune","postalCode":"411001","country":"IN","phone":"9876543210"}}`,
			`"fullName" length must be at least 2 characters long`,
		},
		"bad phone": {
			`{"address":{"fullName":"Asha K","street":"1 Main St","city":"Pune","postalCode":"411001","country":"IN","phone":"call me"}}`,
			`"phone" must be a valid phone number`,
		},
		"paid on create": {
			`{"address":{"fullName":"Asha K","street":"1 Main St","city":"Pune","postalCode":"411001","country":"IN","phone":"9876543210"},"paymentStatus":"paid"}`,
			`"paymentStatus" must be one of [unpaid]`,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec, env := do(t, h, http.MethodPost, "/create", tc.body, token)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.msg, env.Message)
		})
	}
}

func TestVerifyNeedsNoTokenButValidatesBody(t *testing.T) {
	h, _ := newTestHandler(t)
	rec, env := do(t, h, http.MethodPut, "/verify", `{"razorpayOrderId":"order_1","razorpayPaymentId":"pay_1"}`, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, `"razorpaySignature" is required`, env.Message)
}

func TestAdminRoutesRejectCustomers(t *testing.T) {
	h, v := newTestHandler(t)
	token := sign(t, v, auth.User{ID: "u-1"})

	for _, r := range []struct{ method, path, body string }{
		{http.MethodGet, "/", ""},
		{http.MethodGet, "/analytics", ""},
		{http.MethodPost, "/orderitems", `{"status":"placed"}`},
		{http.MethodPut, "/orderitem", `{"orderId":"x","productId":"p","status":"shipped"}`},
		{http.MethodPut, "/refund", `{"orderId":"x","productId":"p","refundStatus":"initiated"}`},
		{http.MethodPut, "/update/x", `{"status":"shipped"}`},
	} {
		rec, _ := do(t, h, r.method, r.path, r.body, token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, r.path)
	}
}

func TestGetOrderVisibility(t *testing.T) {
	h, v := newTestHandler(t)

	rec, env := do(t, h, http.MethodGet, "/2601011200-ABCDEF12", "", sign(t, v, auth.User{ID: "u-1"}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Status)

	var got orderResp
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "2601011200-ABCDEF12", got.OrderID)
	assert.Equal(t, int64(250), got.TotalPrice)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "p-1", got.Items[0].ProductID)

	rec, _ = do(t, h, http.MethodGet, "/2601011200-ABCDEF12", "", sign(t, v, auth.User{ID: "u-2"}))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/2601011200-ABCDEF12", "", sign(t, v, auth.User{ID: "ops", Role: auth.RoleAdmin}))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/missing", "", sign(t, v, auth.User{ID: "u-1"}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
