package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dmehra2102/storefront/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{KeyID: "rzp_test_key", KeySecret: "s3cret", BaseURL: srv.URL + "/"})
	require.NoError(t, err)
	return c
}

func TestCreateIntent(t *testing.T) {
	var got createOrderReq
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_test_key", user)
		assert.Equal(t, "s3cret", pass)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"order_Rz1","entity":"order","amount":90000,"amount_paid":0,"amount_due":90000,"currency":"INR","receipt":"2510171230-9F3A1C2B","status":"created"}`))
	})

	intent, err := c.CreateIntent(context.Background(), domain.IntentTarget{
		OrderID: "2510171230-9F3A1C2B",
		UserID:  "u1",
		Amount:  900,
		Note:    "Order 2510171230-9F3A1C2B",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(90000), got.Amount)
	assert.Equal(t, "INR", got.Currency)
	assert.Equal(t, "2510171230-9F3A1C2B", got.Receipt)
	assert.Equal(t, "Order 2510171230-9F3A1C2B", got.Notes["user_info"])
	assert.Equal(t, "2510171230-9F3A1C2B", got.Notes["db_id"])

	assert.Equal(t, "order_Rz1", intent.GatewayOrderID)
	assert.Equal(t, "2510171230-9F3A1C2B", intent.OrderID)
	assert.Equal(t, int64(0), intent.AmountPaid)
	assert.Equal(t, int64(90000), intent.AmountDue)
	assert.Equal(t, "created", intent.Status)
}

func TestCreateIntentClientErrorIsPermanent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"Order amount less than minimum amount allowed"}}`))
	})

	_, err := c.CreateIntent(context.Background(), domain.IntentTarget{OrderID: "o1", Amount: 0})
	require.ErrorIs(t, err, domain.ErrGatewayRejected)
	assert.Contains(t, err.Error(), "minimum amount")
}

func TestCreateIntentServerErrorIsRetryable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.CreateIntent(context.Background(), domain.IntentTarget{OrderID: "o1", Amount: 10})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrGatewayRejected)
}

func TestVerifySignature(t *testing.T) {
	c, err := NewClient(Config{KeyID: "k", KeySecret: "s3cret"})
	require.NoError(t, err)

	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write([]byte("order_Rz1|pay_29QQoUBi66xm2f"))
	sig := hex.EncodeToString(mac.Sum(nil))

	assert.True(t, c.VerifySignature("order_Rz1", "pay_29QQoUBi66xm2f", sig))
	assert.False(t, c.VerifySignature("order_Rz1", "pay_other", sig))
	assert.False(t, c.VerifySignature("order_Rz1", "pay_29QQoUBi66xm2f", ""))
}

func TestNewClientRequiresKeys(t *testing.T) {
	_, err := NewClient(Config{KeyID: "k"})
	assert.Error(t, err)
}
