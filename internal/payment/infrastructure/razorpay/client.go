// Package razorpay talks to the Razorpay Orders API and checks the
// signatures Razorpay attaches to checkout callbacks.
package razorpay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dmehra2102/storefront/internal/payment/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Config struct {
	KeyID     string
	KeySecret string
	BaseURL   string
	Currency  string
}

type Client struct {
	keyID     string
	keySecret string
	baseURL   string
	currency  string
	http      *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.KeyID) == "" || strings.TrimSpace(cfg.KeySecret) == "" {
		return nil, errors.New("razorpay: key id and secret are required")
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "INR"
	}
	return &Client{
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		currency:  currency,
		http:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}, nil
}

type createOrderReq struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes"`
}

type errorResp struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateIntent creates a Razorpay order for the target. The receipt is the
// local order id. Client errors wrap domain.ErrGatewayRejected.
func (c *Client) CreateIntent(ctx context.Context, t domain.IntentTarget) (domain.Intent, error) {
	body, err := json.Marshal(createOrderReq{
		Amount:   domain.MinorUnits(t.Amount),
		Currency: c.currency,
		Receipt:  t.OrderID,
		Notes: map[string]string{
			"user_info": t.Note,
			"db_id":     t.OrderID,
		},
	})
	if err != nil {
		return domain.Intent{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return domain.Intent{}, err
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Intent{}, fmt.Errorf("razorpay: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.Intent{}, fmt.Errorf("razorpay: read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 500, resp.StatusCode == http.StatusTooManyRequests:
		return domain.Intent{}, fmt.Errorf("razorpay: status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		var e errorResp
		_ = json.Unmarshal(raw, &e)
		return domain.Intent{}, fmt.Errorf("%w: status %d %s %s", domain.ErrGatewayRejected, resp.StatusCode, e.Error.Code, e.Error.Description)
	}

	var intent domain.Intent
	if err := json.Unmarshal(raw, &intent); err != nil {
		return domain.Intent{}, fmt.Errorf("razorpay: decode order: %w", err)
	}
	if intent.GatewayOrderID == "" {
		return domain.Intent{}, errors.New("razorpay: order id missing in response")
	}
	if intent.OrderID == "" {
		intent.OrderID = t.OrderID
	}
	return intent, nil
}

// Sign is the hex HMAC-SHA256 of "gatewayOrderID|paymentID" under the key
// secret.
func (c *Client) Sign(gatewayOrderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(c.keySecret))
	mac.Write([]byte(gatewayOrderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) VerifySignature(gatewayOrderID, paymentID, signature string) bool {
	return hmac.Equal([]byte(c.Sign(gatewayOrderID, paymentID)), []byte(signature))
}
