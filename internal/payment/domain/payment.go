package domain

import "errors"

var (
	ErrIntentInProgress = errors.New("payment intent is being created")
	ErrOrderNotFound    = errors.New("order not found")
	ErrGatewayRejected  = errors.New("payment gateway rejected request")
)

// IntentTarget is the order a payment intent is requested for. Amount is in
// whole currency units.
type IntentTarget struct {
	OrderID string
	UserID  string
	Amount  int64
	Note    string
}

// Intent is the gateway-side payment order correlated to a local order.
// Amounts are in minor units as the gateway reports them.
type Intent struct {
	GatewayOrderID string `json:"id"`
	OrderID        string `json:"receipt"`
	Amount         int64  `json:"amount"`
	AmountPaid     int64  `json:"amount_paid"`
	AmountDue      int64  `json:"amount_due"`
	Currency       string `json:"currency"`
	Status         string `json:"status"`
}

// MinorUnits converts whole currency units to the gateway's smallest unit.
func MinorUnits(amount int64) int64 { return amount * 100 }
