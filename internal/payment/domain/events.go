package domain

const (
	AggregateType             = "payment"
	EventPaymentIntentCreated = "PaymentIntentCreated"
)

type PaymentIntentCreated struct {
	OrderID        string `json:"orderId"`
	GatewayOrderID string `json:"gatewayOrderId"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
}
