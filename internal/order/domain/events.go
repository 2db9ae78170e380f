package domain

import "time"

const AggregateType = "order"

const (
	EventOrderPlaced              = "OrderPlaced"
	EventOrderPaid                = "OrderPaid"
	EventOrderStatusChanged       = "OrderStatusChanged"
	EventOrderItemStatusChanged   = "OrderItemStatusChanged"
	EventOrderRefundStatusChanged = "OrderRefundStatusChanged"
)

type PlacedItem struct {
	ProductID  string `json:"productId"`
	Quantity   int    `json:"quantity"`
	TotalPrice int64  `json:"totalPrice"`
}

type OrderPlaced struct {
	OrderID       string       `json:"orderId"`
	UserID        string       `json:"userId"`
	TotalPrice    int64        `json:"totalPrice"`
	AppliedCoupon string       `json:"appliedCoupon"`
	Items         []PlacedItem `json:"items"`
	PlacedAt      time.Time    `json:"placedAt"`
}

func NewOrderPlaced(o Order) OrderPlaced {
	items := make([]PlacedItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, PlacedItem{ProductID: it.ProductID, Quantity: it.Quantity, TotalPrice: it.TotalPrice})
	}
	return OrderPlaced{
		OrderID:       o.ID,
		UserID:        o.UserID,
		TotalPrice:    o.TotalPrice,
		AppliedCoupon: o.AppliedCoupon,
		Items:         items,
		PlacedAt:      o.CreatedAt,
	}
}

type OrderPaid struct {
	OrderID        string    `json:"orderId"`
	PaymentOrderID string    `json:"paymentOrderId"`
	TransactionID  string    `json:"transactionId"`
	TotalPrice     int64     `json:"totalPrice"`
	PaidAt         time.Time `json:"paidAt"`
}

type OrderStatusChanged struct {
	OrderID string    `json:"orderId"`
	From    Status    `json:"from"`
	To      Status    `json:"to"`
	At      time.Time `json:"at"`
}

type OrderItemStatusChanged struct {
	OrderID   string     `json:"orderId"`
	ProductID string     `json:"productId"`
	From      ItemStatus `json:"from"`
	To        ItemStatus `json:"to"`
	At        time.Time  `json:"at"`
}

type OrderRefundStatusChanged struct {
	OrderID   string       `json:"orderId"`
	ProductID string       `json:"productId"`
	From      RefundStatus `json:"from"`
	To        RefundStatus `json:"to"`
	At        time.Time    `json:"at"`
}
