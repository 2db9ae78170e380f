package domain

import "time"

type ItemStatus string

const (
	ItemPlaced    ItemStatus = "placed"
	ItemShipped   ItemStatus = "shipped"
	ItemDelivered ItemStatus = "delivered"
	ItemReturned  ItemStatus = "returned"
	ItemCancelled ItemStatus = "cancelled"
)

var itemTransitions = map[ItemStatus][]ItemStatus{
	ItemPlaced:    {ItemShipped, ItemCancelled},
	ItemShipped:   {ItemDelivered, ItemReturned, ItemCancelled},
	ItemDelivered: {ItemReturned},
}

func (s ItemStatus) Valid() bool {
	switch s {
	case ItemPlaced, ItemShipped, ItemDelivered, ItemReturned, ItemCancelled:
		return true
	}
	return false
}

// Item is one priced line of an order. Its fulfilment and refund
// lifecycles move independently of the order header.
type Item struct {
	ID            int64
	OrderID       string
	ProductID     string
	Quantity      int
	UnitPrice     int64
	RawPrice      int64
	Discount      int64
	TotalPrice    int64
	AppliedCoupon string
	Status        ItemStatus
	RefundStatus  RefundStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (it *Item) SetStatus(next ItemStatus) error {
	if !next.Valid() {
		return ErrInvalidStatus
	}
	if it.Status == next {
		return ErrNoChanges
	}
	if !allowed(itemTransitions[it.Status], next) {
		return ErrInvalidTransition
	}
	it.Status = next
	return nil
}

func (it *Item) SetRefundStatus(next RefundStatus) error {
	if !next.Valid() {
		return ErrInvalidStatus
	}
	if it.RefundStatus == next {
		return ErrNoChanges
	}
	if !allowed(refundTransitions[it.RefundStatus], next) {
		return ErrInvalidTransition
	}
	it.RefundStatus = next
	return nil
}

type Analytics struct {
	TotalOrders int64
	ByStatus    map[Status]int64
	// Revenue sums TotalPrice over paid orders.
	Revenue int64
}
