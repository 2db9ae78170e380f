package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrItemNotFound      = errors.New("order item not found")
	ErrNoChanges         = errors.New("no changes made")
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrAlreadyPaid       = errors.New("order already paid")
	ErrCartChanged       = errors.New("cart changed during checkout")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusReturned  Status = "returned"
	StatusCancelled Status = "cancelled"
)

var orderTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusShipped, StatusCancelled},
	StatusShipped:   {StatusDelivered, StatusCancelled},
	StatusDelivered: {StatusReturned},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusReturned, StatusCancelled:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
	PaymentFailed PaymentStatus = "failed"
)

type RefundStatus string

const (
	RefundNone      RefundStatus = "none"
	RefundInitiated RefundStatus = "initiated"
	RefundCompleted RefundStatus = "completed"
	RefundFailed    RefundStatus = "failed"
)

var refundTransitions = map[RefundStatus][]RefundStatus{
	RefundNone:      {RefundInitiated},
	RefundInitiated: {RefundCompleted, RefundFailed},
	RefundFailed:    {RefundInitiated},
}

func (s RefundStatus) Valid() bool {
	switch s {
	case RefundNone, RefundInitiated, RefundCompleted, RefundFailed:
		return true
	}
	return false
}

type Address struct {
	FullName   string `json:"fullName"`
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone"`
}

// Order is the header of a checkout. Prices are whole currency units and
// TotalPrice is always RawPrice - Discount.
type Order struct {
	ID                string
	UserID            string
	Address           Address
	Status            Status
	PaymentStatus     PaymentStatus
	RefundStatus      RefundStatus
	RawPrice          int64
	Discount          int64
	TotalPrice        int64
	AppliedCoupon     string
	PaymentOrderID    string
	TransactionID     string
	SignatureFailures int
	Items             []Item
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewOrderID renders a sortable, human-readable id such as 2510171230-9F3A1C2B.
func NewOrderID(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return now.UTC().Format("0601021504") + "-" + suffix
}

type NewOrderParams struct {
	ID            string
	UserID        string
	Address       Address
	Status        Status
	RawPrice      int64
	Discount      int64
	AppliedCoupon string
	Items         []Item
	Now           time.Time
}

func NewOrder(p NewOrderParams) (Order, error) {
	status := p.Status
	if status == "" {
		status = StatusPending
	}
	if status != StatusPending && status != StatusConfirmed {
		return Order{}, ErrInvalidStatus
	}
	if p.Discount < 0 || p.Discount > p.RawPrice {
		return Order{}, errors.New("discount exceeds price")
	}

	items := make([]Item, len(p.Items))
	for i, it := range p.Items {
		it.OrderID = p.ID
		it.AppliedCoupon = p.AppliedCoupon
		it.Status = ItemPlaced
		it.RefundStatus = RefundNone
		it.CreatedAt, it.UpdatedAt = p.Now, p.Now
		items[i] = it
	}

	return Order{
		ID:            p.ID,
		UserID:        p.UserID,
		Address:       p.Address,
		Status:        status,
		PaymentStatus: PaymentUnpaid,
		RefundStatus:  RefundNone,
		RawPrice:      p.RawPrice,
		Discount:      p.Discount,
		TotalPrice:    p.RawPrice - p.Discount,
		AppliedCoupon: p.AppliedCoupon,
		Items:         items,
		CreatedAt:     p.Now,
		UpdatedAt:     p.Now,
	}, nil
}

func (o *Order) SetStatus(next Status) error {
	if !next.Valid() {
		return ErrInvalidStatus
	}
	if o.Status == next {
		return ErrNoChanges
	}
	if !allowed(orderTransitions[o.Status], next) {
		return ErrInvalidTransition
	}
	o.Status = next
	return nil
}

// MarkPaid applies a verified payment. A failed order is still accepted
// because the gateway has captured the money.
// MarkPaid records a captured payment. Only a pending order advances to
// confirmed; later or terminal statuses are kept, so a cancelled order that
// gets paid stays cancelled and needs a refund.
func (o *Order) MarkPaid(transactionID string) error {
	if o.PaymentStatus == PaymentPaid {
		return ErrAlreadyPaid
	}
	o.PaymentStatus = PaymentPaid
	o.TransactionID = transactionID
	if o.Status == StatusPending {
		o.Status = StatusConfirmed
	}
	return nil
}

// NeedsRefund reports a paid order that will never be fulfilled.
func (o *Order) NeedsRefund() bool {
	return o.PaymentStatus == PaymentPaid && o.Status == StatusCancelled
}

// RecordSignatureFailure counts a rejected callback and fails the payment
// once maxFailures is reached.
func (o *Order) RecordSignatureFailure(maxFailures int) {
	o.SignatureFailures++
	if o.PaymentStatus == PaymentUnpaid && o.SignatureFailures >= maxFailures {
		o.PaymentStatus = PaymentFailed
	}
}

func allowed[T comparable](next []T, s T) bool {
	for _, n := range next {
		if n == s {
			return true
		}
	}
	return false
}
