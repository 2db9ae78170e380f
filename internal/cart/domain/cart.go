package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrCartNotFound    = errors.New("cart not found")
	ErrItemNotFound    = errors.New("cart item not found")
	ErrQuantityFloor   = errors.New("quantity must stay at least 1")
	ErrNoSelection     = errors.New("no buy-now selection")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// Cart is created lazily, one per user, and reused after checkout.
type Cart struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Item keeps the unit price seen at first add. The line total is always
// derived, so repeat adds never drift from quantity × unit price.
type Item struct {
	ID          int64
	CartID      string
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	AddedAt     time.Time
}

func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Summary struct {
	Items      []Item
	TotalPrice decimal.Decimal
}

func Summarize(items []Item) Summary {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.LineTotal())
	}
	if items == nil {
		items = []Item{}
	}
	return Summary{Items: items, TotalPrice: total}
}
