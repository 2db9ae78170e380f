package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrCouponNotFound = errors.New("coupon not found")
	ErrCouponExists   = errors.New("coupon already exists")
	ErrInvalidPercent = errors.New("discount percent must be between 1 and 100")
	ErrEmptyCode      = errors.New("coupon code is required")
)

// NoCoupon is stored as the applied coupon when checkout used none.
const NoCoupon = "no coupon applied"

type Coupon struct {
	ID              string    `json:"id"`
	Code            string    `json:"coupon"`
	DiscountPercent int       `json:"discount"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func New(id, code string, percent int, now time.Time) (Coupon, error) {
	c := Coupon{ID: id, Code: NormalizeCode(code), DiscountPercent: percent, CreatedAt: now, UpdatedAt: now}
	return c, c.Validate()
}

func (c Coupon) Validate() error {
	if c.Code == "" {
		return ErrEmptyCode
	}
	if c.DiscountPercent < 1 || c.DiscountPercent > 100 {
		return ErrInvalidPercent
	}
	return nil
}

// Discount is amount × percent / 100, unrounded.
func (c Coupon) Discount(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(int64(c.DiscountPercent))).Div(decimal.NewFromInt(100))
}
