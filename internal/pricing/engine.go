// Package pricing turns checkout lines and an optional coupon into a quote.
// It reads the catalog and coupons but writes nothing; rounding to whole
// currency units happens only when a quote is persisted.
package pricing

import (
	"context"

	catalog "github.com/dmehra2102/storefront/internal/catalog/domain"
	coupon "github.com/dmehra2102/storefront/internal/coupon/domain"
	"github.com/dmehra2102/storefront/pkg/apperr"
	"github.com/shopspring/decimal"
)

type Line struct {
	ProductID string
	Quantity  int
}

type ProductCatalog interface {
	Products(ctx context.Context, ids []string) (map[string]catalog.Product, error)
}

type CouponResolver interface {
	Resolve(ctx context.Context, code string) (coupon.Coupon, error)
}

type LineQuote struct {
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	Raw         decimal.Decimal
	Discount    decimal.Decimal
}

func (l LineQuote) Final() decimal.Decimal { return l.Raw.Sub(l.Discount) }

type Quote struct {
	Lines    []LineQuote
	Raw      decimal.Decimal
	Discount decimal.Decimal
	Final    decimal.Decimal
	// Coupon is the normalized code, or coupon.NoCoupon.
	Coupon  string
	Percent int
}

// Amounts are whole currency units as stored on orders and order items.
// Total is always Raw - Discount.
type Amounts struct {
	Unit     int64
	Raw      int64
	Discount int64
	Total    int64
}

func floor(d decimal.Decimal) int64 { return d.Floor().IntPart() }

func (q Quote) Amounts() Amounts {
	raw, discount := floor(q.Raw), floor(q.Discount)
	if discount > raw {
		discount = raw
	}
	return Amounts{Raw: raw, Discount: discount, Total: raw - discount}
}

func (l LineQuote) Amounts(percent int) Amounts {
	raw := floor(l.Raw)
	discount := floor(decimal.NewFromInt(raw).Mul(decimal.NewFromInt(int64(percent))).Div(decimal.NewFromInt(100)))
	return Amounts{Unit: floor(l.UnitPrice), Raw: raw, Discount: discount, Total: raw - discount}
}

type Engine struct {
	products ProductCatalog
	coupons  CouponResolver
}

func NewEngine(products ProductCatalog, coupons CouponResolver) *Engine {
	return &Engine{products: products, coupons: coupons}
}

// Compute prices lines at the catalog's current prices. Lines whose product
// no longer resolves are left out. An unknown coupon code fails NotFound.
func (e *Engine) Compute(ctx context.Context, lines []Line, couponCode string) (Quote, error) {
	q := Quote{Coupon: coupon.NoCoupon, Raw: decimal.Zero, Discount: decimal.Zero}

	var applied *coupon.Coupon
	if code := coupon.NormalizeCode(couponCode); code != "" {
		c, err := e.coupons.Resolve(ctx, code)
		if err != nil {
			return Quote{}, err
		}
		applied = &c
		q.Coupon = c.Code
		q.Percent = c.DiscountPercent
	}

	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	products, err := e.products.Products(ctx, ids)
	if err != nil {
		return Quote{}, apperr.Internal("load products", err)
	}

	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok || l.Quantity < 1 {
			continue
		}
		lq := LineQuote{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    l.Quantity,
			UnitPrice:   p.Price,
			Raw:         p.Price.Mul(decimal.NewFromInt(int64(l.Quantity))),
			Discount:    decimal.Zero,
		}
		if applied != nil {
			lq.Discount = applied.Discount(lq.Raw)
		}
		q.Lines = append(q.Lines, lq)
		q.Raw = q.Raw.Add(lq.Raw)
	}
	if len(q.Lines) == 0 {
		return Quote{}, apperr.Validation("no item found")
	}

	if applied != nil {
		q.Discount = applied.Discount(q.Raw)
	}
	q.Final = q.Raw.Sub(q.Discount)
	return q, nil
}
