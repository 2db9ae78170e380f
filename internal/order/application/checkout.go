package application

import (
	"context"
	"errors"
	"fmt"

	cart "github.com/dmehra2102/storefront/internal/cart/domain"
	"github.com/dmehra2102/storefront/internal/order/domain"
	payment "github.com/dmehra2102/storefront/internal/payment/domain"
	"github.com/dmehra2102/storefront/internal/pricing"
	"github.com/dmehra2102/storefront/pkg/apperr"
	"github.com/dmehra2102/storefront/pkg/outbox"
)

type CreateOrderInput struct {
	UserID  string
	Address domain.Address
	Coupon  string
	BuyNow  bool
	// Status and PaymentStatus are optional caller overrides.
	Status        domain.Status
	PaymentStatus domain.PaymentStatus
}

type CreateOrderResult struct {
	Order   domain.Order
	Payment payment.Intent
}

// checkoutSource is what a checkout consumes: cart lines or the buy-now
// selection.
type checkoutSource struct {
	lines     []pricing.Line
	consumed  *ConsumedCart
	selection *cart.BuyNowSelection
}

// CreateOrder turns the user's cart or buy-now selection into an order.
// The order, its items, the cart cleanup and the OrderPlaced event commit
// together; the payment intent is requested afterwards. When the gateway
// fails the order stays pending and unpaid for the repair worker.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (CreateOrderResult, error) {
	if in.PaymentStatus != "" && in.PaymentStatus != domain.PaymentUnpaid {
		return CreateOrderResult{}, apperr.Validation(`"paymentStatus" must be one of [unpaid]`)
	}
	if in.Status != "" && in.Status != domain.StatusPending && in.Status != domain.StatusConfirmed {
		return CreateOrderResult{}, apperr.Validation(`"status" must be one of [pending confirmed]`)
	}

	src, err := s.source(ctx, in)
	if err != nil {
		return CreateOrderResult{}, err
	}

	quote, err := s.pricer.Compute(ctx, src.lines, in.Coupon)
	if err != nil {
		return CreateOrderResult{}, err
	}

	now := s.now()
	amounts := quote.Amounts()
	items := make([]domain.Item, 0, len(quote.Lines))
	for _, l := range quote.Lines {
		a := l.Amounts(quote.Percent)
		items = append(items, domain.Item{
			ProductID:  l.ProductID,
			Quantity:   l.Quantity,
			UnitPrice:  a.Unit,
			RawPrice:   a.Raw,
			Discount:   a.Discount,
			TotalPrice: a.Total,
		})
	}

	o, err := domain.NewOrder(domain.NewOrderParams{
		ID:            domain.NewOrderID(now),
		UserID:        in.UserID,
		Address:       in.Address,
		Status:        in.Status,
		RawPrice:      amounts.Raw,
		Discount:      amounts.Discount,
		AppliedCoupon: quote.Coupon,
		Items:         items,
		Now:           now,
	})
	if err != nil {
		return CreateOrderResult{}, translate(err)
	}

	msg, err := outbox.NewMessage(ctx, domain.AggregateType, o.ID, domain.EventOrderPlaced, domain.NewOrderPlaced(o))
	if err != nil {
		return CreateOrderResult{}, apperr.Internal("encode order event", err)
	}
	if src.consumed != nil {
		src.consumed.Lines = make([]ConsumedLine, 0, len(o.Items))
		for _, it := range o.Items {
			src.consumed.Lines = append(src.consumed.Lines, ConsumedLine{ProductID: it.ProductID, Quantity: it.Quantity})
		}
	}
	if err := s.repo.Place(ctx, o, src.consumed, msg); err != nil {
		return CreateOrderResult{}, translate(err)
	}
	s.log.InfoContext(ctx, "order placed", "order_id", o.ID, "user_id", o.UserID, "total", o.TotalPrice, "buy_now", in.BuyNow)

	if src.selection != nil {
		cleared, err := s.buyNow.ClearIfVersion(ctx, in.UserID, src.selection.Version)
		if err != nil {
			s.log.WarnContext(ctx, "clear buy-now selection", "user_id", in.UserID, "err", err)
		} else if !cleared {
			s.log.InfoContext(ctx, "buy-now selection replaced during checkout", "user_id", in.UserID)
		}
	}

	intent, err := s.payments.EnsureIntent(ctx, payment.IntentTarget{
		OrderID: o.ID,
		UserID:  o.UserID,
		Amount:  o.TotalPrice,
		Note:    "Order " + o.ID,
	})
	if err != nil {
		s.log.ErrorContext(ctx, "payment intent failed", "order_id", o.ID, "err", err)
		return CreateOrderResult{}, apperr.Upstream(fmt.Sprintf("payment gateway unavailable, order %s is pending payment", o.ID), err)
	}
	o.PaymentOrderID = intent.GatewayOrderID

	return CreateOrderResult{Order: o, Payment: intent}, nil
}

func (s *Service) source(ctx context.Context, in CreateOrderInput) (checkoutSource, error) {
	if in.BuyNow {
		sel, err := s.buyNow.Get(ctx, in.UserID)
		if errors.Is(err, cart.ErrNoSelection) || (err == nil && !sel.Complete()) {
			return checkoutSource{}, apperr.Validation("no item found")
		}
		if err != nil {
			return checkoutSource{}, apperr.Internal("read buy-now selection", err)
		}
		return checkoutSource{
			lines:     []pricing.Line{{ProductID: sel.ProductID, Quantity: sel.Quantity}},
			selection: &sel,
		}, nil
	}

	c, err := s.carts.Find(ctx, in.UserID)
	if err != nil {
		return checkoutSource{}, translate(err)
	}
	items, err := s.carts.Items(ctx, c.ID)
	if err != nil {
		return checkoutSource{}, apperr.Internal("read cart items", err)
	}
	if len(items) == 0 {
		return checkoutSource{}, apperr.Validation("Cart is empty")
	}
	lines := make([]pricing.Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, pricing.Line{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return checkoutSource{lines: lines, consumed: &ConsumedCart{CartID: c.ID}}, nil
}
