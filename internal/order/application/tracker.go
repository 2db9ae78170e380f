package application

import (
	"context"

	"github.com/dmehra2102/storefront/internal/order/domain"
	"github.com/dmehra2102/storefront/pkg/outbox"
)

// UpdateItemStatus moves one order line through fulfilment. The order
// header is not touched.
func (s *Service) UpdateItemStatus(ctx context.Context, orderID, productID string, next domain.ItemStatus) (domain.Item, error) {
	it, err := s.repo.UpdateItem(ctx, orderID, productID, func(it *domain.Item) (*outbox.Message, error) {
		from := it.Status
		if err := it.SetStatus(next); err != nil {
			return nil, err
		}
		msg, err := outbox.NewMessage(ctx, domain.AggregateType, orderID, domain.EventOrderItemStatusChanged, domain.OrderItemStatusChanged{
			OrderID:   orderID,
			ProductID: productID,
			From:      from,
			To:        next,
			At:        s.now(),
		})
		return &msg, err
	})
	if err != nil {
		return domain.Item{}, translate(err)
	}
	return it, nil
}

func (s *Service) UpdateRefundStatus(ctx context.Context, orderID, productID string, next domain.RefundStatus) (domain.Item, error) {
	it, err := s.repo.UpdateItem(ctx, orderID, productID, func(it *domain.Item) (*outbox.Message, error) {
		from := it.RefundStatus
		if err := it.SetRefundStatus(next); err != nil {
			return nil, err
		}
		msg, err := outbox.NewMessage(ctx, domain.AggregateType, orderID, domain.EventOrderRefundStatusChanged, domain.OrderRefundStatusChanged{
			OrderID:   orderID,
			ProductID: productID,
			From:      from,
			To:        next,
			At:        s.now(),
		})
		return &msg, err
	})
	if err != nil {
		return domain.Item{}, translate(err)
	}
	return it, nil
}
