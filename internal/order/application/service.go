package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	cart "github.com/dmehra2102/storefront/internal/cart/domain"
	"github.com/dmehra2102/storefront/internal/order/domain"
	"github.com/dmehra2102/storefront/pkg/apperr"
	"github.com/dmehra2102/storefront/pkg/outbox"
)

type Deps struct {
	Orders     OrderRepository
	Carts      CartReader
	BuyNow     BuyNowSelections
	Pricer     Pricer
	Payments   PaymentIntents
	Signatures SignatureVerifier
}

type Service struct {
	log                  *slog.Logger
	repo                 OrderRepository
	carts                CartReader
	buyNow               BuyNowSelections
	pricer               Pricer
	payments             PaymentIntents
	signatures           SignatureVerifier
	maxSignatureFailures int
	now                  func() time.Time
}

func NewService(log *slog.Logger, deps Deps, maxSignatureFailures int) *Service {
	return &Service{
		log:                  log,
		repo:                 deps.Orders,
		carts:                deps.Carts,
		buyNow:               deps.BuyNow,
		pricer:               deps.Pricer,
		payments:             deps.Payments,
		signatures:           deps.Signatures,
		maxSignatureFailures: maxSignatureFailures,
		now:                  func() time.Time { return time.Now().UTC() },
	}
}

// Get returns an order with its items. Orders of other users look missing
// unless the caller is an admin.
func (s *Service) Get(ctx context.Context, id, userID string, admin bool) (domain.Order, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Order{}, translate(err)
	}
	if !admin && o.UserID != userID {
		return domain.Order{}, apperr.NotFound("Order not found")
	}
	return o, nil
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	orders, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}
	return orders, nil
}

type Page struct {
	Total      int
	Page       int
	Limit      int
	TotalPages int
	Orders     []domain.Order
}

func (s *Service) List(ctx context.Context, status domain.Status, page, limit int) (Page, error) {
	if status != "" && !status.Valid() {
		return Page{}, apperr.Wrap(apperr.KindValidation, "invalid status", domain.ErrInvalidStatus)
	}
	page = max(page, 1)
	if limit < 1 {
		limit = 10
	}
	orders, total, err := s.repo.List(ctx, ListFilter{Status: status, Limit: limit, Offset: (page - 1) * limit})
	if err != nil {
		return Page{}, translate(err)
	}
	return Page{
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
		Orders:     orders,
	}, nil
}

func (s *Service) ItemsByStatus(ctx context.Context, status domain.ItemStatus) ([]domain.Item, error) {
	if !status.Valid() {
		return nil, apperr.Wrap(apperr.KindValidation, "invalid status", domain.ErrInvalidStatus)
	}
	items, err := s.repo.ItemsByStatus(ctx, status)
	if err != nil {
		return nil, translate(err)
	}
	return items, nil
}

func (s *Service) Analytics(ctx context.Context) (domain.Analytics, error) {
	a, err := s.repo.Analytics(ctx)
	if err != nil {
		return domain.Analytics{}, translate(err)
	}
	return a, nil
}

// UpdateStatus moves the order header through its fulfilment states.
func (s *Service) UpdateStatus(ctx context.Context, id string, next domain.Status) (domain.Order, error) {
	o, err := s.repo.UpdateOrder(ctx, id, func(o *domain.Order) (*outbox.Message, error) {
		from := o.Status
		if err := o.SetStatus(next); err != nil {
			return nil, err
		}
		msg, err := outbox.NewMessage(ctx, domain.AggregateType, o.ID, domain.EventOrderStatusChanged, domain.OrderStatusChanged{
			OrderID: o.ID,
			From:    from,
			To:      next,
			At:      s.now(),
		})
		return &msg, err
	})
	if err != nil {
		return domain.Order{}, translate(err)
	}
	return o, nil
}

func translate(err error) error {
	var ae *apperr.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ae):
		return err
	case errors.Is(err, domain.ErrOrderNotFound):
		return apperr.Wrap(apperr.KindNotFound, "Order not found", err)
	case errors.Is(err, domain.ErrItemNotFound):
		return apperr.Wrap(apperr.KindNotFound, "Order item not found", err)
	case errors.Is(err, domain.ErrNoChanges):
		return apperr.Wrap(apperr.KindValidation, "no changes made", err)
	case errors.Is(err, domain.ErrInvalidStatus):
		return apperr.Wrap(apperr.KindValidation, "invalid status", err)
	case errors.Is(err, domain.ErrInvalidTransition):
		return apperr.Wrap(apperr.KindConflict, err.Error(), err)
	case errors.Is(err, domain.ErrCartChanged):
		return apperr.Wrap(apperr.KindConflict, "Cart changed during checkout, please retry", err)
	case errors.Is(err, cart.ErrCartNotFound):
		return apperr.Wrap(apperr.KindNotFound, "Cart not found", err)
	default:
		return apperr.Internal("order store", err)
	}
}
