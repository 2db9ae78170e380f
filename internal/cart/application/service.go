package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dmehra2102/storefront/internal/cart/domain"
	catalog "github.com/dmehra2102/storefront/internal/catalog/domain"
	"github.com/dmehra2102/storefront/pkg/apperr"
)

type Service struct {
	log      *slog.Logger
	carts    CartRepository
	products ProductCatalog
}

func NewService(log *slog.Logger, carts CartRepository, products ProductCatalog) *Service {
	return &Service{log: log, carts: carts, products: products}
}

func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity int) (domain.Item, error) {
	if quantity < 1 {
		return domain.Item{}, apperr.Wrap(apperr.KindValidation, domain.ErrInvalidQuantity.Error(), domain.ErrInvalidQuantity)
	}
	p, err := lookupProduct(ctx, s.products, productID)
	if err != nil {
		return domain.Item{}, err
	}
	cart, err := s.carts.Ensure(ctx, userID)
	if err != nil {
		return domain.Item{}, apperr.Internal("ensure cart", err)
	}
	item, err := s.carts.AddItem(ctx, cart.ID, p.ID, quantity, p.Price)
	if err != nil {
		return domain.Item{}, apperr.Internal("add cart item", err)
	}
	item.ProductName = p.Name
	s.log.DebugContext(ctx, "cart item added", "user_id", userID, "product_id", productID, "quantity", item.Quantity)
	return item, nil
}

// UpdateItem applies delta to the line's quantity. The result must stay >= 1.
func (s *Service) UpdateItem(ctx context.Context, userID, productID string, delta int) (domain.Item, error) {
	cart, err := s.findCart(ctx, userID)
	if err != nil {
		return domain.Item{}, err
	}
	item, err := s.carts.AdjustItem(ctx, cart.ID, productID, delta)
	switch {
	case errors.Is(err, domain.ErrItemNotFound):
		return domain.Item{}, apperr.Wrap(apperr.KindNotFound, "Cart Item not found", err)
	case errors.Is(err, domain.ErrQuantityFloor):
		return domain.Item{}, apperr.Wrap(apperr.KindValidation, err.Error(), err)
	case err != nil:
		return domain.Item{}, apperr.Internal("adjust cart item", err)
	}
	return item, nil
}

func (s *Service) RemoveItem(ctx context.Context, userID, productID string) error {
	cart, err := s.findCart(ctx, userID)
	if err != nil {
		return err
	}
	err = s.carts.RemoveItem(ctx, cart.ID, productID)
	switch {
	case errors.Is(err, domain.ErrItemNotFound):
		return apperr.Wrap(apperr.KindNotFound, "Item not found in cart", err)
	case err != nil:
		return apperr.Internal("remove cart item", err)
	}
	return nil
}

func (s *Service) Clear(ctx context.Context, userID string) (int64, error) {
	cart, err := s.findCart(ctx, userID)
	if err != nil {
		return 0, err
	}
	n, err := s.carts.Clear(ctx, cart.ID)
	if err != nil {
		return 0, apperr.Internal("clear cart", err)
	}
	return n, nil
}

// List never fails with NotFound; an empty cart is created on first read.
func (s *Service) List(ctx context.Context, userID string) (domain.Summary, error) {
	cart, err := s.carts.Ensure(ctx, userID)
	if err != nil {
		return domain.Summary{}, apperr.Internal("ensure cart", err)
	}
	items, err := s.carts.Items(ctx, cart.ID)
	if err != nil {
		return domain.Summary{}, apperr.Internal("list cart items", err)
	}
	return domain.Summarize(items), nil
}

func (s *Service) findCart(ctx context.Context, userID string) (domain.Cart, error) {
	cart, err := s.carts.Find(ctx, userID)
	switch {
	case errors.Is(err, domain.ErrCartNotFound):
		return domain.Cart{}, apperr.Wrap(apperr.KindNotFound, "Cart not found", err)
	case err != nil:
		return domain.Cart{}, apperr.Internal("find cart", err)
	}
	return cart, nil
}

func lookupProduct(ctx context.Context, products ProductCatalog, id string) (catalog.Product, error) {
	p, err := products.Product(ctx, id)
	switch {
	case errors.Is(err, catalog.ErrProductNotFound):
		return catalog.Product{}, apperr.Wrap(apperr.KindNotFound, "Product not found", err)
	case err != nil:
		return catalog.Product{}, apperr.Internal("lookup product", err)
	}
	return p, nil
}
