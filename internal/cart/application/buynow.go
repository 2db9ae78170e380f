package application

import (
	"context"
	"errors"
	"time"

	"github.com/dmehra2102/storefront/internal/cart/domain"
	catalog "github.com/dmehra2102/storefront/internal/catalog/domain"
	"github.com/dmehra2102/storefront/pkg/apperr"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BuyNowService struct {
	store    BuyNowStore
	products ProductCatalog
	now      func() time.Time
}

func NewBuyNowService(store BuyNowStore, products ProductCatalog) *BuyNowService {
	return &BuyNowService{store: store, products: products, now: func() time.Time { return time.Now().UTC() }}
}

type BuyNowView struct {
	Selection domain.BuyNowSelection
	Product   catalog.Product
	LineTotal decimal.Decimal
}

// Set replaces any active selection with a new version.
func (s *BuyNowService) Set(ctx context.Context, userID, productID string, quantity int) (domain.BuyNowSelection, error) {
	if quantity < 1 {
		return domain.BuyNowSelection{}, apperr.Wrap(apperr.KindValidation, domain.ErrInvalidQuantity.Error(), domain.ErrInvalidQuantity)
	}
	if _, err := lookupProduct(ctx, s.products, productID); err != nil {
		return domain.BuyNowSelection{}, err
	}
	return s.put(ctx, userID, productID, quantity)
}

func (s *BuyNowService) UpdateQuantity(ctx context.Context, userID string, quantity int) (domain.BuyNowSelection, error) {
	if quantity < 1 {
		return domain.BuyNowSelection{}, apperr.Wrap(apperr.KindValidation, domain.ErrInvalidQuantity.Error(), domain.ErrInvalidQuantity)
	}
	cur, err := s.current(ctx, userID)
	if err != nil {
		return domain.BuyNowSelection{}, err
	}
	return s.put(ctx, userID, cur.ProductID, quantity)
}

func (s *BuyNowService) Get(ctx context.Context, userID string) (BuyNowView, error) {
	sel, err := s.current(ctx, userID)
	if err != nil {
		return BuyNowView{}, err
	}
	p, err := lookupProduct(ctx, s.products, sel.ProductID)
	if err != nil {
		return BuyNowView{}, err
	}
	return BuyNowView{
		Selection: sel,
		Product:   p,
		LineTotal: p.Price.Mul(decimal.NewFromInt(int64(sel.Quantity))),
	}, nil
}

func (s *BuyNowService) current(ctx context.Context, userID string) (domain.BuyNowSelection, error) {
	sel, err := s.store.Get(ctx, userID)
	switch {
	case errors.Is(err, domain.ErrNoSelection):
		return domain.BuyNowSelection{}, apperr.Wrap(apperr.KindNotFound, "no item found", err)
	case err != nil:
		return domain.BuyNowSelection{}, apperr.Internal("read buy-now selection", err)
	}
	return sel, nil
}

func (s *BuyNowService) put(ctx context.Context, userID, productID string, quantity int) (domain.BuyNowSelection, error) {
	sel := domain.BuyNowSelection{
		ProductID: productID,
		Quantity:  quantity,
		Version:   uuid.NewString(),
		UpdatedAt: s.now(),
	}
	if err := s.store.Put(ctx, userID, sel); err != nil {
		return domain.BuyNowSelection{}, apperr.Internal("write buy-now selection", err)
	}
	return sel, nil
}
