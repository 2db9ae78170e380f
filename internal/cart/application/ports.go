package application

import (
	"context"

	"github.com/dmehra2102/storefront/internal/cart/domain"
	catalog "github.com/dmehra2102/storefront/internal/catalog/domain"
	"github.com/shopspring/decimal"
)

type CartRepository interface {
	// Ensure returns the user's cart, creating it on first use.
	Ensure(ctx context.Context, userID string) (domain.Cart, error)
	Find(ctx context.Context, userID string) (domain.Cart, error)
	// AddItem inserts the line or atomically increments its quantity.
	AddItem(ctx context.Context, cartID, productID string, quantity int, unitPrice decimal.Decimal) (domain.Item, error)
	AdjustItem(ctx context.Context, cartID, productID string, delta int) (domain.Item, error)
	RemoveItem(ctx context.Context, cartID, productID string) error
	Clear(ctx context.Context, cartID string) (int64, error)
	Items(ctx context.Context, cartID string) ([]domain.Item, error)
}

type ProductCatalog interface {
	Product(ctx context.Context, id string) (catalog.Product, error)
}

type BuyNowStore interface {
	Get(ctx context.Context, userID string) (domain.BuyNowSelection, error)
	Put(ctx context.Context, userID string, sel domain.BuyNowSelection) error
	// ClearIfVersion deletes the selection only while it still carries version.
	ClearIfVersion(ctx context.Context, userID, version string) (bool, error)
}
