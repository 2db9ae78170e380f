package application

import (
	"context"

	cart "github.com/dmehra2102/storefront/internal/cart/domain"
	"github.com/dmehra2102/storefront/internal/order/domain"
	payment "github.com/dmehra2102/storefront/internal/payment/domain"
	"github.com/dmehra2102/storefront/internal/pricing"
	"github.com/dmehra2102/storefront/pkg/outbox"
)

// ConsumedCart names the cart lines a checkout turned into order items, with
// the quantities that were priced.
type ConsumedCart struct {
	CartID string
	Lines  []ConsumedLine
}

type ConsumedLine struct {
	ProductID string
	Quantity  int
}

// OrderMutation changes a locked order in place. A non-nil message is
// written to the outbox in the same transaction. Returning an error rolls
// the change back.
type OrderMutation func(o *domain.Order) (*outbox.Message, error)

type ItemMutation func(it *domain.Item) (*outbox.Message, error)

type ListFilter struct {
	Status domain.Status
	Limit  int
	Offset int
}

type OrderRepository interface {
	// Place inserts the order with its items and msg in one transaction and
	// deletes the consumed cart lines, if any. It fails with
	// domain.ErrCartChanged when a line no longer has the priced quantity.
	Place(ctx context.Context, o domain.Order, consumed *ConsumedCart, msg outbox.Message) error
	Get(ctx context.Context, id string) (domain.Order, error)
	// UpdateOrder and UpdateByPaymentRef return the order as persisted, or
	// the locked snapshot together with the mutation's error.
	UpdateOrder(ctx context.Context, id string, mutate OrderMutation) (domain.Order, error)
	UpdateByPaymentRef(ctx context.Context, paymentOrderID string, mutate OrderMutation) (domain.Order, error)
	UpdateItem(ctx context.Context, orderID, productID string, mutate ItemMutation) (domain.Item, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	List(ctx context.Context, f ListFilter) ([]domain.Order, int, error)
	ItemsByStatus(ctx context.Context, status domain.ItemStatus) ([]domain.Item, error)
	Analytics(ctx context.Context) (domain.Analytics, error)
}

type CartReader interface {
	Find(ctx context.Context, userID string) (cart.Cart, error)
	Items(ctx context.Context, cartID string) ([]cart.Item, error)
}

type BuyNowSelections interface {
	Get(ctx context.Context, userID string) (cart.BuyNowSelection, error)
	ClearIfVersion(ctx context.Context, userID, version string) (bool, error)
}

type Pricer interface {
	Compute(ctx context.Context, lines []pricing.Line, couponCode string) (pricing.Quote, error)
}

type PaymentIntents interface {
	EnsureIntent(ctx context.Context, t payment.IntentTarget) (payment.Intent, error)
}

type SignatureVerifier interface {
	VerifySignature(gatewayOrderID, paymentID, signature string) bool
}
