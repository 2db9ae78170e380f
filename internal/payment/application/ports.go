package application

import (
	"context"
	"time"

	"github.com/dmehra2102/storefront/internal/payment/domain"
	"github.com/dmehra2102/storefront/pkg/idempotency"
	"github.com/dmehra2102/storefront/pkg/outbox"
)

type Gateway interface {
	CreateIntent(ctx context.Context, target domain.IntentTarget) (domain.Intent, error)
}

// OrderLedger is the payment view of the orders table.
type OrderLedger interface {
	// PaymentRef returns the gateway order id attached to orderID, or "".
	PaymentRef(ctx context.Context, orderID string) (string, error)
	// AttachPaymentRef sets the reference only while none is set and writes
	// msg in the same transaction. It reports whether this call attached it.
	AttachPaymentRef(ctx context.Context, orderID, ref string, msg outbox.Message) (bool, error)
	// Orphaned lists unpaid orders created before cutoff that have no intent.
	Orphaned(ctx context.Context, cutoff time.Time, limit int) ([]domain.IntentTarget, error)
}

type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (idempotency.Lock, bool, error)
	Release(ctx context.Context, l idempotency.Lock) error
}
