package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/dmehra2102/storefront/internal/payment/domain"
	"github.com/dmehra2102/storefront/pkg/outbox"
)

type Options struct {
	// Timeout bounds a single gateway call.
	Timeout     time.Duration
	MaxTries    uint
	LockTTL     time.Duration
	// LockWait is how long a caller waits for another holder's intent.
	LockWait    time.Duration
	OrphanGrace time.Duration
	SweepBatch  int
	Currency    string
}

type Service struct {
	log        *slog.Logger
	gateway    Gateway
	ledger     OrderLedger
	locks      Locker
	opts       Options
	newBackOff func() backoff.BackOff
	poll       time.Duration
	now        func() time.Time
}

func NewService(log *slog.Logger, gateway Gateway, ledger OrderLedger, locks Locker, opts Options) *Service {
	return &Service{
		log:        log,
		gateway:    gateway,
		ledger:     ledger,
		locks:      locks,
		opts:       opts,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		poll:       100 * time.Millisecond,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// EnsureIntent returns the payment intent of the target order, creating it at
// the gateway when the order has none. The order id lock keeps the API and
// the repair worker from creating two intents for one order.
func (s *Service) EnsureIntent(ctx context.Context, t domain.IntentTarget) (domain.Intent, error) {
	lock, ok, err := s.locks.Acquire(ctx, "intent:"+t.OrderID, s.opts.LockTTL)
	if err != nil {
		return domain.Intent{}, fmt.Errorf("acquire intent lock: %w", err)
	}
	if !ok {
		return s.await(ctx, t)
	}
	defer func() {
		if err := s.locks.Release(context.WithoutCancel(ctx), lock); err != nil {
			s.log.WarnContext(ctx, "release intent lock", "order_id", t.OrderID, "err", err)
		}
	}()

	ref, err := s.ledger.PaymentRef(ctx, t.OrderID)
	if err != nil {
		return domain.Intent{}, err
	}
	if ref != "" {
		return s.existing(t, ref), nil
	}

	intent, err := backoff.Retry(ctx, func() (domain.Intent, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()

		in, err := s.gateway.CreateIntent(attemptCtx, t)
		if errors.Is(err, domain.ErrGatewayRejected) {
			return in, backoff.Permanent(err)
		}
		if err != nil {
			s.log.WarnContext(ctx, "create payment intent attempt failed", "order_id", t.OrderID, "err", err)
		}
		return in, err
	}, backoff.WithBackOff(s.newBackOff()), backoff.WithMaxTries(s.opts.MaxTries))
	if err != nil {
		return domain.Intent{}, fmt.Errorf("create payment intent: %w", err)
	}

	msg, err := outbox.NewMessage(ctx, domain.AggregateType, t.OrderID, domain.EventPaymentIntentCreated, domain.PaymentIntentCreated{
		OrderID:        t.OrderID,
		GatewayOrderID: intent.GatewayOrderID,
		Amount:         intent.Amount,
		Currency:       intent.Currency,
	})
	if err != nil {
		return domain.Intent{}, err
	}
	attached, err := s.ledger.AttachPaymentRef(ctx, t.OrderID, intent.GatewayOrderID, msg)
	if err != nil {
		return domain.Intent{}, fmt.Errorf("attach payment ref: %w", err)
	}
	if !attached {
		ref, err := s.ledger.PaymentRef(ctx, t.OrderID)
		if err != nil {
			return domain.Intent{}, err
		}
		s.log.WarnContext(ctx, "payment intent superseded", "order_id", t.OrderID, "dropped", intent.GatewayOrderID, "kept", ref)
		return s.existing(t, ref), nil
	}

	s.log.InfoContext(ctx, "payment intent created", "order_id", t.OrderID, "gateway_order_id", intent.GatewayOrderID)
	return intent, nil
}

// await polls for the reference another lock holder is creating.
func (s *Service) await(ctx context.Context, t domain.IntentTarget) (domain.Intent, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.LockWait)
	defer cancel()

	tick := time.NewTicker(s.poll)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return domain.Intent{}, domain.ErrIntentInProgress
		case <-tick.C:
			ref, err := s.ledger.PaymentRef(ctx, t.OrderID)
			if err != nil {
				if ctx.Err() != nil {
					return domain.Intent{}, domain.ErrIntentInProgress
				}
				return domain.Intent{}, err
			}
			if ref != "" {
				return s.existing(t, ref), nil
			}
		}
	}
}

func (s *Service) existing(t domain.IntentTarget, ref string) domain.Intent {
	amount := domain.MinorUnits(t.Amount)
	return domain.Intent{
		GatewayOrderID: ref,
		OrderID:        t.OrderID,
		Amount:         amount,
		AmountDue:      amount,
		Currency:       s.opts.Currency,
	}
}

// Sweep requests intents for orders whose checkout committed but never got
// one. It returns how many orders were repaired.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	targets, err := s.ledger.Orphaned(ctx, s.now().Add(-s.opts.OrphanGrace), s.opts.SweepBatch)
	if err != nil {
		return 0, err
	}

	repaired := 0
	for _, t := range targets {
		if _, err := s.EnsureIntent(ctx, t); err != nil {
			if !errors.Is(err, domain.ErrIntentInProgress) {
				s.log.WarnContext(ctx, "orphan repair failed", "order_id", t.OrderID, "err", err)
			}
			continue
		}
		repaired++
	}
	return repaired, nil
}

func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("orphan sweeper stopping")
			return nil
		case <-t.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				s.log.Error("orphan sweep error", "err", err)
				continue
			}
			if n > 0 {
				s.log.Info("orphan sweep repaired orders", "count", n)
			}
		}
	}
}
