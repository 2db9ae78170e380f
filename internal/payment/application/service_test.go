package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cenkalti/backoff/v5"
	"github.com/dmehra2102/storefront/internal/payment/domain"
	"github.com/dmehra2102/storefront/pkg/idempotency"
	"github.com/dmehra2102/storefront/pkg/outbox"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
)

type fakeGateway struct {
	mu       sync.Mutex
	calls    int
	failures []error
}

func (g *fakeGateway) CreateIntent(_ context.Context, t domain.IntentTarget) (domain.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if len(g.failures) > 0 {
		err := g.failures[0]
		g.failures = g.failures[1:]
		return domain.Intent{}, err
	}
	amount := domain.MinorUnits(t.Amount)
	return domain.Intent{
		GatewayOrderID: "order_" + t.OrderID,
		OrderID:        t.OrderID,
		Amount:         amount,
		AmountDue:      amount,
		Currency:       "INR",
		Status:         "created",
	}, nil
}

type ledgerOrder struct {
	target  domain.IntentTarget
	ref     string
	created time.Time
}

type memLedger struct {
	mu     sync.Mutex
	orders map[string]*ledgerOrder
	events []outbox.Message
	// raceRef is attached by "someone else" right before AttachPaymentRef runs.
	raceRef string
}

func newMemLedger() *memLedger { return &memLedger{orders: map[string]*ledgerOrder{}} }

func (l *memLedger) add(t domain.IntentTarget, created time.Time) {
	l.orders[t.OrderID] = &ledgerOrder{target: t, created: created}
}

func (l *memLedger) PaymentRef(_ context.Context, orderID string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.orders[orderID]
	if !ok {
		return "", domain.ErrOrderNotFound
	}
	return o.ref, nil
}

func (l *memLedger) AttachPaymentRef(_ context.Context, orderID, ref string, msg outbox.Message) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.orders[orderID]
	if !ok {
		return false, domain.ErrOrderNotFound
	}
	if l.raceRef != "" {
		o.ref = l.raceRef
	}
	if o.ref != "" {
		return false, nil
	}
	o.ref = ref
	l.events = append(l.events, msg)
	return true, nil
}

func (l *memLedger) Orphaned(_ context.Context, cutoff time.Time, limit int) ([]domain.IntentTarget, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.IntentTarget
	for _, o := range l.orders {
		if o.ref == "" && o.created.Before(cutoff) && len(out) < limit {
			out = append(out, o.target)
		}
	}
	return out, nil
}

type IntentServiceTestSuite struct {
	suite.Suite
	gateway *fakeGateway
	ledger  *memLedger
	locks   *idempotency.Store
	svc     *Service
	now     time.Time
}

func (s *IntentServiceTestSuite) SetupTest() {
	mr := miniredis.RunT(s.T())
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s.T().Cleanup(func() { _ = rdb.Close() })

	s.gateway = &fakeGateway{}
	s.ledger = newMemLedger()
	s.locks = idempotency.NewStore(rdb, time.Hour)
	s.now = time.Date(2025, 10, 17, 12, 0, 0, 0, time.UTC)

	s.svc = NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), s.gateway, s.ledger, s.locks, Options{
		Timeout:     time.Second,
		MaxTries:    3,
		LockTTL:     time.Minute,
		LockWait:    50 * time.Millisecond,
		OrphanGrace: 2 * time.Minute,
		SweepBatch:  10,
		Currency:    "INR",
	})
	s.svc.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	s.svc.now = func() time.Time { return s.now }
	s.svc.poll = 5 * time.Millisecond
}

func (s *IntentServiceTestSuite) target(id string) domain.IntentTarget {
	return domain.IntentTarget{OrderID: id, UserID: "u1", Amount: 900, Note: "order " + id}
}

func (s *IntentServiceTestSuite) TestCreatesAndAttachesOnce() {
	ctx := context.Background()
	s.ledger.add(s.target("o1"), s.now)

	intent, err := s.svc.EnsureIntent(ctx, s.target("o1"))
	s.Require().NoError(err)
	s.Equal("order_o1", intent.GatewayOrderID)
	s.Equal(int64(90000), intent.Amount)
	s.Require().Len(s.ledger.events, 1)
	s.Equal(domain.EventPaymentIntentCreated, s.ledger.events[0].Type)

	again, err := s.svc.EnsureIntent(ctx, s.target("o1"))
	s.Require().NoError(err)
	s.Equal("order_o1", again.GatewayOrderID)
	s.Equal(1, s.gateway.calls)
	s.Len(s.ledger.events, 1)
}

func (s *IntentServiceTestSuite) TestRetriesTransientFailures() {
	s.ledger.add(s.target("o1"), s.now)
	s.gateway.failures = []error{errors.New("connection reset"), context.DeadlineExceeded}

	intent, err := s.svc.EnsureIntent(context.Background(), s.target("o1"))
	s.Require().NoError(err)
	s.Equal("order_o1", intent.GatewayOrderID)
	s.Equal(3, s.gateway.calls)
}

func (s *IntentServiceTestSuite) TestGivesUpAfterMaxTries() {
	s.ledger.add(s.target("o1"), s.now)
	boom := errors.New("503 from gateway")
	s.gateway.failures = []error{boom, boom, boom, boom}

	_, err := s.svc.EnsureIntent(context.Background(), s.target("o1"))
	s.Require().ErrorIs(err, boom)
	s.Equal(3, s.gateway.calls)

	ref, _ := s.ledger.PaymentRef(context.Background(), "o1")
	s.Empty(ref)
}

func (s *IntentServiceTestSuite) TestRejectedIsNotRetried() {
	s.ledger.add(s.target("o1"), s.now)
	s.gateway.failures = []error{domain.ErrGatewayRejected}

	_, err := s.svc.EnsureIntent(context.Background(), s.target("o1"))
	s.Require().ErrorIs(err, domain.ErrGatewayRejected)
	s.Equal(1, s.gateway.calls)
}

func (s *IntentServiceTestSuite) TestLockHeldByAnotherWorker() {
	ctx := context.Background()
	s.ledger.add(s.target("o1"), s.now)

	lock, ok, err := s.locks.Acquire(ctx, "intent:o1", time.Minute)
	s.Require().NoError(err)
	s.Require().True(ok)

	_, err = s.svc.EnsureIntent(ctx, s.target("o1"))
	s.ErrorIs(err, domain.ErrIntentInProgress)
	s.Zero(s.gateway.calls)

	s.Require().NoError(s.locks.Release(ctx, lock))
	_, err = s.svc.EnsureIntent(ctx, s.target("o1"))
	s.NoError(err)
}

func (s *IntentServiceTestSuite) TestWaitsForOtherHolder() {
	ctx := context.Background()
	s.ledger.add(s.target("o1"), s.now)

	_, ok, err := s.locks.Acquire(ctx, "intent:o1", time.Minute)
	s.Require().NoError(err)
	s.Require().True(ok)

	go func() {
		time.Sleep(10 * time.Millisecond)
		s.ledger.mu.Lock()
		s.ledger.orders["o1"].ref = "order_by_worker"
		s.ledger.mu.Unlock()
	}()

	intent, err := s.svc.EnsureIntent(ctx, s.target("o1"))
	s.Require().NoError(err)
	s.Equal("order_by_worker", intent.GatewayOrderID)
	s.Zero(s.gateway.calls)
}

func (s *IntentServiceTestSuite) TestKeepsFirstAttachedRef() {
	s.ledger.add(s.target("o1"), s.now)
	s.ledger.raceRef = "order_other"

	intent, err := s.svc.EnsureIntent(context.Background(), s.target("o1"))
	s.Require().NoError(err)
	s.Equal("order_other", intent.GatewayOrderID)
	s.Empty(s.ledger.events)
}

func (s *IntentServiceTestSuite) TestUnknownOrder() {
	_, err := s.svc.EnsureIntent(context.Background(), s.target("missing"))
	s.ErrorIs(err, domain.ErrOrderNotFound)
	s.Zero(s.gateway.calls)
}

func (s *IntentServiceTestSuite) TestSweepRepairsOnlyStaleOrphans() {
	s.ledger.add(s.target("old"), s.now.Add(-10*time.Minute))
	s.ledger.add(s.target("fresh"), s.now.Add(-30*time.Second))

	n, err := s.svc.Sweep(context.Background())
	s.Require().NoError(err)
	s.Equal(1, n)

	ref, _ := s.ledger.PaymentRef(context.Background(), "old")
	s.Equal("order_old", ref)
	ref, _ = s.ledger.PaymentRef(context.Background(), "fresh")
	s.Empty(ref)
}

func TestIntentServiceTestSuite(t *testing.T) {
	suite.Run(t, new(IntentServiceTestSuite))
}
