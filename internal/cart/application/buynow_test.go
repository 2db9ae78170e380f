package application

import (
	"context"
	"sync"
	"testing"

	"github.com/dmehra2102/storefront/internal/cart/domain"
	catalog "github.com/dmehra2102/storefront/internal/catalog/domain"
	"github.com/dmehra2102/storefront/pkg/apperr"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSelections struct {
	mu  sync.Mutex
	sel map[string]domain.BuyNowSelection
}

func (m *memSelections) Get(_ context.Context, userID string) (domain.BuyNowSelection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sel[userID]
	if !ok {
		return domain.BuyNowSelection{}, domain.ErrNoSelection
	}
	return s, nil
}

func (m *memSelections) Put(_ context.Context, userID string, sel domain.BuyNowSelection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sel[userID] = sel
	return nil
}

func (m *memSelections) ClearIfVersion(_ context.Context, userID, version string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sel[userID]; ok && s.Version == version {
		delete(m.sel, userID)
		return true, nil
	}
	return false, nil
}

func newBuyNow() (*BuyNowService, *memSelections) {
	store := &memSelections{sel: map[string]domain.BuyNowSelection{}}
	products := fakeCatalog{"P1": catalog.Product{ID: "P1", Name: "Mug", Price: decimal.NewFromInt(20)}}
	return NewBuyNowService(store, products), store
}

func TestBuyNowSetReplacesWithNewVersion(t *testing.T) {
	svc, _ := newBuyNow()
	ctx := context.Background()

	first, err := svc.Set(ctx, "u1", "P1", 1)
	require.NoError(t, err)
	second, err := svc.Set(ctx, "u1", "P1", 3)
	require.NoError(t, err)

	assert.NotEqual(t, first.Version, second.Version)

	view, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, view.Selection.Quantity)
	assert.True(t, view.LineTotal.Equal(decimal.NewFromInt(60)))
}

func TestBuyNowUpdateQuantity(t *testing.T) {
	svc, store := newBuyNow()
	ctx := context.Background()

	_, err := svc.UpdateQuantity(ctx, "u1", 2)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, "no item found", apperr.Message(err))

	orig, err := svc.Set(ctx, "u1", "P1", 1)
	require.NoError(t, err)
	upd, err := svc.UpdateQuantity(ctx, "u1", 4)
	require.NoError(t, err)
	assert.Equal(t, "P1", upd.ProductID)
	assert.Equal(t, 4, upd.Quantity)

	cleared, err := store.ClearIfVersion(ctx, "u1", orig.Version)
	require.NoError(t, err)
	assert.False(t, cleared, "stale version must not clear a newer selection")
}

func TestBuyNowRejects(t *testing.T) {
	svc, _ := newBuyNow()
	ctx := context.Background()

	_, err := svc.Set(ctx, "u1", "NOPE", 1)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = svc.Set(ctx, "u1", "P1", 0)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.Get(ctx, "u2")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
