package application

import (
	"context"
	"errors"
	"sort"
	"sync"

	cart "github.com/dmehra2102/storefront/internal/cart/domain"
	catalog "github.com/dmehra2102/storefront/internal/catalog/domain"
	coupon "github.com/dmehra2102/storefront/internal/coupon/domain"
	"github.com/dmehra2102/storefront/internal/order/domain"
	payment "github.com/dmehra2102/storefront/internal/payment/domain"
	"github.com/dmehra2102/storefront/pkg/apperr"
	"github.com/dmehra2102/storefront/pkg/outbox"
)

// memOrders keeps orders in memory and applies each mutation to a copy that
// is stored only when the mutation succeeds.
type memOrders struct {
	mu       sync.Mutex
	orders   map[string]domain.Order
	events   []outbox.Message
	carts    *memCarts
	placeErr error
	// beforePlace runs at the start of Place, like a request racing the
	// checkout transaction.
	beforePlace func()
}

func newMemOrders(carts *memCarts) *memOrders {
	return &memOrders{orders: map[string]domain.Order{}, carts: carts}
}

func cloneOrder(o domain.Order) domain.Order {
	o.Items = append([]domain.Item(nil), o.Items...)
	return o
}

func (m *memOrders) Place(_ context.Context, o domain.Order, consumed *ConsumedCart, msg outbox.Message) error {
	if m.beforePlace != nil {
		m.beforePlace()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.placeErr != nil {
		return m.placeErr
	}
	if consumed != nil {
		if err := m.carts.consume(consumed.CartID, consumed.Lines); err != nil {
			return err
		}
	}
	m.orders[o.ID] = cloneOrder(o)
	m.events = append(m.events, msg)
	return nil
}

func (m *memOrders) Get(_ context.Context, id string) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (m *memOrders) update(id string, mutate OrderMutation) (domain.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	snapshot := cloneOrder(o)
	next := cloneOrder(o)
	msg, err := mutate(&next)
	if err != nil {
		return snapshot, err
	}
	m.orders[id] = next
	if msg != nil {
		m.events = append(m.events, *msg)
	}
	return cloneOrder(next), nil
}

func (m *memOrders) UpdateOrder(_ context.Context, id string, mutate OrderMutation) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.update(id, mutate)
}

func (m *memOrders) UpdateByPaymentRef(_ context.Context, ref string, mutate OrderMutation) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, o := range m.orders {
		if o.PaymentOrderID == ref && ref != "" {
			return m.update(id, mutate)
		}
	}
	return domain.Order{}, domain.ErrOrderNotFound
}

func (m *memOrders) UpdateItem(_ context.Context, orderID, productID string, mutate ItemMutation) (domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return domain.Item{}, domain.ErrItemNotFound
	}
	for i, it := range o.Items {
		if it.ProductID != productID {
			continue
		}
		msg, err := mutate(&it)
		if err != nil {
			return domain.Item{}, err
		}
		o = cloneOrder(o)
		o.Items[i] = it
		m.orders[orderID] = o
		if msg != nil {
			m.events = append(m.events, *msg)
		}
		return it, nil
	}
	return domain.Item{}, domain.ErrItemNotFound
}

func (m *memOrders) ListByUser(_ context.Context, userID string) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memOrders) List(_ context.Context, f ListFilter) ([]domain.Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []domain.Order
	for _, o := range m.orders {
		if f.Status == "" || o.Status == f.Status {
			all = append(all, cloneOrder(o))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := len(all)
	if f.Offset >= total {
		return nil, total, nil
	}
	end := min(f.Offset+f.Limit, total)
	return all[f.Offset:end], total, nil
}

func (m *memOrders) ItemsByStatus(_ context.Context, status domain.ItemStatus) ([]domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Item
	for _, o := range m.orders {
		for _, it := range o.Items {
			if it.Status == status {
				out = append(out, it)
			}
		}
	}
	return out, nil
}

func (m *memOrders) Analytics(_ context.Context) (domain.Analytics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := domain.Analytics{ByStatus: map[domain.Status]int64{}}
	for _, o := range m.orders {
		a.TotalOrders++
		a.ByStatus[o.Status]++
		if o.PaymentStatus == domain.PaymentPaid {
			a.Revenue += o.TotalPrice
		}
	}
	return a, nil
}

func (m *memOrders) eventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}

type memCarts struct {
	mu    sync.Mutex
	carts map[string]cart.Cart
	items map[string][]cart.Item
}

func newMemCarts() *memCarts {
	return &memCarts{carts: map[string]cart.Cart{}, items: map[string][]cart.Item{}}
}

func (m *memCarts) put(userID string, items ...cart.Item) cart.Cart {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := cart.Cart{ID: "cart-" + userID, UserID: userID}
	m.carts[userID] = c
	for i := range items {
		items[i].CartID = c.ID
	}
	m.items[c.ID] = items
	return c
}

// consume drops the lines only when every one still has the given quantity.
func (m *memCarts) consume(cartID string, lines []ConsumedLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[string]int{}
	for _, l := range lines {
		want[l.ProductID] = l.Quantity
	}
	var kept []cart.Item
	matched := 0
	for _, it := range m.items[cartID] {
		q, ok := want[it.ProductID]
		switch {
		case !ok:
			kept = append(kept, it)
		case q == it.Quantity:
			matched++
		default:
			return domain.ErrCartChanged
		}
	}
	if matched != len(lines) {
		return domain.ErrCartChanged
	}
	m.items[cartID] = kept
	return nil
}

func (m *memCarts) add(cartID, productID string, quantity int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, it := range m.items[cartID] {
		if it.ProductID == productID {
			m.items[cartID][i].Quantity += quantity
			return
		}
	}
	m.items[cartID] = append(m.items[cartID], cart.Item{CartID: cartID, ProductID: productID, Quantity: quantity})
}

func (m *memCarts) Find(_ context.Context, userID string) (cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[userID]
	if !ok {
		return cart.Cart{}, cart.ErrCartNotFound
	}
	return c, nil
}

func (m *memCarts) Items(_ context.Context, cartID string) ([]cart.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]cart.Item(nil), m.items[cartID]...), nil
}

type memSelections struct {
	mu  sync.Mutex
	sel map[string]cart.BuyNowSelection
}

func (m *memSelections) Get(_ context.Context, userID string) (cart.BuyNowSelection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sel[userID]
	if !ok {
		return cart.BuyNowSelection{}, cart.ErrNoSelection
	}
	return s, nil
}

func (m *memSelections) ClearIfVersion(_ context.Context, userID, version string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sel[userID]
	if !ok || s.Version != version {
		return false, nil
	}
	delete(m.sel, userID)
	return true, nil
}

type fakeCatalog map[string]catalog.Product

func (f fakeCatalog) Products(_ context.Context, ids []string) (map[string]catalog.Product, error) {
	out := map[string]catalog.Product{}
	for _, id := range ids {
		if p, ok := f[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type fakeCoupons map[string]coupon.Coupon

func (f fakeCoupons) Resolve(_ context.Context, code string) (coupon.Coupon, error) {
	c, ok := f[code]
	if !ok {
		return coupon.Coupon{}, apperr.NotFound("Invalid coupon")
	}
	return c, nil
}

// fakePayments stands in for the payment service and the orders ledger it
// writes the reference to.
type fakePayments struct {
	orders *memOrders
	err    error
	calls  []payment.IntentTarget
}

func (f *fakePayments) EnsureIntent(_ context.Context, t payment.IntentTarget) (payment.Intent, error) {
	f.calls = append(f.calls, t)
	if f.err != nil {
		return payment.Intent{}, f.err
	}
	ref := "order_" + t.OrderID
	f.orders.mu.Lock()
	o := f.orders.orders[t.OrderID]
	o.PaymentOrderID = ref
	f.orders.orders[t.OrderID] = o
	f.orders.mu.Unlock()
	amount := payment.MinorUnits(t.Amount)
	return payment.Intent{GatewayOrderID: ref, OrderID: t.OrderID, Amount: amount, AmountDue: amount, Currency: "INR"}, nil
}

type fakeSignatures struct{ valid string }

func (f fakeSignatures) VerifySignature(gatewayOrderID, paymentID, signature string) bool {
	return signature == f.valid+":"+gatewayOrderID+"|"+paymentID
}

var errDB = errors.New("connection refused")
