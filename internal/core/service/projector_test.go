package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/port"
)

// Mock DatabaseRepository with the same version guard as the SQL projection.
type mockDatabaseRepo struct {
	mu      sync.Mutex
	events  []domain.Event
	orders  map[domain.OrderID]domain.Order
	stale   int
	failLog bool
}

func newMockDatabaseRepo() *mockDatabaseRepo {
	return &mockDatabaseRepo{orders: make(map[domain.OrderID]domain.Order)}
}

func (m *mockDatabaseRepo) AppendEvents(ctx context.Context, events []domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLog {
		return errors.New("deadlock found")
	}
	m.events = append(m.events, events...)
	return nil
}

func (m *mockDatabaseRepo) ProjectOrder(ctx context.Context, o domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.orders[o.ID]
	if ok && cur.Status.Version() >= o.Status.Version() {
		m.stale++
		return port.ErrOptimisticLock
	}
	if ok && o.Buyer.Empty() {
		o.Buyer, o.CreatedAt = cur.Buyer, cur.CreatedAt
	}
	m.orders[o.ID] = o
	return nil
}

func (m *mockDatabaseRepo) GetOrder(ctx context.Context, id domain.OrderID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

type mockPublisher struct {
	mu      sync.Mutex
	batches [][]domain.Event
}

func (m *mockPublisher) Publish(ctx context.Context, events []domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, events)
	return nil
}

func TestProjector_PurchaseBatch(t *testing.T) {
	db := newMockDatabaseRepo()
	cache := newMockCacheRepo()
	pub := &mockPublisher{}

	svc := newTestService(t, nil)
	ctx := context.Background()
	id, err := svc.CreateListing(ctx, seller, "iphone-15", 5, unit)
	require.NoError(t, err)
	r, err := svc.Purchase(ctx, "", buyer, id, 2, 2*unit)
	require.NoError(t, err)

	p := NewProjector(db, cache, pub, nil)
	var purchase []domain.Event
	for _, ev := range svc.Events() {
		if ev.Op == "purchase" {
			purchase = append(purchase, ev)
		}
	}
	require.NotEmpty(t, purchase)
	p.Project(ctx, purchase)

	assert.Len(t, db.events, len(purchase))
	o, err := db.GetOrder(ctx, r.OrderID)
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.Equal(t, domain.OrderStatusPaid, o.Status)
	assert.Equal(t, buyer, o.Buyer)
	assert.Equal(t, domain.Quantity(2), o.Amount)

	l, _ := svc.Listing(id)
	assert.Equal(t, domain.Quantity(3), cache.available[l.ItemID].Available)
	require.Len(t, pub.batches, 1)
}

func TestProjector_StaleOrderIsSkipped(t *testing.T) {
	db := newMockDatabaseRepo()
	p := NewProjector(db, nil, nil, nil)
	ctx := context.Background()
	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	created := domain.Event{Kind: domain.KindOrderCreated, At: at, Payload: domain.OrderCreated{OrderID: 1, Buyer: buyer, ItemID: 4, Amount: 1, CreatedAt: at}}
	shipped := domain.Event{Kind: domain.KindOrderShipped, At: at.Add(time.Hour), Payload: domain.OrderShipped{OrderID: 1}}
	paid := domain.Event{Kind: domain.KindOrderPaid, At: at.Add(time.Minute), Payload: domain.OrderPaid{OrderID: 1, ItemID: 4, Amount: 1}}

	p.Project(ctx, []domain.Event{created})
	p.Project(ctx, []domain.Event{shipped})
	p.Project(ctx, []domain.Event{paid})

	o, _ := db.GetOrder(ctx, 1)
	require.NotNil(t, o)
	assert.Equal(t, domain.OrderStatusShipped, o.Status)
	assert.Equal(t, buyer, o.Buyer)
	assert.Equal(t, 1, db.stale)
}

func TestProjector_FailuresAreContained(t *testing.T) {
	db := newMockDatabaseRepo()
	db.failLog = true
	pub := &mockPublisher{}
	p := NewProjector(db, nil, pub, nil)

	p.Project(context.Background(), []domain.Event{{Kind: domain.KindDeposited, Payload: domain.Deposited{Account: buyer, Amount: 1}}})
	assert.Empty(t, db.events)
	assert.Len(t, pub.batches, 1, "publishing continues after a failed append")
}

func TestProjector_WorkersDrainQueue(t *testing.T) {
	db := newMockDatabaseRepo()
	svc, err := NewMarketService(Config{Admin: admin, QueueSize: 64}, nil, nil)
	require.NoError(t, err)

	wg := NewProjector(db, nil, nil, nil).Start(4, svc.GetEventQueue())
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		require.NoError(t, svc.Deposit(ctx, buyer, 1))
	}
	svc.Close()
	wg.Wait()

	assert.Len(t, db.events, len(svc.Events()))
}

func TestFoldAvailability(t *testing.T) {
	got := foldAvailability([]domain.Event{
		{Seq: 1, Payload: domain.ItemAdded{ItemID: 1, Quantity: 10}},
		{Seq: 2, Payload: domain.ItemReserved{ItemID: 1, Amount: 4, Quantity: 10, Reserved: 4}},
		{Seq: 3, Payload: domain.ReservationFinalized{ItemID: 1, Amount: 4, Quantity: 6, Reserved: 0}},
		{Seq: 4, Payload: domain.ItemAdded{ItemID: 2, Quantity: 3}},
		{Seq: 5, Payload: domain.ItemRemoved{ItemID: 2}},
		{Seq: 6, Payload: domain.Deposited{Account: buyer, Amount: 1}},
	})
	assert.Equal(t, []domain.Availability{
		{ItemID: 1, Available: 6, Seq: 3},
		{ItemID: 2, Available: 0, Seq: 5},
	}, got)
}
