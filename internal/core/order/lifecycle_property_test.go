package order

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/rl1809/marketplace/internal/core/domain"
)

var allowedHistories = [][]domain.OrderStatus{
	{domain.OrderStatusCreated},
	{domain.OrderStatusCreated, domain.OrderStatusCancelled},
	{domain.OrderStatusCreated, domain.OrderStatusPaid},
	{domain.OrderStatusCreated, domain.OrderStatusPaid, domain.OrderStatusShipped},
}

// TestOrderHistories replays random calls and rebuilds every order's state
// sequence from the committed facts.
func TestOrderHistories(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(t, 1_000)
		var ids []domain.OrderID

		pick := func(rt *rapid.T) (domain.OrderID, bool) {
			if len(ids) == 0 {
				return 0, false
			}
			return rapid.SampledFrom(ids).Draw(rt, "order"), true
		}

		rt.Repeat(map[string]func(*rapid.T){
			"create": func(rt *rapid.T) {
				amount := domain.Quantity(rapid.Uint64Range(0, 20).Draw(rt, "amount"))
				if id, err := f.create(buyer, amount); err == nil {
					ids = append(ids, id)
				}
			},
			"cancel": func(rt *rapid.T) {
				id, ok := pick(rt)
				if !ok {
					rt.Skip("no orders")
				}
				_ = f.cancel(rapid.SampledFrom([]domain.Account{buyer, other}).Draw(rt, "caller"), id)
			},
			"paid": func(rt *rapid.T) {
				id, ok := pick(rt)
				if !ok {
					rt.Skip("no orders")
				}
				_ = f.markPaid(authority, id)
			},
			"shipped": func(rt *rapid.T) {
				id, ok := pick(rt)
				if !ok {
					rt.Skip("no orders")
				}
				_ = f.markShipped(authority, id)
			},
			"wait": func(rt *rapid.T) {
				f.clock.Advance(time.Duration(rapid.Int64Range(0, int64(time.Hour)).Draw(rt, "wait")))
			},
			"": func(rt *rapid.T) {
				histories := make(map[domain.OrderID][]domain.OrderStatus)
				for _, ev := range f.rt.Events() {
					switch p := ev.Payload.(type) {
					case domain.OrderCreated:
						histories[p.OrderID] = append(histories[p.OrderID], domain.OrderStatusCreated)
					case domain.OrderCancelled:
						histories[p.OrderID] = append(histories[p.OrderID], domain.OrderStatusCancelled)
					case domain.OrderPaid:
						histories[p.OrderID] = append(histories[p.OrderID], domain.OrderStatusPaid)
					case domain.OrderShipped:
						histories[p.OrderID] = append(histories[p.OrderID], domain.OrderStatusShipped)
					}
				}
				require.Len(rt, histories, len(ids))
				for id, h := range histories {
					require.True(rt, slices.ContainsFunc(allowedHistories, func(a []domain.OrderStatus) bool {
						return slices.Equal(a, h)
					}), "order %d history %v", id, h)
					require.Equal(rt, h[len(h)-1], f.status(rt, id))
				}
				it := f.ledger.GetItem(f.itemID)
				require.LessOrEqual(rt, it.Reserved, it.Quantity)
			},
		})
	})
}
