package host

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/marketplace/internal/core/domain"
)

var errBoom = errors.New("boom")

func fixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}

func TestExecute_CommitPublishesEvents(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rt := NewRuntime(WithClock(fixedClock(at)))

	var got [][]domain.Event
	rt.Subscribe(SinkFunc(func(events []domain.Event) { got = append(got, events) }))

	counter := 0
	err := rt.Execute(context.Background(), Call{Op: "add", Caller: "alice"}, func(tx *Tx) error {
		Set(tx, &counter, 5)
		tx.Emit("ledger", domain.ItemAdded{ItemID: 1, Name: "x", Quantity: 5})
		tx.Emit("ledger", domain.ItemRemoved{ItemID: 1})
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5, counter)

	require.Len(t, got, 1)
	require.Len(t, got[0], 2)
	assert.Equal(t, uint64(1), got[0][0].Seq)
	assert.Equal(t, uint64(2), got[0][1].Seq)
	assert.Equal(t, domain.KindItemAdded, got[0][0].Kind)
	assert.Equal(t, "add", got[0][0].Op)
	assert.Equal(t, at, got[0][0].At)
	assert.Equal(t, got[0][0].TxID, got[0][1].TxID)
	assert.Len(t, rt.Events(), 2)
}

func TestExecute_ErrorRevertsJournal(t *testing.T) {
	rt := NewRuntime()
	published := 0
	rt.Subscribe(SinkFunc(func(events []domain.Event) { published += len(events) }))

	counter := 1
	m := map[string]int{"kept": 1}
	err := rt.Execute(context.Background(), Call{Op: "fail"}, func(tx *Tx) error {
		Set(tx, &counter, 2)
		Set(tx, &counter, 3)
		Put(tx, m, "kept", 10)
		Put(tx, m, "added", 20)
		tx.Emit("ledger", domain.ItemRemoved{ItemID: 9})
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, counter)
	assert.Equal(t, map[string]int{"kept": 1}, m)
	assert.Zero(t, published)
	assert.Empty(t, rt.Events())
}

func TestExecute_NestedFrameSharesJournal(t *testing.T) {
	rt := NewRuntime()
	counter := 0
	err := rt.Execute(context.Background(), Call{Op: "nested", Caller: "buyer", Value: 7}, func(tx *Tx) error {
		inner := tx.As("engine")
		assert.Equal(t, domain.Account("engine"), inner.Caller())
		assert.Zero(t, inner.Value())
		assert.Equal(t, domain.Amount(7), tx.Value())
		Set(inner, &counter, 42)
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)
	assert.Zero(t, counter)
}

func TestExecute_PanicReverts(t *testing.T) {
	rt := NewRuntime()
	counter := 0
	err := rt.Execute(context.Background(), Call{Op: "panic"}, func(tx *Tx) error {
		Set(tx, &counter, 1)
		panic("unexpected")
	})
	require.ErrorIs(t, err, ErrReverted)
	assert.Zero(t, counter)
}

func TestTxPay(t *testing.T) {
	var paid domain.Amount
	rt := NewRuntime(WithPayer(PayerFunc(func(ctx context.Context, to domain.Account, amount domain.Amount) error {
		if to == "broken" {
			return errBoom
		}
		paid += amount
		return nil
	})))

	err := rt.Execute(context.Background(), Call{Op: "pay"}, func(tx *Tx) error {
		return tx.Pay("alice", 10)
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(10), paid)

	err = rt.Execute(context.Background(), Call{Op: "pay"}, func(tx *Tx) error {
		return tx.Pay("broken", 10)
	})
	require.ErrorIs(t, err, domain.ErrPayoutFailed)

	err = NewRuntime().Execute(context.Background(), Call{Op: "pay"}, func(tx *Tx) error {
		return tx.Pay("alice", 1)
	})
	require.ErrorIs(t, err, domain.ErrPayoutFailed)
}

func TestGuard(t *testing.T) {
	var g Guard
	exit, err := g.Enter()
	require.NoError(t, err)

	_, err = g.Enter()
	require.ErrorIs(t, err, domain.ErrReentrantCall)

	exit()
	exit, err = g.Enter()
	require.NoError(t, err)
	exit()
}
