package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/core/host"
)

const (
	admin    domain.Account = "admin"
	operator domain.Account = "operator"
	stranger domain.Account = "stranger"
)

type fixture struct {
	rt     *host.Runtime
	ledger *Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{rt: host.NewRuntime(), ledger: New("inventory", admin)}
	require.NoError(t, f.exec(admin, func(tx *host.Tx) error {
		return f.ledger.SetOperator(tx, operator)
	}))
	return f
}

func (f *fixture) exec(caller domain.Account, fn func(tx *host.Tx) error) error {
	return f.rt.Execute(context.Background(), host.Call{Op: "test", Caller: caller}, fn)
}

func (f *fixture) addItem(t *testing.T, quantity domain.Quantity) domain.ItemID {
	t.Helper()
	var id domain.ItemID
	require.NoError(t, f.exec(operator, func(tx *host.Tx) (err error) {
		id, err = f.ledger.AddItem(tx, "widget", quantity)
		return err
	}))
	return id
}

func (f *fixture) reserve(caller domain.Account, id domain.ItemID, amount domain.Quantity) error {
	return f.exec(caller, func(tx *host.Tx) error { return f.ledger.ReserveQuantity(tx, id, amount) })
}

func TestAddItem(t *testing.T) {
	f := newFixture(t)

	id := f.addItem(t, 10)
	assert.Equal(t, domain.ItemID(1), id)
	assert.Equal(t, domain.Item{ID: 1, Name: "widget", Quantity: 10, Exists: true}, f.ledger.GetItem(id))

	err := f.exec(admin, func(tx *host.Tx) error {
		_, err := f.ledger.AddItem(tx, "empty", 0)
		return err
	})
	require.ErrorIs(t, err, domain.ErrQuantityZero)

	err = f.exec(stranger, func(tx *host.Tx) error {
		_, err := f.ledger.AddItem(tx, "nope", 1)
		return err
	})
	require.ErrorIs(t, err, domain.ErrNotAdminOrOperator)

	assert.Equal(t, domain.ItemID(2), f.addItem(t, 1), "failed adds must not consume ids")
}

func TestReserveQuantity_AdmissionControl(t *testing.T) {
	f := newFixture(t)
	id := f.addItem(t, 5)

	require.NoError(t, f.reserve(operator, id, 3))
	require.ErrorIs(t, f.reserve(operator, id, 3), domain.ErrNotEnoughAvailable)
	require.NoError(t, f.reserve(admin, id, 2))
	require.ErrorIs(t, f.reserve(operator, id, 1), domain.ErrNotEnoughAvailable)
	require.ErrorIs(t, f.reserve(operator, id, 0), domain.ErrQuantityZero)
	require.ErrorIs(t, f.reserve(operator, 99, 1), domain.ErrItemMissing)
	require.ErrorIs(t, f.reserve(stranger, id, 1), domain.ErrNotAdminOrOperator)

	it := f.ledger.GetItem(id)
	assert.Equal(t, domain.Quantity(5), it.Quantity)
	assert.Equal(t, domain.Quantity(5), it.Reserved)
	assert.Zero(t, f.ledger.Available(id))
}

func TestReleaseAndFinalize(t *testing.T) {
	f := newFixture(t)
	id := f.addItem(t, 10)
	require.NoError(t, f.reserve(operator, id, 6))

	require.NoError(t, f.exec(operator, func(tx *host.Tx) error { return f.ledger.ReleaseReservation(tx, id, 2) }))
	assert.Equal(t, domain.Quantity(4), f.ledger.GetItem(id).Reserved)
	assert.Equal(t, domain.Quantity(10), f.ledger.GetItem(id).Quantity)

	require.NoError(t, f.exec(operator, func(tx *host.Tx) error { return f.ledger.FinalizeReservation(tx, id, 3) }))
	assert.Equal(t, domain.Quantity(1), f.ledger.GetItem(id).Reserved)
	assert.Equal(t, domain.Quantity(7), f.ledger.GetItem(id).Quantity)

	err := f.exec(operator, func(tx *host.Tx) error { return f.ledger.FinalizeReservation(tx, id, 2) })
	require.ErrorIs(t, err, domain.ErrNotEnoughReserved)
	err = f.exec(operator, func(tx *host.Tx) error { return f.ledger.ReleaseReservation(tx, id, 2) })
	require.ErrorIs(t, err, domain.ErrNotEnoughReserved)
}

func TestFreeze_StopsNewReservationsOnly(t *testing.T) {
	f := newFixture(t)
	id := f.addItem(t, 10)
	require.NoError(t, f.reserve(operator, id, 4))

	require.ErrorIs(t, f.exec(operator, f.ledger.Freeze), domain.ErrNotAdmin)
	require.NoError(t, f.exec(admin, f.ledger.Freeze))
	assert.Equal(t, domain.LedgerFrozen, f.ledger.State())

	require.ErrorIs(t, f.reserve(operator, id, 1), domain.ErrNotActive)
	err := f.exec(operator, func(tx *host.Tx) error {
		_, err := f.ledger.AddItem(tx, "x", 1)
		return err
	})
	require.ErrorIs(t, err, domain.ErrNotActive)
	err = f.exec(admin, func(tx *host.Tx) error { return f.ledger.RemoveItem(tx, id) })
	require.ErrorIs(t, err, domain.ErrNotActive)

	require.NoError(t, f.exec(operator, func(tx *host.Tx) error { return f.ledger.ReleaseReservation(tx, id, 1) }))
	require.NoError(t, f.exec(operator, func(tx *host.Tx) error { return f.ledger.FinalizeReservation(tx, id, 1) }))
	require.NoError(t, f.exec(operator, func(tx *host.Tx) error { return f.ledger.SetQuantityItem(tx, id, 20) }))

	require.NoError(t, f.exec(admin, f.ledger.Unfreeze))
	require.NoError(t, f.reserve(operator, id, 1))
	require.ErrorIs(t, f.exec(admin, f.ledger.Unfreeze), domain.ErrNotFrozen)
}

func TestClose_IsTerminal(t *testing.T) {
	f := newFixture(t)
	id := f.addItem(t, 10)
	require.NoError(t, f.reserve(operator, id, 2))
	require.NoError(t, f.exec(admin, f.ledger.Freeze))
	require.NoError(t, f.exec(admin, f.ledger.Close))

	require.ErrorIs(t, f.exec(admin, f.ledger.Unfreeze), domain.ErrLedgerClosed)
	require.ErrorIs(t, f.exec(admin, f.ledger.Close), domain.ErrLedgerClosed)
	require.ErrorIs(t, f.exec(admin, f.ledger.Freeze), domain.ErrNotActive)
	require.ErrorIs(t, f.reserve(operator, id, 1), domain.ErrNotActive)

	err := f.exec(operator, func(tx *host.Tx) error { return f.ledger.ReleaseReservation(tx, id, 1) })
	require.ErrorIs(t, err, domain.ErrLedgerClosed)
	err = f.exec(operator, func(tx *host.Tx) error { return f.ledger.FinalizeReservation(tx, id, 1) })
	require.ErrorIs(t, err, domain.ErrLedgerClosed)
	err = f.exec(operator, func(tx *host.Tx) error { return f.ledger.SetQuantityItem(tx, id, 5) })
	require.ErrorIs(t, err, domain.ErrLedgerClosed)
	err = f.exec(admin, func(tx *host.Tx) error { return f.ledger.SetOperator(tx, "other") })
	require.ErrorIs(t, err, domain.ErrLedgerClosed)
}

func TestSetQuantityItem_CannotDropBelowReserved(t *testing.T) {
	f := newFixture(t)
	id := f.addItem(t, 10)
	require.NoError(t, f.reserve(operator, id, 6))

	err := f.exec(operator, func(tx *host.Tx) error { return f.ledger.SetQuantityItem(tx, id, 5) })
	require.ErrorIs(t, err, domain.ErrQuantityBelowReserved)
	assert.Equal(t, domain.Quantity(10), f.ledger.GetItem(id).Quantity)

	require.NoError(t, f.exec(operator, func(tx *host.Tx) error { return f.ledger.SetQuantityItem(tx, id, 6) }))
	assert.Zero(t, f.ledger.Available(id))
}

func TestRemoveItem(t *testing.T) {
	f := newFixture(t)
	id := f.addItem(t, 10)
	require.NoError(t, f.reserve(operator, id, 1))

	err := f.exec(operator, func(tx *host.Tx) error { return f.ledger.RemoveItem(tx, id) })
	require.ErrorIs(t, err, domain.ErrNotAdmin)
	err = f.exec(admin, func(tx *host.Tx) error { return f.ledger.RemoveItem(tx, id) })
	require.ErrorIs(t, err, domain.ErrItemHasReservations)

	require.NoError(t, f.exec(operator, func(tx *host.Tx) error { return f.ledger.ReleaseReservation(tx, id, 1) }))
	require.NoError(t, f.exec(admin, func(tx *host.Tx) error { return f.ledger.RemoveItem(tx, id) }))

	it := f.ledger.GetItem(id)
	assert.False(t, it.Exists)
	assert.Zero(t, it.Quantity)
	assert.Zero(t, it.Reserved)
	require.ErrorIs(t, f.reserve(operator, id, 1), domain.ErrItemMissing)
	assert.Equal(t, domain.ItemID(2), f.addItem(t, 1), "removed ids are not reused")
}

func TestOperatorRules(t *testing.T) {
	f := newFixture(t)

	err := f.exec(admin, func(tx *host.Tx) error { return f.ledger.SetOperator(tx, admin) })
	require.ErrorIs(t, err, domain.ErrInvalidOperator)
	err = f.exec(admin, func(tx *host.Tx) error { return f.ledger.SetOperator(tx, "") })
	require.ErrorIs(t, err, domain.ErrInvalidOperator)
	err = f.exec(operator, func(tx *host.Tx) error { return f.ledger.SetOperator(tx, "other") })
	require.ErrorIs(t, err, domain.ErrNotAdmin)

	require.NoError(t, f.exec(admin, f.ledger.RevokeOperator))
	assert.True(t, f.ledger.Operator().Empty())
	require.ErrorIs(t, f.exec(admin, f.ledger.RevokeOperator), domain.ErrUnchanged)

	// An empty caller must never match a revoked operator slot.
	err = f.exec("", func(tx *host.Tx) error {
		_, err := f.ledger.AddItem(tx, "x", 1)
		return err
	})
	require.ErrorIs(t, err, domain.ErrNotAdminOrOperator)
}

func TestEvents_ExactlyOncePerCommittedOperation(t *testing.T) {
	f := newFixture(t)
	before := len(f.rt.Events())

	id := f.addItem(t, 3)
	require.NoError(t, f.reserve(operator, id, 2))
	require.Error(t, f.reserve(operator, id, 2))

	events := f.rt.Events()[before:]
	require.Len(t, events, 2)
	assert.Equal(t, domain.ItemAdded{ItemID: id, Name: "widget", Quantity: 3}, events[0].Payload)
	assert.Equal(t, domain.ItemReserved{ItemID: id, Amount: 2, Quantity: 3, Reserved: 2}, events[1].Payload)
	assert.Equal(t, domain.Account("inventory"), events[1].Source)
}
