// Package inventory implements the stock ledger: per-item quantity and
// reservation counters behind an Active/Frozen/Closed lifecycle and an
// admin/operator allow-list.
package inventory

import (
	"fmt"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/core/host"
)

type Ledger struct {
	account  domain.Account
	admin    domain.Account
	operator domain.Account
	state    domain.LedgerState
	items    map[domain.ItemID]*domain.Item
	nextID   domain.ItemID
}

// New creates an active ledger identified by account. admin is fixed for the
// lifetime of the ledger.
func New(account, admin domain.Account) *Ledger {
	return &Ledger{
		account: account,
		admin:   admin,
		state:   domain.LedgerActive,
		items:   make(map[domain.ItemID]*domain.Item),
		nextID:  1,
	}
}

func (l *Ledger) Account() domain.Account   { return l.account }
func (l *Ledger) Admin() domain.Account     { return l.admin }
func (l *Ledger) Operator() domain.Account  { return l.operator }
func (l *Ledger) State() domain.LedgerState { return l.state }

// GetItem returns a copy of the slot. A missing or removed item has Exists
// false.
func (l *Ledger) GetItem(id domain.ItemID) domain.Item {
	if it, ok := l.items[id]; ok {
		return *it
	}
	return domain.Item{ID: id}
}

func (l *Ledger) Available(id domain.ItemID) domain.Quantity {
	return l.GetItem(id).Available()
}

func (l *Ledger) SetOperator(tx *host.Tx, operator domain.Account) error {
	if err := l.onlyAdmin(tx); err != nil {
		return err
	}
	if l.state == domain.LedgerClosed {
		return domain.ErrLedgerClosed
	}
	if operator.Empty() || operator == l.admin {
		return domain.ErrInvalidOperator
	}
	if operator == l.operator {
		return domain.ErrUnchanged
	}
	tx.Emit(l.account, domain.OperatorChanged{Previous: l.operator, Operator: operator})
	host.Set(tx, &l.operator, operator)
	return nil
}

func (l *Ledger) RevokeOperator(tx *host.Tx) error {
	if err := l.onlyAdmin(tx); err != nil {
		return err
	}
	if l.operator.Empty() {
		return domain.ErrUnchanged
	}
	tx.Emit(l.account, domain.OperatorChanged{Previous: l.operator})
	host.Set(tx, &l.operator, "")
	return nil
}

// Freeze stops new reservations while in-flight ones can still be released
// or finalized.
func (l *Ledger) Freeze(tx *host.Tx) error {
	if err := l.onlyAdmin(tx); err != nil {
		return err
	}
	if l.state != domain.LedgerActive {
		return domain.ErrNotActive
	}
	l.transition(tx, domain.LedgerFrozen)
	return nil
}

func (l *Ledger) Unfreeze(tx *host.Tx) error {
	if err := l.onlyAdmin(tx); err != nil {
		return err
	}
	if l.state != domain.LedgerFrozen {
		if l.state == domain.LedgerClosed {
			return domain.ErrLedgerClosed
		}
		return domain.ErrNotFrozen
	}
	l.transition(tx, domain.LedgerActive)
	return nil
}

// Close is terminal.
func (l *Ledger) Close(tx *host.Tx) error {
	if err := l.onlyAdmin(tx); err != nil {
		return err
	}
	if l.state == domain.LedgerClosed {
		return domain.ErrLedgerClosed
	}
	l.transition(tx, domain.LedgerClosed)
	return nil
}

func (l *Ledger) AddItem(tx *host.Tx, name string, quantity domain.Quantity) (domain.ItemID, error) {
	if err := l.onlyAdminOrOperator(tx); err != nil {
		return 0, err
	}
	if err := l.requireActive(); err != nil {
		return 0, err
	}
	if quantity == 0 {
		return 0, domain.ErrQuantityZero
	}

	id := l.nextID
	host.Set(tx, &l.nextID, id+1)
	host.Put(tx, l.items, id, &domain.Item{ID: id, Name: name, Quantity: quantity, Exists: true})
	tx.Emit(l.account, domain.ItemAdded{ItemID: id, Name: name, Quantity: quantity})
	return id, nil
}

// ReserveQuantity is the admission check: amount must fit in the unreserved
// headroom of the item.
func (l *Ledger) ReserveQuantity(tx *host.Tx, id domain.ItemID, amount domain.Quantity) error {
	if err := l.onlyAdminOrOperator(tx); err != nil {
		return err
	}
	if err := l.requireActive(); err != nil {
		return err
	}
	it, err := l.item(id)
	if err != nil {
		return err
	}
	if amount == 0 {
		return domain.ErrQuantityZero
	}
	if amount > it.Available() {
		return fmt.Errorf("%w: item %d has %d, requested %d", domain.ErrNotEnoughAvailable, id, it.Available(), amount)
	}

	host.Set(tx, &it.Reserved, it.Reserved+amount)
	tx.Emit(l.account, domain.ItemReserved{ItemID: id, Amount: amount, Quantity: it.Quantity, Reserved: it.Reserved})
	return nil
}

func (l *Ledger) ReleaseReservation(tx *host.Tx, id domain.ItemID, amount domain.Quantity) error {
	it, err := l.reserved(tx, id, amount)
	if err != nil {
		return err
	}
	host.Set(tx, &it.Reserved, it.Reserved-amount)
	tx.Emit(l.account, domain.ReservationReleased{ItemID: id, Amount: amount, Quantity: it.Quantity, Reserved: it.Reserved})
	return nil
}

// FinalizeReservation consumes reserved stock: both reserved and quantity
// drop by amount.
func (l *Ledger) FinalizeReservation(tx *host.Tx, id domain.ItemID, amount domain.Quantity) error {
	it, err := l.reserved(tx, id, amount)
	if err != nil {
		return err
	}
	host.Set(tx, &it.Reserved, it.Reserved-amount)
	host.Set(tx, &it.Quantity, it.Quantity-amount)
	tx.Emit(l.account, domain.ReservationFinalized{ItemID: id, Amount: amount, Quantity: it.Quantity, Reserved: it.Reserved})
	return nil
}

func (l *Ledger) SetQuantityItem(tx *host.Tx, id domain.ItemID, quantity domain.Quantity) error {
	if err := l.onlyAdminOrOperator(tx); err != nil {
		return err
	}
	if err := l.requireOpen(); err != nil {
		return err
	}
	it, err := l.item(id)
	if err != nil {
		return err
	}
	if quantity < it.Reserved {
		return fmt.Errorf("%w: item %d has %d reserved", domain.ErrQuantityBelowReserved, id, it.Reserved)
	}

	prev := it.Quantity
	host.Set(tx, &it.Quantity, quantity)
	tx.Emit(l.account, domain.ItemQuantitySet{ItemID: id, Previous: prev, Quantity: quantity, Reserved: it.Reserved})
	return nil
}

// RemoveItem clears the slot. The ID is never handed out again.
func (l *Ledger) RemoveItem(tx *host.Tx, id domain.ItemID) error {
	if err := l.onlyAdmin(tx); err != nil {
		return err
	}
	if err := l.requireActive(); err != nil {
		return err
	}
	it, err := l.item(id)
	if err != nil {
		return err
	}
	if it.Reserved > 0 {
		return domain.ErrItemHasReservations
	}

	host.Set(tx, it, domain.Item{ID: id, Name: it.Name})
	tx.Emit(l.account, domain.ItemRemoved{ItemID: id})
	return nil
}

func (l *Ledger) reserved(tx *host.Tx, id domain.ItemID, amount domain.Quantity) (*domain.Item, error) {
	if err := l.onlyAdminOrOperator(tx); err != nil {
		return nil, err
	}
	if err := l.requireOpen(); err != nil {
		return nil, err
	}
	it, err := l.item(id)
	if err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, domain.ErrQuantityZero
	}
	if amount > it.Reserved {
		return nil, fmt.Errorf("%w: item %d has %d reserved, requested %d", domain.ErrNotEnoughReserved, id, it.Reserved, amount)
	}
	return it, nil
}

func (l *Ledger) transition(tx *host.Tx, to domain.LedgerState) {
	tx.Emit(l.account, domain.LedgerStateChanged{From: l.state, To: to})
	host.Set(tx, &l.state, to)
}

func (l *Ledger) item(id domain.ItemID) (*domain.Item, error) {
	it, ok := l.items[id]
	if !ok || !it.Exists {
		return nil, fmt.Errorf("%w: %d", domain.ErrItemMissing, id)
	}
	return it, nil
}

func (l *Ledger) onlyAdmin(tx *host.Tx) error {
	if tx.Caller() != l.admin {
		return domain.ErrNotAdmin
	}
	return nil
}

func (l *Ledger) onlyAdminOrOperator(tx *host.Tx) error {
	c := tx.Caller()
	if c == l.admin || (!l.operator.Empty() && c == l.operator) {
		return nil
	}
	return domain.ErrNotAdminOrOperator
}

func (l *Ledger) requireActive() error {
	if l.state != domain.LedgerActive {
		return domain.ErrNotActive
	}
	return nil
}

// requireOpen admits Active and Frozen.
func (l *Ledger) requireOpen() error {
	if l.state == domain.LedgerClosed {
		return domain.ErrLedgerClosed
	}
	return nil
}
