// Package order tracks buyer commitments against inventory reservations.
package order

import (
	"fmt"
	"time"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/core/host"
	"github.com/rl1809/marketplace/internal/port"
)

const DefaultCancelWindow = 30 * time.Minute

type Option func(*Lifecycle)

func WithCancelWindow(d time.Duration) Option {
	return func(l *Lifecycle) { l.window = d }
}

type Lifecycle struct {
	account   domain.Account
	authority domain.Account
	inventory port.Reserver
	window    time.Duration
	orders    map[domain.OrderID]*domain.Order
	nextID    domain.OrderID
	guard     host.Guard
}

// New creates a lifecycle identified by account. authority may mark orders
// paid and shipped.
func New(account, authority domain.Account, inventory port.Reserver, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		account:   account,
		authority: authority,
		inventory: inventory,
		window:    DefaultCancelWindow,
		orders:    make(map[domain.OrderID]*domain.Order),
		nextID:    1,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Lifecycle) Account() domain.Account     { return l.account }
func (l *Lifecycle) Authority() domain.Account   { return l.authority }
func (l *Lifecycle) CancelWindow() time.Duration { return l.window }

// NextOrderID is the id the next successful CreateOrder will assign.
func (l *Lifecycle) NextOrderID() domain.OrderID { return l.nextID }

func (l *Lifecycle) Order(id domain.OrderID) (domain.Order, error) {
	o, ok := l.orders[id]
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: %d", domain.ErrOrderMissing, id)
	}
	return *o, nil
}

// CreateOrder reserves amount of item for the caller. The reservation is
// taken before anything is recorded, so a failed reservation leaves no
// order and does not consume an id.
func (l *Lifecycle) CreateOrder(tx *host.Tx, itemID domain.ItemID, amount domain.Quantity) (domain.OrderID, error) {
	exit, err := l.guard.Enter()
	if err != nil {
		return 0, err
	}
	defer exit()

	if amount == 0 {
		return 0, domain.ErrQuantityZero
	}
	if err := l.inventory.ReserveQuantity(tx.As(l.account), itemID, amount); err != nil {
		return 0, fmt.Errorf("reserve item %d: %w", itemID, err)
	}

	id := l.nextID
	now := tx.Now()
	host.Set(tx, &l.nextID, id+1)
	host.Put(tx, l.orders, id, &domain.Order{
		ID:        id,
		Buyer:     tx.Caller(),
		ItemID:    itemID,
		Amount:    amount,
		Status:    domain.OrderStatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	})
	tx.Emit(l.account, domain.OrderCreated{OrderID: id, Buyer: tx.Caller(), ItemID: itemID, Amount: amount, CreatedAt: now})
	return id, nil
}

// CancelOrder is open to the buyer while the order is Created and
// now <= createdAt + window.
func (l *Lifecycle) CancelOrder(tx *host.Tx, id domain.OrderID) error {
	exit, err := l.guard.Enter()
	if err != nil {
		return err
	}
	defer exit()

	o, err := l.order(id)
	if err != nil {
		return err
	}
	if tx.Caller() != o.Buyer {
		return domain.ErrNotBuyer
	}
	if !o.Status.CanTransition(domain.OrderStatusCancelled) {
		return fmt.Errorf("%w: order %d is %s", domain.ErrInvalidOrderState, id, o.Status)
	}
	if tx.Now().After(o.CreatedAt.Add(l.window)) {
		return domain.ErrCancelWindowExpired
	}

	l.transition(tx, o, domain.OrderStatusCancelled)
	tx.Emit(l.account, domain.OrderCancelled{OrderID: id, Buyer: o.Buyer, ItemID: o.ItemID, Amount: o.Amount})
	if err := l.inventory.ReleaseReservation(tx.As(l.account), o.ItemID, o.Amount); err != nil {
		return fmt.Errorf("release order %d: %w", id, err)
	}
	return nil
}

func (l *Lifecycle) MarkPaid(tx *host.Tx, id domain.OrderID) error {
	exit, err := l.guard.Enter()
	if err != nil {
		return err
	}
	defer exit()

	o, err := l.authorized(tx, id, domain.OrderStatusPaid)
	if err != nil {
		return err
	}

	l.transition(tx, o, domain.OrderStatusPaid)
	tx.Emit(l.account, domain.OrderPaid{OrderID: id, ItemID: o.ItemID, Amount: o.Amount})
	if err := l.inventory.FinalizeReservation(tx.As(l.account), o.ItemID, o.Amount); err != nil {
		return fmt.Errorf("finalize order %d: %w", id, err)
	}
	return nil
}

func (l *Lifecycle) MarkShipped(tx *host.Tx, id domain.OrderID) error {
	o, err := l.authorized(tx, id, domain.OrderStatusShipped)
	if err != nil {
		return err
	}
	l.transition(tx, o, domain.OrderStatusShipped)
	tx.Emit(l.account, domain.OrderShipped{OrderID: id})
	return nil
}

func (l *Lifecycle) TransferAuthority(tx *host.Tx, authority domain.Account) error {
	if tx.Caller() != l.authority {
		return domain.ErrNotAuthority
	}
	if authority.Empty() {
		return domain.ErrEmptyAccount
	}
	if authority == l.authority {
		return domain.ErrUnchanged
	}
	tx.Emit(l.account, domain.AuthorityTransferred{Previous: l.authority, Authority: authority})
	host.Set(tx, &l.authority, authority)
	return nil
}

func (l *Lifecycle) authorized(tx *host.Tx, id domain.OrderID, next domain.OrderStatus) (*domain.Order, error) {
	if tx.Caller() != l.authority {
		return nil, domain.ErrNotAuthority
	}
	o, err := l.order(id)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanTransition(next) {
		return nil, fmt.Errorf("%w: order %d is %s", domain.ErrInvalidOrderState, id, o.Status)
	}
	return o, nil
}

func (l *Lifecycle) transition(tx *host.Tx, o *domain.Order, next domain.OrderStatus) {
	host.Set(tx, &o.Status, next)
	host.Set(tx, &o.UpdatedAt, tx.Now())
}

func (l *Lifecycle) order(id domain.OrderID) (*domain.Order, error) {
	o, ok := l.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrOrderMissing, id)
	}
	return o, nil
}
