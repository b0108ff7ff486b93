package port

import (
	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/core/host"
)

// Reserver is the slice of the inventory ledger the order lifecycle uses.
type Reserver interface {
	ReserveQuantity(tx *host.Tx, id domain.ItemID, amount domain.Quantity) error
	ReleaseReservation(tx *host.Tx, id domain.ItemID, amount domain.Quantity) error
	FinalizeReservation(tx *host.Tx, id domain.ItemID, amount domain.Quantity) error
}

// Inventory is the inventory ledger as seen by the settlement engine.
type Inventory interface {
	Reserver
	AddItem(tx *host.Tx, name string, quantity domain.Quantity) (domain.ItemID, error)
	SetQuantityItem(tx *host.Tx, id domain.ItemID, quantity domain.Quantity) error
	RemoveItem(tx *host.Tx, id domain.ItemID) error
	GetItem(id domain.ItemID) domain.Item

	SetOperator(tx *host.Tx, operator domain.Account) error
	RevokeOperator(tx *host.Tx) error

	Freeze(tx *host.Tx) error
	Unfreeze(tx *host.Tx) error
	Close(tx *host.Tx) error
}

// OrderBook is the order lifecycle as seen by the settlement engine.
type OrderBook interface {
	CreateOrder(tx *host.Tx, id domain.ItemID, amount domain.Quantity) (domain.OrderID, error)
	MarkPaid(tx *host.Tx, id domain.OrderID) error
	MarkShipped(tx *host.Tx, id domain.OrderID) error
}
