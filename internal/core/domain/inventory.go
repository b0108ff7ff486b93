package domain

type ItemID uint64

type LedgerState uint8

const (
	LedgerActive LedgerState = iota
	LedgerFrozen
	LedgerClosed
)

func (s LedgerState) String() string {
	switch s {
	case LedgerActive:
		return "active"
	case LedgerFrozen:
		return "frozen"
	case LedgerClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Item is a stock slot in the inventory ledger. Slots are never reused: a
// removed item keeps its ID with Exists cleared and counters zeroed.
type Item struct {
	ID       ItemID
	Name     string
	Quantity Quantity
	Reserved Quantity
	Exists   bool
}

// Available is the stock that can still be reserved.
func (i Item) Available() Quantity {
	if i.Reserved > i.Quantity {
		return 0
	}
	return i.Quantity - i.Reserved
}

// Availability is the unreserved stock of an item as of event Seq.
type Availability struct {
	ItemID    ItemID   `json:"item_id"`
	Available Quantity `json:"available"`
	Seq       uint64   `json:"seq"`
}
