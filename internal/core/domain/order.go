package domain

import "time"

type OrderID uint64

type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "created"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusShipped   OrderStatus = "shipped"
)

// Version is the number of transitions an order has taken to reach s.
// Projections use it as an optimistic lock.
func (s OrderStatus) Version() int {
	switch s {
	case OrderStatusCreated:
		return 1
	case OrderStatusCancelled, OrderStatusPaid:
		return 2
	case OrderStatusShipped:
		return 3
	default:
		return 0
	}
}

// Terminal reports whether no transition leaves s.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCancelled || s == OrderStatusShipped
}

// CanTransition reports whether the lifecycle allows s -> next.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	switch s {
	case OrderStatusCreated:
		return next == OrderStatusCancelled || next == OrderStatusPaid
	case OrderStatusPaid:
		return next == OrderStatusShipped
	default:
		return false
	}
}

type Order struct {
	ID        OrderID
	Buyer     Account
	ItemID    ItemID
	Amount    Quantity
	Status    OrderStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}
