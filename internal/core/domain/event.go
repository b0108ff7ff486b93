package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventKind string

// Payload is the body of a committed fact.
type Payload interface {
	EventKind() EventKind
}

// Event is an immutable audit record. Seq is assigned on commit and is
// strictly increasing across the committed log.
type Event struct {
	ID      uuid.UUID `json:"id"`
	Seq     uint64    `json:"seq"`
	TxID    uuid.UUID `json:"tx_id"`
	Op      string    `json:"op"`
	Source  Account   `json:"source"`
	Kind    EventKind `json:"kind"`
	At      time.Time `json:"at"`
	Payload Payload   `json:"payload"`
}

const (
	KindItemAdded            EventKind = "inventory.item_added"
	KindItemReserved         EventKind = "inventory.item_reserved"
	KindReservationReleased  EventKind = "inventory.reservation_released"
	KindReservationFinalized EventKind = "inventory.reservation_finalized"
	KindItemQuantitySet      EventKind = "inventory.item_quantity_set"
	KindItemRemoved          EventKind = "inventory.item_removed"
	KindLedgerStateChanged   EventKind = "inventory.state_changed"
	KindOperatorChanged      EventKind = "inventory.operator_changed"

	KindOrderCreated         EventKind = "order.created"
	KindOrderCancelled       EventKind = "order.cancelled"
	KindOrderPaid            EventKind = "order.paid"
	KindOrderShipped         EventKind = "order.shipped"
	KindAuthorityTransferred EventKind = "order.authority_transferred"

	KindListingCreated          EventKind = "market.listing_created"
	KindListingPriced           EventKind = "market.listing_priced"
	KindListingQuantityChanged  EventKind = "market.listing_quantity_changed"
	KindListingActiveChanged    EventKind = "market.listing_active_changed"
	KindListingDelistingChanged EventKind = "market.listing_delisting_changed"
	KindListingRemoved          EventKind = "market.listing_removed"
	KindPurchased               EventKind = "market.purchased"
	KindDeposited               EventKind = "market.deposited"
	KindWithdrawn               EventKind = "market.withdrawn"
	KindPlatformWithdrawn       EventKind = "market.platform_withdrawn"
	KindRefunded                EventKind = "market.refunded"
	KindCashbackPaid            EventKind = "market.cashback_paid"
	KindFeeChanged              EventKind = "market.fee_changed"
	KindSellerChanged           EventKind = "market.seller_changed"
	KindVIPChanged              EventKind = "market.vip_changed"
)

// Inventory facts carry the post-operation counters so projections need no
// read-back.

type ItemAdded struct {
	ItemID   ItemID   `json:"item_id"`
	Name     string   `json:"name"`
	Quantity Quantity `json:"quantity"`
}

type ItemReserved struct {
	ItemID   ItemID   `json:"item_id"`
	Amount   Quantity `json:"amount"`
	Quantity Quantity `json:"quantity"`
	Reserved Quantity `json:"reserved"`
}

type ReservationReleased struct {
	ItemID   ItemID   `json:"item_id"`
	Amount   Quantity `json:"amount"`
	Quantity Quantity `json:"quantity"`
	Reserved Quantity `json:"reserved"`
}

type ReservationFinalized struct {
	ItemID   ItemID   `json:"item_id"`
	Amount   Quantity `json:"amount"`
	Quantity Quantity `json:"quantity"`
	Reserved Quantity `json:"reserved"`
}

type ItemQuantitySet struct {
	ItemID   ItemID   `json:"item_id"`
	Previous Quantity `json:"previous"`
	Quantity Quantity `json:"quantity"`
	Reserved Quantity `json:"reserved"`
}

type ItemRemoved struct {
	ItemID ItemID `json:"item_id"`
}

type LedgerStateChanged struct {
	From LedgerState `json:"from"`
	To   LedgerState `json:"to"`
}

type OperatorChanged struct {
	Previous Account `json:"previous"`
	Operator Account `json:"operator"`
}

type OrderCreated struct {
	OrderID   OrderID   `json:"order_id"`
	Buyer     Account   `json:"buyer"`
	ItemID    ItemID    `json:"item_id"`
	Amount    Quantity  `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

type OrderCancelled struct {
	OrderID OrderID  `json:"order_id"`
	Buyer   Account  `json:"buyer"`
	ItemID  ItemID   `json:"item_id"`
	Amount  Quantity `json:"amount"`
}

type OrderPaid struct {
	OrderID OrderID  `json:"order_id"`
	ItemID  ItemID   `json:"item_id"`
	Amount  Quantity `json:"amount"`
}

type OrderShipped struct {
	OrderID OrderID `json:"order_id"`
}

type AuthorityTransferred struct {
	Previous  Account `json:"previous"`
	Authority Account `json:"authority"`
}

type ListingCreated struct {
	ListingID ListingID `json:"listing_id"`
	Seller    Account   `json:"seller"`
	ItemID    ItemID    `json:"item_id"`
	Name      string    `json:"name"`
	Price     Amount    `json:"price"`
	Quantity  Quantity  `json:"quantity"`
}

type ListingPriced struct {
	ListingID ListingID `json:"listing_id"`
	Previous  Amount    `json:"previous"`
	Price     Amount    `json:"price"`
}

type ListingQuantityChanged struct {
	ListingID ListingID `json:"listing_id"`
	ItemID    ItemID    `json:"item_id"`
	Quantity  Quantity  `json:"quantity"`
}

type ListingActiveChanged struct {
	ListingID ListingID `json:"listing_id"`
	Active    bool      `json:"active"`
}

type ListingDelistingChanged struct {
	ListingID ListingID `json:"listing_id"`
	Delisted  bool      `json:"delisted"`
}

type ListingRemoved struct {
	ListingID ListingID `json:"listing_id"`
	ItemID    ItemID    `json:"item_id"`
}

type Purchased struct {
	ListingID      ListingID `json:"listing_id"`
	OrderID        OrderID   `json:"order_id"`
	Buyer          Account   `json:"buyer"`
	Seller         Account   `json:"seller"`
	Amount         Quantity  `json:"amount"`
	Total          Amount    `json:"total"`
	Fee            Amount    `json:"fee"`
	SellerProceeds Amount    `json:"seller_proceeds"`
}

type Deposited struct {
	Account Account `json:"account"`
	Amount  Amount  `json:"amount"`
}

type Withdrawn struct {
	Account Account `json:"account"`
	Amount  Amount  `json:"amount"`
}

type PlatformWithdrawn struct {
	To     Account `json:"to"`
	Amount Amount  `json:"amount"`
}

// Refunded records overpayment credited back to the buyer's balance.
type Refunded struct {
	Account Account `json:"account"`
	Amount  Amount  `json:"amount"`
}

type CashbackPaid struct {
	Account Account `json:"account"`
	Amount  Amount  `json:"amount"`
}

type FeeKind string

const (
	FeeStandard FeeKind = "fee"
	FeeVIP      FeeKind = "vip_fee"
	FeeCashback FeeKind = "cashback"
)

type FeeChanged struct {
	Fee      FeeKind `json:"fee"`
	Previous uint64  `json:"previous"`
	Bps      uint64  `json:"bps"`
}

type SellerChanged struct {
	Account  Account `json:"account"`
	Approved bool    `json:"approved"`
}

type VIPRole string

const (
	VIPBuyer  VIPRole = "buyer"
	VIPSeller VIPRole = "seller"
)

type VIPChanged struct {
	Account Account `json:"account"`
	Role    VIPRole `json:"role"`
	VIP     bool    `json:"vip"`
}

func (ItemAdded) EventKind() EventKind               { return KindItemAdded }
func (ItemReserved) EventKind() EventKind            { return KindItemReserved }
func (ReservationReleased) EventKind() EventKind     { return KindReservationReleased }
func (ReservationFinalized) EventKind() EventKind    { return KindReservationFinalized }
func (ItemQuantitySet) EventKind() EventKind         { return KindItemQuantitySet }
func (ItemRemoved) EventKind() EventKind             { return KindItemRemoved }
func (LedgerStateChanged) EventKind() EventKind      { return KindLedgerStateChanged }
func (OperatorChanged) EventKind() EventKind         { return KindOperatorChanged }
func (OrderCreated) EventKind() EventKind            { return KindOrderCreated }
func (OrderCancelled) EventKind() EventKind          { return KindOrderCancelled }
func (OrderPaid) EventKind() EventKind               { return KindOrderPaid }
func (OrderShipped) EventKind() EventKind            { return KindOrderShipped }
func (AuthorityTransferred) EventKind() EventKind    { return KindAuthorityTransferred }
func (ListingCreated) EventKind() EventKind          { return KindListingCreated }
func (ListingPriced) EventKind() EventKind           { return KindListingPriced }
func (ListingQuantityChanged) EventKind() EventKind  { return KindListingQuantityChanged }
func (ListingActiveChanged) EventKind() EventKind    { return KindListingActiveChanged }
func (ListingDelistingChanged) EventKind() EventKind { return KindListingDelistingChanged }
func (ListingRemoved) EventKind() EventKind          { return KindListingRemoved }
func (Purchased) EventKind() EventKind               { return KindPurchased }
func (Deposited) EventKind() EventKind               { return KindDeposited }
func (Withdrawn) EventKind() EventKind               { return KindWithdrawn }
func (PlatformWithdrawn) EventKind() EventKind       { return KindPlatformWithdrawn }
func (Refunded) EventKind() EventKind                { return KindRefunded }
func (CashbackPaid) EventKind() EventKind            { return KindCashbackPaid }
func (FeeChanged) EventKind() EventKind              { return KindFeeChanged }
func (SellerChanged) EventKind() EventKind           { return KindSellerChanged }
func (VIPChanged) EventKind() EventKind              { return KindVIPChanged }
