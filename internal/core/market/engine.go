// Package market is the settlement engine: seller listings over inventory
// items, purchase pricing with fees and VIP cashback, and escrowed balances
// for buyers, sellers and the platform.
package market

import (
	"fmt"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/core/host"
	"github.com/rl1809/marketplace/internal/port"
)

type Engine struct {
	account   domain.Account
	admin     domain.Account
	inventory port.Inventory
	orders    port.OrderBook

	sellers    map[domain.Account]bool
	vipBuyers  map[domain.Account]bool
	vipSellers map[domain.Account]bool

	listings map[domain.ListingID]*domain.Listing
	nextID   domain.ListingID

	fees domain.FeeSchedule

	// Ledger parity: held == userTotal + platform.
	balances  map[domain.Account]domain.Amount
	userTotal domain.Amount
	platform  domain.Amount
	held      domain.Amount

	guard host.Guard
}

// New creates an engine identified by account. The engine must be admin or
// operator of inventory and the order authority of orders.
func New(account, admin domain.Account, inventory port.Inventory, orders port.OrderBook, fees domain.FeeSchedule) (*Engine, error) {
	if err := validateFees(fees); err != nil {
		return nil, err
	}
	return &Engine{
		account:    account,
		admin:      admin,
		inventory:  inventory,
		orders:     orders,
		sellers:    make(map[domain.Account]bool),
		vipBuyers:  make(map[domain.Account]bool),
		vipSellers: make(map[domain.Account]bool),
		listings:   make(map[domain.ListingID]*domain.Listing),
		nextID:     1,
		fees:       fees,
		balances:   make(map[domain.Account]domain.Amount),
	}, nil
}

func validateFees(f domain.FeeSchedule) error {
	if f.FeeBps > domain.MaxFeeBps || f.VIPFeeBps > domain.MaxFeeBps {
		return domain.ErrFeeTooHigh
	}
	if f.CashbackBps > domain.MaxCashbackBps {
		return domain.ErrCashbackTooHigh
	}
	return nil
}

func (e *Engine) Account() domain.Account  { return e.account }
func (e *Engine) Admin() domain.Account    { return e.admin }
func (e *Engine) Fees() domain.FeeSchedule { return e.fees }

func (e *Engine) Balance(a domain.Account) domain.Amount { return e.balances[a] }

func (e *Engine) IsSeller(a domain.Account) bool    { return e.sellers[a] }
func (e *Engine) IsVIPBuyer(a domain.Account) bool  { return e.vipBuyers[a] }
func (e *Engine) IsVIPSeller(a domain.Account) bool { return e.vipSellers[a] }

// Accounting returns the parity snapshot for external invariant checks.
func (e *Engine) Accounting() domain.Accounting {
	return domain.Accounting{Held: e.held, UserBalances: e.userTotal, PlatformBalance: e.platform}
}

func (e *Engine) Listing(id domain.ListingID) (domain.Listing, error) {
	l, ok := e.listings[id]
	if !ok || !l.Exists {
		return domain.Listing{}, fmt.Errorf("%w: %d", domain.ErrListingMissing, id)
	}
	return *l, nil
}

func (e *Engine) SetSeller(tx *host.Tx, a domain.Account, approved bool) error {
	if err := e.onlyAdmin(tx); err != nil {
		return err
	}
	if a.Empty() {
		return domain.ErrEmptyAccount
	}
	if e.sellers[a] == approved {
		return domain.ErrUnchanged
	}
	host.Put(tx, e.sellers, a, approved)
	tx.Emit(e.account, domain.SellerChanged{Account: a, Approved: approved})
	return nil
}

func (e *Engine) SetVIPBuyer(tx *host.Tx, a domain.Account, vip bool) error {
	return e.setVIP(tx, e.vipBuyers, domain.VIPBuyer, a, vip)
}

func (e *Engine) SetVIPSeller(tx *host.Tx, a domain.Account, vip bool) error {
	return e.setVIP(tx, e.vipSellers, domain.VIPSeller, a, vip)
}

func (e *Engine) setVIP(tx *host.Tx, set map[domain.Account]bool, role domain.VIPRole, a domain.Account, vip bool) error {
	if err := e.onlyAdmin(tx); err != nil {
		return err
	}
	if a.Empty() {
		return domain.ErrEmptyAccount
	}
	if set[a] == vip {
		return domain.ErrUnchanged
	}
	host.Put(tx, set, a, vip)
	tx.Emit(e.account, domain.VIPChanged{Account: a, Role: role, VIP: vip})
	return nil
}

func (e *Engine) SetFeeBps(tx *host.Tx, bps uint64) error {
	return e.setRate(tx, domain.FeeStandard, &e.fees.FeeBps, bps, domain.MaxFeeBps, domain.ErrFeeTooHigh)
}

func (e *Engine) SetVIPFeeBps(tx *host.Tx, bps uint64) error {
	return e.setRate(tx, domain.FeeVIP, &e.fees.VIPFeeBps, bps, domain.MaxFeeBps, domain.ErrFeeTooHigh)
}

func (e *Engine) SetCashbackBps(tx *host.Tx, bps uint64) error {
	return e.setRate(tx, domain.FeeCashback, &e.fees.CashbackBps, bps, domain.MaxCashbackBps, domain.ErrCashbackTooHigh)
}

func (e *Engine) setRate(tx *host.Tx, kind domain.FeeKind, rate *uint64, bps, limit uint64, tooHigh error) error {
	if err := e.onlyAdmin(tx); err != nil {
		return err
	}
	if bps > limit {
		return fmt.Errorf("%w: %d > %d bps", tooHigh, bps, limit)
	}
	if bps == *rate {
		return domain.ErrUnchanged
	}
	tx.Emit(e.account, domain.FeeChanged{Fee: kind, Previous: *rate, Bps: bps})
	host.Set(tx, rate, bps)
	return nil
}

// FreezeInventory, UnfreezeInventory and CloseInventory drive the inventory
// circuit breaker on behalf of the platform admin.
func (e *Engine) FreezeInventory(tx *host.Tx) error {
	if err := e.onlyAdmin(tx); err != nil {
		return err
	}
	return e.inventory.Freeze(tx.As(e.account))
}

func (e *Engine) UnfreezeInventory(tx *host.Tx) error {
	if err := e.onlyAdmin(tx); err != nil {
		return err
	}
	return e.inventory.Unfreeze(tx.As(e.account))
}

func (e *Engine) CloseInventory(tx *host.Tx) error {
	if err := e.onlyAdmin(tx); err != nil {
		return err
	}
	return e.inventory.Close(tx.As(e.account))
}

// SetInventoryOperator appoints the account allowed to reserve stock, which
// is how purchases reach the ledger. RevokeInventoryOperator halts every
// new purchase until an operator is appointed again.
func (e *Engine) SetInventoryOperator(tx *host.Tx, operator domain.Account) error {
	if err := e.onlyAdmin(tx); err != nil {
		return err
	}
	return e.inventory.SetOperator(tx.As(e.account), operator)
}

func (e *Engine) RevokeInventoryOperator(tx *host.Tx) error {
	if err := e.onlyAdmin(tx); err != nil {
		return err
	}
	return e.inventory.RevokeOperator(tx.As(e.account))
}

// RemoveListing deletes a listing together with its inventory item. The item
// must carry no reservations.
func (e *Engine) RemoveListing(tx *host.Tx, id domain.ListingID) error {
	if err := e.onlyAdmin(tx); err != nil {
		return err
	}
	l, err := e.listing(id)
	if err != nil {
		return err
	}
	if err := e.inventory.RemoveItem(tx.As(e.account), l.ItemID); err != nil {
		return err
	}
	if l.IsActive {
		e.setActive(tx, l, false)
	}
	host.Set(tx, &l.Exists, false)
	tx.Emit(e.account, domain.ListingRemoved{ListingID: id, ItemID: l.ItemID})
	return nil
}

// ShipOrder marks a paid order shipped; the engine holds the order authority.
func (e *Engine) ShipOrder(tx *host.Tx, id domain.OrderID) error {
	if err := e.onlyAdmin(tx); err != nil {
		return err
	}
	return e.orders.MarkShipped(tx.As(e.account), id)
}

func (e *Engine) onlyAdmin(tx *host.Tx) error {
	if tx.Caller() != e.admin {
		return domain.ErrNotAdmin
	}
	return nil
}

// credit adds amount to a user balance and the running user total.
func (e *Engine) credit(tx *host.Tx, a domain.Account, amount domain.Amount) error {
	if amount == 0 {
		return nil
	}
	bal, err := e.balances[a].Add(amount)
	if err != nil {
		return err
	}
	total, err := e.userTotal.Add(amount)
	if err != nil {
		return err
	}
	host.Put(tx, e.balances, a, bal)
	host.Set(tx, &e.userTotal, total)
	return nil
}

func (e *Engine) debit(tx *host.Tx, a domain.Account, amount domain.Amount) error {
	if amount == 0 {
		return nil
	}
	bal, err := e.balances[a].Sub(amount)
	if err != nil {
		return domain.ErrInsufficientBalance
	}
	host.Put(tx, e.balances, a, bal)
	host.Set(tx, &e.userTotal, e.userTotal-amount)
	return nil
}

func (e *Engine) receive(tx *host.Tx, amount domain.Amount) error {
	held, err := e.held.Add(amount)
	if err != nil {
		return err
	}
	host.Set(tx, &e.held, held)
	return nil
}
