package market

import (
	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/core/host"
)

// CreateItem registers quantity units of a new inventory item and lists them
// for the calling seller at price per unit.
func (e *Engine) CreateItem(tx *host.Tx, name string, quantity domain.Quantity, price domain.Amount) (domain.ListingID, error) {
	seller := tx.Caller()
	if !e.sellers[seller] {
		return 0, domain.ErrNotSeller
	}
	if price == 0 {
		return 0, domain.ErrPriceZero
	}

	itemID, err := e.inventory.AddItem(tx.As(e.account), name, quantity)
	if err != nil {
		return 0, err
	}

	id := e.nextID
	host.Set(tx, &e.nextID, id+1)
	host.Put(tx, e.listings, id, &domain.Listing{
		ID:       id,
		Seller:   seller,
		ItemID:   itemID,
		Name:     name,
		Price:    price,
		Exists:   true,
		IsActive: true,
	})
	tx.Emit(e.account, domain.ListingCreated{
		ListingID: id,
		Seller:    seller,
		ItemID:    itemID,
		Name:      name,
		Price:     price,
		Quantity:  quantity,
	})
	return id, nil
}

func (e *Engine) SetItemPrice(tx *host.Tx, id domain.ListingID, price domain.Amount) error {
	l, err := e.editable(tx, id)
	if err != nil {
		return err
	}
	if price == 0 {
		return domain.ErrPriceZero
	}
	if price == l.Price {
		return domain.ErrUnchanged
	}
	tx.Emit(e.account, domain.ListingPriced{ListingID: id, Previous: l.Price, Price: price})
	host.Set(tx, &l.Price, price)
	return nil
}

// SetQuantity resets the total stock of the listing's item. A listing left
// with no available stock is deactivated.
func (e *Engine) SetQuantity(tx *host.Tx, id domain.ListingID, quantity domain.Quantity) error {
	l, err := e.editable(tx, id)
	if err != nil {
		return err
	}
	if err := e.inventory.SetQuantityItem(tx.As(e.account), l.ItemID, quantity); err != nil {
		return err
	}
	tx.Emit(e.account, domain.ListingQuantityChanged{ListingID: id, ItemID: l.ItemID, Quantity: quantity})
	e.deactivateIfDepleted(tx, l)
	return nil
}

func (e *Engine) SetItemActive(tx *host.Tx, id domain.ListingID, active bool) error {
	l, err := e.editable(tx, id)
	if err != nil {
		return err
	}
	if active == l.IsActive {
		return domain.ErrUnchanged
	}
	if active && e.inventory.GetItem(l.ItemID).Available() == 0 {
		return domain.ErrNoAvailableStock
	}
	e.setActive(tx, l, active)
	return nil
}

// DelistingItem soft-removes (delisted=true) or restores a listing. Restoring
// recomputes IsActive from live inventory.
func (e *Engine) DelistingItem(tx *host.Tx, id domain.ListingID, delisted bool) error {
	l, err := e.owned(tx, id)
	if err != nil {
		return err
	}
	if delisted == l.Delisted {
		return domain.ErrUnchanged
	}

	host.Set(tx, &l.Delisted, delisted)
	tx.Emit(e.account, domain.ListingDelistingChanged{ListingID: id, Delisted: delisted})

	active := !delisted && e.inventory.GetItem(l.ItemID).Available() > 0
	if active != l.IsActive {
		e.setActive(tx, l, active)
	}
	return nil
}

func (e *Engine) setActive(tx *host.Tx, l *domain.Listing, active bool) {
	host.Set(tx, &l.IsActive, active)
	tx.Emit(e.account, domain.ListingActiveChanged{ListingID: l.ID, Active: active})
}

func (e *Engine) deactivateIfDepleted(tx *host.Tx, l *domain.Listing) {
	if l.IsActive && e.inventory.GetItem(l.ItemID).Available() == 0 {
		e.setActive(tx, l, false)
	}
}

// owned returns the listing if the caller is its seller or the admin.
func (e *Engine) owned(tx *host.Tx, id domain.ListingID) (*domain.Listing, error) {
	l, err := e.listing(id)
	if err != nil {
		return nil, err
	}
	if c := tx.Caller(); c != l.Seller && c != e.admin {
		return nil, domain.ErrNotListingOwner
	}
	return l, nil
}

func (e *Engine) editable(tx *host.Tx, id domain.ListingID) (*domain.Listing, error) {
	l, err := e.owned(tx, id)
	if err != nil {
		return nil, err
	}
	if l.Delisted {
		return nil, domain.ErrListingDelisted
	}
	return l, nil
}

func (e *Engine) listing(id domain.ListingID) (*domain.Listing, error) {
	l, ok := e.listings[id]
	if !ok || !l.Exists {
		return nil, domain.ErrListingMissing
	}
	return l, nil
}
