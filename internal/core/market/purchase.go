package market

import (
	"fmt"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/core/host"
)

// Quote is the priced breakdown of a purchase.
type Quote struct {
	Total    domain.Amount
	Fee      domain.Amount
	Cashback domain.Amount
}

// Receipt describes a committed purchase.
type Receipt struct {
	Quote
	ListingID   domain.ListingID
	OrderID     domain.OrderID
	Amount      domain.Quantity
	FromBalance domain.Amount
	Refund      domain.Amount
}

// Quote prices amount units of a listing for buyer without changing state.
func (e *Engine) Quote(buyer domain.Account, id domain.ListingID, amount domain.Quantity) (Quote, error) {
	l, err := e.listing(id)
	if err != nil {
		return Quote{}, err
	}
	return e.quote(l, buyer, amount)
}

func (e *Engine) quote(l *domain.Listing, buyer domain.Account, amount domain.Quantity) (Quote, error) {
	total, err := l.Price.Mul(amount)
	if err != nil {
		return Quote{}, fmt.Errorf("price %d x %d: %w", l.Price, amount, err)
	}
	rate := e.fees.FeeBps
	if e.vipSellers[l.Seller] {
		rate = e.fees.VIPFeeBps
	}
	fee, err := total.Bps(rate)
	if err != nil {
		return Quote{}, err
	}
	var cashback domain.Amount
	if e.vipBuyers[buyer] {
		if cashback, err = total.Bps(e.fees.CashbackBps); err != nil {
			return Quote{}, err
		}
		cashback = domain.MinAmount(cashback, fee)
	}
	return Quote{Total: total, Fee: fee, Cashback: cashback}, nil
}

// Buy purchases amount units of a listing for the caller. The total is drawn
// from the caller's escrow balance first; the value supplied with the call
// must cover the rest, and anything supplied beyond that is kept as a
// deposit. The order is created and paid in the same operation.
func (e *Engine) Buy(tx *host.Tx, id domain.ListingID, amount domain.Quantity) (Receipt, error) {
	exit, err := e.guard.Enter()
	if err != nil {
		return Receipt{}, err
	}
	defer exit()

	buyer := tx.Caller()
	l, err := e.listing(id)
	if err != nil {
		return Receipt{}, err
	}
	switch {
	case l.Delisted:
		return Receipt{}, domain.ErrListingDelisted
	case !l.IsActive:
		return Receipt{}, domain.ErrListingInactive
	case amount == 0:
		return Receipt{}, domain.ErrQuantityZero
	case buyer == l.Seller:
		return Receipt{}, domain.ErrSelfPurchase
	}

	q, err := e.quote(l, buyer, amount)
	if err != nil {
		return Receipt{}, err
	}

	value := tx.Value()
	fromBalance := domain.MinAmount(e.balances[buyer], q.Total)
	shortfall := q.Total - fromBalance
	if value < shortfall {
		return Receipt{}, fmt.Errorf("%w: need %d, supplied %d", domain.ErrInsufficientPayment, shortfall, value)
	}
	refund := value - shortfall

	// Settle balances before calling out so a reentrant caller sees
	// consistent totals.
	if err := e.receive(tx, value); err != nil {
		return Receipt{}, err
	}
	if err := e.debit(tx, buyer, fromBalance); err != nil {
		return Receipt{}, err
	}
	if err := e.credit(tx, buyer, refund); err != nil {
		return Receipt{}, err
	}
	if err := e.credit(tx, l.Seller, q.Total-q.Fee); err != nil {
		return Receipt{}, err
	}
	if err := e.credit(tx, buyer, q.Cashback); err != nil {
		return Receipt{}, err
	}
	host.Set(tx, &e.platform, e.platform+(q.Fee-q.Cashback))

	orderID, err := e.orders.CreateOrder(tx.As(e.account), l.ItemID, amount)
	if err != nil {
		return Receipt{}, err
	}
	if err := e.orders.MarkPaid(tx.As(e.account), orderID); err != nil {
		return Receipt{}, err
	}
	e.deactivateIfDepleted(tx, l)

	tx.Emit(e.account, domain.Purchased{
		ListingID:      id,
		OrderID:        orderID,
		Buyer:          buyer,
		Seller:         l.Seller,
		Amount:         amount,
		Total:          q.Total,
		Fee:            q.Fee,
		SellerProceeds: q.Total - q.Fee,
	})
	if refund > 0 {
		tx.Emit(e.account, domain.Refunded{Account: buyer, Amount: refund})
	}
	if q.Cashback > 0 {
		tx.Emit(e.account, domain.CashbackPaid{Account: buyer, Amount: q.Cashback})
	}

	return Receipt{
		Quote:       q,
		ListingID:   id,
		OrderID:     orderID,
		Amount:      amount,
		FromBalance: fromBalance,
		Refund:      refund,
	}, nil
}
