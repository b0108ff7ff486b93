package domain

type ListingID uint64

type Listing struct {
	ID       ListingID
	Seller   Account
	ItemID   ItemID
	Name     string
	Price    Amount
	Exists   bool
	IsActive bool
	Delisted bool
}

// FeeSchedule holds the settlement rates in basis points.
type FeeSchedule struct {
	FeeBps      uint64
	VIPFeeBps   uint64
	CashbackBps uint64
}

const (
	BpsDenominator = 10_000
	MaxFeeBps      = 5_000
	MaxCashbackBps = 700
)

// Accounting is the ledger parity snapshot: Held must equal
// UserBalances + PlatformBalance after every committed operation.
type Accounting struct {
	Held            Amount
	UserBalances    Amount
	PlatformBalance Amount
}

func (a Accounting) Balanced() bool {
	sum, err := a.UserBalances.Add(a.PlatformBalance)
	return err == nil && sum == a.Held
}
