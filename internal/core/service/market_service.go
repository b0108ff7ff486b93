package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/core/host"
	"github.com/rl1809/marketplace/internal/core/inventory"
	"github.com/rl1809/marketplace/internal/core/market"
	"github.com/rl1809/marketplace/internal/core/order"
	"github.com/rl1809/marketplace/internal/port"
)

// System accounts the three components are deployed under.
const (
	InventoryAccount domain.Account = "system:inventory"
	OrdersAccount    domain.Account = "system:orders"
	MarketAccount    domain.Account = "system:market"
)

var ErrDuplicateRequest = errors.New("duplicate request")

type Config struct {
	Admin        domain.Account
	Fees         domain.FeeSchedule
	CancelWindow time.Duration
	QueueSize    int
}

// MarketService runs every public operation of the marketplace as one
// atomic runtime call and hands committed event batches to the projector.
type MarketService struct {
	rt     *host.Runtime
	ledger *inventory.Ledger
	orders *order.Lifecycle
	engine *market.Engine

	cache  port.CacheRepository
	logger *zap.Logger

	queue     chan []domain.Event
	dropped   atomic.Uint64
	closed    bool
	closeOnce sync.Once
}

// NewMarketService deploys the inventory ledger, order lifecycle and
// settlement engine on a fresh runtime and wires their roles. cache may be
// nil, in which case purchases are not deduplicated.
func NewMarketService(cfg Config, cache port.CacheRepository, logger *zap.Logger, opts ...host.Option) (*MarketService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	if cfg.CancelWindow <= 0 {
		cfg.CancelWindow = order.DefaultCancelWindow
	}

	rt := host.NewRuntime(append([]host.Option{host.WithLogger(logger)}, opts...)...)
	ledger := inventory.New(InventoryAccount, MarketAccount)
	orders := order.New(OrdersAccount, MarketAccount, ledger, order.WithCancelWindow(cfg.CancelWindow))
	engine, err := market.New(MarketAccount, cfg.Admin, ledger, orders, cfg.Fees)
	if err != nil {
		return nil, fmt.Errorf("settlement engine: %w", err)
	}

	s := &MarketService{
		rt:     rt,
		ledger: ledger,
		orders: orders,
		engine: engine,
		cache:  cache,
		logger: logger,
		queue:  make(chan []domain.Event, cfg.QueueSize),
	}
	rt.Subscribe(s)

	err = rt.Execute(context.Background(), host.Call{Op: "bootstrap", Caller: MarketAccount}, func(tx *host.Tx) error {
		return ledger.SetOperator(tx, OrdersAccount)
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap inventory operator: %w", err)
	}
	logger.Info("marketplace deployed",
		zap.String("admin", string(cfg.Admin)),
		zap.Uint64("fee_bps", cfg.Fees.FeeBps),
		zap.Uint64("vip_fee_bps", cfg.Fees.VIPFeeBps),
		zap.Uint64("cashback_bps", cfg.Fees.CashbackBps),
		zap.Duration("cancel_window", cfg.CancelWindow),
	)
	return s, nil
}

// Committed implements host.Sink. It runs under the runtime lock and never
// blocks: a batch that does not fit the queue is dropped from the projection
// and stays available from Events.
func (s *MarketService) Committed(events []domain.Event) {
	if s.closed {
		return
	}
	batch := make([]domain.Event, len(events))
	copy(batch, events)

	select {
	case s.queue <- batch:
	default:
		dropped := s.dropped.Add(1)
		s.logger.Error("event queue full, dropped batch",
			zap.Int("capacity", cap(s.queue)),
			zap.Uint64("first_seq", batch[0].Seq),
			zap.Int("events", len(batch)),
			zap.Uint64("dropped_total", dropped),
		)
	}
}

func (s *MarketService) GetEventQueue() <-chan []domain.Event {
	return s.queue
}

// Dropped reports how many committed batches never reached the queue.
func (s *MarketService) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *MarketService) Close() {
	s.closeOnce.Do(func() {
		s.rt.View(func() {
			s.closed = true
			close(s.queue)
		})
	})
}

func (s *MarketService) exec(ctx context.Context, op string, caller domain.Account, value domain.Amount, fn func(tx *host.Tx) error) error {
	if err := external(caller); err != nil {
		return err
	}
	return s.rt.Execute(ctx, host.Call{Op: op, Caller: caller, Value: value}, fn)
}

// external rejects the accounts the components are deployed under. Only the
// components themselves may act as those.
func external(a domain.Account) error {
	switch a {
	case "":
		return domain.ErrEmptyAccount
	case InventoryAccount, OrdersAccount, MarketAccount:
		return fmt.Errorf("%w: %s", domain.ErrReservedAccount, a)
	}
	return nil
}

// Purchase buys amount units of a listing. requestID, when set, makes the
// call idempotent per caller; the key is released again if the purchase
// fails so the client can retry.
func (s *MarketService) Purchase(ctx context.Context, requestID string, caller domain.Account, id domain.ListingID, amount domain.Quantity, value domain.Amount) (market.Receipt, error) {
	if err := external(caller); err != nil {
		return market.Receipt{}, err
	}

	var key string
	if requestID != "" && s.cache != nil {
		key = fmt.Sprintf("purchase:%s:%s", caller, requestID)
		ok, err := s.cache.SetIdempotency(ctx, key)
		if err != nil {
			return market.Receipt{}, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !ok {
			return market.Receipt{}, ErrDuplicateRequest
		}
	}

	var r market.Receipt
	err := s.exec(ctx, "purchase", caller, value, func(tx *host.Tx) (err error) {
		r, err = s.engine.Buy(tx, id, amount)
		return err
	})
	if err != nil {
		if key != "" {
			if relErr := s.cache.ReleaseIdempotency(ctx, key); relErr != nil {
				s.logger.Error("release idempotency key", zap.String("key", key), zap.Error(relErr))
			}
		}
		return market.Receipt{}, err
	}

	s.logger.Info("purchase committed",
		zap.String("buyer", string(caller)),
		zap.Uint64("listing_id", uint64(id)),
		zap.Uint64("order_id", uint64(r.OrderID)),
		zap.Uint64("amount", uint64(amount)),
		zap.Uint64("total", uint64(r.Total)),
	)
	return r, nil
}

func (s *MarketService) Deposit(ctx context.Context, caller domain.Account, value domain.Amount) error {
	return s.exec(ctx, "deposit", caller, value, s.engine.Deposit)
}

func (s *MarketService) Withdraw(ctx context.Context, caller domain.Account, amount domain.Amount) error {
	return s.exec(ctx, "withdraw", caller, 0, func(tx *host.Tx) error {
		return s.engine.WithdrawForUser(tx, amount)
	})
}

func (s *MarketService) WithdrawPlatform(ctx context.Context, caller domain.Account, amount domain.Amount) error {
	return s.exec(ctx, "withdraw_platform", caller, 0, func(tx *host.Tx) error {
		return s.engine.WithdrawForPlatform(tx, amount)
	})
}

func (s *MarketService) CreateListing(ctx context.Context, caller domain.Account, name string, quantity domain.Quantity, price domain.Amount) (domain.ListingID, error) {
	var id domain.ListingID
	err := s.exec(ctx, "create_listing", caller, 0, func(tx *host.Tx) (err error) {
		id, err = s.engine.CreateItem(tx, name, quantity, price)
		return err
	})
	return id, err
}

func (s *MarketService) SetPrice(ctx context.Context, caller domain.Account, id domain.ListingID, price domain.Amount) error {
	return s.exec(ctx, "set_price", caller, 0, func(tx *host.Tx) error {
		return s.engine.SetItemPrice(tx, id, price)
	})
}

func (s *MarketService) SetListingQuantity(ctx context.Context, caller domain.Account, id domain.ListingID, quantity domain.Quantity) error {
	return s.exec(ctx, "set_quantity", caller, 0, func(tx *host.Tx) error {
		return s.engine.SetQuantity(tx, id, quantity)
	})
}

func (s *MarketService) SetListingActive(ctx context.Context, caller domain.Account, id domain.ListingID, active bool) error {
	return s.exec(ctx, "set_active", caller, 0, func(tx *host.Tx) error {
		return s.engine.SetItemActive(tx, id, active)
	})
}

func (s *MarketService) SetDelisted(ctx context.Context, caller domain.Account, id domain.ListingID, delisted bool) error {
	return s.exec(ctx, "set_delisted", caller, 0, func(tx *host.Tx) error {
		return s.engine.DelistingItem(tx, id, delisted)
	})
}

func (s *MarketService) ShipOrder(ctx context.Context, caller domain.Account, id domain.OrderID) error {
	return s.exec(ctx, "ship_order", caller, 0, func(tx *host.Tx) error {
		return s.engine.ShipOrder(tx, id)
	})
}

// RemoveListing deletes a listing and its inventory item. Platform admin only.
func (s *MarketService) RemoveListing(ctx context.Context, caller domain.Account, id domain.ListingID) error {
	return s.exec(ctx, "remove_listing", caller, 0, func(tx *host.Tx) error {
		return s.engine.RemoveListing(tx, id)
	})
}

// SetOrderIntake pauses or resumes purchases by revoking or restoring the
// order lifecycle's right to reserve stock.
func (s *MarketService) SetOrderIntake(ctx context.Context, caller domain.Account, open bool) error {
	return s.exec(ctx, "set_order_intake", caller, 0, func(tx *host.Tx) error {
		if open {
			return s.engine.SetInventoryOperator(tx, OrdersAccount)
		}
		return s.engine.RevokeInventoryOperator(tx)
	})
}

// OrderIntakeOpen reports whether purchases can reserve stock.
func (s *MarketService) OrderIntakeOpen() (open bool) {
	s.rt.View(func() { open = s.ledger.Operator() == OrdersAccount })
	return open
}

func (s *MarketService) ApproveSeller(ctx context.Context, caller, seller domain.Account, approved bool) error {
	if err := external(seller); err != nil {
		return err
	}
	return s.exec(ctx, "approve_seller", caller, 0, func(tx *host.Tx) error {
		return s.engine.SetSeller(tx, seller, approved)
	})
}

func (s *MarketService) SetVIP(ctx context.Context, caller, account domain.Account, role domain.VIPRole, vip bool) error {
	if err := external(account); err != nil {
		return err
	}
	return s.exec(ctx, "set_vip", caller, 0, func(tx *host.Tx) error {
		switch role {
		case domain.VIPBuyer:
			return s.engine.SetVIPBuyer(tx, account, vip)
		case domain.VIPSeller:
			return s.engine.SetVIPSeller(tx, account, vip)
		}
		return fmt.Errorf("%w: vip role %q", domain.ErrInvalidArgument, role)
	})
}

func (s *MarketService) SetFee(ctx context.Context, caller domain.Account, kind domain.FeeKind, bps uint64) error {
	return s.exec(ctx, "set_fee", caller, 0, func(tx *host.Tx) error {
		switch kind {
		case domain.FeeStandard:
			return s.engine.SetFeeBps(tx, bps)
		case domain.FeeVIP:
			return s.engine.SetVIPFeeBps(tx, bps)
		case domain.FeeCashback:
			return s.engine.SetCashbackBps(tx, bps)
		}
		return fmt.Errorf("%w: fee kind %q", domain.ErrInvalidArgument, kind)
	})
}

// Inventory circuit breaker actions accepted by SetInventoryState.
const (
	InventoryFreeze   = "freeze"
	InventoryUnfreeze = "unfreeze"
	InventoryClose    = "close"
)

func (s *MarketService) SetInventoryState(ctx context.Context, caller domain.Account, action string) error {
	switch action {
	case InventoryFreeze:
		return s.FreezeInventory(ctx, caller)
	case InventoryUnfreeze:
		return s.UnfreezeInventory(ctx, caller)
	case InventoryClose:
		return s.CloseInventory(ctx, caller)
	}
	return fmt.Errorf("%w: inventory action %q", domain.ErrInvalidArgument, action)
}

func (s *MarketService) FreezeInventory(ctx context.Context, caller domain.Account) error {
	return s.exec(ctx, "freeze_inventory", caller, 0, s.engine.FreezeInventory)
}

func (s *MarketService) UnfreezeInventory(ctx context.Context, caller domain.Account) error {
	return s.exec(ctx, "unfreeze_inventory", caller, 0, s.engine.UnfreezeInventory)
}

func (s *MarketService) CloseInventory(ctx context.Context, caller domain.Account) error {
	return s.exec(ctx, "close_inventory", caller, 0, s.engine.CloseInventory)
}

func (s *MarketService) Listing(id domain.ListingID) (l domain.Listing, err error) {
	s.rt.View(func() { l, err = s.engine.Listing(id) })
	return l, err
}

func (s *MarketService) Item(id domain.ItemID) (it domain.Item) {
	s.rt.View(func() { it = s.ledger.GetItem(id) })
	return it
}

func (s *MarketService) Order(id domain.OrderID) (o domain.Order, err error) {
	s.rt.View(func() { o, err = s.orders.Order(id) })
	return o, err
}

func (s *MarketService) Quote(buyer domain.Account, id domain.ListingID, amount domain.Quantity) (q market.Quote, err error) {
	s.rt.View(func() { q, err = s.engine.Quote(buyer, id, amount) })
	return q, err
}

func (s *MarketService) Balance(a domain.Account) (b domain.Amount) {
	s.rt.View(func() { b = s.engine.Balance(a) })
	return b
}

func (s *MarketService) Accounting() (acc domain.Accounting) {
	s.rt.View(func() { acc = s.engine.Accounting() })
	return acc
}

func (s *MarketService) InventoryState() (st domain.LedgerState) {
	s.rt.View(func() { st = s.ledger.State() })
	return st
}

func (s *MarketService) Events() []domain.Event {
	return s.rt.Events()
}
