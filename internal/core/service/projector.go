package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/port"
)

const defaultProjectTimeout = 5 * time.Second

// Projector drains committed event batches into the read side: the audit
// log, the order table, downstream consumers and the availability cache.
// Projection failures are logged and never touch core state.
type Projector struct {
	db        port.DatabaseRepository
	cache     port.CacheRepository
	publisher port.EventPublisher
	logger    *zap.Logger
	timeout   time.Duration
}

// NewProjector builds a projector. Any of db, cache and publisher may be nil
// to skip that projection.
func NewProjector(db port.DatabaseRepository, cache port.CacheRepository, publisher port.EventPublisher, logger *zap.Logger) *Projector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Projector{
		db:        db,
		cache:     cache,
		publisher: publisher,
		logger:    logger,
		timeout:   defaultProjectTimeout,
	}
}

// Start runs workers goroutines over queue and returns a WaitGroup that is
// done once the queue is closed and drained.
func (p *Projector) Start(workers int, queue <-chan []domain.Event) *sync.WaitGroup {
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.workerLoop(id, queue)
		}(i)
	}
	p.logger.Info("started projector workers", zap.Int("workers", workers))
	return &wg
}

func (p *Projector) workerLoop(id int, queue <-chan []domain.Event) {
	for batch := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		p.Project(ctx, batch)
		cancel()
		if len(batch) > 0 {
			p.logger.Debug("projected batch", zap.Int("worker", id), zap.Uint64("first_seq", batch[0].Seq), zap.Int("events", len(batch)))
		}
	}
}

// Project applies one committed batch to every configured sink.
func (p *Projector) Project(ctx context.Context, batch []domain.Event) {
	if len(batch) == 0 {
		return
	}
	log := p.logger.With(zap.String("tx_id", batch[0].TxID.String()), zap.String("op", batch[0].Op))

	if p.db != nil {
		if err := p.db.AppendEvents(ctx, batch); err != nil {
			log.Error("failed to append events", zap.Error(err))
		}
		for _, o := range foldOrders(batch) {
			err := p.db.ProjectOrder(ctx, o)
			switch {
			case errors.Is(err, port.ErrOptimisticLock):
				log.Warn("stale order projection", zap.Uint64("order_id", uint64(o.ID)), zap.String("status", string(o.Status)))
			case err != nil:
				log.Error("failed to project order", zap.Uint64("order_id", uint64(o.ID)), zap.Error(err))
			}
		}
	}

	if p.publisher != nil {
		if err := p.publisher.Publish(ctx, batch); err != nil {
			log.Error("failed to publish events", zap.Error(err))
		}
	}

	if p.cache != nil {
		for _, a := range foldAvailability(batch) {
			if err := p.cache.SetAvailability(ctx, a); err != nil {
				log.Error("failed to mirror availability", zap.Uint64("item_id", uint64(a.ItemID)), zap.Error(err))
			}
		}
	}
}

// foldOrders reduces a batch to the latest known state of each order it
// touches, in first-seen order. Orders bought through the settlement engine
// report the purchasing account as buyer.
func foldOrders(batch []domain.Event) []domain.Order {
	var ids []domain.OrderID
	byID := make(map[domain.OrderID]*domain.Order)
	get := func(id domain.OrderID) *domain.Order {
		o, ok := byID[id]
		if !ok {
			o = &domain.Order{ID: id}
			byID[id] = o
			ids = append(ids, id)
		}
		return o
	}
	advance := func(o *domain.Order, status domain.OrderStatus, at time.Time) {
		if status.Version() > o.Status.Version() {
			o.Status = status
			o.UpdatedAt = at
		}
	}

	for _, ev := range batch {
		switch p := ev.Payload.(type) {
		case domain.OrderCreated:
			o := get(p.OrderID)
			if o.Buyer.Empty() {
				o.Buyer = p.Buyer
			}
			o.ItemID, o.Amount, o.CreatedAt = p.ItemID, p.Amount, p.CreatedAt
			advance(o, domain.OrderStatusCreated, ev.At)
		case domain.OrderCancelled:
			o := get(p.OrderID)
			o.ItemID, o.Amount = p.ItemID, p.Amount
			advance(o, domain.OrderStatusCancelled, ev.At)
		case domain.OrderPaid:
			o := get(p.OrderID)
			o.ItemID, o.Amount = p.ItemID, p.Amount
			advance(o, domain.OrderStatusPaid, ev.At)
		case domain.OrderShipped:
			advance(get(p.OrderID), domain.OrderStatusShipped, ev.At)
		case domain.Purchased:
			get(p.OrderID).Buyer = p.Buyer
		}
	}

	out := make([]domain.Order, 0, len(ids))
	for _, id := range ids {
		out = append(out, *byID[id])
	}
	return out
}

// foldAvailability returns the post-batch unreserved stock of every item the
// batch touches, in first-seen order.
func foldAvailability(batch []domain.Event) []domain.Availability {
	var out []domain.Availability
	index := make(map[domain.ItemID]int)
	set := func(id domain.ItemID, available domain.Quantity, seq uint64) {
		a := domain.Availability{ItemID: id, Available: available, Seq: seq}
		if i, ok := index[id]; ok {
			out[i] = a
			return
		}
		index[id] = len(out)
		out = append(out, a)
	}
	for _, ev := range batch {
		switch p := ev.Payload.(type) {
		case domain.ItemAdded:
			set(p.ItemID, p.Quantity, ev.Seq)
		case domain.ItemReserved:
			set(p.ItemID, p.Quantity-p.Reserved, ev.Seq)
		case domain.ReservationReleased:
			set(p.ItemID, p.Quantity-p.Reserved, ev.Seq)
		case domain.ReservationFinalized:
			set(p.ItemID, p.Quantity-p.Reserved, ev.Seq)
		case domain.ItemQuantitySet:
			set(p.ItemID, p.Quantity-p.Reserved, ev.Seq)
		case domain.ItemRemoved:
			set(p.ItemID, 0, ev.Seq)
		}
	}
	return out
}
