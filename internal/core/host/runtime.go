// Package host provides the execution environment the marketplace components
// run in: serialized top-level operations, caller identity, a clock, a payout
// primitive and all-or-nothing commit of state changes and facts.
package host

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/marketplace/internal/core/domain"
)

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

var SystemClock Clock = ClockFunc(time.Now)

// Payer is the fallible "pay out N units to account A" primitive.
type Payer interface {
	Pay(ctx context.Context, to domain.Account, amount domain.Amount) error
}

type PayerFunc func(ctx context.Context, to domain.Account, amount domain.Amount) error

func (f PayerFunc) Pay(ctx context.Context, to domain.Account, amount domain.Amount) error {
	return f(ctx, to, amount)
}

// Sink receives every committed batch of events, in commit order, while the
// runtime still holds its lock. Sinks must not call back into the runtime.
type Sink interface {
	Committed(events []domain.Event)
}

type SinkFunc func(events []domain.Event)

func (f SinkFunc) Committed(events []domain.Event) { f(events) }

// Call describes a top-level operation as supplied by the caller.
type Call struct {
	Op     string
	Caller domain.Account
	Value  domain.Amount
}

type Option func(*Runtime)

func WithClock(c Clock) Option         { return func(r *Runtime) { r.clock = c } }
func WithPayer(p Payer) Option         { return func(r *Runtime) { r.payer = p } }
func WithLogger(l *zap.Logger) Option  { return func(r *Runtime) { r.logger = l } }
func WithTracer(t trace.Tracer) Option { return func(r *Runtime) { r.tracer = t } }

type Runtime struct {
	mu     sync.Mutex
	clock  Clock
	payer  Payer
	logger *zap.Logger
	tracer trace.Tracer
	sinks  []Sink
	log    []domain.Event
	seq    uint64
}

func NewRuntime(opts ...Option) *Runtime {
	r := &Runtime{
		clock:  SystemClock,
		logger: zap.NewNop(),
		tracer: otel.Tracer("github.com/rl1809/marketplace/host"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe adds a sink for committed events.
func (r *Runtime) Subscribe(s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append(r.sinks, s)
}

// Execute runs fn as one serialized, atomic operation. If fn returns an error
// every journaled write is undone and no event is published.
func (r *Runtime) Execute(ctx context.Context, call Call, fn func(tx *Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, span := r.tracer.Start(ctx, "market."+call.Op)
	defer span.End()

	j := &journal{
		id:    uuid.New(),
		op:    call.Op,
		now:   r.clock.Now(),
		payer: r.payer,
	}
	span.SetAttributes(
		attribute.String("market.tx_id", j.id.String()),
		attribute.String("market.caller", string(call.Caller)),
		attribute.Int64("market.value", int64(call.Value)),
	)
	tx := &Tx{ctx: ctx, caller: call.Caller, value: call.Value, journal: j}

	if err := r.run(tx, fn); err != nil {
		j.revert()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Debug("operation reverted",
			zap.String("op", call.Op),
			zap.String("tx_id", j.id.String()),
			zap.String("caller", string(call.Caller)),
			zap.String("code", string(domain.CodeOf(err))),
			zap.Error(err),
		)
		return err
	}

	batch := j.events
	for i := range batch {
		r.seq++
		batch[i].Seq = r.seq
	}
	r.log = append(r.log, batch...)
	span.SetAttributes(attribute.Int("market.events", len(batch)))
	span.SetStatus(codes.Ok, "committed")

	if len(batch) > 0 {
		for _, s := range r.sinks {
			s.Committed(batch)
		}
	}
	return nil
}

// run converts a panic inside fn into ErrReverted so the journal still unwinds.
func (r *Runtime) run(tx *Tx, fn func(tx *Tx) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("operation panicked", zap.String("op", tx.journal.op), zap.Any("panic", p))
			err = ErrReverted
		}
	}()
	return fn(tx)
}

// View runs a read-only function under the runtime lock.
func (r *Runtime) View(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn()
}

// Events returns a copy of the committed log.
func (r *Runtime) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Event, len(r.log))
	copy(out, r.log)
	return out
}

// Now reads the clock the runtime stamps operations with.
func (r *Runtime) Now() time.Time { return r.clock.Now() }

var ErrReverted = &domain.Error{Kind: domain.KindUnknown, Code: "REVERTED", Message: "operation reverted"}
