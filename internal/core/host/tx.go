package host

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/marketplace/internal/core/domain"
)

// Tx is one call frame of a top-level operation. Nested frames created with
// As share the parent's journal, so a failure anywhere unwinds everything.
type Tx struct {
	ctx     context.Context
	caller  domain.Account
	value   domain.Amount
	journal *journal
}

type journal struct {
	id     uuid.UUID
	op     string
	now    time.Time
	payer  Payer
	undo   []func()
	events []domain.Event
}

func (tx *Tx) Context() context.Context { return tx.ctx }
func (tx *Tx) Caller() domain.Account    { return tx.caller }
func (tx *Tx) Now() time.Time            { return tx.journal.now }
func (tx *Tx) ID() uuid.UUID             { return tx.journal.id }

// Value is the amount of funds supplied with this frame. Only the top-level
// frame carries value.
func (tx *Tx) Value() domain.Amount { return tx.value }

// As opens a nested frame in which account is the caller.
func (tx *Tx) As(account domain.Account) *Tx {
	return &Tx{ctx: tx.ctx, caller: account, journal: tx.journal}
}

// Emit buffers a fact from source. It becomes visible only if the whole
// operation commits.
func (tx *Tx) Emit(source domain.Account, p domain.Payload) {
	tx.journal.events = append(tx.journal.events, domain.Event{
		ID:      uuid.New(),
		TxID:    tx.journal.id,
		Op:      tx.journal.op,
		Source:  source,
		Kind:    p.EventKind(),
		At:      tx.journal.now,
		Payload: p,
	})
}

// OnRevert registers fn to run if the operation fails.
func (tx *Tx) OnRevert(fn func()) {
	tx.journal.undo = append(tx.journal.undo, fn)
}

// Pay transfers amount out of the host to the given account.
func (tx *Tx) Pay(to domain.Account, amount domain.Amount) error {
	if tx.journal.payer == nil {
		return fmt.Errorf("%w: no payout primitive", domain.ErrPayoutFailed)
	}
	if err := tx.journal.payer.Pay(tx.ctx, to, amount); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPayoutFailed, err)
	}
	return nil
}

func (j *journal) revert() {
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	j.undo = nil
	j.events = nil
}

// Set assigns v to *p and records the previous value.
func Set[T any](tx *Tx, p *T, v T) {
	old := *p
	tx.OnRevert(func() { *p = old })
	*p = v
}

// Put stores m[k] = v and records whether k was present before.
func Put[K comparable, V any](tx *Tx, m map[K]V, k K, v V) {
	old, ok := m[k]
	tx.OnRevert(func() {
		if ok {
			m[k] = old
		} else {
			delete(m, k)
		}
	})
	m[k] = v
}
