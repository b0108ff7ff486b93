package port

import (
	"context"
	"errors"

	"github.com/rl1809/marketplace/internal/core/domain"
)

// ErrOptimisticLock is returned by ProjectOrder when a newer version of the
// order is already stored.
var ErrOptimisticLock = errors.New("optimistic lock conflict")

type DatabaseRepository interface {
	// AppendEvents persists a committed batch of facts in one transaction
	AppendEvents(ctx context.Context, events []domain.Event) error

	// ProjectOrder writes an order's latest state, guarded by its status version
	ProjectOrder(ctx context.Context, order domain.Order) error

	// GetOrder retrieves a projected order, nil if absent
	GetOrder(ctx context.Context, id domain.OrderID) (*domain.Order, error)
}
