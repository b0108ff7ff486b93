package port

import (
	"context"

	"github.com/rl1809/marketplace/internal/core/domain"
)

type EventPublisher interface {
	// Publish forwards a committed batch to downstream consumers
	Publish(ctx context.Context, events []domain.Event) error
}
