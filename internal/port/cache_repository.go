package port

import (
	"context"

	"github.com/rl1809/marketplace/internal/core/domain"
)

type CacheRepository interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ReleaseIdempotency removes a key so a failed request can be retried
	ReleaseIdempotency(ctx context.Context, key string) error

	// SetAvailability mirrors an item's unreserved stock for read paths,
	// ignoring snapshots older than the one stored
	SetAvailability(ctx context.Context, a domain.Availability) error
}
