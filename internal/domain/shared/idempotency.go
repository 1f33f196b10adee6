package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers keys that were already handled.
// It is a fast path only: the durable guarantee for settlement lives in the database.
type IdempotencyStore interface {
	// MarkProcessed marks a key with a TTL.
	// Returns true if the key was newly marked, false if it was already present.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks whether a key is present
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Forget removes a key so a failed attempt can be retried
	Forget(ctx context.Context, key string) error

	// Close releases resources
	Close() error
}

// DefaultIdempotencyTTL is how long processed keys are remembered
const DefaultIdempotencyTTL = 24 * time.Hour
