package shared

import (
	"context"
	"time"
)

// IdempotencyStore stores processed event IDs to prevent duplicate processing
// of payment-processor callbacks.
type IdempotencyStore interface {
	// MarkProcessed marks an event as processed with a TTL.
	// Returns true if the event was newly marked, false if it was already processed.
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)

	// IsProcessed checks if an event has already been processed
	IsProcessed(ctx context.Context, eventID string) (bool, error)

	// Release drops the mark for an event so a later delivery can claim it
	// again. Used when processing fails after the event was marked.
	Release(ctx context.Context, eventID string) error

	// Close closes the store and releases resources
	Close() error
}
