package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/zenbilling/backend/internal/domain/shared"
)

// UsageEvent is an immutable record of a single usage report. Once appended
// to the ledger it is never modified or overwritten; corrections are made
// with new events. The (SubscriptionID, IdempotencyKey) pair is unique, so
// replaying a report under retries counts at most once.
type UsageEvent struct {
	shared.BaseEntity
	SubscriptionID uuid.UUID
	Quantity       int64
	IdempotencyKey string
	RecordedAt     time.Time
}

// NewUsageEvent creates a usage event with validation
func NewUsageEvent(subscriptionID uuid.UUID, quantity int64, idempotencyKey string, recordedAt time.Time) (*UsageEvent, error) {
	if subscriptionID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SUBSCRIPTION", "Subscription ID cannot be empty")
	}
	if quantity <= 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Usage quantity must be positive")
	}
	if idempotencyKey == "" {
		return nil, shared.NewDomainError("INVALID_IDEMPOTENCY_KEY", "Idempotency key cannot be empty")
	}
	if recordedAt.IsZero() {
		return nil, shared.NewDomainError("INVALID_TIMESTAMP", "Usage timestamp cannot be zero")
	}

	event := &UsageEvent{
		BaseEntity:     shared.NewBaseEntityAt(recordedAt),
		SubscriptionID: subscriptionID,
		Quantity:       quantity,
		IdempotencyKey: idempotencyKey,
		RecordedAt:     recordedAt,
	}
	return event, nil
}

// InPeriod returns true if the event belongs to the half-open period
// [start, end). The exclusive end is the rollover tie-break: an event
// stamped exactly at a boundary belongs to the opening period.
func (e *UsageEvent) InPeriod(start, end time.Time) bool {
	return !e.RecordedAt.Before(start) && e.RecordedAt.Before(end)
}

// RecordResult is what a ledger append returns. Deduplicated reports are a
// successful no-op carrying the originally recorded event.
type RecordResult struct {
	Event        *UsageEvent
	Deduplicated bool
}
