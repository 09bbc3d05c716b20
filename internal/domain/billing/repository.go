package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CustomerRepository persists customers
type CustomerRepository interface {
	// Save persists a new customer; fails with ErrAlreadyExists on a
	// duplicate email
	Save(ctx context.Context, customer *Customer) error

	// FindByID retrieves a customer by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Customer, error)

	// List retrieves all customers ordered by creation time
	List(ctx context.Context) ([]*Customer, error)

	// Count returns the total number of customers
	Count(ctx context.Context) (int64, error)
}

// SubscriptionRepository persists subscriptions. Update enforces optimistic
// locking: a write against a stale version fails with ErrConcurrencyConflict
// and must be retried by the caller.
type SubscriptionRepository interface {
	// Save persists a new subscription
	Save(ctx context.Context, sub *Subscription) error

	// Update persists changes to an existing subscription, checking the
	// aggregate version
	Update(ctx context.Context, sub *Subscription) error

	// FindByID retrieves a subscription by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Subscription, error)

	// FindByCustomer retrieves the customer's subscriptions, newest first
	FindByCustomer(ctx context.Context, customerID uuid.UUID) ([]*Subscription, error)

	// FindDue retrieves subscriptions owed a time-based transition at the
	// given instant: active past period end, trials past trial end, and
	// past-due subscriptions awaiting a retry or grace check
	FindDue(ctx context.Context, now time.Time) ([]*Subscription, error)

	// List retrieves all subscriptions (metrics scan)
	List(ctx context.Context) ([]*Subscription, error)
}

// UsageEventRepository is the append-only usage ledger. Events are never
// updated or overwritten; Compact is the only deletion path and only after
// the covering invoice is durably issued.
type UsageEventRepository interface {
	// Append persists a usage event; fails with ErrAlreadyExists if the
	// (subscription, idempotency key) pair was already recorded
	Append(ctx context.Context, event *UsageEvent) error

	// FindByIdempotencyKey retrieves a previously recorded event for dedup
	FindByIdempotencyKey(ctx context.Context, subscriptionID uuid.UUID, key string) (*UsageEvent, error)

	// SumForPeriod sums quantities of events with start <= timestamp < end
	SumForPeriod(ctx context.Context, subscriptionID uuid.UUID, start, end time.Time) (int64, error)

	// DeleteBefore discards events recorded strictly before the given time,
	// returning the number removed
	DeleteBefore(ctx context.Context, subscriptionID uuid.UUID, before time.Time) (int64, error)
}

// InvoiceRepository persists issued invoices
type InvoiceRepository interface {
	// Save persists a newly issued invoice
	Save(ctx context.Context, invoice *Invoice) error

	// Update persists a status change (paid / overdue)
	Update(ctx context.Context, invoice *Invoice) error

	// FindByID retrieves an invoice by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// FindByPeriod retrieves the invoice issued for a subscription period,
	// or ErrNotFound; backs idempotent generation
	FindByPeriod(ctx context.Context, subscriptionID uuid.UUID, periodStart time.Time) (*Invoice, error)

	// FindLatestBySubscription retrieves the most recently issued invoice
	// for a subscription, or ErrNotFound; gates ledger compaction
	FindLatestBySubscription(ctx context.Context, subscriptionID uuid.UUID) (*Invoice, error)

	// FindByCustomer retrieves a customer's invoices, newest first
	FindByCustomer(ctx context.Context, customerID uuid.UUID) ([]*Invoice, error)

	// FindUnpaidByCustomer retrieves pending and overdue invoices for a customer
	FindUnpaidByCustomer(ctx context.Context, customerID uuid.UUID) ([]*Invoice, error)
}

// InvoiceSequenceRepository hands out per-customer invoice sequence values.
// Values are strictly increasing per customer under concurrent generation;
// gaps are permitted, repeats are not.
type InvoiceSequenceRepository interface {
	Next(ctx context.Context, customerID uuid.UUID) (int64, error)
}

// PaymentMethodRepository mirrors processor-owned payment methods, read-only
// apart from the mirror refresh.
type PaymentMethodRepository interface {
	// Save stores or refreshes the mirror for a customer
	Save(ctx context.Context, pm *PaymentMethod) error

	// FindByCustomer retrieves the customer's payment method, or ErrNotFound
	FindByCustomer(ctx context.Context, customerID uuid.UUID) (*PaymentMethod, error)
}
