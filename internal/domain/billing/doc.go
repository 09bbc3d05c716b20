// Package billing provides the domain model for the subscription and usage
// metering core.
//
// This package implements the billing bounded context, which is responsible for:
//   - Owning each subscription's lifecycle (trial, active, past_due, cancelled)
//   - Recording usage events against subscriptions with at-most-once semantics
//   - Deriving quota consumption and warning levels for the current period
//   - Materializing immutable invoices at period boundaries
//
// Key Aggregates:
//   - Subscription: lifecycle status, period boundaries, usage-in-period
//   - Invoice: immutable once issued, numbered monotonically per customer
//
// Value Objects:
//   - UsageEvent: immutable fact of usage, deduplicated by idempotency key
//   - UsageMeter: derived quota consumption for a subscription's current period
//
// The billing domain integrates with:
//   - Catalog domain: for plan prices, quotas, and trial lengths
//   - Payment processor: as an opaque, possibly-slow charge collaborator
package billing
