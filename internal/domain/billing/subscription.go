package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/zenbilling/backend/internal/domain/catalog"
	"github.com/zenbilling/backend/internal/domain/shared"
)

// SubscriptionStatus is the closed set of lifecycle states a subscription
// can be in. Transitions are only performed through Subscription methods,
// so an invalid status is not representable outside of corrupted storage.
type SubscriptionStatus string

const (
	// StatusTrial means the subscription is inside its free trial window
	StatusTrial SubscriptionStatus = "trial"

	// StatusActive means the subscription is paid up for the current period
	StatusActive SubscriptionStatus = "active"

	// StatusPastDue means the latest charge failed and the subscription is
	// inside its grace window awaiting a successful retry
	StatusPastDue SubscriptionStatus = "past_due"

	// StatusCancelled is terminal; no transitions leave it
	StatusCancelled SubscriptionStatus = "cancelled"
)

// String returns the string representation of SubscriptionStatus
func (s SubscriptionStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is a known lifecycle state
func (s SubscriptionStatus) IsValid() bool {
	switch s {
	case StatusTrial, StatusActive, StatusPastDue, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal returns true if no transition leaves this status
func (s SubscriptionStatus) IsTerminal() bool {
	return s == StatusCancelled
}

// Subscription is the aggregate owning a customer's lifecycle status,
// period boundaries, and usage-in-period counter. All mutations go through
// its methods; the ledger and invoice generator only read it.
type Subscription struct {
	shared.BaseAggregateRoot
	CustomerID         uuid.UUID
	PlanID             string
	Status             SubscriptionStatus
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	TrialEnd           *time.Time
	UsageInPeriod      int64
	PastDueSince       *time.Time
	ChargeAttempts     int
	RequiresAttention  bool
}

// NewSubscription starts a subscription on the given plan. Plans with a
// trial period open in trial, everything else opens active. The first
// billing period starts immediately.
func NewSubscription(customerID uuid.UUID, plan *catalog.Plan, now time.Time) (*Subscription, error) {
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}
	if plan == nil {
		return nil, shared.NewDomainError("INVALID_PLAN", "Plan is required")
	}

	sub := &Subscription{
		BaseAggregateRoot:  shared.NewBaseAggregateRoot(),
		CustomerID:         customerID,
		PlanID:             plan.ID,
		Status:             StatusActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   AddInterval(now, plan.Interval),
	}
	sub.CreatedAt = now
	sub.UpdatedAt = now

	if plan.HasTrial() {
		trialEnd := now.AddDate(0, 0, plan.TrialDays)
		// Trial end must fall within the current period.
		if trialEnd.After(sub.CurrentPeriodEnd) {
			trialEnd = sub.CurrentPeriodEnd
		}
		sub.Status = StatusTrial
		sub.TrialEnd = &trialEnd
	}

	return sub, nil
}

// AddInterval advances a timestamp by one billing interval
func AddInterval(t time.Time, interval catalog.BillingInterval) time.Time {
	if interval == catalog.IntervalYear {
		return t.AddDate(1, 0, 0)
	}
	return t.AddDate(0, 1, 0)
}

// SubtractInterval rewinds a timestamp by one billing interval
func SubtractInterval(t time.Time, interval catalog.BillingInterval) time.Time {
	if interval == catalog.IntervalYear {
		return t.AddDate(-1, 0, 0)
	}
	return t.AddDate(0, -1, 0)
}

// AccrueUsage adds quantity to the usage-in-period counter.
// Cancelled subscriptions cannot accrue further usage.
func (s *Subscription) AccrueUsage(quantity int64, now time.Time) error {
	if s.Status == StatusCancelled {
		return shared.ErrSubscriptionInactive
	}
	if quantity <= 0 {
		return shared.NewDomainError("INVALID_QUANTITY", "Usage quantity must be positive")
	}
	s.UsageInPeriod += quantity
	s.UpdatedAt = now
	return nil
}

// IsDue returns true if the current period has closed and a rollover is owed.
// Past-due subscriptions hold their closed period until payment resolves, so
// only active subscriptions roll.
func (s *Subscription) IsDue(now time.Time) bool {
	return s.Status == StatusActive && !now.Before(s.CurrentPeriodEnd)
}

// TrialExpired returns true if the subscription is in trial and the trial
// window has passed.
func (s *Subscription) TrialExpired(now time.Time) bool {
	return s.Status == StatusTrial && s.TrialEnd != nil && !now.Before(*s.TrialEnd)
}

// AdvancePeriod closes the current period and opens the next one. The caller
// snapshots usage before advancing and reattributes boundary events afterwards
// via ResetUsage. Fails from terminal states.
func (s *Subscription) AdvancePeriod(interval catalog.BillingInterval, now time.Time) error {
	if s.Status.IsTerminal() {
		return shared.ErrInvalidTransition
	}
	s.CurrentPeriodStart = s.CurrentPeriodEnd
	s.CurrentPeriodEnd = AddInterval(s.CurrentPeriodEnd, interval)
	s.UsageInPeriod = 0
	s.TrialEnd = nil
	s.UpdatedAt = now
	return nil
}

// ResetUsage sets the usage-in-period counter to the given total. Used after
// a rollover to attribute events that landed in the new period while the
// boundary was being processed.
func (s *Subscription) ResetUsage(total int64, now time.Time) {
	if total < 0 {
		total = 0
	}
	s.UsageInPeriod = total
	s.UpdatedAt = now
}

// ApplyChargeSuccess records a successful charge: trial converts to active,
// past-due recovers to active, active stays active. Attempt bookkeeping resets.
func (s *Subscription) ApplyChargeSuccess(now time.Time) error {
	switch s.Status {
	case StatusTrial, StatusActive, StatusPastDue:
		s.Status = StatusActive
		s.PastDueSince = nil
		s.ChargeAttempts = 0
		s.RequiresAttention = false
		s.UpdatedAt = now
		return nil
	default:
		return shared.ErrInvalidTransition
	}
}

// ApplyChargeFailure records a failed or timed-out charge and moves the
// subscription into past_due, starting the grace window on the first failure.
func (s *Subscription) ApplyChargeFailure(now time.Time) error {
	switch s.Status {
	case StatusTrial, StatusActive, StatusPastDue:
		s.Status = StatusPastDue
		if s.PastDueSince == nil {
			since := now
			s.PastDueSince = &since
		}
		s.ChargeAttempts++
		s.UpdatedAt = now
		return nil
	default:
		return shared.ErrInvalidTransition
	}
}

// GraceElapsed returns true if the subscription has been past due for longer
// than the given grace period.
func (s *Subscription) GraceElapsed(now time.Time, grace time.Duration) bool {
	if s.Status != StatusPastDue || s.PastDueSince == nil {
		return false
	}
	return now.Sub(*s.PastDueSince) >= grace
}

// Cancel moves the subscription to the terminal cancelled state.
// Cancelling twice is an invalid transition.
func (s *Subscription) Cancel(now time.Time) error {
	if s.Status.IsTerminal() {
		return shared.ErrInvalidTransition
	}
	s.Status = StatusCancelled
	s.UpdatedAt = now
	return nil
}

// FlagForAttention marks the subscription for manual intervention after
// repeated rollover errors, instead of auto-cancelling it.
func (s *Subscription) FlagForAttention(now time.Time) {
	s.RequiresAttention = true
	s.UpdatedAt = now
}

// InTrial returns true if the subscription is currently in its trial window
func (s *Subscription) InTrial(now time.Time) bool {
	return s.Status == StatusTrial && s.TrialEnd != nil && now.Before(*s.TrialEnd)
}
