package catalog

import (
	"fmt"

	"github.com/zenbilling/backend/internal/domain/shared"
)

// BillingInterval is the cadence at which a plan renews.
type BillingInterval string

const (
	IntervalMonth BillingInterval = "month"
	IntervalYear  BillingInterval = "year"
)

// String returns the string representation of BillingInterval
func (i BillingInterval) String() string {
	return string(i)
}

// IsValid returns true if the interval is a known cadence
func (i BillingInterval) IsValid() bool {
	switch i {
	case IntervalMonth, IntervalYear:
		return true
	}
	return false
}

// ParseBillingInterval parses a string into a BillingInterval
func ParseBillingInterval(s string) (BillingInterval, error) {
	interval := BillingInterval(s)
	if !interval.IsValid() {
		return "", shared.NewDomainError("INVALID_INTERVAL", fmt.Sprintf("Unknown billing interval: %s", s))
	}
	return interval, nil
}

// Quota is the usage allowance of a plan per billing period.
// Unlimited plans carry an explicit flag rather than a magic limit value,
// so no arithmetic ever runs against a sentinel.
type Quota struct {
	limit     int64
	unlimited bool
}

// LimitedQuota returns a quota capped at limit units per period
func LimitedQuota(limit int64) Quota {
	return Quota{limit: limit}
}

// UnlimitedQuota returns a quota with no cap
func UnlimitedQuota() Quota {
	return Quota{unlimited: true}
}

// IsUnlimited returns true if the quota has no cap
func (q Quota) IsUnlimited() bool {
	return q.unlimited
}

// Limit returns the cap and whether one exists
func (q Quota) Limit() (int64, bool) {
	if q.unlimited {
		return 0, false
	}
	return q.limit, true
}

// String formats the quota for display
func (q Quota) String() string {
	if q.unlimited {
		return "Unlimited"
	}
	return fmt.Sprintf("%d", q.limit)
}

// Plan is an immutable plan definition. Plans are created at catalog load
// and never mutated; subscriptions reference them by ID.
type Plan struct {
	ID          string
	Name        string
	Description string
	Price       int64 // minor currency units per interval
	Currency    string
	Interval    BillingInterval
	Quota       Quota
	TrialDays   int
	Features    []string
}

// NewPlan creates a plan definition with validation
func NewPlan(id, name string, price int64, currency string, interval BillingInterval, quota Quota, trialDays int) (*Plan, error) {
	if id == "" {
		return nil, shared.NewDomainError("INVALID_PLAN", "Plan ID cannot be empty")
	}
	if name == "" {
		return nil, shared.NewDomainError("INVALID_PLAN", "Plan name cannot be empty")
	}
	if price < 0 {
		return nil, shared.NewDomainError("INVALID_PLAN", "Plan price cannot be negative")
	}
	if currency == "" {
		return nil, shared.NewDomainError("INVALID_PLAN", "Plan currency cannot be empty")
	}
	if !interval.IsValid() {
		return nil, shared.NewDomainError("INVALID_INTERVAL", fmt.Sprintf("Unknown billing interval: %s", interval))
	}
	if trialDays < 0 {
		return nil, shared.NewDomainError("INVALID_PLAN", "Trial length cannot be negative")
	}

	return &Plan{
		ID:        id,
		Name:      name,
		Price:     price,
		Currency:  currency,
		Interval:  interval,
		Quota:     quota,
		TrialDays: trialDays,
	}, nil
}

// WithDescription sets the display description
func (p *Plan) WithDescription(description string) *Plan {
	p.Description = description
	return p
}

// WithFeatures sets the marketing feature list
func (p *Plan) WithFeatures(features ...string) *Plan {
	p.Features = features
	return p
}

// HasTrial returns true if new subscriptions start with a trial period
func (p *Plan) HasTrial() bool {
	return p.TrialDays > 0
}
