package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/zenbilling/backend/internal/domain/catalog"
)

// Usage warning thresholds, expressed as percent of quota. These are
// presentation hints derived on read, never stored on the entity.
const (
	HighUsageThreshold = 80.0
	NearLimitThreshold = 90.0
)

// WarningLevel is the derived usage warning for a subscription's period
type WarningLevel string

const (
	// WarningNone means usage is comfortably inside quota
	WarningNone WarningLevel = ""

	// WarningHighUsage means usage has reached 80% of quota
	WarningHighUsage WarningLevel = "high_usage"

	// WarningNearLimit means usage has reached 90% of quota
	WarningNearLimit WarningLevel = "near_limit"
)

// UsageMeter is the derived view of quota consumption for a subscription's
// current period. It is computed from the latest usage total on every read,
// so it is always consistent with the ledger.
type UsageMeter struct {
	SubscriptionID uuid.UUID
	PeriodStart    time.Time
	PeriodEnd      time.Time
	Current        int64
	Limit          int64
	NoLimit        bool
	Percentage     float64
	Warning        WarningLevel
}

// DeriveMeter computes the usage meter for a subscription against its plan
// quota. Unlimited quotas report zero percent and the NoLimit flag; no
// arithmetic runs against a sentinel value.
func DeriveMeter(sub *Subscription, quota catalog.Quota) UsageMeter {
	meter := UsageMeter{
		SubscriptionID: sub.ID,
		PeriodStart:    sub.CurrentPeriodStart,
		PeriodEnd:      sub.CurrentPeriodEnd,
		Current:        sub.UsageInPeriod,
	}

	limit, ok := quota.Limit()
	if !ok {
		meter.NoLimit = true
		return meter
	}

	meter.Limit = limit
	if limit > 0 {
		meter.Percentage = float64(sub.UsageInPeriod) / float64(limit) * 100
		if meter.Percentage > 100 {
			meter.Percentage = 100
		}
	}

	switch {
	case meter.Percentage >= NearLimitThreshold:
		meter.Warning = WarningNearLimit
	case meter.Percentage >= HighUsageThreshold:
		meter.Warning = WarningHighUsage
	}

	return meter
}

// IsWarning returns true if the meter has crossed a warning threshold
func (m UsageMeter) IsWarning() bool {
	return m.Warning != WarningNone
}
