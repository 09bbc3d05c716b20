package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zenbilling/backend/internal/domain/billing"
	"github.com/zenbilling/backend/internal/domain/catalog"
	"github.com/zenbilling/backend/internal/domain/shared"
)

// maxReportSkew is how far ahead of the server clock a report's timestamp
// may sit before it is rejected as malformed.
const maxReportSkew = 5 * time.Minute

// RecordUsageInput contains a single metered usage report. OccurredAt is the
// caller's timestamp for when the usage happened; zero means "now". Late
// reports keep their original timestamp so a retry that straddled a rollover
// is still attributed to the period it occurred in.
type RecordUsageInput struct {
	SubscriptionID uuid.UUID
	Quantity       int64
	IdempotencyKey string
	OccurredAt     time.Time
}

// RecordUsageResult is the outcome of a usage report. Deduplicated is true
// when the idempotency key was seen before; the ledger and counters are
// untouched in that case.
type RecordUsageResult struct {
	Event        *billing.UsageEvent
	Deduplicated bool
	Meter        billing.UsageMeter
}

// UsageService records metered usage against the append-only ledger and keeps
// the subscription's in-period counter in step with it.
type UsageService struct {
	usageRepo   billing.UsageEventRepository
	subRepo     billing.SubscriptionRepository
	invoiceRepo billing.InvoiceRepository
	catalog     *catalog.Catalog
	locks       *SubscriptionLocks
	clock       shared.Clock
	logger      *zap.Logger
}

// NewUsageService creates a new UsageService
func NewUsageService(
	usageRepo billing.UsageEventRepository,
	subRepo billing.SubscriptionRepository,
	invoiceRepo billing.InvoiceRepository,
	planCatalog *catalog.Catalog,
	locks *SubscriptionLocks,
	clock shared.Clock,
	logger *zap.Logger,
) *UsageService {
	return &UsageService{
		usageRepo:   usageRepo,
		subRepo:     subRepo,
		invoiceRepo: invoiceRepo,
		catalog:     planCatalog,
		locks:       locks,
		clock:       clock,
		logger:      logger,
	}
}

// Record appends a usage event to the ledger and bumps the subscription's
// in-period counter. Reports carrying an already-seen idempotency key return
// the original event with Deduplicated set and change nothing.
func (s *UsageService) Record(ctx context.Context, input RecordUsageInput) (*RecordUsageResult, error) {
	if input.SubscriptionID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SUBSCRIPTION", "Subscription ID cannot be empty")
	}
	if input.IdempotencyKey == "" {
		return nil, shared.NewDomainError("INVALID_IDEMPOTENCY_KEY", "Idempotency key cannot be empty")
	}

	release := s.locks.Acquire(input.SubscriptionID)
	defer release()

	sub, err := s.subRepo.FindByID(ctx, input.SubscriptionID)
	if err != nil {
		return nil, err
	}

	existing, err := s.usageRepo.FindByIdempotencyKey(ctx, input.SubscriptionID, input.IdempotencyKey)
	if err == nil {
		s.logger.Debug("Duplicate usage report ignored",
			zap.String("subscription_id", input.SubscriptionID.String()),
			zap.String("idempotency_key", input.IdempotencyKey))
		return s.dedupResult(existing, sub), nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	now := s.clock.Now()
	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = now
	}
	if occurredAt.After(now.Add(maxReportSkew)) {
		return nil, shared.NewDomainError("INVALID_TIMESTAMP", "Usage timestamp cannot be in the future")
	}

	if sub.Status == billing.StatusCancelled {
		return nil, shared.ErrSubscriptionInactive
	}

	event, err := billing.NewUsageEvent(input.SubscriptionID, input.Quantity, input.IdempotencyKey, occurredAt)
	if err != nil {
		return nil, err
	}

	// Only reports inside the open period move the counter; the ledger keeps
	// the event either way, so a late report still lands in the period sums
	// it occurred in.
	inPeriod := event.InPeriod(sub.CurrentPeriodStart, sub.CurrentPeriodEnd)
	if inPeriod {
		if err := sub.AccrueUsage(event.Quantity, now); err != nil {
			return nil, err
		}
	}

	if err := s.usageRepo.Append(ctx, event); err != nil {
		// Lost the race against a retry of the same report
		if errors.Is(err, shared.ErrAlreadyExists) {
			original, findErr := s.usageRepo.FindByIdempotencyKey(ctx, input.SubscriptionID, input.IdempotencyKey)
			if findErr != nil {
				return nil, findErr
			}
			return s.dedupResult(original, sub), nil
		}
		return nil, err
	}

	if inPeriod {
		if err := s.subRepo.Update(ctx, sub); err != nil {
			return nil, err
		}
	}

	meter, err := s.meterFor(sub)
	if err != nil {
		return nil, err
	}

	if meter.IsWarning() {
		s.logger.Info("Subscription approaching quota",
			zap.String("subscription_id", sub.ID.String()),
			zap.Float64("percentage", meter.Percentage),
			zap.String("warning", string(meter.Warning)))
	}

	return &RecordUsageResult{Event: event, Meter: meter}, nil
}

// Meter derives the current usage meter for a subscription
func (s *UsageService) Meter(ctx context.Context, subscriptionID uuid.UUID) (billing.UsageMeter, error) {
	sub, err := s.subRepo.FindByID(ctx, subscriptionID)
	if err != nil {
		return billing.UsageMeter{}, err
	}
	return s.meterFor(sub)
}

// TotalForPeriod sums ledger quantities for a half-open time window
func (s *UsageService) TotalForPeriod(ctx context.Context, subscriptionID uuid.UUID, start, end time.Time) (int64, error) {
	if !start.Before(end) {
		return 0, shared.NewDomainError("INVALID_PERIOD", "Period start must precede period end")
	}
	return s.usageRepo.SumForPeriod(ctx, subscriptionID, start, end)
}

// Compact discards ledger events recorded before the given cutoff. The
// current and prior billing periods are always retained, so the effective
// cutoff is capped at the prior period's start; a zero cutoff means "as much
// as allowed". It refuses to run unless an issued invoice covers everything
// being discarded, so billing history is never lost before it is invoiced.
func (s *UsageService) Compact(ctx context.Context, subscriptionID uuid.UUID, before time.Time) (int64, error) {
	release := s.locks.Acquire(subscriptionID)
	defer release()

	sub, err := s.subRepo.FindByID(ctx, subscriptionID)
	if err != nil {
		return 0, err
	}

	plan, err := s.catalog.Get(sub.PlanID)
	if err != nil {
		return 0, err
	}

	priorPeriodStart := billing.SubtractInterval(sub.CurrentPeriodStart, plan.Interval)
	cutoff := before
	if cutoff.IsZero() || cutoff.After(priorPeriodStart) {
		cutoff = priorPeriodStart
	}

	latest, err := s.invoiceRepo.FindLatestBySubscription(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return 0, shared.NewDomainError("COMPACTION_BLOCKED", "No invoice issued yet; ledger cannot be compacted")
		}
		return 0, err
	}
	if latest.PeriodEnd.Before(cutoff) {
		return 0, shared.NewDomainError("COMPACTION_BLOCKED", "Closed periods are not fully invoiced yet")
	}

	removed, err := s.usageRepo.DeleteBefore(ctx, subscriptionID, cutoff)
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		s.logger.Info("Compacted usage ledger",
			zap.String("subscription_id", subscriptionID.String()),
			zap.Time("cutoff", cutoff),
			zap.Int64("removed", removed))
	}
	return removed, nil
}

func (s *UsageService) dedupResult(event *billing.UsageEvent, sub *billing.Subscription) *RecordUsageResult {
	meter, err := s.meterFor(sub)
	if err != nil {
		meter = billing.UsageMeter{}
	}
	return &RecordUsageResult{Event: event, Deduplicated: true, Meter: meter}
}

func (s *UsageService) meterFor(sub *billing.Subscription) (billing.UsageMeter, error) {
	plan, err := s.catalog.Get(sub.PlanID)
	if err != nil {
		return billing.UsageMeter{}, err
	}
	return billing.DeriveMeter(sub, plan.Quota), nil
}
