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

// RolloverConfig tunes the time-driven lifecycle engine
type RolloverConfig struct {
	// GracePeriod is how long a subscription may stay past due before it
	// is cancelled
	GracePeriod time.Duration

	// MaxChargeAttempts caps automatic retries; past it the subscription
	// is flagged for manual attention instead of being retried forever
	MaxChargeAttempts int
}

// DefaultRolloverConfig returns the default lifecycle tuning
func DefaultRolloverConfig() RolloverConfig {
	return RolloverConfig{
		GracePeriod:       7 * 24 * time.Hour,
		MaxChargeAttempts: 3,
	}
}

// chargeIntent is a charge decided under the subscription lock and executed
// after it is released. The invoice is already durably issued.
type chargeIntent struct {
	invoice *billing.Invoice
}

// RolloverService drives every time-based subscription transition: trial
// expiry, period rollover with catch-up, charge retries and grace
// cancellation. Each subscription is processed under its own lock, but the
// payment processor is never called while the lock is held.
type RolloverService struct {
	subRepo   billing.SubscriptionRepository
	usageRepo billing.UsageEventRepository
	pmRepo    billing.PaymentMethodRepository
	invoices  *InvoiceService
	processor billing.PaymentProcessor
	catalog   *catalog.Catalog
	locks     *SubscriptionLocks
	clock     shared.Clock
	logger    *zap.Logger
	config    RolloverConfig
}

// NewRolloverService creates a new RolloverService
func NewRolloverService(
	subRepo billing.SubscriptionRepository,
	usageRepo billing.UsageEventRepository,
	pmRepo billing.PaymentMethodRepository,
	invoices *InvoiceService,
	processor billing.PaymentProcessor,
	planCatalog *catalog.Catalog,
	locks *SubscriptionLocks,
	clock shared.Clock,
	logger *zap.Logger,
	config RolloverConfig,
) *RolloverService {
	if config.GracePeriod <= 0 {
		config.GracePeriod = DefaultRolloverConfig().GracePeriod
	}
	if config.MaxChargeAttempts <= 0 {
		config.MaxChargeAttempts = DefaultRolloverConfig().MaxChargeAttempts
	}
	return &RolloverService{
		subRepo:   subRepo,
		usageRepo: usageRepo,
		pmRepo:    pmRepo,
		invoices:  invoices,
		processor: processor,
		catalog:   planCatalog,
		locks:     locks,
		clock:     clock,
		logger:    logger,
		config:    config,
	}
}

// ProcessDue runs one billing pass over every subscription owed a transition.
// Failures on one subscription are logged and do not stop the pass.
func (s *RolloverService) ProcessDue(ctx context.Context) (int, error) {
	now := s.clock.Now()
	due, err := s.subRepo.FindDue(ctx, now)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, sub := range due {
		if err := s.ProcessSubscription(ctx, sub.ID); err != nil {
			s.logger.Error("Billing pass failed for subscription",
				zap.String("subscription_id", sub.ID.String()),
				zap.Error(err))
			continue
		}
		processed++
	}
	return processed, nil
}

// ProcessSubscription applies every transition a single subscription is owed:
// decide and persist state changes under the lock, charge outside it, then
// apply the outcome under the lock again.
func (s *RolloverService) ProcessSubscription(ctx context.Context, subscriptionID uuid.UUID) error {
	intents, err := s.transition(ctx, subscriptionID)
	if err != nil {
		return err
	}

	for _, intent := range intents {
		result := s.charge(ctx, intent)
		if err := s.applyOutcome(ctx, subscriptionID, intent, result); err != nil {
			return err
		}
	}
	return nil
}

// transition performs the lock-held half of a billing pass: trial expiry,
// catch-up rollover with invoice generation, grace cancellation and retry
// scheduling. Returns the charges to execute after the lock is released.
func (s *RolloverService) transition(ctx context.Context, subscriptionID uuid.UUID) ([]chargeIntent, error) {
	release := s.locks.Acquire(subscriptionID)
	defer release()

	sub, err := s.subRepo.FindByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	plan, err := s.catalog.Get(sub.PlanID)
	if err != nil {
		return nil, err
	}

	var intents []chargeIntent

	switch {
	case sub.Status == billing.StatusPastDue:
		return s.transitionPastDue(ctx, sub, now)

	case sub.TrialExpired(now):
		// Trial conversion charges the plan price for the period the
		// trial opened. The period itself does not move yet.
		invoice, err := s.invoices.GenerateForPeriod(ctx, sub, sub.UsageInPeriod, sub.CurrentPeriodStart, sub.CurrentPeriodEnd)
		if err != nil {
			return nil, err
		}
		intents = append(intents, chargeIntent{invoice: invoice})

	case sub.Status == billing.StatusActive:
		// Catch-up rollover: a subscription that missed several ticks
		// rolls one period at a time, invoicing each closed period.
		rolled := false
		for sub.IsDue(now) {
			// Step 1 of the rollover: the usage counter is snapshotted
			// before the period advances and handed to invoicing.
			invoice, err := s.invoices.GenerateForPeriod(ctx, sub, sub.UsageInPeriod, sub.CurrentPeriodStart, sub.CurrentPeriodEnd)
			if err != nil {
				return nil, err
			}
			if !invoice.IsSettled() {
				intents = append(intents, chargeIntent{invoice: invoice})
			}
			if err := sub.AdvancePeriod(plan.Interval, now); err != nil {
				return nil, err
			}
			rolled = true
		}

		if rolled {
			// Events that landed in the open period while the boundary
			// was closing are reattributed from the ledger.
			total, err := s.usageRepo.SumForPeriod(ctx, sub.ID, sub.CurrentPeriodStart, sub.CurrentPeriodEnd)
			if err != nil {
				return nil, err
			}
			sub.ResetUsage(total, now)

			if err := s.subRepo.Update(ctx, sub); err != nil {
				return nil, err
			}
			s.logger.Info("Subscription rolled over",
				zap.String("subscription_id", sub.ID.String()),
				zap.Time("period_start", sub.CurrentPeriodStart),
				zap.Int("invoices", len(intents)))
		}
	}

	return intents, nil
}

// transitionPastDue handles a past-due subscription under the lock: cancel
// once grace has elapsed, park for manual attention once retries are spent,
// otherwise schedule a retry of the outstanding invoice.
func (s *RolloverService) transitionPastDue(ctx context.Context, sub *billing.Subscription, now time.Time) ([]chargeIntent, error) {
	if sub.GraceElapsed(now, s.config.GracePeriod) {
		if err := sub.Cancel(now); err != nil {
			return nil, err
		}
		if err := s.subRepo.Update(ctx, sub); err != nil {
			return nil, err
		}
		s.logger.Warn("Subscription cancelled after grace period",
			zap.String("subscription_id", sub.ID.String()),
			zap.Int("charge_attempts", sub.ChargeAttempts))
		return nil, nil
	}

	if sub.ChargeAttempts >= s.config.MaxChargeAttempts {
		if sub.RequiresAttention {
			return nil, nil
		}
		sub.FlagForAttention(now)
		if err := s.subRepo.Update(ctx, sub); err != nil {
			return nil, err
		}
		s.logger.Warn("Subscription flagged for manual attention",
			zap.String("subscription_id", sub.ID.String()),
			zap.Int("charge_attempts", sub.ChargeAttempts))
		return nil, nil
	}

	invoice, err := s.outstandingInvoice(ctx, sub)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return []chargeIntent{{invoice: invoice}}, nil
}

func (s *RolloverService) outstandingInvoice(ctx context.Context, sub *billing.Subscription) (*billing.Invoice, error) {
	invoice, err := s.invoices.invoiceRepo.FindLatestBySubscription(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	if invoice.IsSettled() {
		return nil, shared.ErrNotFound
	}
	return invoice, nil
}

// charge executes a payment attempt with no subscription lock held. A missing
// payment method or a processor transport error counts as a failed attempt.
func (s *RolloverService) charge(ctx context.Context, intent chargeIntent) billing.ChargeResult {
	pm, err := s.pmRepo.FindByCustomer(ctx, intent.invoice.CustomerID)
	if err != nil {
		return billing.ChargeResult{Success: false, Reason: "no payment method on file"}
	}

	result, err := s.processor.Charge(ctx, pm.Token, intent.invoice.Amount, intent.invoice.Currency)
	if err != nil {
		s.logger.Warn("Charge attempt errored",
			zap.String("invoice_number", intent.invoice.Number),
			zap.Error(err))
		return billing.ChargeResult{Success: false, Reason: "processor unavailable"}
	}
	return result
}

// applyOutcome re-acquires the lock, reloads the subscription and records the
// charge outcome. Settled invoices are marked paid here; the subscription's
// state machine decides where the status lands.
func (s *RolloverService) applyOutcome(ctx context.Context, subscriptionID uuid.UUID, intent chargeIntent, result billing.ChargeResult) error {
	release := s.locks.Acquire(subscriptionID)
	defer release()

	sub, err := s.subRepo.FindByID(ctx, subscriptionID)
	if err != nil {
		return err
	}
	if sub.Status.IsTerminal() {
		return nil
	}

	now := s.clock.Now()
	if result.Success {
		if _, err := s.invoices.MarkPaid(ctx, intent.invoice.ID, result.ReferenceID); err != nil {
			if !errors.Is(err, shared.ErrInvalidState) {
				return err
			}
		}
		if err := sub.ApplyChargeSuccess(now); err != nil {
			return err
		}
	} else {
		s.logger.Info("Charge declined",
			zap.String("subscription_id", sub.ID.String()),
			zap.String("invoice_number", intent.invoice.Number),
			zap.String("reason", result.Reason))
		if err := sub.ApplyChargeFailure(now); err != nil {
			return err
		}
	}

	return s.subRepo.Update(ctx, sub)
}
