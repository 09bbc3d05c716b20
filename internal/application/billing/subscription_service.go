package billing

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zenbilling/backend/internal/domain/billing"
	"github.com/zenbilling/backend/internal/domain/catalog"
	"github.com/zenbilling/backend/internal/domain/shared"
)

// SubscriptionDetail pairs a subscription with its derived usage meter
type SubscriptionDetail struct {
	Subscription *billing.Subscription
	Plan         *catalog.Plan
	Meter        billing.UsageMeter
}

// SubscriptionService manages the subscription lifecycle driven by user
// actions. Time-driven transitions live in RolloverService.
type SubscriptionService struct {
	subRepo  billing.SubscriptionRepository
	custRepo billing.CustomerRepository
	catalog  *catalog.Catalog
	locks    *SubscriptionLocks
	clock    shared.Clock
	logger   *zap.Logger
}

// NewSubscriptionService creates a new SubscriptionService
func NewSubscriptionService(
	subRepo billing.SubscriptionRepository,
	custRepo billing.CustomerRepository,
	planCatalog *catalog.Catalog,
	locks *SubscriptionLocks,
	clock shared.Clock,
	logger *zap.Logger,
) *SubscriptionService {
	return &SubscriptionService{
		subRepo:  subRepo,
		custRepo: custRepo,
		catalog:  planCatalog,
		locks:    locks,
		clock:    clock,
		logger:   logger,
	}
}

// Subscribe opens a subscription for a customer on the given plan. A customer
// can hold at most one live subscription at a time.
func (s *SubscriptionService) Subscribe(ctx context.Context, customerID uuid.UUID, planID string) (*billing.Subscription, error) {
	if _, err := s.custRepo.FindByID(ctx, customerID); err != nil {
		return nil, err
	}

	plan, err := s.catalog.Get(planID)
	if err != nil {
		return nil, err
	}

	existing, err := s.subRepo.FindByCustomer(ctx, customerID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	for _, sub := range existing {
		if !sub.Status.IsTerminal() {
			return nil, shared.NewDomainError("SUBSCRIPTION_EXISTS", "Customer already has a live subscription")
		}
	}

	sub, err := billing.NewSubscription(customerID, plan, s.clock.Now())
	if err != nil {
		return nil, err
	}

	if err := s.subRepo.Save(ctx, sub); err != nil {
		return nil, err
	}

	s.logger.Info("Subscription opened",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("customer_id", customerID.String()),
		zap.String("plan_id", planID),
		zap.String("status", string(sub.Status)))

	return sub, nil
}

// Cancel moves a subscription to the terminal cancelled state
func (s *SubscriptionService) Cancel(ctx context.Context, subscriptionID uuid.UUID) (*billing.Subscription, error) {
	release := s.locks.Acquire(subscriptionID)
	defer release()

	sub, err := s.subRepo.FindByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	if err := sub.Cancel(s.clock.Now()); err != nil {
		return nil, err
	}

	if err := s.subRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.logger.Info("Subscription cancelled",
		zap.String("subscription_id", sub.ID.String()))

	return sub, nil
}

// Get retrieves a subscription with its plan and derived usage meter
func (s *SubscriptionService) Get(ctx context.Context, subscriptionID uuid.UUID) (*SubscriptionDetail, error) {
	sub, err := s.subRepo.FindByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	return s.detail(sub)
}

// ListByCustomer retrieves a customer's subscriptions with meters, newest first
func (s *SubscriptionService) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*SubscriptionDetail, error) {
	subs, err := s.subRepo.FindByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	details := make([]*SubscriptionDetail, 0, len(subs))
	for _, sub := range subs {
		d, err := s.detail(sub)
		if err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, nil
}

func (s *SubscriptionService) detail(sub *billing.Subscription) (*SubscriptionDetail, error) {
	plan, err := s.catalog.Get(sub.PlanID)
	if err != nil {
		return nil, err
	}
	return &SubscriptionDetail{
		Subscription: sub,
		Plan:         plan,
		Meter:        billing.DeriveMeter(sub, plan.Quota),
	}, nil
}
