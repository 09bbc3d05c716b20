package billing

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/zenbilling/backend/internal/domain/billing"
	"github.com/zenbilling/backend/internal/domain/catalog"
)

// DashboardMetrics is the aggregate business snapshot for the admin dashboard
type DashboardMetrics struct {
	ActiveSubscriptions int             `json:"active_subscriptions"`
	TrialSubscriptions  int             `json:"trial_subscriptions"`
	PastDueCount        int             `json:"past_due_count"`
	MRR                 decimal.Decimal `json:"mrr"`
	PastDueAmount       int64           `json:"past_due_amount"`
	TotalCustomers      int64           `json:"total_customers"`
}

// MetricsService computes dashboard aggregates on demand from current state.
// Nothing is cached; a subscription scan at dashboard-read frequency is cheap
// next to keeping counters consistent with the lifecycle engine.
type MetricsService struct {
	subRepo     billing.SubscriptionRepository
	custRepo    billing.CustomerRepository
	invoiceRepo billing.InvoiceRepository
	catalog     *catalog.Catalog
	logger      *zap.Logger
}

// NewMetricsService creates a new MetricsService
func NewMetricsService(
	subRepo billing.SubscriptionRepository,
	custRepo billing.CustomerRepository,
	invoiceRepo billing.InvoiceRepository,
	planCatalog *catalog.Catalog,
	logger *zap.Logger,
) *MetricsService {
	return &MetricsService{
		subRepo:     subRepo,
		custRepo:    custRepo,
		invoiceRepo: invoiceRepo,
		catalog:     planCatalog,
		logger:      logger,
	}
}

// Dashboard computes the current business snapshot. MRR counts active and
// trial subscriptions at their monthly-normalized plan price; yearly plans
// contribute one twelfth. Past-due amount sums the unsettled invoices of
// past-due subscriptions.
func (s *MetricsService) Dashboard(ctx context.Context) (*DashboardMetrics, error) {
	subs, err := s.subRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	totalCustomers, err := s.custRepo.Count(ctx)
	if err != nil {
		return nil, err
	}

	metrics := &DashboardMetrics{
		MRR:            decimal.Zero,
		TotalCustomers: totalCustomers,
	}

	twelve := decimal.NewFromInt(12)
	for _, sub := range subs {
		switch sub.Status {
		case billing.StatusActive:
			metrics.ActiveSubscriptions++
		case billing.StatusTrial:
			metrics.TrialSubscriptions++
		case billing.StatusPastDue:
			metrics.PastDueCount++
		default:
			continue
		}

		plan, err := s.catalog.Get(sub.PlanID)
		if err != nil {
			s.logger.Warn("Subscription references unknown plan",
				zap.String("subscription_id", sub.ID.String()),
				zap.String("plan_id", sub.PlanID))
			continue
		}

		if sub.Status == billing.StatusActive || sub.Status == billing.StatusTrial {
			monthly := decimal.NewFromInt(plan.Price)
			if plan.Interval == catalog.IntervalYear {
				monthly = monthly.Div(twelve)
			}
			metrics.MRR = metrics.MRR.Add(monthly)
		}

		if sub.Status == billing.StatusPastDue {
			unpaid, err := s.invoiceRepo.FindUnpaidByCustomer(ctx, sub.CustomerID)
			if err != nil {
				return nil, err
			}
			for _, invoice := range unpaid {
				if invoice.SubscriptionID == sub.ID {
					metrics.PastDueAmount += invoice.Amount
				}
			}
		}
	}

	metrics.MRR = metrics.MRR.Round(2)
	return metrics, nil
}
