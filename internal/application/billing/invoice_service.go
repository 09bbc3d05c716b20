package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zenbilling/backend/internal/domain/billing"
	"github.com/zenbilling/backend/internal/domain/catalog"
	"github.com/zenbilling/backend/internal/domain/shared"
)

// PaymentTermsDays is how long a customer has to settle an invoice
const PaymentTermsDays = 14

// InvoiceService issues invoices for closed subscription periods and tracks
// their settlement. Generation is idempotent per (subscription, period start):
// re-running a rollover never produces a second invoice for the same period.
type InvoiceService struct {
	invoiceRepo billing.InvoiceRepository
	seqRepo     billing.InvoiceSequenceRepository
	catalog     *catalog.Catalog
	clock       shared.Clock
	logger      *zap.Logger
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(
	invoiceRepo billing.InvoiceRepository,
	seqRepo billing.InvoiceSequenceRepository,
	planCatalog *catalog.Catalog,
	clock shared.Clock,
	logger *zap.Logger,
) *InvoiceService {
	return &InvoiceService{
		invoiceRepo: invoiceRepo,
		seqRepo:     seqRepo,
		catalog:     planCatalog,
		clock:       clock,
		logger:      logger,
	}
}

// GenerateForPeriod issues the invoice for a closed period, or returns the
// existing one if it was already issued. usageSnapshot is the closed period's
// metered total, handed to the overage hook. The sequence value is consumed
// only when a new invoice is actually created, so retries may leave gaps in
// the numbering but never repeats.
func (s *InvoiceService) GenerateForPeriod(
	ctx context.Context,
	sub *billing.Subscription,
	usageSnapshot int64,
	periodStart, periodEnd time.Time,
) (*billing.Invoice, error) {
	existing, err := s.invoiceRepo.FindByPeriod(ctx, sub.ID, periodStart)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	plan, err := s.catalog.Get(sub.PlanID)
	if err != nil {
		return nil, err
	}

	seq, err := s.seqRepo.Next(ctx, sub.CustomerID)
	if err != nil {
		return nil, err
	}

	item, err := billing.NewInvoiceItem(
		fmt.Sprintf("%s plan (%s)", plan.Name, plan.Interval),
		1,
		plan.Price,
	)
	if err != nil {
		return nil, err
	}

	items := append([]billing.InvoiceItem{item}, s.overageItems(plan, usageSnapshot)...)

	issuedAt := s.clock.Now()
	invoice, err := billing.NewInvoice(
		sub.ID, sub.CustomerID,
		seq,
		plan.Currency,
		periodStart, periodEnd,
		issuedAt, issuedAt.AddDate(0, 0, PaymentTermsDays),
		items,
	)
	if err != nil {
		return nil, err
	}

	if err := s.invoiceRepo.Save(ctx, invoice); err != nil {
		// Lost the race against a concurrent rollover of the same period
		if errors.Is(err, shared.ErrAlreadyExists) {
			return s.invoiceRepo.FindByPeriod(ctx, sub.ID, periodStart)
		}
		return nil, err
	}

	s.logger.Info("Invoice issued",
		zap.String("invoice_number", invoice.Number),
		zap.String("subscription_id", sub.ID.String()),
		zap.Int64("amount", invoice.Amount),
		zap.Time("period_start", periodStart))

	return invoice, nil
}

// overageItems prices usage beyond the plan quota. Current plans bill a flat
// rate regardless of consumption, so no items are produced; per-unit overage
// pricing plugs in here with the snapshot and plan.Quota.
func (s *InvoiceService) overageItems(_ *catalog.Plan, _ int64) []billing.InvoiceItem {
	return nil
}

// Get retrieves an invoice by ID
func (s *InvoiceService) Get(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	return s.invoiceRepo.FindByID(ctx, id)
}

// ListByCustomer retrieves a customer's invoices, newest first
func (s *InvoiceService) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*billing.Invoice, error) {
	return s.invoiceRepo.FindByCustomer(ctx, customerID)
}

// MarkPaid settles an invoice after a confirmed charge
func (s *InvoiceService) MarkPaid(ctx context.Context, invoiceID uuid.UUID, chargeRef string) (*billing.Invoice, error) {
	invoice, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := invoice.MarkPaid(s.clock.Now(), chargeRef); err != nil {
		return nil, err
	}
	if err := s.invoiceRepo.Update(ctx, invoice); err != nil {
		return nil, err
	}
	return invoice, nil
}

// SweepOverdue flags pending invoices whose due date has passed. Returns the
// number of invoices flagged. Driven by the billing clock, not by reads.
func (s *InvoiceService) SweepOverdue(ctx context.Context, customerID uuid.UUID) (int, error) {
	unpaid, err := s.invoiceRepo.FindUnpaidByCustomer(ctx, customerID)
	if err != nil {
		return 0, err
	}

	now := s.clock.Now()
	flagged := 0
	for _, invoice := range unpaid {
		if invoice.Status != billing.InvoicePending || now.Before(invoice.DueAt) {
			continue
		}
		if err := invoice.MarkOverdue(now); err != nil {
			continue
		}
		if err := s.invoiceRepo.Update(ctx, invoice); err != nil {
			return flagged, err
		}
		flagged++
	}
	return flagged, nil
}
