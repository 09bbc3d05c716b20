package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zenbilling/backend/internal/domain/billing"
	"github.com/zenbilling/backend/internal/domain/shared"
)

var (
	// ErrCallbackInvalidPayload is returned when the callback payload is incomplete
	ErrCallbackInvalidPayload = errors.New("payment callback: invalid payload")
	// ErrCallbackAlreadyProcessed is returned when a callback was already handled
	ErrCallbackAlreadyProcessed = errors.New("payment callback: already processed")
)

// callbackEventTTL is how long processed event IDs are remembered. Processor
// replays arrive within minutes; a day leaves a wide margin.
const callbackEventTTL = 24 * time.Hour

// PaymentCallback is the parsed notification from the external payment
// processor about an out-of-band charge outcome.
type PaymentCallback struct {
	EventID   string
	InvoiceID uuid.UUID
	ChargeRef string
	Succeeded bool
	Reason    string
}

// PaymentCallbackResult reports what a callback changed
type PaymentCallbackResult struct {
	InvoiceNumber      string
	InvoiceSettled     bool
	SubscriptionStatus billing.SubscriptionStatus
}

// PaymentCallbackService applies asynchronous charge outcomes reported by
// the payment processor. Callback delivery is at-least-once, so each event is
// deduplicated before anything is mutated.
type PaymentCallbackService struct {
	invoices    *InvoiceService
	subRepo     billing.SubscriptionRepository
	locks       *SubscriptionLocks
	idempotency shared.IdempotencyStore
	clock       shared.Clock
	logger      *zap.Logger
}

// NewPaymentCallbackService creates a new PaymentCallbackService
func NewPaymentCallbackService(
	invoices *InvoiceService,
	subRepo billing.SubscriptionRepository,
	locks *SubscriptionLocks,
	idempotency shared.IdempotencyStore,
	clock shared.Clock,
	logger *zap.Logger,
) *PaymentCallbackService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentCallbackService{
		invoices:    invoices,
		subRepo:     subRepo,
		locks:       locks,
		idempotency: idempotency,
		clock:       clock,
		logger:      logger,
	}
}

// Process applies one processor callback: settle or fail the invoice and move
// the subscription accordingly. Replayed events return
// ErrCallbackAlreadyProcessed without touching anything.
func (s *PaymentCallbackService) Process(ctx context.Context, callback PaymentCallback) (*PaymentCallbackResult, error) {
	if callback.EventID == "" || callback.InvoiceID == uuid.Nil {
		return nil, ErrCallbackInvalidPayload
	}

	newly, err := s.idempotency.MarkProcessed(ctx, callback.EventID, callbackEventTTL)
	if err != nil {
		return nil, err
	}
	if !newly {
		s.logger.Debug("Replayed payment callback ignored",
			zap.String("event_id", callback.EventID))
		return nil, ErrCallbackAlreadyProcessed
	}

	result, err := s.apply(ctx, callback)
	if err != nil {
		// Give the mark back so the processor's next retry is not rejected
		// as a replay while the outcome was never applied.
		if relErr := s.idempotency.Release(ctx, callback.EventID); relErr != nil {
			s.logger.Warn("Could not release callback event mark",
				zap.String("event_id", callback.EventID),
				zap.Error(relErr))
		}
		return nil, err
	}
	return result, nil
}

func (s *PaymentCallbackService) apply(ctx context.Context, callback PaymentCallback) (*PaymentCallbackResult, error) {
	invoice, err := s.invoices.Get(ctx, callback.InvoiceID)
	if err != nil {
		return nil, err
	}

	release := s.locks.Acquire(invoice.SubscriptionID)
	defer release()

	sub, err := s.subRepo.FindByID(ctx, invoice.SubscriptionID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if callback.Succeeded {
		if _, err := s.invoices.MarkPaid(ctx, invoice.ID, callback.ChargeRef); err != nil {
			if !errors.Is(err, shared.ErrInvalidState) {
				return nil, err
			}
		}
		if !sub.Status.IsTerminal() {
			if err := sub.ApplyChargeSuccess(now); err != nil {
				return nil, err
			}
			if err := s.subRepo.Update(ctx, sub); err != nil {
				return nil, err
			}
		}
	} else {
		s.logger.Info("Processor reported failed charge",
			zap.String("invoice_number", invoice.Number),
			zap.String("reason", callback.Reason))
		if !sub.Status.IsTerminal() {
			if err := sub.ApplyChargeFailure(now); err != nil {
				return nil, err
			}
			if err := s.subRepo.Update(ctx, sub); err != nil {
				return nil, err
			}
		}
	}

	return &PaymentCallbackResult{
		InvoiceNumber:      invoice.Number,
		InvoiceSettled:     callback.Succeeded,
		SubscriptionStatus: sub.Status,
	}, nil
}
