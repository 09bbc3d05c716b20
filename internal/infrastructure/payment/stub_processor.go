package payment

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/zenbilling/backend/internal/domain/billing"
)

// StubProcessor is a deterministic in-process stand-in for the payment
// processor, used in development and tests. Tokens prefixed with
// "tok_decline" are declined; everything else succeeds. AlwaysDecline
// forces every charge to fail regardless of token.
type StubProcessor struct {
	mu            sync.Mutex
	alwaysDecline bool
	charges       []StubCharge
}

var _ billing.PaymentProcessor = (*StubProcessor)(nil)

// StubCharge records one charge attempt made against the stub.
type StubCharge struct {
	PaymentMethodToken string
	Amount             int64
	Currency           string
	Succeeded          bool
}

// NewStubProcessor creates a stub processor
func NewStubProcessor(alwaysDecline bool) *StubProcessor {
	return &StubProcessor{alwaysDecline: alwaysDecline}
}

// Charge implements billing.PaymentProcessor
func (p *StubProcessor) Charge(ctx context.Context, paymentMethodToken string, amount int64, currency string) (billing.ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return billing.ChargeResult{}, err
	}

	declined := p.alwaysDecline || strings.HasPrefix(paymentMethodToken, "tok_decline")

	p.mu.Lock()
	p.charges = append(p.charges, StubCharge{
		PaymentMethodToken: paymentMethodToken,
		Amount:             amount,
		Currency:           currency,
		Succeeded:          !declined,
	})
	p.mu.Unlock()

	if declined {
		return billing.ChargeResult{Success: false, Reason: "card declined"}, nil
	}

	return billing.ChargeResult{
		Success:     true,
		ReferenceID: "ch_stub_" + uuid.NewString(),
	}, nil
}

// Charges returns a copy of every charge attempt seen so far
func (p *StubProcessor) Charges() []StubCharge {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]StubCharge, len(p.charges))
	copy(out, p.charges)
	return out
}
