package billing

import "context"

// ChargeResult is the outcome of a charge attempt against the external
// payment processor.
type ChargeResult struct {
	Success     bool
	ReferenceID string
	Reason      string
}

// PaymentProcessor is the opaque, possibly-slow, possibly-failing charge
// collaborator. A transport error or timeout is treated by callers as a
// declined charge for lifecycle purposes, never as a retry-forever state.
type PaymentProcessor interface {
	Charge(ctx context.Context, paymentMethodToken string, amount int64, currency string) (ChargeResult, error)
}
