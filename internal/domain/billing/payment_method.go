package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/zenbilling/backend/internal/domain/shared"
)

// PaymentMethod mirrors a card held by the external payment processor.
// The token is opaque; the display metadata exists so the portal can show
// "visa ending 4242" without ever touching card numbers.
type PaymentMethod struct {
	shared.BaseEntity
	CustomerID  uuid.UUID
	Token       string
	Brand       string
	Last4       string
	ExpiryMonth int
	ExpiryYear  int
}

// NewPaymentMethod creates a payment method mirror with validation
func NewPaymentMethod(customerID uuid.UUID, token, brand, last4 string, expiryMonth, expiryYear int, now time.Time) (*PaymentMethod, error) {
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}
	if token == "" {
		return nil, shared.NewDomainError("INVALID_PAYMENT_METHOD", "Processor token cannot be empty")
	}
	if len(last4) != 4 {
		return nil, shared.NewDomainError("INVALID_PAYMENT_METHOD", "Card last4 must be four digits")
	}
	if expiryMonth < 1 || expiryMonth > 12 {
		return nil, shared.NewDomainError("INVALID_PAYMENT_METHOD", "Card expiry month is out of range")
	}

	pm := &PaymentMethod{
		BaseEntity:  shared.NewBaseEntityAt(now),
		CustomerID:  customerID,
		Token:       token,
		Brand:       brand,
		Last4:       last4,
		ExpiryMonth: expiryMonth,
		ExpiryYear:  expiryYear,
	}
	return pm, nil
}

// IsExpired returns true if the card expiry has passed. A card expires at
// the end of its expiry month.
func (pm *PaymentMethod) IsExpired(now time.Time) bool {
	endOfMonth := time.Date(pm.ExpiryYear, time.Month(pm.ExpiryMonth), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return !now.Before(endOfMonth)
}
