package billing

import (
	"strings"
	"time"

	"github.com/zenbilling/backend/internal/domain/shared"
)

// CustomerStatus is the customer-facing account state, derived from the
// subscription lifecycle rather than stored. "overdue" is the customer-facing
// name for a past_due subscription.
type CustomerStatus string

const (
	CustomerActive    CustomerStatus = "active"
	CustomerTrial     CustomerStatus = "trial"
	CustomerOverdue   CustomerStatus = "overdue"
	CustomerCancelled CustomerStatus = "cancelled"
)

// Customer owns subscriptions. The current model allows one active
// subscription per customer.
type Customer struct {
	shared.BaseEntity
	Name  string
	Email string
}

// NewCustomer creates a customer with validation
func NewCustomer(name, email string, now time.Time) (*Customer, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer name cannot be empty")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer email is not valid")
	}

	c := &Customer{
		BaseEntity: shared.NewBaseEntityAt(now),
		Name:       name,
		Email:      email,
	}
	return c, nil
}

// DeriveCustomerStatus maps a subscription's lifecycle state onto the
// customer-facing account status. Customers without a subscription read as
// active: they exist and owe nothing.
func DeriveCustomerStatus(sub *Subscription) CustomerStatus {
	if sub == nil {
		return CustomerActive
	}
	switch sub.Status {
	case StatusTrial:
		return CustomerTrial
	case StatusPastDue:
		return CustomerOverdue
	case StatusCancelled:
		return CustomerCancelled
	default:
		return CustomerActive
	}
}
