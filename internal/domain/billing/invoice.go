package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zenbilling/backend/internal/domain/shared"
)

// InvoiceStatus is the closed set of invoice payment states
type InvoiceStatus string

const (
	// InvoicePending means the invoice has been issued but not settled
	InvoicePending InvoiceStatus = "pending"

	// InvoicePaid means the processor confirmed payment
	InvoicePaid InvoiceStatus = "paid"

	// InvoiceOverdue means the due date passed without payment
	InvoiceOverdue InvoiceStatus = "overdue"
)

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is a known invoice state
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoicePending, InvoicePaid, InvoiceOverdue:
		return true
	}
	return false
}

// InvoiceItem is one line of an invoice. Amounts are minor currency units.
type InvoiceItem struct {
	Description string `json:"description"`
	Quantity    int64  `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	Amount      int64  `json:"amount"`
}

// NewInvoiceItem creates a line item, deriving the line amount
func NewInvoiceItem(description string, quantity, unitPrice int64) (InvoiceItem, error) {
	if description == "" {
		return InvoiceItem{}, shared.NewDomainError("INVALID_ITEM", "Line item description cannot be empty")
	}
	if quantity <= 0 {
		return InvoiceItem{}, shared.NewDomainError("INVALID_ITEM", "Line item quantity must be positive")
	}
	if unitPrice < 0 {
		return InvoiceItem{}, shared.NewDomainError("INVALID_ITEM", "Line item unit price cannot be negative")
	}
	return InvoiceItem{
		Description: description,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		Amount:      quantity * unitPrice,
	}, nil
}

// Invoice is immutable once issued: only the payment status (and paid
// timestamp) may change afterwards, driven by processor callbacks. One
// invoice exists per (subscription, period start).
type Invoice struct {
	shared.BaseEntity
	SubscriptionID uuid.UUID
	CustomerID     uuid.UUID
	Number         string
	Sequence       int64
	Status         InvoiceStatus
	Amount         int64
	Currency       string
	PeriodStart    time.Time
	PeriodEnd      time.Time
	IssuedAt       time.Time
	DueAt          time.Time
	PaidAt         *time.Time
	ChargeRef      string
	Items          []InvoiceItem
}

// FormatInvoiceNumber renders the customer-facing invoice number for a
// per-customer sequence value, e.g. ZB-2024-0001.
func FormatInvoiceNumber(year int, sequence int64) string {
	return fmt.Sprintf("ZB-%d-%04d", year, sequence)
}

// NewInvoice issues an invoice for a closed subscription period
func NewInvoice(
	subscriptionID, customerID uuid.UUID,
	sequence int64,
	currency string,
	periodStart, periodEnd time.Time,
	issuedAt, dueAt time.Time,
	items []InvoiceItem,
) (*Invoice, error) {
	if subscriptionID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SUBSCRIPTION", "Subscription ID cannot be empty")
	}
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}
	if sequence <= 0 {
		return nil, shared.NewDomainError("INVALID_SEQUENCE", "Invoice sequence must be positive")
	}
	if currency == "" {
		return nil, shared.NewDomainError("INVALID_CURRENCY", "Invoice currency cannot be empty")
	}
	if !periodStart.Before(periodEnd) {
		return nil, shared.NewDomainError("INVALID_PERIOD", "Period start must precede period end")
	}
	if len(items) == 0 {
		return nil, shared.NewDomainError("INVALID_ITEMS", "Invoice must have at least one line item")
	}

	var total int64
	for _, item := range items {
		total += item.Amount
	}

	inv := &Invoice{
		BaseEntity:     shared.NewBaseEntityAt(issuedAt),
		SubscriptionID: subscriptionID,
		CustomerID:     customerID,
		Number:         FormatInvoiceNumber(issuedAt.Year(), sequence),
		Sequence:       sequence,
		Status:         InvoicePending,
		Amount:         total,
		Currency:       currency,
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		IssuedAt:       issuedAt,
		DueAt:          dueAt,
		Items:          items,
	}
	return inv, nil
}

// MarkPaid settles a pending invoice. Driven by the external payment
// processor callback, never by the invoice generator.
func (i *Invoice) MarkPaid(now time.Time, chargeRef string) error {
	if i.Status != InvoicePending {
		return shared.ErrInvalidState
	}
	i.Status = InvoicePaid
	paidAt := now
	i.PaidAt = &paidAt
	i.ChargeRef = chargeRef
	i.UpdatedAt = now
	return nil
}

// MarkOverdue flags a pending invoice whose due date passed without payment
func (i *Invoice) MarkOverdue(now time.Time) error {
	if i.Status != InvoicePending {
		return shared.ErrInvalidState
	}
	i.Status = InvoiceOverdue
	i.UpdatedAt = now
	return nil
}

// IsSettled returns true once the invoice has been paid
func (i *Invoice) IsSettled() bool {
	return i.Status == InvoicePaid
}
