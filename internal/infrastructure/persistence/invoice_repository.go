package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zenbilling/backend/internal/domain/billing"
	"github.com/zenbilling/backend/internal/domain/shared"
)

// InvoiceModel is the GORM model for invoices. The unique index on
// (subscription_id, period_start) makes invoice generation idempotent per
// closed period. Invoice numbers are only unique per customer, never
// globally.
type InvoiceModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	SubscriptionID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_invoice_sub_period"`
	CustomerID     uuid.UUID `gorm:"type:uuid;not null;index"`
	Number         string    `gorm:"type:varchar(30);not null"`
	Sequence       int64     `gorm:"not null"`
	Status         string    `gorm:"type:varchar(20);not null;index"`
	Amount         int64     `gorm:"not null"`
	Currency       string    `gorm:"type:varchar(3);not null"`
	PeriodStart    time.Time `gorm:"not null;uniqueIndex:idx_invoice_sub_period"`
	PeriodEnd      time.Time `gorm:"not null"`
	IssuedAt       time.Time `gorm:"not null"`
	DueAt          time.Time `gorm:"not null"`
	PaidAt         *time.Time
	ChargeRef      string `gorm:"type:varchar(64)"`
	Items          string `gorm:"type:text;not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName returns the table name for the model
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToEntity converts the model to a domain entity
func (m *InvoiceModel) ToEntity() *billing.Invoice {
	var items []billing.InvoiceItem
	_ = json.Unmarshal([]byte(m.Items), &items)

	return &billing.Invoice{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		SubscriptionID: m.SubscriptionID,
		CustomerID:     m.CustomerID,
		Number:         m.Number,
		Sequence:       m.Sequence,
		Status:         billing.InvoiceStatus(m.Status),
		Amount:         m.Amount,
		Currency:       m.Currency,
		PeriodStart:    m.PeriodStart,
		PeriodEnd:      m.PeriodEnd,
		IssuedAt:       m.IssuedAt,
		DueAt:          m.DueAt,
		PaidAt:         m.PaidAt,
		ChargeRef:      m.ChargeRef,
		Items:          items,
	}
}

// InvoiceModelFromEntity creates a model from a domain entity
func InvoiceModelFromEntity(e *billing.Invoice) (*InvoiceModel, error) {
	items, err := json.Marshal(e.Items)
	if err != nil {
		return nil, err
	}

	return &InvoiceModel{
		ID:             e.ID,
		SubscriptionID: e.SubscriptionID,
		CustomerID:     e.CustomerID,
		Number:         e.Number,
		Sequence:       e.Sequence,
		Status:         string(e.Status),
		Amount:         e.Amount,
		Currency:       e.Currency,
		PeriodStart:    e.PeriodStart,
		PeriodEnd:      e.PeriodEnd,
		IssuedAt:       e.IssuedAt,
		DueAt:          e.DueAt,
		PaidAt:         e.PaidAt,
		ChargeRef:      e.ChargeRef,
		Items:          string(items),
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}, nil
}

// InvoiceRepository implements billing.InvoiceRepository on GORM
type InvoiceRepository struct {
	db *gorm.DB
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// Save persists a newly issued invoice. A second invoice for the same
// subscription period loses to the unique index and comes back as
// ErrAlreadyExists.
func (r *InvoiceRepository) Save(ctx context.Context, invoice *billing.Invoice) error {
	model, err := InvoiceModelFromEntity(invoice)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Update persists an invoice status change. Everything else on an issued
// invoice is immutable.
func (r *InvoiceRepository) Update(ctx context.Context, invoice *billing.Invoice) error {
	result := r.db.WithContext(ctx).
		Model(&InvoiceModel{}).
		Where("id = ?", invoice.ID).
		Updates(map[string]interface{}{
			"status":     string(invoice.Status),
			"paid_at":    invoice.PaidAt,
			"charge_ref": invoice.ChargeRef,
			"updated_at": invoice.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindByID retrieves an invoice by ID
func (r *InvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	var model InvoiceModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// FindByPeriod retrieves the invoice issued for a subscription period
func (r *InvoiceRepository) FindByPeriod(ctx context.Context, subscriptionID uuid.UUID, periodStart time.Time) (*billing.Invoice, error) {
	var model InvoiceModel
	err := r.db.WithContext(ctx).
		Where("subscription_id = ? AND period_start = ?", subscriptionID, periodStart).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// FindLatestBySubscription retrieves the most recently issued invoice for
// a subscription
func (r *InvoiceRepository) FindLatestBySubscription(ctx context.Context, subscriptionID uuid.UUID) (*billing.Invoice, error) {
	var model InvoiceModel
	err := r.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("period_start DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// FindByCustomer retrieves a customer's invoices, newest first
func (r *InvoiceRepository) FindByCustomer(ctx context.Context, customerID uuid.UUID) ([]*billing.Invoice, error) {
	var models []InvoiceModel
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("issued_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return invoicesFromModels(models), nil
}

// FindUnpaidByCustomer retrieves pending and overdue invoices for a customer
func (r *InvoiceRepository) FindUnpaidByCustomer(ctx context.Context, customerID uuid.UUID) ([]*billing.Invoice, error) {
	var models []InvoiceModel
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Where("status IN ?", []string{string(billing.InvoicePending), string(billing.InvoiceOverdue)}).
		Order("issued_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return invoicesFromModels(models), nil
}

func invoicesFromModels(models []InvoiceModel) []*billing.Invoice {
	invoices := make([]*billing.Invoice, len(models))
	for i := range models {
		invoices[i] = models[i].ToEntity()
	}
	return invoices
}

var _ billing.InvoiceRepository = (*InvoiceRepository)(nil)
