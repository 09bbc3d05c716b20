package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zenbilling/backend/internal/domain/billing"
	"github.com/zenbilling/backend/internal/domain/shared"
)

// PaymentMethodModel is the GORM model for the processor-owned payment
// method mirror, one row per customer.
type PaymentMethodModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	CustomerID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	Token       string    `gorm:"type:varchar(255);not null"`
	Brand       string    `gorm:"type:varchar(20);not null"`
	Last4       string    `gorm:"type:varchar(4);not null"`
	ExpiryMonth int       `gorm:"not null"`
	ExpiryYear  int       `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName returns the table name for the model
func (PaymentMethodModel) TableName() string {
	return "payment_methods"
}

// ToEntity converts the model to a domain entity
func (m *PaymentMethodModel) ToEntity() *billing.PaymentMethod {
	return &billing.PaymentMethod{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		CustomerID:  m.CustomerID,
		Token:       m.Token,
		Brand:       m.Brand,
		Last4:       m.Last4,
		ExpiryMonth: m.ExpiryMonth,
		ExpiryYear:  m.ExpiryYear,
	}
}

// PaymentMethodModelFromEntity creates a model from a domain entity
func PaymentMethodModelFromEntity(e *billing.PaymentMethod) *PaymentMethodModel {
	return &PaymentMethodModel{
		ID:          e.ID,
		CustomerID:  e.CustomerID,
		Token:       e.Token,
		Brand:       e.Brand,
		Last4:       e.Last4,
		ExpiryMonth: e.ExpiryMonth,
		ExpiryYear:  e.ExpiryYear,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

// PaymentMethodRepository implements billing.PaymentMethodRepository on GORM
type PaymentMethodRepository struct {
	db *gorm.DB
}

// NewPaymentMethodRepository creates a new payment method repository
func NewPaymentMethodRepository(db *gorm.DB) *PaymentMethodRepository {
	return &PaymentMethodRepository{db: db}
}

// Save stores or refreshes the mirror for a customer
func (r *PaymentMethodRepository) Save(ctx context.Context, pm *billing.PaymentMethod) error {
	model := PaymentMethodModelFromEntity(pm)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "customer_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"token", "brand", "last4", "expiry_month", "expiry_year", "updated_at",
			}),
		}).
		Create(model).Error
}

// FindByCustomer retrieves the customer's payment method
func (r *PaymentMethodRepository) FindByCustomer(ctx context.Context, customerID uuid.UUID) (*billing.PaymentMethod, error) {
	var model PaymentMethodModel
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

var _ billing.PaymentMethodRepository = (*PaymentMethodRepository)(nil)
