package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zenbilling/backend/internal/domain/billing"
)

// InvoiceSequenceModel is the GORM model for per-customer invoice counters
type InvoiceSequenceModel struct {
	CustomerID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Value      int64     `gorm:"not null"`
}

// TableName returns the table name for the model
func (InvoiceSequenceModel) TableName() string {
	return "invoice_sequences"
}

// InvoiceSequenceRepository implements billing.InvoiceSequenceRepository
// on GORM
type InvoiceSequenceRepository struct {
	db *gorm.DB
}

// NewInvoiceSequenceRepository creates a new invoice sequence repository
func NewInvoiceSequenceRepository(db *gorm.DB) *InvoiceSequenceRepository {
	return &InvoiceSequenceRepository{db: db}
}

// Next returns the next sequence value for the customer. The increment
// runs as a single UPDATE so concurrent callers serialize on the row;
// two racing first-time callers serialize on the primary key instead,
// with the loser retrying down the UPDATE path.
func (r *InvoiceSequenceRepository) Next(ctx context.Context, customerID uuid.UUID) (int64, error) {
	var next int64

	claim := func(tx *gorm.DB) (bool, error) {
		result := tx.Model(&InvoiceSequenceModel{}).
			Where("customer_id = ?", customerID).
			Update("value", gorm.Expr("value + 1"))
		if result.Error != nil {
			return false, result.Error
		}
		if result.RowsAffected == 0 {
			return false, nil
		}

		var model InvoiceSequenceModel
		if err := tx.First(&model, "customer_id = ?", customerID).Error; err != nil {
			return false, err
		}
		next = model.Value
		return true, nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claimed, err := claim(tx)
		if err != nil || claimed {
			return err
		}

		err = tx.Create(&InvoiceSequenceModel{CustomerID: customerID, Value: 1}).Error
		if err == nil {
			next = 1
			return nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}

		// lost the first-claim race, the row exists now
		claimed, err = claim(tx)
		if err != nil {
			return err
		}
		if !claimed {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

var _ billing.InvoiceSequenceRepository = (*InvoiceSequenceRepository)(nil)
