package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zenbilling/backend/internal/domain/billing"
	"github.com/zenbilling/backend/internal/domain/shared"
)

// CustomerModel is the GORM model for customers
type CustomerModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"type:varchar(255);not null"`
	Email     string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for the model
func (CustomerModel) TableName() string {
	return "customers"
}

// ToEntity converts the model to a domain entity
func (m *CustomerModel) ToEntity() *billing.Customer {
	return &billing.Customer{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		Name:  m.Name,
		Email: m.Email,
	}
}

// CustomerModelFromEntity creates a model from a domain entity
func CustomerModelFromEntity(e *billing.Customer) *CustomerModel {
	return &CustomerModel{
		ID:        e.ID,
		Name:      e.Name,
		Email:     e.Email,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

// CustomerRepository implements billing.CustomerRepository on GORM
type CustomerRepository struct {
	db *gorm.DB
}

// NewCustomerRepository creates a new customer repository
func NewCustomerRepository(db *gorm.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// Save persists a new customer
func (r *CustomerRepository) Save(ctx context.Context, customer *billing.Customer) error {
	model := CustomerModelFromEntity(customer)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// FindByID retrieves a customer by ID
func (r *CustomerRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Customer, error) {
	var model CustomerModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// List retrieves all customers ordered by creation time
func (r *CustomerRepository) List(ctx context.Context) ([]*billing.Customer, error) {
	var models []CustomerModel
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	customers := make([]*billing.Customer, len(models))
	for i := range models {
		customers[i] = models[i].ToEntity()
	}
	return customers, nil
}

// Count returns the total number of customers
func (r *CustomerRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&CustomerModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

var _ billing.CustomerRepository = (*CustomerRepository)(nil)
