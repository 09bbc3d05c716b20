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

// SubscriptionModel is the GORM model for subscriptions
type SubscriptionModel struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey"`
	CustomerID         uuid.UUID `gorm:"type:uuid;not null;index"`
	PlanID             string    `gorm:"type:varchar(50);not null"`
	Status             string    `gorm:"type:varchar(20);not null;index"`
	CurrentPeriodStart time.Time `gorm:"not null"`
	CurrentPeriodEnd   time.Time `gorm:"not null;index"`
	TrialEnd           *time.Time
	UsageInPeriod      int64 `gorm:"not null;default:0"`
	PastDueSince       *time.Time
	ChargeAttempts     int  `gorm:"not null;default:0"`
	RequiresAttention  bool `gorm:"not null;default:false"`
	Version            int  `gorm:"not null;default:1"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TableName returns the table name for the model
func (SubscriptionModel) TableName() string {
	return "subscriptions"
}

// ToEntity converts the model to a domain entity
func (m *SubscriptionModel) ToEntity() *billing.Subscription {
	return &billing.Subscription{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		CustomerID:         m.CustomerID,
		PlanID:             m.PlanID,
		Status:             billing.SubscriptionStatus(m.Status),
		CurrentPeriodStart: m.CurrentPeriodStart,
		CurrentPeriodEnd:   m.CurrentPeriodEnd,
		TrialEnd:           m.TrialEnd,
		UsageInPeriod:      m.UsageInPeriod,
		PastDueSince:       m.PastDueSince,
		ChargeAttempts:     m.ChargeAttempts,
		RequiresAttention:  m.RequiresAttention,
	}
}

// SubscriptionModelFromEntity creates a model from a domain entity
func SubscriptionModelFromEntity(e *billing.Subscription) *SubscriptionModel {
	return &SubscriptionModel{
		ID:                 e.ID,
		CustomerID:         e.CustomerID,
		PlanID:             e.PlanID,
		Status:             string(e.Status),
		CurrentPeriodStart: e.CurrentPeriodStart,
		CurrentPeriodEnd:   e.CurrentPeriodEnd,
		TrialEnd:           e.TrialEnd,
		UsageInPeriod:      e.UsageInPeriod,
		PastDueSince:       e.PastDueSince,
		ChargeAttempts:     e.ChargeAttempts,
		RequiresAttention:  e.RequiresAttention,
		Version:            e.Version,
		CreatedAt:          e.CreatedAt,
		UpdatedAt:          e.UpdatedAt,
	}
}

// SubscriptionRepository implements billing.SubscriptionRepository on GORM
type SubscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Save persists a new subscription
func (r *SubscriptionRepository) Save(ctx context.Context, sub *billing.Subscription) error {
	model := SubscriptionModelFromEntity(sub)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Update persists changes to an existing subscription with an optimistic
// version check. A stale write touches zero rows and surfaces as
// ErrConcurrencyConflict; the in-memory version advances only on success.
func (r *SubscriptionRepository) Update(ctx context.Context, sub *billing.Subscription) error {
	result := r.db.WithContext(ctx).
		Model(&SubscriptionModel{}).
		Where("id = ? AND version = ?", sub.ID, sub.Version).
		Updates(map[string]interface{}{
			"status":               string(sub.Status),
			"current_period_start": sub.CurrentPeriodStart,
			"current_period_end":   sub.CurrentPeriodEnd,
			"trial_end":            sub.TrialEnd,
			"usage_in_period":      sub.UsageInPeriod,
			"past_due_since":       sub.PastDueSince,
			"charge_attempts":      sub.ChargeAttempts,
			"requires_attention":   sub.RequiresAttention,
			"version":              sub.Version + 1,
			"updated_at":           sub.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}

	sub.IncrementVersion()
	return nil
}

// FindByID retrieves a subscription by ID
func (r *SubscriptionRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Subscription, error) {
	var model SubscriptionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// FindByCustomer retrieves the customer's subscriptions, newest first
func (r *SubscriptionRepository) FindByCustomer(ctx context.Context, customerID uuid.UUID) ([]*billing.Subscription, error) {
	var models []SubscriptionModel
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return subscriptionsFromModels(models), nil
}

// FindDue retrieves subscriptions owed a time-based transition: active
// ones past their period end, trials past their trial end, and past-due
// ones awaiting a retry or grace check.
func (r *SubscriptionRepository) FindDue(ctx context.Context, now time.Time) ([]*billing.Subscription, error) {
	var models []SubscriptionModel
	err := r.db.WithContext(ctx).
		Where("(status = ? AND current_period_end <= ?)", string(billing.StatusActive), now).
		Or("(status = ? AND trial_end <= ?)", string(billing.StatusTrial), now).
		Or("status = ?", string(billing.StatusPastDue)).
		Order("current_period_end ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return subscriptionsFromModels(models), nil
}

// List retrieves all subscriptions
func (r *SubscriptionRepository) List(ctx context.Context) ([]*billing.Subscription, error) {
	var models []SubscriptionModel
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	return subscriptionsFromModels(models), nil
}

func subscriptionsFromModels(models []SubscriptionModel) []*billing.Subscription {
	subs := make([]*billing.Subscription, len(models))
	for i := range models {
		subs[i] = models[i].ToEntity()
	}
	return subs
}

var _ billing.SubscriptionRepository = (*SubscriptionRepository)(nil)
