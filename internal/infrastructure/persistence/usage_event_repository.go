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

// UsageEventModel is the GORM model for the append-only usage ledger.
// The unique index on (subscription_id, idempotency_key) backs dedup under
// concurrent delivery.
type UsageEventModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	SubscriptionID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_usage_sub_key;index:idx_usage_sub_recorded"`
	Quantity       int64     `gorm:"not null"`
	IdempotencyKey string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_usage_sub_key"`
	RecordedAt     time.Time `gorm:"not null;index:idx_usage_sub_recorded"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName returns the table name for the model
func (UsageEventModel) TableName() string {
	return "usage_events"
}

// ToEntity converts the model to a domain entity
func (m *UsageEventModel) ToEntity() *billing.UsageEvent {
	return &billing.UsageEvent{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		SubscriptionID: m.SubscriptionID,
		Quantity:       m.Quantity,
		IdempotencyKey: m.IdempotencyKey,
		RecordedAt:     m.RecordedAt,
	}
}

// UsageEventModelFromEntity creates a model from a domain entity
func UsageEventModelFromEntity(e *billing.UsageEvent) *UsageEventModel {
	return &UsageEventModel{
		ID:             e.ID,
		SubscriptionID: e.SubscriptionID,
		Quantity:       e.Quantity,
		IdempotencyKey: e.IdempotencyKey,
		RecordedAt:     e.RecordedAt,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

// UsageEventRepository implements billing.UsageEventRepository on GORM
type UsageEventRepository struct {
	db *gorm.DB
}

// NewUsageEventRepository creates a new usage event repository
func NewUsageEventRepository(db *gorm.DB) *UsageEventRepository {
	return &UsageEventRepository{db: db}
}

// Append persists a usage event. A replayed (subscription, idempotency key)
// pair loses to the unique index and comes back as ErrAlreadyExists.
func (r *UsageEventRepository) Append(ctx context.Context, event *billing.UsageEvent) error {
	model := UsageEventModelFromEntity(event)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// FindByIdempotencyKey retrieves a previously recorded event for dedup
func (r *UsageEventRepository) FindByIdempotencyKey(ctx context.Context, subscriptionID uuid.UUID, key string) (*billing.UsageEvent, error) {
	var model UsageEventModel
	err := r.db.WithContext(ctx).
		Where("subscription_id = ? AND idempotency_key = ?", subscriptionID, key).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// SumForPeriod sums quantities of events recorded in [start, end)
func (r *UsageEventRepository) SumForPeriod(ctx context.Context, subscriptionID uuid.UUID, start, end time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&UsageEventModel{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("subscription_id = ? AND recorded_at >= ? AND recorded_at < ?", subscriptionID, start, end).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

// DeleteBefore discards events recorded strictly before the given time
func (r *UsageEventRepository) DeleteBefore(ctx context.Context, subscriptionID uuid.UUID, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("subscription_id = ? AND recorded_at < ?", subscriptionID, before).
		Delete(&UsageEventModel{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

var _ billing.UsageEventRepository = (*UsageEventRepository)(nil)
