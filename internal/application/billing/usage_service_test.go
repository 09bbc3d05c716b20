package billing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zenbilling/backend/internal/domain/billing"
	"github.com/zenbilling/backend/internal/domain/catalog"
	"github.com/zenbilling/backend/internal/domain/shared"
)

func starterSubscription(t *testing.T, now time.Time) *billing.Subscription {
	t.Helper()
	plan, err := catalog.DefaultCatalog().Get("starter")
	require.NoError(t, err)
	sub, err := billing.NewSubscription(uuid.New(), plan, now)
	require.NoError(t, err)
	require.NoError(t, sub.ApplyChargeSuccess(now))
	return sub
}

func newUsageFixture(t *testing.T, now time.Time) (*UsageService, *mockUsageEventRepository, *mockSubscriptionRepository, *mockInvoiceRepository, *fakeClock) {
	t.Helper()
	usageRepo := new(mockUsageEventRepository)
	subRepo := new(mockSubscriptionRepository)
	invoiceRepo := new(mockInvoiceRepository)
	clock := newFakeClock(now)

	svc := NewUsageService(
		usageRepo, subRepo, invoiceRepo,
		catalog.DefaultCatalog(),
		NewSubscriptionLocks(),
		clock,
		zap.NewNop(),
	)
	return svc, usageRepo, subRepo, invoiceRepo, clock
}

func TestUsageService_Record(t *testing.T) {
	now := time.Date(2024, 8, 10, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("appends event and bumps counter", func(t *testing.T) {
		svc, usageRepo, subRepo, _, _ := newUsageFixture(t, now)
		sub := starterSubscription(t, now)

		subRepo.On("FindByID", ctx, sub.ID).Return(sub, nil)
		usageRepo.On("FindByIdempotencyKey", ctx, sub.ID, "evt-001").Return(nil, shared.ErrNotFound)
		usageRepo.On("Append", ctx, mock.AnythingOfType("*billing.UsageEvent")).Return(nil)
		subRepo.On("Update", ctx, sub).Return(nil)

		result, err := svc.Record(ctx, RecordUsageInput{
			SubscriptionID: sub.ID,
			Quantity:       250,
			IdempotencyKey: "evt-001",
		})

		require.NoError(t, err)
		assert.False(t, result.Deduplicated)
		assert.Equal(t, int64(250), result.Event.Quantity)
		assert.Equal(t, int64(250), sub.UsageInPeriod)
		assert.Equal(t, int64(250), result.Meter.Current)
		assert.InDelta(t, 25.0, result.Meter.Percentage, 0.001)
		usageRepo.AssertExpectations(t)
		subRepo.AssertExpectations(t)
	})

	t.Run("duplicate key returns original without writes", func(t *testing.T) {
		svc, usageRepo, subRepo, _, _ := newUsageFixture(t, now)
		sub := starterSubscription(t, now)
		original, err := billing.NewUsageEvent(sub.ID, 100, "evt-001", now)
		require.NoError(t, err)

		subRepo.On("FindByID", ctx, sub.ID).Return(sub, nil)
		usageRepo.On("FindByIdempotencyKey", ctx, sub.ID, "evt-001").Return(original, nil)

		result, err := svc.Record(ctx, RecordUsageInput{
			SubscriptionID: sub.ID,
			Quantity:       999,
			IdempotencyKey: "evt-001",
		})

		require.NoError(t, err)
		assert.True(t, result.Deduplicated)
		assert.Equal(t, original, result.Event)
		assert.Zero(t, sub.UsageInPeriod)
		usageRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
		subRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("append race resolves to dedup", func(t *testing.T) {
		svc, usageRepo, subRepo, _, _ := newUsageFixture(t, now)
		sub := starterSubscription(t, now)
		original, err := billing.NewUsageEvent(sub.ID, 100, "evt-001", now)
		require.NoError(t, err)

		subRepo.On("FindByID", ctx, sub.ID).Return(sub, nil)
		usageRepo.On("FindByIdempotencyKey", ctx, sub.ID, "evt-001").
			Return(nil, shared.ErrNotFound).Once()
		usageRepo.On("Append", ctx, mock.AnythingOfType("*billing.UsageEvent")).
			Return(shared.ErrAlreadyExists)
		usageRepo.On("FindByIdempotencyKey", ctx, sub.ID, "evt-001").
			Return(original, nil)

		result, err := svc.Record(ctx, RecordUsageInput{
			SubscriptionID: sub.ID,
			Quantity:       100,
			IdempotencyKey: "evt-001",
		})

		require.NoError(t, err)
		assert.True(t, result.Deduplicated)
		assert.Equal(t, original, result.Event)
		subRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("cancelled subscription rejects usage", func(t *testing.T) {
		svc, usageRepo, subRepo, _, _ := newUsageFixture(t, now)
		sub := starterSubscription(t, now)
		require.NoError(t, sub.Cancel(now))

		subRepo.On("FindByID", ctx, sub.ID).Return(sub, nil)
		usageRepo.On("FindByIdempotencyKey", ctx, sub.ID, "evt-001").Return(nil, shared.ErrNotFound)

		_, err := svc.Record(ctx, RecordUsageInput{
			SubscriptionID: sub.ID,
			Quantity:       10,
			IdempotencyKey: "evt-001",
		})

		assert.ErrorIs(t, err, shared.ErrSubscriptionInactive)
		usageRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	})

	t.Run("unknown subscription", func(t *testing.T) {
		svc, _, subRepo, _, _ := newUsageFixture(t, now)
		id := uuid.New()
		subRepo.On("FindByID", ctx, id).Return(nil, shared.ErrNotFound)

		_, err := svc.Record(ctx, RecordUsageInput{
			SubscriptionID: id,
			Quantity:       10,
			IdempotencyKey: "evt-001",
		})

		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("missing idempotency key rejected", func(t *testing.T) {
		svc, _, _, _, _ := newUsageFixture(t, now)

		_, err := svc.Record(ctx, RecordUsageInput{
			SubscriptionID: uuid.New(),
			Quantity:       10,
		})

		assert.Error(t, err)
	})

	t.Run("late report keeps its closed-period attribution", func(t *testing.T) {
		svc, usageRepo, subRepo, _, _ := newUsageFixture(t, now)
		sub := starterSubscription(t, now)
		occurred := sub.CurrentPeriodStart.Add(-30 * time.Minute)

		subRepo.On("FindByID", ctx, sub.ID).Return(sub, nil)
		usageRepo.On("FindByIdempotencyKey", ctx, sub.ID, "evt-late").Return(nil, shared.ErrNotFound)
		usageRepo.On("Append", ctx, mock.AnythingOfType("*billing.UsageEvent")).Return(nil)

		result, err := svc.Record(ctx, RecordUsageInput{
			SubscriptionID: sub.ID,
			Quantity:       40,
			IdempotencyKey: "evt-late",
			OccurredAt:     occurred,
		})

		require.NoError(t, err)
		assert.Equal(t, occurred, result.Event.RecordedAt)
		assert.Zero(t, sub.UsageInPeriod)
		usageRepo.AssertCalled(t, "Append", ctx, mock.AnythingOfType("*billing.UsageEvent"))
		subRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("report inside the open period keeps its own timestamp", func(t *testing.T) {
		svc, usageRepo, subRepo, _, _ := newUsageFixture(t, now)
		sub := starterSubscription(t, now)
		occurred := now.Add(-5 * time.Minute)

		subRepo.On("FindByID", ctx, sub.ID).Return(sub, nil)
		usageRepo.On("FindByIdempotencyKey", ctx, sub.ID, "evt-ts").Return(nil, shared.ErrNotFound)
		usageRepo.On("Append", ctx, mock.AnythingOfType("*billing.UsageEvent")).Return(nil)
		subRepo.On("Update", ctx, sub).Return(nil)

		result, err := svc.Record(ctx, RecordUsageInput{
			SubscriptionID: sub.ID,
			Quantity:       15,
			IdempotencyKey: "evt-ts",
			OccurredAt:     occurred,
		})

		require.NoError(t, err)
		assert.Equal(t, occurred, result.Event.RecordedAt)
		assert.Equal(t, int64(15), sub.UsageInPeriod)
	})

	t.Run("future timestamp rejected", func(t *testing.T) {
		svc, usageRepo, subRepo, _, _ := newUsageFixture(t, now)
		sub := starterSubscription(t, now)

		subRepo.On("FindByID", ctx, sub.ID).Return(sub, nil)
		usageRepo.On("FindByIdempotencyKey", ctx, sub.ID, "evt-future").Return(nil, shared.ErrNotFound)

		_, err := svc.Record(ctx, RecordUsageInput{
			SubscriptionID: sub.ID,
			Quantity:       10,
			IdempotencyKey: "evt-future",
			OccurredAt:     now.Add(time.Hour),
		})

		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_TIMESTAMP", domainErr.Code)
		usageRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	})

	t.Run("warning surfaces when quota nearly consumed", func(t *testing.T) {
		svc, usageRepo, subRepo, _, _ := newUsageFixture(t, now)
		sub := starterSubscription(t, now)
		require.NoError(t, sub.AccrueUsage(850, now))

		subRepo.On("FindByID", ctx, sub.ID).Return(sub, nil)
		usageRepo.On("FindByIdempotencyKey", ctx, sub.ID, "evt-002").Return(nil, shared.ErrNotFound)
		usageRepo.On("Append", ctx, mock.AnythingOfType("*billing.UsageEvent")).Return(nil)
		subRepo.On("Update", ctx, sub).Return(nil)

		result, err := svc.Record(ctx, RecordUsageInput{
			SubscriptionID: sub.ID,
			Quantity:       100,
			IdempotencyKey: "evt-002",
		})

		require.NoError(t, err)
		assert.Equal(t, billing.WarningNearLimit, result.Meter.Warning)
	})
}

func TestUsageService_TotalForPeriod(t *testing.T) {
	now := time.Date(2024, 8, 10, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()
	svc, usageRepo, _, _, _ := newUsageFixture(t, now)

	subID := uuid.New()
	start := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	t.Run("sums ledger window", func(t *testing.T) {
		usageRepo.On("SumForPeriod", ctx, subID, start, end).Return(int64(1234), nil)

		total, err := svc.TotalForPeriod(ctx, subID, start, end)
		require.NoError(t, err)
		assert.Equal(t, int64(1234), total)
	})

	t.Run("inverted window rejected", func(t *testing.T) {
		_, err := svc.TotalForPeriod(ctx, subID, end, start)
		assert.Error(t, err)
	})
}

func TestUsageService_Compact(t *testing.T) {
	now := time.Date(2024, 9, 10, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	coveringInvoice := func(t *testing.T, sub *billing.Subscription) *billing.Invoice {
		t.Helper()
		item, err := billing.NewInvoiceItem("Starter plan (month)", 1, 2900)
		require.NoError(t, err)
		covering, err := billing.NewInvoice(
			sub.ID, sub.CustomerID, 1, "USD",
			sub.CurrentPeriodStart.AddDate(0, -1, 0), sub.CurrentPeriodStart,
			now, now.AddDate(0, 0, 14),
			[]billing.InvoiceItem{item},
		)
		require.NoError(t, err)
		return covering
	}

	t.Run("compacts once invoices cover closed periods", func(t *testing.T) {
		svc, usageRepo, subRepo, invoiceRepo, _ := newUsageFixture(t, now)
		sub := starterSubscription(t, now)
		priorStart := sub.CurrentPeriodStart.AddDate(0, -1, 0)

		subRepo.On("FindByID", ctx, sub.ID).Return(sub, nil)
		invoiceRepo.On("FindLatestBySubscription", ctx, sub.ID).Return(coveringInvoice(t, sub), nil)
		usageRepo.On("DeleteBefore", ctx, sub.ID, priorStart).Return(int64(42), nil)

		removed, err := svc.Compact(ctx, sub.ID, time.Time{})
		require.NoError(t, err)
		assert.Equal(t, int64(42), removed)
	})

	t.Run("cutoff is capped so the prior period survives", func(t *testing.T) {
		svc, usageRepo, subRepo, invoiceRepo, _ := newUsageFixture(t, now)
		sub := starterSubscription(t, now)
		priorStart := sub.CurrentPeriodStart.AddDate(0, -1, 0)

		subRepo.On("FindByID", ctx, sub.ID).Return(sub, nil)
		invoiceRepo.On("FindLatestBySubscription", ctx, sub.ID).Return(coveringInvoice(t, sub), nil)
		usageRepo.On("DeleteBefore", ctx, sub.ID, priorStart).Return(int64(7), nil)

		// A cutoff inside the invoiced prior period must not delete it
		_, err := svc.Compact(ctx, sub.ID, sub.CurrentPeriodStart)
		require.NoError(t, err)
		usageRepo.AssertCalled(t, "DeleteBefore", ctx, sub.ID, priorStart)
	})

	t.Run("earlier caller cutoff is honored", func(t *testing.T) {
		svc, usageRepo, subRepo, invoiceRepo, _ := newUsageFixture(t, now)
		sub := starterSubscription(t, now)
		cutoff := sub.CurrentPeriodStart.AddDate(0, -3, 0)

		subRepo.On("FindByID", ctx, sub.ID).Return(sub, nil)
		invoiceRepo.On("FindLatestBySubscription", ctx, sub.ID).Return(coveringInvoice(t, sub), nil)
		usageRepo.On("DeleteBefore", ctx, sub.ID, cutoff).Return(int64(3), nil)

		removed, err := svc.Compact(ctx, sub.ID, cutoff)
		require.NoError(t, err)
		assert.Equal(t, int64(3), removed)
	})

	t.Run("refuses with no invoice issued", func(t *testing.T) {
		svc, usageRepo, subRepo, invoiceRepo, _ := newUsageFixture(t, now)
		sub := starterSubscription(t, now)

		subRepo.On("FindByID", ctx, sub.ID).Return(sub, nil)
		invoiceRepo.On("FindLatestBySubscription", ctx, sub.ID).Return(nil, shared.ErrNotFound)

		_, err := svc.Compact(ctx, sub.ID, time.Time{})
		require.Error(t, err)
		usageRepo.AssertNotCalled(t, "DeleteBefore", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestUsageService_Meter(t *testing.T) {
	now := time.Date(2024, 8, 10, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()
	svc, _, subRepo, _, _ := newUsageFixture(t, now)

	sub := starterSubscription(t, now)
	require.NoError(t, sub.AccrueUsage(800, now))
	subRepo.On("FindByID", ctx, sub.ID).Return(sub, nil)

	meter, err := svc.Meter(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(800), meter.Current)
	assert.Equal(t, billing.WarningHighUsage, meter.Warning)
}
