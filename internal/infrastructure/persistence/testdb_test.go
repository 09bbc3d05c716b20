package persistence

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/zenbilling/backend/internal/domain/billing"
	"github.com/zenbilling/backend/internal/domain/catalog"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&CustomerModel{},
		&SubscriptionModel{},
		&UsageEventModel{},
		&InvoiceModel{},
		&InvoiceSequenceModel{},
		&PaymentMethodModel{},
	)
	require.NoError(t, err)

	return db
}

func newTestSubscription(t *testing.T, now time.Time) *billing.Subscription {
	t.Helper()

	starter, err := catalog.DefaultCatalog().Get("starter")
	require.NoError(t, err)

	sub, err := billing.NewSubscription(uuid.New(), starter, now)
	require.NoError(t, err)
	return sub
}

func newTestInvoice(t *testing.T, subscriptionID, customerID uuid.UUID, sequence int64, periodStart time.Time) *billing.Invoice {
	t.Helper()

	item, err := billing.NewInvoiceItem("Starter plan (month)", 1, 2900)
	require.NoError(t, err)

	periodEnd := periodStart.AddDate(0, 1, 0)
	inv, err := billing.NewInvoice(
		subscriptionID, customerID, sequence, "USD",
		periodStart, periodEnd,
		periodEnd, periodEnd.AddDate(0, 0, 14),
		[]billing.InvoiceItem{item},
	)
	require.NoError(t, err)
	return inv
}
