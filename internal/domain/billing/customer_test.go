package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCustomer(t *testing.T) {
	now := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)

	t.Run("valid customer", func(t *testing.T) {
		c, err := NewCustomer("Acme Corp", "billing@acme.example", now)

		require.NoError(t, err)
		assert.Equal(t, "Acme Corp", c.Name)
		assert.Equal(t, "billing@acme.example", c.Email)
	})

	t.Run("trims whitespace", func(t *testing.T) {
		c, err := NewCustomer("  Acme Corp  ", " billing@acme.example ", now)

		require.NoError(t, err)
		assert.Equal(t, "Acme Corp", c.Name)
		assert.Equal(t, "billing@acme.example", c.Email)
	})

	t.Run("validation failures", func(t *testing.T) {
		_, err := NewCustomer("", "billing@acme.example", now)
		assert.Error(t, err)

		_, err = NewCustomer("Acme Corp", "", now)
		assert.Error(t, err)

		_, err = NewCustomer("Acme Corp", "not-an-email", now)
		assert.Error(t, err)
	})
}

func TestDeriveCustomerStatus(t *testing.T) {
	now := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)

	newSub := func(t *testing.T, trialDays int) *Subscription {
		t.Helper()
		sub, err := NewSubscription(uuid.New(), monthlyPlan(t, trialDays), now)
		require.NoError(t, err)
		return sub
	}

	t.Run("no subscription reads active", func(t *testing.T) {
		assert.Equal(t, CustomerActive, DeriveCustomerStatus(nil))
	})

	t.Run("trial subscription", func(t *testing.T) {
		assert.Equal(t, CustomerTrial, DeriveCustomerStatus(newSub(t, 14)))
	})

	t.Run("active subscription", func(t *testing.T) {
		assert.Equal(t, CustomerActive, DeriveCustomerStatus(newSub(t, 0)))
	})

	t.Run("past due reads overdue", func(t *testing.T) {
		sub := newSub(t, 0)
		require.NoError(t, sub.ApplyChargeFailure(now))
		assert.Equal(t, CustomerOverdue, DeriveCustomerStatus(sub))
	})

	t.Run("cancelled subscription", func(t *testing.T) {
		sub := newSub(t, 0)
		require.NoError(t, sub.Cancel(now))
		assert.Equal(t, CustomerCancelled, DeriveCustomerStatus(sub))
	})
}

func TestPaymentMethod_IsExpired(t *testing.T) {
	customerID := uuid.New()
	now := time.Date(2024, 8, 15, 0, 0, 0, 0, time.UTC)

	t.Run("future expiry", func(t *testing.T) {
		pm, err := NewPaymentMethod(customerID, "tok_visa", "visa", "4242", 12, 2026, now)
		require.NoError(t, err)
		assert.False(t, pm.IsExpired(now))
	})

	t.Run("valid through end of expiry month", func(t *testing.T) {
		pm, err := NewPaymentMethod(customerID, "tok_visa", "visa", "4242", 8, 2024, now)
		require.NoError(t, err)
		assert.False(t, pm.IsExpired(now))
		assert.True(t, pm.IsExpired(time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)))
	})

	t.Run("past expiry", func(t *testing.T) {
		pm, err := NewPaymentMethod(customerID, "tok_visa", "visa", "4242", 1, 2024, now)
		require.NoError(t, err)
		assert.True(t, pm.IsExpired(now))
	})
}
