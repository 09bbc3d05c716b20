package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenbilling/backend/internal/domain/shared"
)

func TestNewCatalog(t *testing.T) {
	t.Run("lookup by ID", func(t *testing.T) {
		c, err := NewCatalog(DefaultPlans()...)
		require.NoError(t, err)

		plan, err := c.Get("professional")
		require.NoError(t, err)
		assert.Equal(t, "Professional", plan.Name)
		assert.Equal(t, int64(9900), plan.Price)
	})

	t.Run("unknown plan", func(t *testing.T) {
		c, err := NewCatalog(DefaultPlans()...)
		require.NoError(t, err)

		_, err = c.Get("nonexistent")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("duplicate ID rejected", func(t *testing.T) {
		a, _ := NewPlan("starter", "Starter", 2900, "USD", IntervalMonth, LimitedQuota(1000), 14)
		b, _ := NewPlan("starter", "Starter Copy", 3900, "USD", IntervalMonth, LimitedQuota(2000), 14)

		_, err := NewCatalog(a, b)
		assert.Error(t, err)
	})

	t.Run("preserves registration order", func(t *testing.T) {
		c := DefaultCatalog()

		plans := c.All()
		require.Len(t, plans, 3)
		assert.Equal(t, "starter", plans[0].ID)
		assert.Equal(t, "professional", plans[1].ID)
		assert.Equal(t, "enterprise", plans[2].ID)
	})
}

func TestDefaultPlans(t *testing.T) {
	plans := DefaultPlans()
	require.Len(t, plans, 3)

	starter := plans[0]
	limit, ok := starter.Quota.Limit()
	require.True(t, ok)
	assert.Equal(t, int64(1000), limit)
	assert.Equal(t, 14, starter.TrialDays)

	enterprise := plans[2]
	assert.True(t, enterprise.Quota.IsUnlimited())
	assert.Equal(t, 30, enterprise.TrialDays)
}
