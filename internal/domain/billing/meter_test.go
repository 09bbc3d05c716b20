package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenbilling/backend/internal/domain/catalog"
)

func meterSubject(t *testing.T, usage int64) *Subscription {
	t.Helper()
	now := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
	sub, err := NewSubscription(uuid.New(), monthlyPlan(t, 0), now)
	require.NoError(t, err)
	if usage > 0 {
		require.NoError(t, sub.AccrueUsage(usage, now))
	}
	return sub
}

func TestDeriveMeter(t *testing.T) {
	tests := []struct {
		name        string
		usage       int64
		limit       int64
		wantPercent float64
		wantWarning WarningLevel
	}{
		{"no usage", 0, 1000, 0, WarningNone},
		{"half quota", 500, 1000, 50, WarningNone},
		{"just below high usage", 799, 1000, 79.9, WarningNone},
		{"high usage at 80 percent", 800, 1000, 80, WarningHighUsage},
		{"near limit at 90 percent", 900, 1000, 90, WarningNearLimit},
		{"at quota", 1000, 1000, 100, WarningNearLimit},
		{"over quota clamps to 100", 1050, 1000, 100, WarningNearLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := meterSubject(t, tt.usage)
			meter := DeriveMeter(sub, catalog.LimitedQuota(tt.limit))

			assert.InDelta(t, tt.wantPercent, meter.Percentage, 0.001)
			assert.Equal(t, tt.wantWarning, meter.Warning)
			assert.Equal(t, tt.usage, meter.Current)
			assert.Equal(t, tt.limit, meter.Limit)
			assert.False(t, meter.NoLimit)
		})
	}
}

func TestDeriveMeter_Unlimited(t *testing.T) {
	sub := meterSubject(t, 5_000_000)
	meter := DeriveMeter(sub, catalog.UnlimitedQuota())

	assert.True(t, meter.NoLimit)
	assert.Zero(t, meter.Percentage)
	assert.Equal(t, WarningNone, meter.Warning)
	assert.False(t, meter.IsWarning())
	assert.Equal(t, int64(5_000_000), meter.Current)
}

func TestUsageMeter_IsWarning(t *testing.T) {
	assert.False(t, UsageMeter{Warning: WarningNone}.IsWarning())
	assert.True(t, UsageMeter{Warning: WarningHighUsage}.IsWarning())
	assert.True(t, UsageMeter{Warning: WarningNearLimit}.IsWarning())
}
