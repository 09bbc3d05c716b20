package payment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStubProcessorCharge(t *testing.T) {
	t.Run("succeeds by default", func(t *testing.T) {
		stub := NewStubProcessor(false)

		result, err := stub.Charge(context.Background(), "tok_visa", 2900, "usd")

		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Contains(t, result.ReferenceID, "ch_stub_")
	})

	t.Run("declines decline tokens", func(t *testing.T) {
		stub := NewStubProcessor(false)

		result, err := stub.Charge(context.Background(), "tok_decline_visa", 2900, "usd")

		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, "card declined", result.Reason)
	})

	t.Run("always decline mode", func(t *testing.T) {
		stub := NewStubProcessor(true)

		result, err := stub.Charge(context.Background(), "tok_visa", 2900, "usd")

		require.NoError(t, err)
		assert.False(t, result.Success)
	})

	t.Run("records charge attempts", func(t *testing.T) {
		stub := NewStubProcessor(false)

		_, err := stub.Charge(context.Background(), "tok_visa", 2900, "usd")
		require.NoError(t, err)
		_, err = stub.Charge(context.Background(), "tok_decline_visa", 9900, "usd")
		require.NoError(t, err)

		charges := stub.Charges()
		require.Len(t, charges, 2)
		assert.True(t, charges[0].Succeeded)
		assert.False(t, charges[1].Succeeded)
		assert.EqualValues(t, 9900, charges[1].Amount)
	})

	t.Run("cancelled context", func(t *testing.T) {
		stub := NewStubProcessor(false)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := stub.Charge(ctx, "tok_visa", 2900, "usd")

		assert.Error(t, err)
		assert.Empty(t, stub.Charges())
	})
}
