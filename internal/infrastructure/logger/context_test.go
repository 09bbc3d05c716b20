package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zapcore"
)

func newObservedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func TestWithContextRoundTrip(t *testing.T) {
	logger, _ := newObservedLogger()

	ctx := WithContext(context.Background(), logger)

	assert.Same(t, logger, FromContext(ctx))
}

func TestFromContextMissing(t *testing.T) {
	logger := FromContext(context.Background())

	require.NotNil(t, logger)
	// no-op logger should swallow writes without panicking
	logger.Info("ignored")
}

func TestWithRequestID(t *testing.T) {
	logger, logs := newObservedLogger()

	ctx, enriched := WithRequestID(context.Background(), logger, "req-123")
	enriched.Info("usage recorded")

	assert.Equal(t, "req-123", GetRequestID(ctx))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "req-123", logs.All()[0].ContextMap()["request_id"])
}

func TestWithCustomerID(t *testing.T) {
	logger, logs := newObservedLogger()

	ctx, enriched := WithCustomerID(context.Background(), logger, "cus-42")
	enriched.Info("invoice issued")

	assert.Equal(t, "cus-42", GetCustomerID(ctx))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "cus-42", logs.All()[0].ContextMap()["customer_id"])
}

func TestGetRequestIDMissing(t *testing.T) {
	assert.Empty(t, GetRequestID(context.Background()))
	assert.Empty(t, GetCustomerID(context.Background()))
}
