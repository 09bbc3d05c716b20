package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zenbilling/backend/internal/domain/billing"
)

// DueProcessor runs one pass over subscriptions owed a time-based
// transition.
type DueProcessor interface {
	ProcessDue(ctx context.Context) (int, error)
}

// OverdueSweeper flags a customer's pending invoices past their due date.
type OverdueSweeper interface {
	SweepOverdue(ctx context.Context, customerID uuid.UUID) (int, error)
}

// BillingClockConfig holds configuration for the billing clock
type BillingClockConfig struct {
	// TickInterval is how often due subscriptions are processed
	TickInterval time.Duration

	// TickTimeout bounds a single pass
	TickTimeout time.Duration
}

// DefaultBillingClockConfig returns default billing clock configuration
func DefaultBillingClockConfig() BillingClockConfig {
	return BillingClockConfig{
		TickInterval: time.Minute,
		TickTimeout:  5 * time.Minute,
	}
}

// BillingClock drives every time-based billing transition. Nothing in the
// system rolls a period, expires a trial, or flags an overdue invoice on a
// read path; state only moves when the clock ticks.
type BillingClock struct {
	rollover  DueProcessor
	invoices  OverdueSweeper
	customers billing.CustomerRepository
	logger    *zap.Logger
	config    BillingClockConfig

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewBillingClock creates a new billing clock
func NewBillingClock(
	rollover DueProcessor,
	invoices OverdueSweeper,
	customers billing.CustomerRepository,
	logger *zap.Logger,
	config BillingClockConfig,
) *BillingClock {
	if config.TickInterval <= 0 {
		config.TickInterval = time.Minute
	}
	if config.TickTimeout <= 0 {
		config.TickTimeout = 5 * time.Minute
	}
	return &BillingClock{
		rollover:  rollover,
		invoices:  invoices,
		customers: customers,
		logger:    logger,
		config:    config,
	}
}

// Start begins ticking. Starting a running clock is a no-op.
func (c *BillingClock) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = true
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.runLoop(ctx)

	c.logger.Info("Billing clock started",
		zap.Duration("tick_interval", c.config.TickInterval))

	return nil
}

// Stop gracefully stops the clock, waiting for an in-flight tick to finish
// or the given context to expire.
func (c *BillingClock) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("Billing clock stopped")
		return nil
	case <-ctx.Done():
		c.logger.Warn("Billing clock stop timed out")
		return ctx.Err()
	}
}

func (c *BillingClock) runLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.TickInterval)
	defer ticker.Stop()

	// first pass immediately so a restart catches up without waiting
	c.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Tick(ctx)
		}
	}
}

// Tick runs one billing pass: subscription transitions first, then the
// overdue sweep over every customer. Errors are logged and the next tick
// retries; a failed pass never wedges the clock.
func (c *BillingClock) Tick(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.config.TickTimeout)
	defer cancel()

	processed, err := c.rollover.ProcessDue(ctx)
	if err != nil {
		c.logger.Error("Rollover pass failed", zap.Error(err))
	} else if processed > 0 {
		c.logger.Info("Rollover pass finished", zap.Int("processed", processed))
	}

	customers, err := c.customers.List(ctx)
	if err != nil {
		c.logger.Error("Overdue sweep could not list customers", zap.Error(err))
		return
	}

	flagged := 0
	for _, customer := range customers {
		n, err := c.invoices.SweepOverdue(ctx, customer.ID)
		if err != nil {
			c.logger.Error("Overdue sweep failed",
				zap.String("customer_id", customer.ID.String()),
				zap.Error(err))
			continue
		}
		flagged += n
	}
	if flagged > 0 {
		c.logger.Info("Overdue sweep finished", zap.Int("flagged", flagged))
	}
}
