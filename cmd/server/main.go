package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appbilling "github.com/zenbilling/backend/internal/application/billing"
	"github.com/zenbilling/backend/internal/domain/billing"
	"github.com/zenbilling/backend/internal/domain/shared"
	"github.com/zenbilling/backend/internal/infrastructure/cache"
	"github.com/zenbilling/backend/internal/infrastructure/config"
	"github.com/zenbilling/backend/internal/infrastructure/logger"
	"github.com/zenbilling/backend/internal/infrastructure/payment"
	"github.com/zenbilling/backend/internal/infrastructure/persistence"
	"github.com/zenbilling/backend/internal/infrastructure/scheduler"
	"github.com/zenbilling/backend/internal/interfaces/http/handler"
	"github.com/zenbilling/backend/internal/interfaces/http/middleware"
	"github.com/zenbilling/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting ZenBilling",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))

	// Initialize database connection
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}
	log.Info("Database connected and migrated")

	// Callback idempotency store: Redis when configured, in-memory otherwise.
	// The in-memory store does not survive restarts, so replayed callbacks
	// after a restart fall back on invoice state checks.
	var idempotency shared.IdempotencyStore
	if cfg.Redis.Enabled {
		redisStore, err := cache.NewRedisIdempotencyStore(cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() {
			if err := redisStore.Close(); err != nil {
				log.Error("Error closing Redis", zap.Error(err))
			}
		}()
		idempotency = redisStore
		log.Info("Redis idempotency store connected")
	} else {
		idempotency = cache.NewInMemoryIdempotencyStore()
		log.Info("Using in-memory idempotency store")
	}

	// Payment processor
	var processor billing.PaymentProcessor
	switch cfg.Payment.Mode {
	case "http":
		httpProcessor, err := payment.NewHTTPProcessor(&payment.HTTPProcessorConfig{
			BaseURL: cfg.Payment.BaseURL,
			APIKey:  cfg.Payment.APIKey,
			Timeout: cfg.Payment.Timeout,
		}, log)
		if err != nil {
			log.Fatal("Failed to configure payment processor", zap.Error(err))
		}
		processor = httpProcessor
	default:
		processor = payment.NewStubProcessor(cfg.Payment.StubDecline)
		log.Warn("Using stub payment processor", zap.Bool("always_decline", cfg.Payment.StubDecline))
	}

	// Domain wiring
	planCatalog, err := cfg.Catalog.BuildCatalog()
	if err != nil {
		log.Fatal("Failed to build plan catalog", zap.Error(err))
	}
	log.Info("Plan catalog loaded",
		zap.String("source", cfg.Catalog.Source),
		zap.Int("plans", planCatalog.Len()))
	clock := shared.SystemClock()
	locks := appbilling.NewSubscriptionLocks()

	customerRepo := persistence.NewCustomerRepository(db.DB)
	subscriptionRepo := persistence.NewSubscriptionRepository(db.DB)
	usageEventRepo := persistence.NewUsageEventRepository(db.DB)
	invoiceRepo := persistence.NewInvoiceRepository(db.DB)
	invoiceSeqRepo := persistence.NewInvoiceSequenceRepository(db.DB)
	paymentMethodRepo := persistence.NewPaymentMethodRepository(db.DB)

	invoiceService := appbilling.NewInvoiceService(invoiceRepo, invoiceSeqRepo, planCatalog, clock, log)
	usageService := appbilling.NewUsageService(usageEventRepo, subscriptionRepo, invoiceRepo, planCatalog, locks, clock, log)
	subscriptionService := appbilling.NewSubscriptionService(subscriptionRepo, customerRepo, planCatalog, locks, clock, log)
	customerService := appbilling.NewCustomerService(customerRepo, subscriptionRepo, paymentMethodRepo, clock, log)
	metricsService := appbilling.NewMetricsService(subscriptionRepo, customerRepo, invoiceRepo, planCatalog, log)
	callbackService := appbilling.NewPaymentCallbackService(invoiceService, subscriptionRepo, locks, idempotency, clock, log)
	rolloverService := appbilling.NewRolloverService(
		subscriptionRepo, usageEventRepo, paymentMethodRepo,
		invoiceService, processor, planCatalog, locks, clock, log,
		appbilling.RolloverConfig{
			GracePeriod:       cfg.Billing.GracePeriod,
			MaxChargeAttempts: cfg.Billing.MaxChargeAttempts,
		},
	)

	// Billing clock drives all time-based transitions
	billingClock := scheduler.NewBillingClock(rolloverService, invoiceService, customerRepo, log, scheduler.BillingClockConfig{
		TickInterval: cfg.Billing.TickInterval,
	})
	if err := billingClock.Start(context.Background()); err != nil {
		log.Fatal("Failed to start billing clock", zap.Error(err))
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer stopCancel()
		if err := billingClock.Stop(stopCtx); err != nil {
			log.Error("Error stopping billing clock", zap.Error(err))
		}
	}()

	// HTTP surface
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()
	engine := gin.New()

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			RequestsPerSecond: float64(cfg.HTTP.RateLimitRequests),
			Burst:             cfg.HTTP.RateLimitBurst,
			CleanupInterval:   time.Minute,
			ClientTTL:         3 * time.Minute,
		})
		defer rateLimiter.Stop()
		engine.Use(rateLimiter.Middleware())
	}

	engine.GET("/health", healthHandler(db))

	router.NewRouter(engine, router.WithAPIVersion("v1")).
		Register(handler.NewUsageHandler(usageService)).
		Register(handler.NewSubscriptionHandler(subscriptionService)).
		Register(handler.NewCustomerHandler(customerService)).
		Register(handler.NewPlanHandler(planCatalog)).
		Register(handler.NewInvoiceHandler(invoiceService)).
		Register(handler.NewMetricsHandler(metricsService)).
		Register(handler.NewPaymentCallbackHandler(callbackService)).
		Register(handler.NewSystemHandler()).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
