package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Save original env vars and restore after tests
	originalEnv := map[string]string{
		"ZB_APP_NAME":                 os.Getenv("ZB_APP_NAME"),
		"ZB_APP_ENV":                  os.Getenv("ZB_APP_ENV"),
		"ZB_APP_PORT":                 os.Getenv("ZB_APP_PORT"),
		"ZB_DATABASE_HOST":            os.Getenv("ZB_DATABASE_HOST"),
		"ZB_DATABASE_PORT":            os.Getenv("ZB_DATABASE_PORT"),
		"ZB_DATABASE_USER":            os.Getenv("ZB_DATABASE_USER"),
		"ZB_DATABASE_PASSWORD":        os.Getenv("ZB_DATABASE_PASSWORD"),
		"ZB_DATABASE_DBNAME":          os.Getenv("ZB_DATABASE_DBNAME"),
		"ZB_DATABASE_SSLMODE":         os.Getenv("ZB_DATABASE_SSLMODE"),
		"ZB_DATABASE_MAX_OPEN_CONNS":  os.Getenv("ZB_DATABASE_MAX_OPEN_CONNS"),
		"ZB_DATABASE_MAX_IDLE_CONNS":  os.Getenv("ZB_DATABASE_MAX_IDLE_CONNS"),
		"ZB_BILLING_TICK_INTERVAL":    os.Getenv("ZB_BILLING_TICK_INTERVAL"),
		"ZB_BILLING_GRACE_PERIOD":     os.Getenv("ZB_BILLING_GRACE_PERIOD"),
		"ZB_PAYMENT_MODE":             os.Getenv("ZB_PAYMENT_MODE"),
		"ZB_PAYMENT_API_KEY":          os.Getenv("ZB_PAYMENT_API_KEY"),
		"ZB_CATALOG_SOURCE":           os.Getenv("ZB_CATALOG_SOURCE"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv()

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "zenbilling", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "postgres", cfg.Database.User)
		assert.Equal(t, "zenbilling", cfg.Database.DBName)
		assert.Equal(t, "disable", cfg.Database.SSLMode)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, time.Minute, cfg.Billing.TickInterval)
		assert.Equal(t, 7*24*time.Hour, cfg.Billing.GracePeriod)
		assert.Equal(t, 3, cfg.Billing.MaxChargeAttempts)
		assert.Equal(t, "stub", cfg.Payment.Mode)
		assert.Equal(t, "builtin", cfg.Catalog.Source)
	})

	t.Run("loads values from environment variables with ZB prefix", func(t *testing.T) {
		clearEnv()
		os.Setenv("ZB_APP_NAME", "test-app")
		os.Setenv("ZB_APP_PORT", "9000")
		os.Setenv("ZB_DATABASE_HOST", "testdb.local")
		os.Setenv("ZB_DATABASE_PORT", "5433")
		os.Setenv("ZB_BILLING_TICK_INTERVAL", "30s")
		os.Setenv("ZB_BILLING_GRACE_PERIOD", "72h")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, 30*time.Second, cfg.Billing.TickInterval)
		assert.Equal(t, 72*time.Hour, cfg.Billing.GracePeriod)
	})

	t.Run("rejects unknown payment mode", func(t *testing.T) {
		clearEnv()
		os.Setenv("ZB_PAYMENT_MODE", "carrier-pigeon")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("rejects sub-second tick interval", func(t *testing.T) {
		clearEnv()
		os.Setenv("ZB_BILLING_TICK_INTERVAL", "100ms")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("production requires real processor and database password", func(t *testing.T) {
		clearEnv()
		os.Setenv("ZB_APP_ENV", "production")

		_, err := Load()
		require.Error(t, err)

		os.Setenv("ZB_DATABASE_PASSWORD", "secret")
		os.Setenv("ZB_DATABASE_SSLMODE", "require")
		_, err = Load()
		require.Error(t, err) // stub processor still rejected

		os.Setenv("ZB_PAYMENT_MODE", "http")
		os.Setenv("ZB_PAYMENT_API_KEY", "sk_live_x")
		_, err = Load()
		assert.NoError(t, err)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "p@ss/word",
		DBName:   "zenbilling",
		SSLMode:  "disable",
	}

	dsn := cfg.DSN()
	assert.Contains(t, dsn, "postgres://")
	assert.Contains(t, dsn, "localhost:5432")
	assert.Contains(t, dsn, "zenbilling")
	assert.Contains(t, dsn, "sslmode=disable")
	// Special characters in the password are escaped
	assert.NotContains(t, dsn, "p@ss/word")
}
