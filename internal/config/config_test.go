package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, 2, cfg.Ledger.MaxRetries)
	assert.Equal(t, 25*time.Millisecond, cfg.Ledger.RetryBackoff)
	assert.Equal(t, 24*time.Hour, cfg.Ledger.IdempotencyTTL)
	assert.Equal(t, 5*time.Second, cfg.DB.LockTimeout)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, 120, cfg.RateLimitMax)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("STORE_DRIVER", DriverMemory)
	t.Setenv("LEDGER_MAX_RETRIES", "5")
	t.Setenv("IDEMPOTENCY_LEASE", "2s")
	t.Setenv("DB_NAME", "ledger_test")
	t.Setenv("RATE_LIMIT_MAX", "0")

	cfg := Load()

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, 5, cfg.Ledger.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Ledger.IdempotencyLease)
	assert.Contains(t, cfg.DB.DSN(), "dbname=ledger_test")
	assert.Zero(t, cfg.RateLimitMax)
}
