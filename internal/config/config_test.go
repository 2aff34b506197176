package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL":       "postgres://localhost/kirana",
		"REDIS_URL":          "redis://localhost:6379/0",
		"APP_ENV":            "",
		"PORT":               "",
		"BILL_LOCK_TTL":      "",
		"CASHBOOK_CACHE_TTL": "",
		"REFUND_TOLERANCE":   "",
	})
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, ":8080", cfg.HTTPAddr())
	assert.Equal(t, 30*time.Second, cfg.LockTTL)
	assert.Equal(t, 168*time.Hour, cfg.CashbookCacheTTL)
	assert.Equal(t, 5.0, cfg.RefundTolerance)
}

func TestLoadRequiresDatabaseAndRedis(t *testing.T) {
	_, err := LoadForTests(map[string]string{
		"DATABASE_URL": "",
		"REDIS_URL":    "redis://localhost:6379/0",
	})
	require.Error(t, err)

	_, err = LoadForTests(map[string]string{
		"DATABASE_URL": "postgres://localhost/kirana",
		"REDIS_URL":    "",
	})
	require.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL":     "postgres://localhost/kirana",
		"REDIS_URL":        "redis://localhost:6379/0",
		"PORT":             "9090",
		"BILL_LOCK_TTL":    "10s",
		"REFUND_TOLERANCE": "2.5",
	})
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTPAddr())
	assert.Equal(t, 10*time.Second, cfg.LockTTL)
	assert.Equal(t, 2.5, cfg.RefundTolerance)
}
