package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/troupe/internal/model"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.Equal(t, "UTC", cfg.DefaultTimezone)
	assert.Equal(t, 5, cfg.SyncMaxAttempts)
	assert.Equal(t, 72*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "@every 5m", cfg.ReconcileSchedule)
	assert.Equal(t, time.Minute, cfg.LockTTL)
	assert.Equal(t, "./migrations/memory", cfg.Migrations())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "/tmp/troupe.db")
	t.Setenv("SYNC_FANOUT", "3")
	t.Setenv("SYNC_JOB_TIMEOUT", "10s")
	t.Setenv("DEFAULT_TIMEZONE", "Europe/Berlin")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.DatabaseDriver)
	assert.Equal(t, 3, cfg.SyncFanout)
	assert.Equal(t, 10*time.Second, cfg.SyncJobTimeout)
	assert.Equal(t, 20*time.Second, cfg.LockTTL)
	assert.Equal(t, "Europe/Berlin", cfg.DefaultTimezone)
	// development falls back to a local secret
	assert.NotEmpty(t, cfg.JWTSecret)
}

func TestResolveDefaultsRejects(t *testing.T) {
	cfg := NewForTesting()
	cfg.DatabaseDriver = "mongo"
	assert.Error(t, cfg.ResolveDefaults())

	cfg = NewForTesting()
	cfg.DatabaseDriver = DriverPostgres
	assert.Error(t, cfg.ResolveDefaults())

	cfg = NewForTesting()
	cfg.DefaultTimezone = "Mars/Olympus"
	assert.ErrorIs(t, cfg.ResolveDefaults(), model.ErrBadTimezone)

	cfg = NewForTesting()
	cfg.Environment = EnvProduction
	cfg.JWTSecret = ""
	assert.Error(t, cfg.ResolveDefaults())

	// the lock must outlive a sync attempt
	cfg = NewForTesting()
	cfg.LockTTL = cfg.SyncJobTimeout
	assert.Error(t, cfg.ResolveDefaults())

	assert.NoError(t, NewForTesting().ResolveDefaults())
}
